package shared

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"sheetconsole/internal/platform/sheets"
	"sheetconsole/internal/transport/http/api"
)

// FailUpstream writes the envelope for an error raised while reading from or
// writing to the spreadsheet. Backend messages are passed through verbatim.
func FailUpstream(w http.ResponseWriter, requestID string, err error) {
	var backend *sheets.BackendError
	var transport *sheets.TransportError
	switch {
	case errors.As(err, &backend) && backend.Outdated:
		api.Fail(w, http.StatusBadGateway, "backend_outdated", backend.Error(), requestID)
	case errors.As(err, &backend):
		api.Fail(w, http.StatusBadGateway, "backend_error", backend.Message, requestID)
	case errors.Is(err, sheets.ErrMalformedResponse):
		api.Fail(w, http.StatusBadGateway, "invalid_upstream_response", "spreadsheet returned an unreadable response", requestID)
	case errors.Is(err, context.DeadlineExceeded):
		api.Fail(w, http.StatusGatewayTimeout, "upstream_timeout", "spreadsheet did not answer in time", requestID)
	case errors.As(err, &transport):
		api.Fail(w, http.StatusBadGateway, "upstream_unavailable", transport.Error(), requestID)
	default:
		slog.Warn("unhandled upstream error", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
	}
}
