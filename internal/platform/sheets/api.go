package sheets

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// APIReader reads tabs through the Sheets v4 API with a service account.
// The first HeaderRows rows are dropped and recorded on the table, as gviz
// does.
type APIReader struct {
	service       *sheetsapi.Service
	SpreadsheetID string
	HeaderRows    int
	Observer      Observer
}

// NewAPIReader builds a read-only Sheets client from a service-account JSON
// credentials file.
func NewAPIReader(ctx context.Context, credentialsFile, spreadsheetID string, headerRows int, timeout time.Duration, observer Observer) (*APIReader, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	jwtConfig, err := google.JWTConfigFromJSON(b, sheetsapi.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}
	client := jwtConfig.Client(ctx)
	if timeout > 0 {
		client.Timeout = timeout
	}
	service, err := sheetsapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &APIReader{service: service, SpreadsheetID: spreadsheetID, HeaderRows: headerRows, Observer: observer}, nil
}

func (r *APIReader) ReadTable(ctx context.Context, sheet string) (Table, error) {
	start := time.Now()
	resp, err := r.service.Spreadsheets.Values.Get(r.SpreadsheetID, fmt.Sprintf("'%s'", sheet)).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		observe(r.Observer, "api_read", "transport_error", start)
		return Table{}, &TransportError{Op: "sheets api read", Err: err}
	}
	observe(r.Observer, "api_read", "ok", start)
	return TableFromValues(resp.Values, r.HeaderRows), nil
}

// TableFromValues converts a values matrix into a Table, dropping the first
// skip rows and recording them as HeaderRows. Empty rows become blank rows.
func TableFromValues(values [][]any, skip int) Table {
	if skip < 0 {
		skip = 0
	}
	if skip > len(values) {
		skip = len(values)
	}
	table := Table{Rows: make([]Row, 0, len(values)-skip), HeaderRows: skip}
	for _, row := range values[skip:] {
		if len(row) == 0 {
			table.Rows = append(table.Rows, Row{})
			continue
		}
		table.Rows = append(table.Rows, RowFromValues(row))
	}
	return table
}
