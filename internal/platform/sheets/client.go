package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultGvizBase = "https://docs.google.com"

	ActionInsert         = "insert"
	ActionUpdate         = "update"
	ActionUpdateTaskData = "updateTaskData"
	actionFetch          = "fetch"

	maxResponseBytes = 16 << 20
)

// Observer receives one sample per upstream call.
type Observer interface {
	ObserveUpstream(op, outcome string, duration time.Duration)
}

// Writer sends row writes to the script endpoint.
type Writer interface {
	Write(ctx context.Context, req WriteRequest) (Result, error)
}

// WriteRequest is one script write. RowData is serialised as JSON: a flat
// column array for insert/update, a list of task items for updateTaskData.
// RowIndex is sent only when positive.
type WriteRequest struct {
	Action    string
	SheetName string
	RowData   any
	RowIndex  int
	Extra     url.Values
}

func GvizURL(base, spreadsheetID, sheet string) string {
	if base == "" {
		base = DefaultGvizBase
	}
	return fmt.Sprintf(
		"%s/spreadsheets/d/%s/gviz/tq?tqx=out:json&sheet=%s",
		strings.TrimRight(base, "/"),
		url.PathEscape(strings.TrimSpace(spreadsheetID)),
		url.QueryEscape(strings.TrimSpace(sheet)),
	)
}

// GvizReader reads tabs through the public gviz JSON export.
type GvizReader struct {
	BaseURL       string
	SpreadsheetID string
	Client        *http.Client
	Observer      Observer
}

func NewGvizReader(spreadsheetID string, client *http.Client, observer Observer) *GvizReader {
	if client == nil {
		client = http.DefaultClient
	}
	return &GvizReader{BaseURL: DefaultGvizBase, SpreadsheetID: spreadsheetID, Client: client, Observer: observer}
}

func (r *GvizReader) ReadTable(ctx context.Context, sheet string) (Table, error) {
	start := time.Now()
	body, _, err := doRequest(ctx, r.Client, http.MethodGet, GvizURL(r.BaseURL, r.SpreadsheetID, sheet), "gviz read", true)
	if err != nil {
		observe(r.Observer, "gviz_read", "transport_error", start)
		return Table{}, err
	}
	table, err := DecodeGviz(body)
	if err != nil {
		observe(r.Observer, "gviz_read", "malformed", start)
		return Table{}, err
	}
	observe(r.Observer, "gviz_read", "ok", start)
	return table, nil
}

// ScriptClient talks to the Apps Script web app for reads of tabs the gviz
// export does not serve and for every write.
type ScriptClient struct {
	URL      string
	Client   *http.Client
	Observer Observer
}

func NewScriptClient(endpoint string, client *http.Client, observer Observer) *ScriptClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &ScriptClient{URL: endpoint, Client: client, Observer: observer}
}

func (c *ScriptClient) endpoint(params url.Values) (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parse script url: %w", err)
	}
	query := u.Query()
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// ReadTable issues GET {url}?sheet={name}&action=fetch.
func (c *ScriptClient) ReadTable(ctx context.Context, sheet string) (Table, error) {
	start := time.Now()
	target, err := c.endpoint(url.Values{"sheet": {sheet}, "action": {actionFetch}})
	if err != nil {
		return Table{}, err
	}
	body, _, err := doRequest(ctx, c.Client, http.MethodGet, target, "script fetch", true)
	if err != nil {
		observe(c.Observer, "script_fetch", "transport_error", start)
		return Table{}, err
	}
	table, err := DecodeScriptTable(body)
	if err != nil {
		observe(c.Observer, "script_fetch", "malformed", start)
		return Table{}, err
	}
	observe(c.Observer, "script_fetch", "ok", start)
	return table, nil
}

// Write posts the action with every parameter in the query string and an
// empty text/plain body, which is how the web app reads e.parameter.
func (c *ScriptClient) Write(ctx context.Context, req WriteRequest) (Result, error) {
	start := time.Now()
	op := "script_" + req.Action

	payload, err := json.Marshal(req.RowData)
	if err != nil {
		return Result{}, fmt.Errorf("encode row data: %w", err)
	}
	params := url.Values{}
	params.Set("action", req.Action)
	params.Set("sheetName", req.SheetName)
	params.Set("rowData", string(payload))
	if req.RowIndex > 0 {
		params.Set("rowIndex", strconv.Itoa(req.RowIndex))
	}
	for key, values := range req.Extra {
		for _, value := range values {
			params.Add(key, value)
		}
	}
	target, err := c.endpoint(params)
	if err != nil {
		return Result{}, err
	}

	body, status, err := doRequest(ctx, c.Client, http.MethodPost, target, "script "+req.Action, false)
	if err != nil {
		observe(c.Observer, op, "transport_error", start)
		return Result{}, err
	}
	if (status < 200 || status > 299) && !isResultBody(body) {
		observe(c.Observer, op, "transport_error", start)
		return Result{}, &TransportError{Op: "script " + req.Action, Status: status}
	}
	result, err := DecodeScriptResult(body, status)
	if err != nil {
		observe(c.Observer, op, "backend_error", start)
		return result, err
	}
	if status < 200 || status > 299 {
		observe(c.Observer, op, "transport_error", start)
		return result, &TransportError{Op: "script " + req.Action, Status: status}
	}
	observe(c.Observer, op, "ok", start)
	return result, nil
}

// doRequest performs one call. With strictStatus a non-2xx is returned as a
// TransportError before the body is inspected; writes look at the body first
// because the script reports its own failures there.
func doRequest(ctx context.Context, client *http.Client, method, target, op string, strictStatus bool) ([]byte, int, error) {
	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, 0, &TransportError{Op: op, Err: err}
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "text/plain")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, &TransportError{Op: op, Err: err}
	}
	if strictStatus && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return nil, resp.StatusCode, &TransportError{Op: op, Status: resp.StatusCode}
	}
	return data, resp.StatusCode, nil
}

func observe(o Observer, op, outcome string, start time.Time) {
	if o == nil {
		return
	}
	o.ObserveUpstream(op, outcome, time.Since(start))
}
