package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveUpstream(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, op+":"+outcome)
}

func TestGvizURLEscapesSheet(t *testing.T) {
	got := GvizURL("", "abc", "Working Day Calendar")
	want := "https://docs.google.com/spreadsheets/d/abc/gviz/tq?tqx=out:json&sheet=Working+Day+Calendar"
	if got != want {
		t.Fatalf("unexpected url\n got %s\nwant %s", got, want)
	}
}

func TestGvizReaderReadsTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/spreadsheets/d/sheet-1/gviz/tq" || r.URL.Query().Get("sheet") != "Whatsapp" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = w.Write(wrapGviz(`{"table":{"rows":[{"c":[{"v":"Ops"}]}]}}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	reader := NewGvizReader("sheet-1", srv.Client(), obs)
	reader.BaseURL = srv.URL
	table, err := reader.ReadTable(context.Background(), "Whatsapp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Rows) != 1 || table.Rows[0].Value(0) != "Ops" {
		t.Fatalf("unexpected table %+v", table)
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != "gviz_read:ok" {
		t.Fatalf("unexpected observations %v", obs.outcomes)
	}
}

func TestGvizReaderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	reader := NewGvizReader("sheet-1", srv.Client(), nil)
	reader.BaseURL = srv.URL
	_, err := reader.ReadTable(context.Background(), "Whatsapp")
	var transportErr *TransportError
	if !errors.As(err, &transportErr) || transportErr.Status != http.StatusForbidden {
		t.Fatalf("expected transport error with status 403, got %v", err)
	}
}

func TestScriptClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.Method != http.MethodGet || q.Get("action") != "fetch" || q.Get("sheet") != "Checklist" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.String())
		}
		_, _ = w.Write([]byte(`{"values":[["Timestamp"],["01/05/2024 10:00:00"]]}`))
	}))
	defer srv.Close()

	client := NewScriptClient(srv.URL+"/exec", srv.Client(), nil)
	table, err := client.ReadTable(context.Background(), "Checklist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
}

func TestScriptClientWriteSendsQueryParams(t *testing.T) {
	var gotBody string
	var gotQuery map[string][]string
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotQuery = r.URL.Query()
		gotContentType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	client := NewScriptClient(srv.URL+"/exec", srv.Client(), obs)
	_, err := client.Write(context.Background(), WriteRequest{
		Action:    ActionUpdate,
		SheetName: "Working Day Calendar",
		RowData:   []string{"", "", "", "", "", "26-01-2025", "Sunday", "Republic Day"},
		RowIndex:  4,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody != "" {
		t.Fatalf("expected empty body, got %q", gotBody)
	}
	if gotContentType != "text/plain" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
	if gotQuery["action"][0] != "update" || gotQuery["sheetName"][0] != "Working Day Calendar" || gotQuery["rowIndex"][0] != "4" {
		t.Fatalf("unexpected query %v", gotQuery)
	}
	var row []string
	if err := json.Unmarshal([]byte(gotQuery["rowData"][0]), &row); err != nil || len(row) != 8 || row[7] != "Republic Day" {
		t.Fatalf("unexpected rowData %q (%v)", gotQuery["rowData"][0], err)
	}
	if obs.outcomes[0] != "script_update:ok" {
		t.Fatalf("unexpected observation %v", obs.outcomes)
	}
}

func TestScriptClientWriteOmitsRowIndexForInsert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["rowIndex"]; ok {
			t.Error("insert should not carry rowIndex")
		}
		if r.URL.Query().Get("timestampColumn") != "-1" {
			t.Error("expected extra timestampColumn param")
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	client := NewScriptClient(srv.URL, srv.Client(), nil)
	_, err := client.Write(context.Background(), WriteRequest{
		Action:    ActionInsert,
		SheetName: "Whatsapp",
		RowData:   []string{"Sales"},
		Extra:     map[string][]string{"timestampColumn": {"-1"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestScriptClientWriteBackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"Unknown action: updateTaskData"}`))
	}))
	defer srv.Close()

	client := NewScriptClient(srv.URL, srv.Client(), nil)
	_, err := client.Write(context.Background(), WriteRequest{Action: ActionUpdateTaskData, SheetName: "Checklist", RowData: []any{}})
	if !errors.Is(err, ErrBackendOutdated) {
		t.Fatalf("expected outdated backend error, got %v", err)
	}
}

func TestScriptClientWriteNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	client := NewScriptClient(endpoint, &http.Client{Timeout: time.Second}, nil)
	_, err := client.Write(context.Background(), WriteRequest{Action: ActionInsert, SheetName: "Whatsapp", RowData: []string{}})
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestScriptClientWriteNon2xxStatus(t *testing.T) {
	cases := []struct {
		name        string
		body        string
		wantBackend bool
	}{
		{"html error page", "<html>Service unavailable</html>", false},
		{"empty body", "", false},
		{"script failure", `{"success":false,"error":"Sheet locked"}`, true},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, tc.body)
		}))
		obs := &recordingObserver{}
		client := NewScriptClient(srv.URL, srv.Client(), obs)
		_, err := client.Write(context.Background(), WriteRequest{Action: ActionUpdate, SheetName: "Whatsapp", RowData: []string{}, RowIndex: 2})
		srv.Close()

		var transportErr *TransportError
		var backendErr *BackendError
		if tc.wantBackend {
			if !errors.As(err, &backendErr) || backendErr.Message != "Sheet locked" {
				t.Fatalf("%s: expected backend error, got %v", tc.name, err)
			}
			continue
		}
		if !errors.As(err, &transportErr) || transportErr.Status != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected transport error with status, got %v", tc.name, err)
		}
		if len(obs.outcomes) != 1 || obs.outcomes[0] != "script_update:transport_error" {
			t.Fatalf("%s: unexpected observations %v", tc.name, obs.outcomes)
		}
	}
}
