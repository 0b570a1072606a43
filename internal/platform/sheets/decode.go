package sheets

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// gviz wraps the payload as `/*O_o*/\ngoogle.visualization.Query.setResponse(` ... `);`.
	gvizPrefixLen = 47
	gvizSuffixLen = 2
)

type gvizPayload struct {
	Table *Table `json:"table"`
}

// DecodeGviz strips the JS callback wrapper from a gviz export body and
// decodes the table inside it.
func DecodeGviz(body []byte) (Table, error) {
	if len(body) < gvizPrefixLen+gvizSuffixLen {
		return Table{}, fmt.Errorf("%w: gviz body too short (%d bytes)", ErrMalformedResponse, len(body))
	}
	inner := body[gvizPrefixLen : len(body)-gvizSuffixLen]
	var payload gvizPayload
	if err := json.Unmarshal(inner, &payload); err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.Table == nil {
		return Table{}, nil
	}
	return *payload.Table, nil
}

// extractJSON returns body when it is valid JSON, else the span between the
// first '{' and the last '}' when that span is valid JSON.
func extractJSON(body []byte) ([]byte, bool) {
	trimmed := bytes.TrimSpace(body)
	if json.Valid(trimmed) {
		return trimmed, true
	}
	start := bytes.IndexByte(trimmed, '{')
	end := bytes.LastIndexByte(trimmed, '}')
	if start == -1 || end == -1 || end < start {
		return nil, false
	}
	candidate := trimmed[start : end+1]
	if !json.Valid(candidate) {
		return nil, false
	}
	return candidate, true
}

type scriptEnvelope struct {
	Table  *Table  `json:"table"`
	Values [][]any `json:"values"`
}

// DecodeScriptTable reads a script "fetch" response. The deployment has
// answered with a gviz-like table, a bare array of rows, or a values matrix
// depending on its version; all three map onto Table.
func DecodeScriptTable(body []byte) (Table, error) {
	raw, ok := extractJSON(body)
	if !ok {
		return Table{}, fmt.Errorf("%w: script fetch body is not JSON", ErrMalformedResponse)
	}

	if raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return Table{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		table := Table{Rows: make([]Row, 0, len(items))}
		for _, item := range items {
			table.Rows = append(table.Rows, rowFromRaw(item))
		}
		return table, nil
	}

	var envelope scriptEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	switch {
	case envelope.Table != nil:
		return *envelope.Table, nil
	case envelope.Values != nil:
		table := Table{Rows: make([]Row, 0, len(envelope.Values))}
		for _, values := range envelope.Values {
			table.Rows = append(table.Rows, RowFromValues(values))
		}
		return table, nil
	}
	return Table{}, nil
}

func rowFromRaw(raw json.RawMessage) Row {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Row{}
	}
	switch trimmed[0] {
	case '[':
		var values []any
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return Row{}
		}
		return RowFromValues(values)
	case '{':
		var row Row
		if err := json.Unmarshal(trimmed, &row); err != nil {
			return Row{}
		}
		return row
	}
	return Row{}
}

// Result is the script endpoint's write acknowledgement.
type Result struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// isResultBody reports whether body holds a JSON object the script could have
// written as a result.
func isResultBody(body []byte) bool {
	raw, ok := extractJSON(body)
	if !ok {
		return false
	}
	var fields map[string]json.RawMessage
	return json.Unmarshal(raw, &fields) == nil
}

// DecodeScriptResult interprets a write response. Anything other than an
// explicit success:true comes back as a *BackendError.
func DecodeScriptResult(body []byte, status int) (Result, error) {
	raw, ok := extractJSON(body)
	if !ok {
		return Result{}, newBackendError("invalid server response", status)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Result{}, newBackendError("invalid server response", status)
	}

	var result Result
	if v, ok := fields["success"]; ok {
		result.Success = truthy(v)
	}
	result.Error = messageField(fields["error"])
	result.Message = messageField(fields["message"])
	result.Data = fields["data"]

	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = result.Message
		}
		return result, newBackendError(msg, status)
	}
	return result, nil
}

// truthy applies the script's loose success semantics: true, non-zero
// numbers and non-empty strings count as success.
func truthy(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch value := v.(type) {
	case bool:
		return value
	case float64:
		return value != 0
	case string:
		return value != ""
	case nil:
		return false
	default:
		return true
	}
}

func messageField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch value := v.(type) {
	case string:
		return value
	case nil:
		return ""
	default:
		return string(raw)
	}
}
