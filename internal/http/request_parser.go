package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"fintrack/internal/core"
)

const maxBodyBytes = 1 << 20

// requestError is a client mistake detected before the service is called.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

var transactionFieldNames = []string{"description", "amount", "date", "type", "category"}

// ParseTransactionFields reads the request body into core-ready raw fields.
// JSON objects and form-encoded bodies are accepted; amount may be a JSON
// number or a string. A JSON null or an absent key leaves the field absent.
func ParseTransactionFields(w http.ResponseWriter, r *http.Request) (core.Fields, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.Fields{}, &requestError{status: http.StatusRequestEntityTooLarge, msg: "Request body too large"}
		}
		return core.Fields{}, badRequest("Invalid request body")
	}

	body = bytes.TrimSpace(body)
	switch {
	case len(body) == 0:
		return core.Fields{}, nil
	case body[0] == '{':
		return parseJSONFields(body)
	case body[0] == '[':
		return core.Fields{}, badRequest("Request body must be a JSON object")
	default:
		return parseFormFields(body)
	}
}

func parseJSONFields(body []byte) (core.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return core.Fields{}, badRequest("Invalid JSON body")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return core.Fields{}, badRequest("Invalid JSON body")
	}

	values := make(map[string]*string, len(transactionFieldNames))
	for _, name := range transactionFieldNames {
		v, ok := raw[name]
		if !ok || v == nil {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case json.Number:
			s = val.String()
		default:
			return core.Fields{}, badRequest("Field %q must be a string or a number", name)
		}
		s = sanitizeInput(s)
		values[name] = &s
	}
	return toFields(values), nil
}

func parseFormFields(body []byte) (core.Fields, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return core.Fields{}, badRequest("Invalid form body")
	}
	values := make(map[string]*string, len(transactionFieldNames))
	for _, name := range transactionFieldNames {
		if !form.Has(name) {
			continue
		}
		s := sanitizeInput(form.Get(name))
		values[name] = &s
	}
	return toFields(values), nil
}
