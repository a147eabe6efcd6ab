package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func deref(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestParseTransactionFields(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantAmount  string
		wantDesc    string
		wantType    string
		wantStatus  int // non-zero means an error with this status
	}{
		{
			name:        "json with numeric amount",
			contentType: "application/json",
			body:        `{"description":"Coffee","amount":-3.20,"type":"EXPENSE","category":"Food","date":"2024-01-02"}`,
			wantAmount:  "-3.20",
			wantDesc:    "Coffee",
			wantType:    "EXPENSE",
		},
		{
			name:        "json with string amount",
			contentType: "application/json",
			body:        `{"description":"  Salary  ","amount":"1000","type":"INCOME"}`,
			wantAmount:  "1000",
			wantDesc:    "Salary",
			wantType:    "INCOME",
		},
		{
			name:        "json null leaves field absent",
			contentType: "application/json",
			body:        `{"description":"Rent","amount":null}`,
			wantAmount:  "<nil>",
			wantDesc:    "Rent",
			wantType:    "<nil>",
		},
		{
			name:        "form body",
			contentType: "application/x-www-form-urlencoded",
			body:        "description=Lunch&amount=-12.5&type=expense",
			wantAmount:  "-12.5",
			wantDesc:    "Lunch",
			wantType:    "expense",
		},
		{
			name:       "empty body",
			body:       "",
			wantAmount: "<nil>",
			wantDesc:   "<nil>",
			wantType:   "<nil>",
		},
		{
			name:        "boolean amount rejected",
			contentType: "application/json",
			body:        `{"amount":true}`,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "malformed json",
			contentType: "application/json",
			body:        `{"amount":`,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "trailing data after object",
			contentType: "application/json",
			body:        `{"amount":1} garbage`,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "two objects",
			contentType: "application/json",
			body:        `{"amount":1}{"amount":2}`,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "array body",
			contentType: "application/json",
			body:        `[1,2]`,
			wantStatus:  http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			f, err := ParseTransactionFields(httptest.NewRecorder(), req)

			if tt.wantStatus != 0 {
				var reqErr *requestError
				if !errors.As(err, &reqErr) {
					t.Fatalf("expected requestError, got %v", err)
				}
				if reqErr.status != tt.wantStatus {
					t.Errorf("status = %d, want %d", reqErr.status, tt.wantStatus)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := deref(f.Amount); got != tt.wantAmount {
				t.Errorf("amount = %q, want %q", got, tt.wantAmount)
			}
			if got := deref(f.Description); got != tt.wantDesc {
				t.Errorf("description = %q, want %q", got, tt.wantDesc)
			}
			if got := deref(f.Type); got != tt.wantType {
				t.Errorf("type = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestParseTransactionFieldsTooLarge(t *testing.T) {
	body := `{"description":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))

	_, err := ParseTransactionFields(httptest.NewRecorder(), req)

	var reqErr *requestError
	if !errors.As(err, &reqErr) || reqErr.status != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 requestError, got %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := map[string]string{
		"  plain  ":       "plain",
		"tab\tkept":       "tab\tkept",
		"bell\x07dropped": "belldropped",
		"null\x00byte":    "nullbyte",
		"line\nbreak":     "line\nbreak",
	}
	for in, want := range tests {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}
