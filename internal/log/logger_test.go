package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func newJSONLogger(buf *bytes.Buffer) *Logger {
	return New(Config{Level: slog.LevelDebug, Component: ComponentApp, JSON: true, Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf)

	logger.Info("hello")
	logger.WithComponent(ComponentStorage).Warn("disk")

	recs := decodeLines(t, &buf)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0][FieldComponent] != ComponentApp {
		t.Errorf("first record component = %v", recs[0][FieldComponent])
	}
	if recs[1][FieldComponent] != ComponentStorage || recs[1]["level"] != "WARN" {
		t.Errorf("second record = %v", recs[1])
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := map[int]string{200: "INFO", 403: "WARN", 500: "ERROR"}
	for status, level := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(newJSONLogger(&buf))
		r := httptest.NewRequest("GET", "/transactions?x=1", nil)

		sl.LogHTTPEnd(context.Background(), r, status, 12, "10.0.0.1")

		recs := decodeLines(t, &buf)
		if len(recs) != 1 {
			t.Fatalf("status %d: expected one record", status)
		}
		rec := recs[0]
		if rec["level"] != level {
			t.Errorf("status %d: level = %v, want %s", status, rec["level"], level)
		}
		if rec[FieldComponent] != ComponentHTTP || rec[FieldPath] != "/transactions" || rec[FieldQuery] != "x=1" {
			t.Errorf("status %d: unexpected record %v", status, rec)
		}
	}
}

func TestLogTransactionChange(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newJSONLogger(&buf))

	sl.LogTransactionChange(context.Background(), OpCreate, "tx-1", "alice", "INCOME", "Work")

	rec := decodeLines(t, &buf)[0]
	if rec["msg"] != "Transaction created" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec[FieldTxID] != "tx-1" || rec[FieldUserID] != "alice" || rec[FieldOperation] != OpCreate {
		t.Errorf("unexpected record %v", rec)
	}
	if rec[FieldComponent] != ComponentTransaction {
		t.Errorf("component = %v", rec[FieldComponent])
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newJSONLogger(&buf))

	sl.LogError(context.Background(), "boom", errors.New("bad"), ComponentStorage, OpList, nil)

	rec := decodeLines(t, &buf)[0]
	if rec[FieldError] != "bad" || rec[FieldComponent] != ComponentStorage {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext must never return nil")
	}
	var buf bytes.Buffer
	logger := newJSONLogger(&buf)
	if got := FromContext(NewContext(context.Background(), logger)); got != logger {
		t.Error("expected stored logger")
	}
}
