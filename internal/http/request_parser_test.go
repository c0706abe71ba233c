package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"saldi/internal/core"
)

func TestAmountUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		set     bool
		wantErr bool
	}{
		{`"12.50"`, "12.5", true, false},
		{`"12,50"`, "12.5", true, false},
		{`-3`, "-3", true, false},
		{`"  "`, "0", false, false},
		{`null`, "0", false, false},
		{`"1e3"`, "", false, true},
		{`"abc"`, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var a Amount
			err := json.Unmarshal([]byte(tt.in), &a)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Set != tt.set || a.Value.String() != tt.want {
				t.Errorf("got set=%v value=%s, want set=%v value=%s", a.Set, a.Value, tt.set, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"x"}`, false},
		{"empty", ``, true},
		{"unknown field", `{"other":1}`, true},
		{"trailing data", `{"name":"x"} {"name":"y"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst accountRequest
			err := decodeJSON(httptest.NewRecorder(), req, &dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errBadRequest) {
				t.Errorf("error should wrap errBadRequest: %v", err)
			}
		})
	}
}

func TestParseRangeQuery(t *testing.T) {
	q, err := parseRangeQuery(url.Values{"accountId": {" a1 "}, "startDate": {"2024-01-05"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.AccountID != "a1" || q.From == nil || !q.From.Equal(core.NewDate(2024, 1, 5)) || q.To != nil {
		t.Errorf("unexpected query: %+v", q)
	}

	if _, err := parseRangeQuery(url.Values{"endDate": {"05/01/2024"}}); !errors.Is(err, errBadRequest) {
		t.Errorf("expected errBadRequest, got %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput = %q", got)
	}
}

func TestRecordRequestMovement(t *testing.T) {
	var req recordRequest
	body := `{"accountId":" a ","categoryId":"c","date":"2024-02-29","movementAmount":"-20","refundAmount":"5","description":" lunch "}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	m := req.movement()
	if m.AccountID != "a" || m.Description != "lunch" || m.Amount.String() != "-20" || m.Refund.String() != "5" {
		t.Errorf("unexpected movement: %+v", m)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("movement should be valid: %v", err)
	}
}
