package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-02-29 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Equal(NewDate(2024, 2, 29)) {
		t.Fatalf("got %s", d)
	}
	for _, bad := range []string{"", "2024-13-01", "29/02/2024", "2023-02-29"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2025, 3, 7))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2025-03-07"` {
		t.Fatalf("got %s", b)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2025-03-07"`), &d); err != nil {
		t.Fatal(err)
	}
	if !d.Equal(NewDate(2025, 3, 7)) {
		t.Fatalf("got %s", d)
	}
	if err := json.Unmarshal([]byte(`20250307`), &d); err == nil {
		t.Fatalf("expected error for non-string date")
	}
}

func TestDateScan(t *testing.T) {
	cases := []any{
		"2025-03-07",
		[]byte("2025-03-07"),
		"2025-03-07T00:00:00Z",
		time.Date(2025, 3, 7, 15, 4, 5, 0, time.UTC),
	}
	for _, src := range cases {
		var d Date
		if err := d.Scan(src); err != nil {
			t.Fatalf("%v: %v", src, err)
		}
		if !d.Equal(NewDate(2025, 3, 7)) {
			t.Fatalf("%v scanned as %s", src, d)
		}
	}
	var d Date
	if err := d.Scan(42); err == nil {
		t.Fatalf("expected error for int source")
	}
}

func TestRecordContributions(t *testing.T) {
	cases := []struct {
		name          string
		amount        string
		refund        string
		pos, neg, ref string
	}{
		{"outflow", "-50", "5", "0", "50", "5"},
		{"inflow", "200", "0", "200", "0", "0"},
		{"inflow ignores refund", "10", "3", "10", "0", "0"},
	}
	for _, tc := range cases {
		r := Record{
			MovementAmount: decimal.RequireFromString(tc.amount),
			RefundAmount:   decimal.RequireFromString(tc.refund),
		}
		if !r.PositiveContribution().Equal(decimal.RequireFromString(tc.pos)) {
			t.Fatalf("%s: positive %s", tc.name, r.PositiveContribution())
		}
		if !r.NegativeContribution().Equal(decimal.RequireFromString(tc.neg)) {
			t.Fatalf("%s: negative %s", tc.name, r.NegativeContribution())
		}
		if !r.RefundContribution().Equal(decimal.RequireFromString(tc.ref)) {
			t.Fatalf("%s: refund %s", tc.name, r.RefundContribution())
		}
	}
}

func TestAccountAndCategoryValidate(t *testing.T) {
	if err := (Account{Name: "Checking"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Account{Name: "   "}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	err := (Category{}).Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := len(Problems(err)); got != 2 {
		t.Fatalf("expected 2 problems, got %d: %v", got, Problems(err))
	}
}
