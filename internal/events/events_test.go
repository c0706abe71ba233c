package events

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"saldi/internal/core"
	"saldi/internal/ledger"
)

func TestNewBalanceChanged(t *testing.T) {
	msg := NewBalanceChanged("acc", OpRecordCreated, core.NewDate(2024, 1, 2), "rec", 3)

	if _, err := uuid.Parse(msg.EventID); err != nil {
		t.Errorf("EventID %q is not a uuid", msg.EventID)
	}
	if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Second {
		t.Errorf("Timestamp should be recent, got %v", msg.Timestamp)
	}
}

func TestBalanceChanged_JSON(t *testing.T) {
	msg := &BalanceChanged{
		EventID:    "e1",
		AccountID:  "acc",
		Operation:  OpRecordUpdated,
		AnchorDate: core.NewDate(2024, 1, 2),
		RecordID:   "rec",
		Rewritten:  2,
		Timestamp:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	b, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := BalanceChangedFromJSON(b)
	if err != nil {
		t.Fatalf("BalanceChangedFromJSON() error = %v", err)
	}
	if parsed.AccountID != msg.AccountID || parsed.Operation != msg.Operation || parsed.Rewritten != 2 {
		t.Errorf("parsed = %+v", parsed)
	}
	if !parsed.AnchorDate.Equal(msg.AnchorDate) {
		t.Errorf("AnchorDate = %s", parsed.AnchorDate)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v", parsed.Timestamp)
	}
}

func TestBalanceChanged_InvalidJSON(t *testing.T) {
	if _, err := BalanceChangedFromJSON([]byte(`{"anchorDate": 5}`)); err == nil {
		t.Error("expected error for numeric anchor date")
	}
}

func TestFromOutcome(t *testing.T) {
	out := ledger.Outcome{
		Record: core.Record{ID: "rec"},
		Anchors: []core.Snapshot{
			{AccountID: "a", Date: core.NewDate(2024, 1, 1)},
			{AccountID: "b", Date: core.NewDate(2024, 1, 5)},
		},
		Propagated: []core.Snapshot{{AccountID: "a"}, {AccountID: "a"}, {AccountID: "b"}},
	}
	msgs := FromOutcome(OpRecordUpdated, out)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(msgs))
	}
	if msgs[0].AccountID != "a" || msgs[0].Rewritten != 2 || msgs[0].RecordID != "rec" {
		t.Errorf("first = %+v", msgs[0])
	}
	if msgs[1].AccountID != "b" || msgs[1].Rewritten != 1 || !msgs[1].AnchorDate.Equal(core.NewDate(2024, 1, 5)) {
		t.Errorf("second = %+v", msgs[1])
	}
}
