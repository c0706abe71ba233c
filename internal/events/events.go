// Package events defines the balance-change notification emitted after a
// ledger mutation commits, and the port used to publish it.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"saldi/internal/core"
	"saldi/internal/ledger"
)

type Operation string

const (
	OpRecordCreated Operation = "record.created"
	OpRecordUpdated Operation = "record.updated"
	OpRecordDeleted Operation = "record.deleted"
	OpRebuilt       Operation = "account.rebuilt"
)

// BalanceChanged tells consumers that snapshots of an account from
// AnchorDate onward may have new balances. It carries no amounts; consumers
// read the current state from the store.
type BalanceChanged struct {
	EventID    string    `json:"eventId"`
	AccountID  string    `json:"accountId"`
	Operation  Operation `json:"operation"`
	AnchorDate core.Date `json:"anchorDate"`
	RecordID   string    `json:"recordId,omitempty"`
	Rewritten  int       `json:"rewritten"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewBalanceChanged(accountID string, op Operation, anchor core.Date, recordID string, rewritten int) *BalanceChanged {
	return &BalanceChanged{
		EventID:    uuid.NewString(),
		AccountID:  accountID,
		Operation:  op,
		AnchorDate: anchor,
		RecordID:   recordID,
		Rewritten:  rewritten,
		Timestamp:  time.Now().UTC(),
	}
}

// FromOutcome builds one event per account touched by a mutation.
func FromOutcome(op Operation, out ledger.Outcome) []*BalanceChanged {
	msgs := make([]*BalanceChanged, 0, len(out.Anchors))
	for _, anchor := range out.Anchors {
		rewritten := 0
		for _, s := range out.Propagated {
			if s.AccountID == anchor.AccountID {
				rewritten++
			}
		}
		msgs = append(msgs, NewBalanceChanged(anchor.AccountID, op, anchor.Date, out.Record.ID, rewritten))
	}
	return msgs
}

// ToJSON converts the message to JSON bytes
func (m *BalanceChanged) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BalanceChangedFromJSON creates a message from JSON bytes
func BalanceChangedFromJSON(data []byte) (*BalanceChanged, error) {
	var msg BalanceChanged
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Publisher delivers balance-change events to a broker.
type Publisher interface {
	PublishBalanceChanged(ctx context.Context, msg *BalanceChanged) error
	Close() error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishBalanceChanged(context.Context, *BalanceChanged) error { return nil }

func (Nop) Close() error { return nil }

// Recorder keeps published events in memory, for tests.
type Recorder struct {
	Events []*BalanceChanged
	Err    error
}

func (r *Recorder) PublishBalanceChanged(_ context.Context, msg *BalanceChanged) error {
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, msg)
	return nil
}

func (r *Recorder) Close() error { return nil }
