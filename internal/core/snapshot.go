package core

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Snapshot is the balance of one account at the end of one calendar date,
// together with the aggregates of the movements recorded on that date.
type Snapshot struct {
	ID               string          `json:"id"`
	AccountID        string          `json:"accountId"`
	Date             Date            `json:"date"`
	CurrentAmount    decimal.Decimal `json:"currentAmount"`
	PositiveMovement decimal.Decimal `json:"positiveMovement"`
	NegativeMovement decimal.Decimal `json:"negativeMovement"`
	RefundAmount     decimal.Decimal `json:"refundAmount"`
	RecordIDs        []string        `json:"recordIds"`
}

// SeedSnapshot returns an empty snapshot for date carrying the balance of
// its predecessor.
func SeedSnapshot(id, accountID string, date Date, previousBalance decimal.Decimal) Snapshot {
	return Snapshot{
		ID:               id,
		AccountID:        accountID,
		Date:             date,
		CurrentAmount:    previousBalance,
		PositiveMovement: decimal.Zero,
		NegativeMovement: decimal.Zero,
		RefundAmount:     decimal.Zero,
	}
}

// HasRecord reports whether the record id is filed against s.
func (s Snapshot) HasRecord(recordID string) bool {
	return slices.Contains(s.RecordIDs, recordID)
}

// Delta is the net change this date contributes to the running balance.
func (s Snapshot) Delta() decimal.Decimal {
	return s.PositiveMovement.Sub(s.NegativeMovement)
}

// IsEmpty reports whether no movement is filed against s.
func (s Snapshot) IsEmpty() bool {
	return len(s.RecordIDs) == 0
}

// ApplyMovement returns s with r's contributions added. s is not modified.
func (s Snapshot) ApplyMovement(r Record) Snapshot {
	pos, neg := r.PositiveContribution(), r.NegativeContribution()

	out := s.clone()
	if !out.HasRecord(r.ID) {
		out.RecordIDs = append(out.RecordIDs, r.ID)
	}
	out.PositiveMovement = s.PositiveMovement.Add(pos)
	out.NegativeMovement = s.NegativeMovement.Add(neg)
	out.RefundAmount = s.RefundAmount.Add(r.RefundContribution())
	out.CurrentAmount = s.CurrentAmount.Add(pos).Sub(neg)
	return out
}

// RemoveMovement is the exact inverse of ApplyMovement, using the amounts
// currently stored on r.
func (s Snapshot) RemoveMovement(r Record) (Snapshot, error) {
	if !s.HasRecord(r.ID) {
		return s, fmt.Errorf("record %s is not filed against snapshot %s (%s): %w",
			r.ID, s.ID, s.Date, ErrInvariantViolation)
	}
	pos, neg := r.PositiveContribution(), r.NegativeContribution()

	out := s.clone()
	out.RecordIDs = slices.DeleteFunc(out.RecordIDs, func(id string) bool { return id == r.ID })
	out.PositiveMovement = s.PositiveMovement.Sub(pos)
	out.NegativeMovement = s.NegativeMovement.Sub(neg)
	out.RefundAmount = s.RefundAmount.Sub(r.RefundContribution())
	out.CurrentAmount = s.CurrentAmount.Sub(pos).Add(neg)
	return out, nil
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.RecordIDs = slices.Clone(s.RecordIDs)
	return out
}
