package http

import (
	"time"

	"saldi/internal/core"
)

type recordResponse struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"accountId"`
	SnapshotID     string    `json:"snapshotId"`
	CategoryID     string    `json:"categoryId"`
	Date           core.Date `json:"date"`
	MovementAmount string    `json:"movementAmount"`
	RefundAmount   string    `json:"refundAmount"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toRecordResponse(r core.Record) recordResponse {
	return recordResponse{
		ID:             r.ID,
		AccountID:      r.AccountID,
		SnapshotID:     r.SnapshotID,
		CategoryID:     r.CategoryID,
		Date:           r.Date,
		MovementAmount: core.FormatAmount(r.MovementAmount),
		RefundAmount:   core.FormatAmount(r.RefundAmount),
		Description:    r.Description,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type snapshotResponse struct {
	ID               string    `json:"id"`
	AccountID        string    `json:"accountId"`
	Date             core.Date `json:"date"`
	CurrentAmount    string    `json:"currentAmount"`
	PositiveMovement string    `json:"positiveMovement"`
	NegativeMovement string    `json:"negativeMovement"`
	RefundAmount     string    `json:"refundAmount"`
	RecordIDs        []string  `json:"recordIds"`
}

func toSnapshotResponse(s core.Snapshot) snapshotResponse {
	ids := s.RecordIDs
	if ids == nil {
		ids = []string{}
	}
	return snapshotResponse{
		ID:               s.ID,
		AccountID:        s.AccountID,
		Date:             s.Date,
		CurrentAmount:    core.FormatAmount(s.CurrentAmount),
		PositiveMovement: core.FormatAmount(s.PositiveMovement),
		NegativeMovement: core.FormatAmount(s.NegativeMovement),
		RefundAmount:     core.FormatAmount(s.RefundAmount),
		RecordIDs:        ids,
	}
}

func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}

// emptyIfNil keeps list endpoints from encoding null.
func emptyIfNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
