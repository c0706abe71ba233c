package services

import (
	"context"
	"log/slog"

	"saldi/internal/core"
	"saldi/internal/events"
	"saldi/internal/ledger"
	"saldi/internal/log"
)

// RecordService validates movements, runs them through the ledger
// coordinator and announces committed balance changes.
type RecordService struct {
	coord     *ledger.Coordinator
	reader    Reader
	snapshots *SnapshotService
	publisher events.Publisher
}

func NewRecordService(coord *ledger.Coordinator, reader Reader, snapshots *SnapshotService, publisher events.Publisher) *RecordService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &RecordService{
		coord:     coord,
		reader:    reader,
		snapshots: snapshots,
		publisher: publisher,
	}
}

func (s *RecordService) Create(ctx context.Context, m core.Movement) (core.Record, error) {
	if err := m.Validate(); err != nil {
		return core.Record{}, err
	}
	out, err := s.coord.Create(ctx, m)
	if err != nil {
		return core.Record{}, err
	}
	s.committed(ctx, events.OpRecordCreated, out)
	return out.Record, nil
}

func (s *RecordService) Update(ctx context.Context, id string, m core.Movement) (core.Record, error) {
	if err := m.Validate(); err != nil {
		return core.Record{}, err
	}
	out, err := s.coord.Update(ctx, id, m)
	if err != nil {
		return core.Record{}, err
	}
	s.committed(ctx, events.OpRecordUpdated, out)
	return out.Record, nil
}

func (s *RecordService) Delete(ctx context.Context, id string) error {
	out, err := s.coord.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.committed(ctx, events.OpRecordDeleted, out)
	return nil
}

func (s *RecordService) Get(ctx context.Context, id string) (core.Record, error) {
	return s.reader.FindRecordByID(ctx, id)
}

// List returns records in [from, to] ordered by account, date and creation.
// An unknown accountID is ErrNotFound.
func (s *RecordService) List(ctx context.Context, accountID string, from, to *core.Date) ([]core.Record, error) {
	start, end, err := core.ValidateRange(from, to)
	if err != nil {
		return nil, err
	}
	if err := requireAccount(ctx, s.reader, accountID); err != nil {
		return nil, err
	}
	return s.reader.ListRecords(ctx, accountID, start, end)
}

// Rebuild recomputes every balance of an account from zero.
func (s *RecordService) Rebuild(ctx context.Context, accountID string) ([]core.Snapshot, error) {
	changed, err := s.coord.Rebuild(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if s.snapshots != nil {
		s.snapshots.Invalidate(accountID)
	}
	s.publish(ctx, events.NewBalanceChanged(accountID, events.OpRebuilt, core.MinDate, "", len(changed)))
	return changed, nil
}

// committed runs after the unit of work: the ledger is already consistent,
// so failures here are logged and never returned.
func (s *RecordService) committed(ctx context.Context, op events.Operation, out ledger.Outcome) {
	if s.snapshots != nil {
		s.snapshots.Invalidate(out.AccountIDs()...)
	}
	for _, msg := range events.FromOutcome(op, out) {
		s.publish(ctx, msg)
	}
}

func (s *RecordService) publish(ctx context.Context, msg *events.BalanceChanged) {
	if err := s.publisher.PublishBalanceChanged(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish balance change",
			log.FieldComponent, log.ComponentService,
			log.FieldEventID, msg.EventID,
			log.FieldAccountID, msg.AccountID,
			log.FieldError, err)
	}
}
