package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"billed/internal/core"
)

// BillRepository is the local write model for bills.
type BillRepository interface {
	Upsert(ctx context.Context, b core.Bill) (core.Bill, int64, error)
	Close() error
}

// SyncPublisher announces that a bill version needs syncing.
type SyncPublisher interface {
	PublishBillSync(ctx context.Context, id string, version int64) error
	Close() error
}

// BillService saves bills locally and queues their sync to Google Sheets.
type BillService struct {
	storage   BillRepository
	publisher SyncPublisher
}

// NewBillService wires the service. publisher may be nil, in which case
// bills stay pending until the worker's periodic scan picks them up.
func NewBillService(storage BillRepository, publisher SyncPublisher) *BillService {
	return &BillService{
		storage:   storage,
		publisher: publisher,
	}
}

// SaveBill persists the bill, then publishes a sync message. A publish
// failure does not fail the save.
func (s *BillService) SaveBill(ctx context.Context, b core.Bill) (core.Bill, error) {
	if s.storage == nil {
		return core.Bill{}, errors.New("bill storage not configured")
	}
	saved, version, err := s.storage.Upsert(ctx, b)
	if err != nil {
		return core.Bill{}, fmt.Errorf("save bill: %w", err)
	}

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message", "id", saved.ID)
		return saved, nil
	}
	if err := s.publisher.PublishBillSync(ctx, saved.ID, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", saved.ID, "version", version, "error", err)
	}
	return saved, nil
}

// Close closes both storage and AMQP connections.
func (s *BillService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	return errors.Join(errs...)
}
