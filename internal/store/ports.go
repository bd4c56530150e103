package store

import (
	"context"

	"billed/internal/core"
)

// Ports for outbound adapters.
type (
	// BillLister returns every stored bill in storage order. Ordering for
	// display is the presenter's job.
	BillLister interface {
		List(ctx context.Context) ([]core.Bill, error)
	}

	// BillUpdater persists a bill, inserting it when its ID is unknown.
	BillUpdater interface {
		Update(ctx context.Context, b core.Bill) (core.Bill, error)
	}

	// BillGetter looks a single bill up by ID. Missing bills yield core.ErrNotFound.
	BillGetter interface {
		Get(ctx context.Context, id string) (core.Bill, error)
	}

	// ReceiptCreator stores an accepted receipt file and returns where it lives.
	ReceiptCreator interface {
		Create(ctx context.Context, f core.AttachedFile) (core.Receipt, error)
	}

	// ReceiptReader loads a stored receipt by key. Missing receipts yield core.ErrNotFound.
	ReceiptReader interface {
		Open(ctx context.Context, key string) (core.AttachedFile, error)
	}

	// Bills groups the bill operations the views and the form controller use.
	Bills interface {
		BillLister
		BillUpdater
		BillGetter
		ReceiptCreator
		ReceiptReader
	}

	// Store is the persistence collaborator handed to the HTTP layer.
	Store interface {
		Bills() Bills
	}
)

// ReceiptURL is the public path under which a stored receipt is served.
func ReceiptURL(key string) string {
	return "/receipts/" + key
}
