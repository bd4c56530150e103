package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"billed/internal/adapters"
	"billed/internal/amqp"
	"billed/internal/receipts"
	"billed/internal/services"
	"billed/internal/storage"
	gsheet "billed/internal/store/google"
	"billed/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	blobs, err := receipts.Open(config.ReceiptsDBPath)
	if err != nil {
		_ = sqliteRepo.Close()
		return nil, fmt.Errorf("failed to open receipt store: %w", err)
	}

	// Optional: without a broker, bills wait for the worker's pending scan.
	var publisher services.SyncPublisher
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	billService := services.NewBillService(sqliteRepo, publisher)
	adapter := adapters.NewSQLiteAdapter(sqliteRepo, billService, blobs)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"receipts_path", config.ReceiptsDBPath,
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Backend: adapter,
		Cleanup: func() error {
			return errors.Join(billService.Close(), blobs.Close())
		},
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	blobs, err := receipts.Open(config.ReceiptsDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open receipt store: %w", err)
	}

	cli, err := gsheet.New(ctx, SheetsConfig(config), blobs)
	if err != nil {
		_ = blobs.Close()
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)

	return &BackendResult{
		Backend: cli,
		Cleanup: blobs.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Backend: store,
		Cleanup: nil,
	}, nil
}

// SheetsConfig extracts the Google Sheets settings. The worker uses it to
// build its own sheets client without a receipt store of its own.
func SheetsConfig(config Config) gsheet.Config {
	return gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SheetName:          config.GoogleSheetName,
		OAuthClientJSON:    config.GoogleOAuthClientJSON,
		OAuthClientFile:    config.GoogleOAuthClientFile,
		OAuthTokenJSON:     config.GoogleOAuthTokenJSON,
		OAuthTokenFile:     config.GoogleOAuthTokenFile,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
	}
}
