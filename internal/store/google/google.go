package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"billed/internal/core"
	"billed/internal/store"
)

// Config selects the spreadsheet and the credentials used to reach it.
// OAuth client + token take precedence over a service account.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenJSON     string
	OAuthTokenFile     string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// valuesAPI is the subset of the Sheets values service the client uses.
type valuesAPI interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Update(ctx context.Context, rng string, row []any) error
	Append(ctx context.Context, rng string, row []any) error
}

// Client stores bills as rows of a single sheet. Receipt bytes live in a
// separate blob store since Sheets cannot hold them.
type Client struct {
	values   valuesAPI
	sheet    string
	receipts receiptStore
	now      func() time.Time
}

type receiptStore interface {
	store.ReceiptCreator
	store.ReceiptReader
}

var (
	_ store.Store = (*Client)(nil)
	_ store.Bills = (*Client)(nil)
)

// New creates a Sheets-backed store. receipts may be nil for writers that
// only sync rows, in which case receipt operations fail.
func New(ctx context.Context, cfg Config, receipts receiptStore) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Bills"
	}
	return &Client{
		values:   &sheetsValues{svc: svc, spreadsheetID: cfg.SpreadsheetID},
		sheet:    sheet,
		receipts: receipts,
		now:      time.Now,
	}, nil
}

// newSheetsService builds the Sheets service from OAuth credentials when
// present, otherwise from a service account.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	clientJSON, err := readInlineOrFile(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if clientJSON != nil {
		return newOAuthService(ctx, clientJSON, cfg)
	}

	saJSON, err := readInlineOrFile(cfg.ServiceAccountJSON, cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	if saJSON == nil {
		return nil, errors.New("missing google credentials (set GOOGLE_OAUTH_CLIENT_JSON/FILE or GOOGLE_SERVICE_ACCOUNT_JSON/FILE)")
	}
	slog.InfoContext(ctx, "Creating Google Sheets service with service account", "credentials_size", len(saJSON))
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(saJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func newOAuthService(ctx context.Context, clientJSON []byte, cfg Config) (*gsheet.Service, error) {
	oc, err := oauthgoogle.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	tokJSON, err := readInlineOrFile(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	if tokJSON == nil {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokJSON, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}

	// The oauth2 transport wraps the pooled client found in the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	slog.InfoContext(ctx, "Creating Google Sheets service with OAuth token", "expiry", tok.Expiry)
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(oc.Client(ctx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func readInlineOrFile(inline, file string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if f := strings.TrimSpace(file); f != "" {
		return os.ReadFile(f)
	}
	return nil, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// Bills implements store.Store.
func (c *Client) Bills() store.Bills { return c }

// List reads every bill row. Rows that do not parse are skipped with a warning.
func (c *Client) List(ctx context.Context) ([]core.Bill, error) {
	rows, err := c.values.Get(ctx, c.dataRange())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.dataRange(), err)
	}
	out := make([]core.Bill, 0, len(rows))
	for i, row := range rows {
		b, err := parseBillRow(row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed bill row", "sheet", c.sheet, "row", i+2, "error", err)
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Get scans the sheet for the bill with the given ID.
func (c *Client) Get(ctx context.Context, id string) (core.Bill, error) {
	bills, err := c.List(ctx)
	if err != nil {
		return core.Bill{}, err
	}
	for _, b := range bills {
		if b.ID == id {
			return b, nil
		}
	}
	return core.Bill{}, fmt.Errorf("bill %s: %w", id, core.ErrNotFound)
}

// Update overwrites the row holding the bill's ID, or appends a new row.
func (c *Client) Update(ctx context.Context, b core.Bill) (core.Bill, error) {
	if err := b.Validate(); err != nil {
		return core.Bill{}, fmt.Errorf("validation failed: %w", err)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = c.now().UTC()
	}

	ids, err := c.values.Get(ctx, fmt.Sprintf("%s!A2:A", c.sheet))
	if err != nil {
		return core.Bill{}, fmt.Errorf("read ids from %s: %w", c.sheet, err)
	}
	row := billRow(b)
	for i, r := range ids {
		if len(r) > 0 && strings.TrimSpace(fmt.Sprint(r[0])) == b.ID {
			n := i + 2
			rng := fmt.Sprintf("%s!A%d:%s%d", c.sheet, n, lastColumn, n)
			if err := c.values.Update(ctx, rng, row); err != nil {
				return core.Bill{}, fmt.Errorf("update %s: %w", rng, err)
			}
			return b, nil
		}
	}
	if err := c.values.Append(ctx, c.dataRange(), row); err != nil {
		return core.Bill{}, fmt.Errorf("append to %s: %w", c.sheet, err)
	}
	return b, nil
}

var errNoReceipts = errors.New("sheets client has no receipt store")

// Create delegates to the receipt blob store.
func (c *Client) Create(ctx context.Context, f core.AttachedFile) (core.Receipt, error) {
	if c.receipts == nil {
		return core.Receipt{}, errNoReceipts
	}
	return c.receipts.Create(ctx, f)
}

// Open delegates to the receipt blob store.
func (c *Client) Open(ctx context.Context, key string) (core.AttachedFile, error) {
	if c.receipts == nil {
		return core.AttachedFile{}, errNoReceipts
	}
	return c.receipts.Open(ctx, key)
}

func (c *Client) dataRange() string {
	return fmt.Sprintf("%s!A2:%s", c.sheet, lastColumn)
}

// sheetsValues adapts the generated Sheets client to valuesAPI.
type sheetsValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (v *sheetsValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := v.svc.Spreadsheets.Values.Get(v.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (v *sheetsValues) Update(ctx context.Context, rng string, row []any) error {
	_, err := v.svc.Spreadsheets.Values.Update(v.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (v *sheetsValues) Append(ctx context.Context, rng string, row []any) error {
	_, err := v.svc.Spreadsheets.Values.Append(v.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}
