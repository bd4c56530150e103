package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"billed/internal/core"
	"billed/internal/store"
)

var (
	_ store.Store = (*Store)(nil)
	_ store.Bills = (*Store)(nil)
)

// Store keeps bills and receipts in process memory.
type Store struct {
	mu       sync.Mutex
	bills    []core.Bill
	receipts map[string]core.AttachedFile
}

func New(bills []core.Bill) *Store {
	return &Store{
		bills:    slices.Clone(bills),
		receipts: make(map[string]core.AttachedFile),
	}
}

// NewFromFiles seeds the store from base/seed_bills.yaml, falling back to
// the built-in fixtures when the file is missing or unreadable.
func NewFromFiles(base string) *Store {
	bills, err := readSeed(filepath.Join(base, "seed_bills.yaml"))
	if err != nil || len(bills) == 0 {
		bills = Fixtures()
	}
	return New(bills)
}

// Bills implements store.Store.
func (s *Store) Bills() store.Bills { return s }

// List returns a copy of all bills in insertion order.
func (s *Store) List(_ context.Context) ([]core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.bills), nil
}

// Get returns the bill with the given ID.
func (s *Store) Get(_ context.Context, id string) (core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bills {
		if b.ID == id {
			return b, nil
		}
	}
	return core.Bill{}, fmt.Errorf("bill %s: %w", id, core.ErrNotFound)
}

// Update replaces the bill with the same ID or appends it.
func (s *Store) Update(_ context.Context, b core.Bill) (core.Bill, error) {
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	for i := range s.bills {
		if s.bills[i].ID == b.ID {
			s.bills[i] = b
			return b, nil
		}
	}
	s.bills = append(s.bills, b)
	return b, nil
}

// Create stores the receipt bytes under a fresh key.
func (s *Store) Create(_ context.Context, f core.AttachedFile) (core.Receipt, error) {
	check := f.Check()
	if !check.Accepted {
		return core.Receipt{}, &core.ValidationError{Field: "file", Reason: check.Reason}
	}
	key := uuid.NewString() + "." + check.Ext
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts[key] = core.AttachedFile{Name: f.Name, MimeType: f.MimeType, Data: slices.Clone(f.Data)}
	return core.Receipt{Key: key, FileURL: store.ReceiptURL(key), FileName: f.Name}, nil
}

// Open returns a stored receipt.
func (s *Store) Open(_ context.Context, key string) (core.AttachedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.receipts[key]
	if !ok {
		return core.AttachedFile{}, fmt.Errorf("receipt %s: %w", key, core.ErrNotFound)
	}
	return f, nil
}

type seedBill struct {
	ID         string `yaml:"id"`
	Email      string `yaml:"email"`
	Type       string `yaml:"type"`
	Name       string `yaml:"name"`
	Date       string `yaml:"date"`
	Amount     string `yaml:"amount"`
	VAT        string `yaml:"vat"`
	Pct        int    `yaml:"pct"`
	Commentary string `yaml:"commentary"`
	FileURL    string `yaml:"file_url"`
	FileName   string `yaml:"file_name"`
	Status     string `yaml:"status"`
}

func readSeed(path string) ([]core.Bill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seeds []seedBill
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make([]core.Bill, 0, len(seeds))
	for i, sb := range seeds {
		b, err := sb.toBill()
		if err != nil {
			return nil, fmt.Errorf("seed %d in %s: %w", i, path, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (sb seedBill) toBill() (core.Bill, error) {
	date, err := core.ParseDate(sb.Date)
	if err != nil {
		return core.Bill{}, err
	}
	amount, err := core.ParseDecimalToCents(sb.Amount)
	if err != nil {
		return core.Bill{}, err
	}
	var vat int64
	if strings.TrimSpace(sb.VAT) != "" {
		if vat, err = core.ParseNonNegativeCents(sb.VAT); err != nil {
			return core.Bill{}, err
		}
	}
	status := core.Status(sb.Status)
	if status == "" {
		status = core.StatusPending
	}
	id := sb.ID
	if id == "" {
		id = uuid.NewString()
	}
	b := core.Bill{
		ID:         id,
		Email:      sb.Email,
		Type:       sb.Type,
		Name:       sb.Name,
		Date:       date,
		Amount:     core.Money{Cents: amount},
		VAT:        core.Money{Cents: vat},
		Pct:        sb.Pct,
		Commentary: sb.Commentary,
		FileURL:    sb.FileURL,
		FileName:   sb.FileName,
		Status:     status,
		CreatedAt:  date.Time,
	}
	return b, b.Validate()
}

// Fixtures returns the demo bills used when no seed file is present.
func Fixtures() []core.Bill {
	mk := func(id, name, typ string, date core.Date, amount int64, status core.Status, comment string) core.Bill {
		return core.Bill{
			ID:         id,
			Email:      "a@a",
			Type:       typ,
			Name:       name,
			Date:       date,
			Amount:     core.Money{Cents: amount},
			VAT:        core.Money{Cents: amount / 5},
			Pct:        20,
			Commentary: comment,
			FileName:   "preview-facture-free-201801-pdf-1.jpg",
			Status:     status,
			CreatedAt:  date.Time.Add(9 * time.Hour),
		}
	}
	return []core.Bill{
		mk("47qAXb6fIm2zOKkLzMro", "encore", "Hôtel et logement", core.NewDate(2004, 4, 4), 40000, core.StatusPending, "séminaire billed"),
		mk("BeKy5Mo4jkmdfPGYpTxZ", "test1", "Services en ligne", core.NewDate(2001, 1, 1), 10000, core.StatusRefused, "plop"),
		mk("UIUZtnPQvnbFnB0ozvJh", "test3", "Services en ligne", core.NewDate(2003, 3, 3), 30000, core.StatusAccepted, ""),
		mk("qcCK3SzECmaZAGRrHjaC", "test2", "Restaurants et bars", core.NewDate(2002, 2, 2), 20000, core.StatusRefused, "test2"),
	}
}
