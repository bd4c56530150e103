// Package receipts stores uploaded receipt images in a bbolt file.
package receipts

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"billed/internal/core"
	"billed/internal/store"
)

// Bucket names.
const (
	bucketMeta = "receipt_meta"
	bucketData = "receipt_data"
)

var (
	_ store.ReceiptCreator = (*Store)(nil)
	_ store.ReceiptReader  = (*Store)(nil)
)

type meta struct {
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the bbolt database wrapper.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the receipts database and its buckets.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open receipts db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketMeta, bucketData} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create rejects files outside the receipt allow-list, then stores the
// bytes under a fresh key.
func (s *Store) Create(_ context.Context, f core.AttachedFile) (core.Receipt, error) {
	check := f.Check()
	if !check.Accepted {
		return core.Receipt{}, &core.ValidationError{Field: "file", Reason: check.Reason}
	}
	key := uuid.NewString() + "." + check.Ext

	m, err := json.Marshal(meta{Name: f.Name, MimeType: f.MimeType, Size: len(f.Data), CreatedAt: time.Now().UTC()})
	if err != nil {
		return core.Receipt{}, fmt.Errorf("marshal receipt meta: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(bucketMeta)).Put([]byte(key), m); err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketData)).Put([]byte(key), f.Data)
	})
	if err != nil {
		return core.Receipt{}, fmt.Errorf("store receipt: %w", err)
	}
	return core.Receipt{Key: key, FileURL: store.ReceiptURL(key), FileName: f.Name}, nil
}

// Open loads a receipt and its bytes.
func (s *Store) Open(_ context.Context, key string) (core.AttachedFile, error) {
	var out core.AttachedFile
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(bucketMeta)).Get([]byte(key))
		if raw == nil {
			return fmt.Errorf("receipt %s: %w", key, core.ErrNotFound)
		}
		var m meta
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("decode receipt meta: %w", err)
		}
		// bbolt values are only valid inside the transaction.
		data := slices.Clone(tx.Bucket([]byte(bucketData)).Get([]byte(key)))
		out = core.AttachedFile{Name: m.Name, MimeType: m.MimeType, Data: data}
		return nil
	})
	return out, err
}

// Delete removes a receipt. Deleting a missing key returns core.ErrNotFound.
func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		mb := tx.Bucket([]byte(bucketMeta))
		if mb.Get([]byte(key)) == nil {
			return fmt.Errorf("receipt %s: %w", key, core.ErrNotFound)
		}
		if err := mb.Delete([]byte(key)); err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketData)).Delete([]byte(key))
	})
}

// Count returns how many receipts are stored.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketMeta)).Stats().KeyN
		return nil
	})
	return n, err
}
