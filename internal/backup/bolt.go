package backup

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

var bucketName = []byte("session_backups")

// BoltStore keeps the ledger as one JSON value in a bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore wraps an open database.
func NewBoltStore(db *bbolt.DB) *BoltStore {
	return &BoltStore{db: db}
}

// OpenBoltStore opens (or creates) the database at path.
func OpenBoltStore(path string, options *bbolt.Options) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewBoltStore(db), nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) List() ([]Record, error) {
	var list []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		var err error
		list, err = decodeLedger(b.Get([]byte(LedgerKey)))
		return err
	})
	return list, err
}

// Add runs load, prepend and store in one write transaction.
func (s *BoltStore) Add(rec Record) ([]Record, error) {
	var next []Record
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		list, err := decodeLedger(b.Get([]byte(LedgerKey)))
		if err != nil {
			return err
		}
		next, err = add(list, rec)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		return b.Put([]byte(LedgerKey), data)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func decodeLedger(data []byte) ([]Record, error) {
	if data == nil {
		return nil, nil
	}
	var list []Record
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing backup ledger: %w", err)
	}
	return list, nil
}
