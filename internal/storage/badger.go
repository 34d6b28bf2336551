package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/himanishpuri/LiveSetlist/pkg/models"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	entryPrefix   = []byte("entry/")
	archivePrefix = []byte("archive/")
)

// BadgerStore keeps msgpack-encoded records in an embedded badger directory.
// Deleted records move under the archive prefix.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	if dir == "" {
		return nil, errors.New("badger store needs a directory")
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func entryKey(id int64) []byte {
	key := make([]byte, len(entryPrefix)+8)
	copy(key, entryPrefix)
	binary.BigEndian.PutUint64(key[len(entryPrefix):], uint64(id))
	return key
}

// archiveKey orders archived records by id, then by archive time.
func archiveKey(id int64, at time.Time) []byte {
	key := make([]byte, len(archivePrefix)+16)
	copy(key, archivePrefix)
	binary.BigEndian.PutUint64(key[len(archivePrefix):], uint64(id))
	binary.BigEndian.PutUint64(key[len(archivePrefix)+8:], uint64(at.UnixNano()))
	return key
}

func (s *BadgerStore) Insert(r models.Record) error {
	val, err := msgpack.Marshal(&r)
	if err != nil {
		return fmt.Errorf("encoding entry %d: %w", r.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := entryKey(r.ID)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: %d", ErrDuplicateID, r.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, val)
	})
}

func (s *BadgerStore) UpdateField(id int64, field string, value any) error {
	return s.db.Update(func(txn *badger.Txn) error {
		r, err := getRecord(txn, entryKey(id))
		if err != nil {
			return err
		}
		if err := applyField(&r, field, value); err != nil {
			return err
		}
		val, err := msgpack.Marshal(&r)
		if err != nil {
			return fmt.Errorf("encoding entry %d: %w", id, err)
		}
		return txn.Set(entryKey(id), val)
	})
}

func (s *BadgerStore) Delete(id int64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return archive(txn, entryKey(id), id, time.Now())
	})
}

func (s *BadgerStore) Clear() error {
	records, err := s.List()
	if err != nil {
		return err
	}
	now := time.Now()
	return s.db.Update(func(txn *badger.Txn) error {
		for _, r := range records {
			if err := archive(txn, entryKey(r.ID), r.ID, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) List() ([]models.Record, error) {
	return s.scan(entryPrefix)
}

func (s *BadgerStore) ListArchived() ([]models.Record, error) {
	return s.scan(archivePrefix)
}

func (s *BadgerStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BadgerStore) scan(prefix []byte) ([]models.Record, error) {
	var out []models.Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var r models.Record
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &r)
			})
			if err != nil {
				return fmt.Errorf("decoding %q: %w", it.Item().Key(), err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func getRecord(txn *badger.Txn, key []byte) (models.Record, error) {
	var r models.Record
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return r, fmt.Errorf("%w: %d", ErrNotFound, int64(binary.BigEndian.Uint64(key[len(entryPrefix):])))
	}
	if err != nil {
		return r, err
	}
	err = item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, &r)
	})
	return r, err
}

func archive(txn *badger.Txn, key []byte, id int64, at time.Time) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	if err := txn.Set(archiveKey(id, at), val); err != nil {
		return err
	}
	return txn.Delete(key)
}
