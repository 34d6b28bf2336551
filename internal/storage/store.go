// Package storage persists session playlist records. Every backend offers
// the same small contract; backends that keep deleted rows for audit also
// implement Archiver.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/himanishpuri/LiveSetlist/pkg/models"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateID  = errors.New("record id already exists")
	ErrUnknownField = errors.New("unknown record field")
)

type Store interface {
	Insert(r models.Record) error
	UpdateField(id int64, field string, value any) error
	Delete(id int64) error
	Clear() error
	List() ([]models.Record, error) // active records, ascending id
	Close() error
}

// Archiver is implemented by backends that retain deleted records.
type Archiver interface {
	ListArchived() ([]models.Record, error)
}

const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

type Config struct {
	Backend    string
	Path       string // sqlite file or badger directory
	MongoURI   string
	MongoDB    string
	Collection string
}

// Open constructs the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	case BackendBadger:
		return NewBadgerStore(cfg.Path)
	case BackendMongo:
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB, cfg.Collection)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// applyField sets one mutable field on a record.
func applyField(r *models.Record, field string, value any) error {
	switch field {
	case models.FieldTitle, models.FieldArtist, models.FieldComposer, models.FieldAlbum,
		models.FieldCoverURL, models.FieldType, models.FieldISRC, models.FieldUPC,
		models.FieldOriginalArtist, models.FieldOriginalComposer:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %s: want string, got %T", field, value)
		}
		switch field {
		case models.FieldTitle:
			r.Title = s
		case models.FieldArtist:
			r.Artist = s
		case models.FieldComposer:
			r.Composer = s
		case models.FieldAlbum:
			r.Album = s
		case models.FieldCoverURL:
			r.CoverURL = s
		case models.FieldType:
			r.Type = s
		case models.FieldISRC:
			r.ISRC = s
		case models.FieldUPC:
			r.UPC = s
		case models.FieldOriginalArtist:
			r.OriginalArtist = s
		case models.FieldOriginalComposer:
			r.OriginalComposer = s
		}
	case models.FieldScore:
		switch v := value.(type) {
		case float64:
			r.Score = v
		case int:
			r.Score = float64(v)
		default:
			return fmt.Errorf("field %s: want number, got %T", field, value)
		}
	case models.FieldDurationMs:
		n, ok := value.(int)
		if !ok {
			return fmt.Errorf("field %s: want int, got %T", field, value)
		}
		r.DurationMs = n
	case models.FieldConfirmed:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("field %s: want bool, got %T", field, value)
		}
		r.Confirmed = b
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// normalizeField validates value for field and returns the form backends store.
func normalizeField(field string, value any) (any, error) {
	var scratch models.Record
	if err := applyField(&scratch, field, value); err != nil {
		return nil, err
	}
	if field == models.FieldScore {
		return scratch.Score, nil
	}
	return value, nil
}
