package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/himanishpuri/LiveSetlist/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "livesetlist.sqlite3"

// SQLiteStore keeps entries in a gorm-managed SQLite file. Deletes are soft,
// so cleared sessions stay queryable through ListArchived.
type SQLiteStore struct {
	DB    *gorm.DB
	db    *sql.DB
	runID string
}

type songRow struct {
	RowID            uint      `gorm:"primaryKey;autoIncrement"`
	EntryID          int64     `gorm:"column:entry_id;index:idx_entry"`
	RunID            string    `gorm:"column:run_id;type:varchar(36);index:idx_run"`
	Title            string    `gorm:"column:title"`
	Artist           string    `gorm:"column:artist"`
	Composer         string    `gorm:"column:composer"`
	Album            string    `gorm:"column:album"`
	CoverURL         string    `gorm:"column:cover_url"`
	Score            float64   `gorm:"column:score"`
	Type             string    `gorm:"column:type"`
	DurationMs       int       `gorm:"column:duration_ms"`
	ISRC             string    `gorm:"column:isrc"`
	UPC              string    `gorm:"column:upc"`
	Timestamp        time.Time `gorm:"column:timestamp"`
	OriginalTitle    string    `gorm:"column:original_title"`
	OriginalArtist   string    `gorm:"column:original_artist"`
	OriginalComposer string    `gorm:"column:original_composer"`
	Confirmed        bool      `gorm:"column:confirmed"`
	Manual           bool      `gorm:"column:manual"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

func (songRow) TableName() string { return "song_entries" }

type runRow struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	StartedAt time.Time
}

func (runRow) TableName() string { return "runs" }

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// Writes are serialized through a single connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&songRow{}, &runRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	run := runRow{ID: uuid.NewString(), StartedAt: time.Now()}
	if err := db.Create(&run).Error; err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("registering run: %w", err)
	}

	return &SQLiteStore{DB: db, db: sqlDB, runID: run.ID}, nil
}

// RunID identifies the process run that opened this store.
func (s *SQLiteStore) RunID() string { return s.runID }

func (s *SQLiteStore) Insert(r models.Record) error {
	var count int64
	if err := s.DB.Model(&songRow{}).Where("entry_id = ?", r.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("checking entry %d: %w", r.ID, err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %d", ErrDuplicateID, r.ID)
	}
	row := toRow(r)
	row.RunID = s.runID
	if err := s.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("inserting entry %d: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateField(id int64, field string, value any) error {
	value, err := normalizeField(field, value)
	if err != nil {
		return err
	}
	res := s.DB.Model(&songRow{}).Where("entry_id = ?", id).Update(field, value)
	if res.Error != nil {
		return fmt.Errorf("updating %s on entry %d: %w", field, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Delete(id int64) error {
	res := s.DB.Where("entry_id = ?", id).Delete(&songRow{})
	if res.Error != nil {
		return fmt.Errorf("deleting entry %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Clear() error {
	err := s.DB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&songRow{}).Error
	if err != nil {
		return fmt.Errorf("clearing entries: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List() ([]models.Record, error) {
	var rows []songRow
	if err := s.DB.Order("entry_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	return fromRows(rows), nil
}

func (s *SQLiteStore) ListArchived() ([]models.Record, error) {
	var rows []songRow
	err := s.DB.Unscoped().Where("deleted_at IS NOT NULL").Order("entry_id ASC, row_id ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing archived entries: %w", err)
	}
	return fromRows(rows), nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func toRow(r models.Record) songRow {
	return songRow{
		EntryID:          r.ID,
		Title:            r.Title,
		Artist:           r.Artist,
		Composer:         r.Composer,
		Album:            r.Album,
		CoverURL:         r.CoverURL,
		Score:            r.Score,
		Type:             r.Type,
		DurationMs:       r.DurationMs,
		ISRC:             r.ISRC,
		UPC:              r.UPC,
		Timestamp:        r.Timestamp,
		OriginalTitle:    r.OriginalTitle,
		OriginalArtist:   r.OriginalArtist,
		OriginalComposer: r.OriginalComposer,
		Confirmed:        r.Confirmed,
		Manual:           r.Manual,
	}
}

func fromRows(rows []songRow) []models.Record {
	out := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Record{
			ID:               row.EntryID,
			Title:            row.Title,
			Artist:           row.Artist,
			Composer:         row.Composer,
			Album:            row.Album,
			CoverURL:         row.CoverURL,
			Score:            row.Score,
			Type:             row.Type,
			DurationMs:       row.DurationMs,
			ISRC:             row.ISRC,
			UPC:              row.UPC,
			Timestamp:        row.Timestamp,
			OriginalTitle:    row.OriginalTitle,
			OriginalArtist:   row.OriginalArtist,
			OriginalComposer: row.OriginalComposer,
			Confirmed:        row.Confirmed,
			Manual:           row.Manual,
		})
	}
	return out
}
