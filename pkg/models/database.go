package models

import "time"

// Record is the backend-agnostic durable form of a SongEntry.
type Record struct {
	ID               int64     `json:"id" bson:"_id" msgpack:"id"`
	Title            string    `json:"title" bson:"title" msgpack:"title"`
	Artist           string    `json:"artist" bson:"artist" msgpack:"artist"`
	Composer         string    `json:"composer" bson:"composer" msgpack:"composer"`
	Album            string    `json:"album" bson:"album" msgpack:"album"`
	CoverURL         string    `json:"cover_url" bson:"cover_url" msgpack:"cover_url"`
	Score            float64   `json:"score" bson:"score" msgpack:"score"`
	Type             string    `json:"type" bson:"type" msgpack:"type"`
	DurationMs       int       `json:"duration_ms" bson:"duration_ms" msgpack:"duration_ms"`
	ISRC             string    `json:"isrc" bson:"isrc" msgpack:"isrc"`
	UPC              string    `json:"upc" bson:"upc" msgpack:"upc"`
	Timestamp        time.Time `json:"timestamp" bson:"timestamp" msgpack:"timestamp"`
	OriginalTitle    string    `json:"original_title" bson:"original_title" msgpack:"original_title"`
	OriginalArtist   string    `json:"original_artist" bson:"original_artist" msgpack:"original_artist"`
	OriginalComposer string    `json:"original_composer" bson:"original_composer" msgpack:"original_composer"`
	Confirmed        bool      `json:"confirmed" bson:"confirmed" msgpack:"confirmed"`
	Manual           bool      `json:"manual" bson:"manual" msgpack:"manual"`
}

// Field names accepted by Store.UpdateField.
const (
	FieldTitle            = "title"
	FieldArtist           = "artist"
	FieldComposer         = "composer"
	FieldAlbum            = "album"
	FieldCoverURL         = "cover_url"
	FieldScore            = "score"
	FieldType             = "type"
	FieldDurationMs       = "duration_ms"
	FieldISRC             = "isrc"
	FieldUPC              = "upc"
	FieldOriginalArtist   = "original_artist"
	FieldOriginalComposer = "original_composer"
	FieldConfirmed        = "confirmed"
)

// ToRecord converts an entry for persistence.
func (e *SongEntry) ToRecord() Record {
	return Record{
		ID:               e.ID,
		Title:            e.Title,
		Artist:           e.Artist,
		Composer:         e.Composer,
		Album:            e.Album,
		CoverURL:         e.CoverURL,
		Score:            e.Score,
		Type:             string(e.Type),
		DurationMs:       e.DurationMs,
		ISRC:             e.ISRC,
		UPC:              e.UPC,
		Timestamp:        e.Timestamp,
		OriginalTitle:    e.OriginalTitle,
		OriginalArtist:   e.OriginalArtist,
		OriginalComposer: e.OriginalComposer,
		Confirmed:        e.Confirmed,
		Manual:           e.Manual,
	}
}

// Entry rebuilds an in-memory entry from a durable record.
func (r Record) Entry() SongEntry {
	return SongEntry{
		ID:               r.ID,
		Title:            r.Title,
		Artist:           r.Artist,
		Composer:         r.Composer,
		Album:            r.Album,
		CoverURL:         r.CoverURL,
		Score:            r.Score,
		Type:             CandidateType(r.Type),
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
