package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/himanishpuri/LiveSetlist/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		BackendMemory: func(t *testing.T) Store { return NewMemoryStore() },
		BackendSQLite: func(t *testing.T) Store {
			s, _ := setupTestDB(t)
			return s
		},
		BackendBadger: func(t *testing.T) Store {
			s, err := NewBadgerStore(t.TempDir())
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		BackendMongo: func(t *testing.T) Store {
			uri := os.Getenv("LIVESETLIST_TEST_MONGO_URI")
			if uri == "" {
				t.Skip("LIVESETLIST_TEST_MONGO_URI not set")
			}
			s, err := NewMongoStore(context.Background(), uri, "livesetlist_test", "entries_"+time.Now().Format("150405.000000"))
			require.NoError(t, err)
			t.Cleanup(func() {
				s.Clear()
				s.Close()
			})
			return s
		},
	}
}

func sampleRecord(id int64, title string) models.Record {
	return models.Record{
		ID:               id,
		Title:            title,
		Artist:           "Måneskin",
		Composer:         models.ComposerPending,
		Album:            "Teatro d'ira",
		Score:            88,
		Type:             string(models.TypeOriginal),
		DurationMs:       215000,
		ISRC:             "ITB002100001",
		Timestamp:        time.Unix(1700000000+id, 0).UTC(),
		OriginalTitle:    title,
		OriginalArtist:   "Måneskin",
		OriginalComposer: models.ComposerPending,
	}
}

func assertSameRecord(t *testing.T, want, got models.Record) {
	t.Helper()
	assert.True(t, want.Timestamp.Equal(got.Timestamp), "timestamp %v != %v", want.Timestamp, got.Timestamp)
	want.Timestamp, got.Timestamp = time.Time{}, time.Time{}
	assert.Equal(t, want, got)
}

func TestStoreContract(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Run("InsertAndList", func(t *testing.T) {
				s := factory(t)
				require.NoError(t, s.Insert(sampleRecord(2, "Beggin'")))
				require.NoError(t, s.Insert(sampleRecord(1, "Zitti e buoni")))

				got, err := s.List()
				require.NoError(t, err)
				require.Len(t, got, 2)
				assertSameRecord(t, sampleRecord(1, "Zitti e buoni"), got[0])
				assertSameRecord(t, sampleRecord(2, "Beggin'"), got[1])
			})

			t.Run("DuplicateID", func(t *testing.T) {
				s := factory(t)
				require.NoError(t, s.Insert(sampleRecord(1, "Zitti e buoni")))
				assert.ErrorIs(t, s.Insert(sampleRecord(1, "Coraline")), ErrDuplicateID)
			})

			t.Run("UpdateField", func(t *testing.T) {
				s := factory(t)
				require.NoError(t, s.Insert(sampleRecord(1, "Zitti e buoni")))
				require.NoError(t, s.UpdateField(1, models.FieldComposer, "Damiano David"))
				require.NoError(t, s.UpdateField(1, models.FieldCoverURL, "https://img.example/1.jpg"))
				require.NoError(t, s.UpdateField(1, models.FieldConfirmed, true))
				require.NoError(t, s.UpdateField(1, models.FieldScore, 100))

				got, err := s.List()
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.Equal(t, "Damiano David", got[0].Composer)
				assert.Equal(t, "https://img.example/1.jpg", got[0].CoverURL)
				assert.True(t, got[0].Confirmed)
				assert.Equal(t, 100.0, got[0].Score)
				assert.Equal(t, models.ComposerPending, got[0].OriginalComposer)
			})

			t.Run("UpdateFieldErrors", func(t *testing.T) {
				s := factory(t)
				require.NoError(t, s.Insert(sampleRecord(1, "Zitti e buoni")))
				assert.ErrorIs(t, s.UpdateField(9, models.FieldTitle, "x"), ErrNotFound)
				assert.ErrorIs(t, s.UpdateField(1, "timestamp", "x"), ErrUnknownField)
				assert.Error(t, s.UpdateField(1, models.FieldConfirmed, "yes"))
			})

			t.Run("DeleteAndClear", func(t *testing.T) {
				s := factory(t)
				for i, title := range []string{"Zitti e buoni", "Coraline", "Beggin'"} {
					require.NoError(t, s.Insert(sampleRecord(int64(i+1), title)))
				}
				require.NoError(t, s.Delete(2))
				assert.ErrorIs(t, s.Delete(2), ErrNotFound)

				got, err := s.List()
				require.NoError(t, err)
				require.Len(t, got, 2)
				assert.Equal(t, int64(1), got[0].ID)
				assert.Equal(t, int64(3), got[1].ID)

				require.NoError(t, s.Clear())
				got, err = s.List()
				require.NoError(t, err)
				assert.Empty(t, got)

				// ids are reusable after a clear
				require.NoError(t, s.Insert(sampleRecord(1, "I Wanna Be Your Slave")))
			})

			t.Run("Archive", func(t *testing.T) {
				s := factory(t)
				a, ok := s.(Archiver)
				if !ok {
					t.Skipf("%s does not archive", name)
				}
				require.NoError(t, s.Insert(sampleRecord(1, "Zitti e buoni")))
				require.NoError(t, s.Insert(sampleRecord(2, "Coraline")))
				require.NoError(t, s.Delete(1))
				require.NoError(t, s.Clear())

				archived, err := a.ListArchived()
				require.NoError(t, err)
				require.Len(t, archived, 2)
				assert.Equal(t, "Zitti e buoni", archived[0].Title)
				assert.Equal(t, "Coraline", archived[1].Title)
			})
		})
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(context.Background(), Config{Backend: "SQLite", Path: filepath.Join(dir, "a", "db.sqlite3")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), Config{Backend: BackendBadger, Path: filepath.Join(dir, "badger")})
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), Config{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(context.Background(), Config{Backend: "postgres"})
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{Backend: BackendMongo})
	assert.Error(t, err)
}
