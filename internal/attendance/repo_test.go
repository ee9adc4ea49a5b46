package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presensi/internal/geo"
	"presensi/internal/presence"
	"presensi/internal/store"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return NewRepository(db)
}

func TestRepositoryRecords(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	dist := 12.5
	first, err := repo.InsertRecord(ctx, Record{
		UserID:         "u1",
		CreatedAt:      time.Date(2024, 3, 4, 0, 10, 0, 0, time.UTC),
		Kind:           presence.KindMorning,
		Label:          "Pagi",
		Location:       geo.Coordinate{Latitude: -6.5695979, Longitude: 110.6871696},
		DistanceMeters: &dist,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = repo.InsertRecord(ctx, Record{
		UserID:    "u1",
		CreatedAt: time.Date(2024, 3, 4, 5, 10, 0, 0, time.UTC),
		Kind:      presence.KindAfternoon,
		Label:     "Siang",
	})
	require.NoError(t, err)
	_, err = repo.InsertRecord(ctx, Record{
		UserID:    "u2",
		CreatedAt: time.Date(2024, 4, 1, 0, 5, 0, 0, time.UTC),
		Kind:      presence.KindMorning,
	})
	require.NoError(t, err)

	_, err = repo.InsertRecord(ctx, Record{})
	assert.Error(t, err)

	all, err := repo.ListRecords(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "u2", all[0].UserID, "newest first")

	mine, err := repo.ListRecords(ctx, Query{UserID: "u1", Ascending: true})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, first.ID, mine[0].ID)
	assert.Equal(t, presence.KindMorning, mine[0].Kind)
	assert.Equal(t, "Pagi", mine[0].Label)
	assert.True(t, first.CreatedAt.Equal(mine[0].CreatedAt))
	assert.InDelta(t, -6.5695979, mine[0].Location.Latitude, 1e-9)
	require.NotNil(t, mine[0].DistanceMeters)
	assert.Equal(t, 12.5, *mine[0].DistanceMeters)
	assert.Nil(t, mine[1].DistanceMeters)

	march, err := repo.ListRecords(ctx, Query{
		From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, march, 2)

	limited, err := repo.ListRecords(ctx, Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRepositoryProfiles(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	missing, err := repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.UpsertProfile(ctx, UserProfile{ID: "u1", Name: "Budi", Email: "budi@kb.sch.id", Institution: "KB"}))
	require.NoError(t, repo.UpsertProfile(ctx, UserProfile{ID: "u2", Name: "Ani", Email: "ani@tk.sch.id", Institution: "TK"}))
	require.NoError(t, repo.UpsertProfile(ctx, UserProfile{ID: "u1", Name: "Budi S", Email: "budi@kb.sch.id"}))
	assert.Error(t, repo.UpsertProfile(ctx, UserProfile{ID: "u3"}))

	got, err := repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Budi S", got.Name)
	assert.Empty(t, got.Institution)

	profiles, err := repo.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Ani", profiles[0].Name)
}
