package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "battles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { Close(db) })
	return NewRepository(db)
}

func record(id string, ended time.Time) *BattleRecord {
	return &BattleRecord{
		ID:        id,
		Outcome:   "winner",
		WinnerID:  "peer-b",
		Turns:     12,
		StartedAt: ended.Add(-time.Minute),
		EndedAt:   ended,
		Participants: []ParticipantRecord{
			{Seat: 1, PeerID: "peer-b", Name: "bob", Species: []uint16{25, 133}},
			{Seat: 0, PeerID: "peer-a", Name: "alice", Species: []uint16{4}},
		},
	}
}

func TestRepository_RecordAndGet(t *testing.T) {
	repo := openTemp(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.Record(ctx, record("b1", now)))

	got, err := repo.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "winner", got.Outcome)
	assert.Equal(t, 12, got.Turns)
	require.Len(t, got.Participants, 2)
	assert.Equal(t, "alice", got.Participants[0].Name, "participants come back in seat order")
	assert.Equal(t, []uint16{25, 133}, got.Participants[1].Species)
}

func TestRepository_GetMissing(t *testing.T) {
	repo := openTemp(t)
	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_RecentNewestFirst(t *testing.T) {
	repo := openTemp(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, repo.Record(ctx, record(id, base.Add(time.Duration(i)*time.Minute))))
	}

	got, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Len(t, got[0].Participants, 2)
}

func TestRepository_DuplicateIDFails(t *testing.T) {
	repo := openTemp(t)
	ctx := context.Background()
	require.NoError(t, repo.Record(ctx, record("dup", time.Now())))
	assert.Error(t, repo.Record(ctx, record("dup", time.Now())))
}
