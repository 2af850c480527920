package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/room"
)

func join(memberId string) func(*domain.Room) error {
	return func(r *domain.Room) error {
		r.AddMember(domain.Member{Id: memberId})
		return nil
	}
}

func leave(memberId string) func(*domain.Room) error {
	return func(r *domain.Room) error {
		r.RemoveMember(memberId)
		return nil
	}
}

func TestUpsertCreatesRoom(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.UnixMilli(1_700_000_000_000))
	repo := NewRepo(mock)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "R1", join("a")))

	snap, err := repo.GetSnapshot(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, "R1", snap.Id)
	assert.Equal(t, mock.Now().UnixMilli(), snap.LastUpdateTime)
	assert.Len(t, snap.Members, 1)
	assert.Equal(t, 1, repo.Count())
}

func TestUpdateMissingRoom(t *testing.T) {
	repo := NewRepo(clock.NewMock())

	err := repo.Update(context.Background(), "nope", func(*domain.Room) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestUpdatePropagatesError(t *testing.T) {
	repo := NewRepo(clock.NewMock())
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, "R1", join("a")))

	boom := errors.New("boom")
	assert.ErrorIs(t, repo.Update(ctx, "R1", func(*domain.Room) error { return boom }), boom)
}

func TestEmptyRoomIsDeleted(t *testing.T) {
	repo := NewRepo(clock.NewMock())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "R1", join("a")))
	require.NoError(t, repo.Upsert(ctx, "R1", join("b")))
	require.NoError(t, repo.Update(ctx, "R1", func(r *domain.Room) error {
		r.Enqueue(domain.QueueItem{Id: "x", SourceId: "abc"}, time.Now())
		return nil
	}))
	require.NoError(t, repo.Update(ctx, "R1", leave("a")))
	assert.True(t, repo.Exists("R1"))
	require.NoError(t, repo.Update(ctx, "R1", leave("b")))

	assert.False(t, repo.Exists("R1"))
	_, err := repo.GetSnapshot(ctx, "R1")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	require.NoError(t, repo.Upsert(ctx, "R1", join("c")))
	snap, err := repo.GetSnapshot(ctx, "R1")
	require.NoError(t, err)
	assert.Nil(t, snap.CurrentItem, "recreated room starts fresh")
	assert.Empty(t, snap.Queue)
}

func TestUpsertWithoutMemberDoesNotKeepRoom(t *testing.T) {
	repo := NewRepo(clock.NewMock())

	require.NoError(t, repo.Upsert(context.Background(), "R1", func(*domain.Room) error { return nil }))
	assert.False(t, repo.Exists("R1"))
}

func TestConcurrentMutationsAreSerializedPerRoom(t *testing.T) {
	repo := NewRepo(clock.NewMock())
	ctx := context.Background()

	const rooms, members = 4, 50
	var wg sync.WaitGroup
	for i := 0; i < rooms; i++ {
		for j := 0; j < members; j++ {
			wg.Add(1)
			go func(roomId, memberId string) {
				defer wg.Done()
				assert.NoError(t, repo.Upsert(ctx, roomId, join(memberId)))
			}(fmt.Sprintf("R%d", i), fmt.Sprintf("m%d", j))
		}
	}
	wg.Wait()

	for i := 0; i < rooms; i++ {
		snap, err := repo.GetSnapshot(ctx, fmt.Sprintf("R%d", i))
		require.NoError(t, err)
		assert.Len(t, snap.Members, members)
	}
}
