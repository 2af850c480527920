package room

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/connection"
	"github.com/watchroom/server/internal/repository/room/inmemory"
)

type sent struct {
	memberId string
	msg      *Message
}

type fakeConnRepo struct {
	mu    sync.Mutex
	rooms map[string]string
	sent  []sent
}

func newFakeConnRepo(memberIds ...string) *fakeConnRepo {
	r := &fakeConnRepo{rooms: make(map[string]string)}
	for _, id := range memberIds {
		r.rooms[id] = ""
	}
	return r
}

func (r *fakeConnRepo) GetRoomId(memberId string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomId, ok := r.rooms[memberId]
	if !ok {
		return "", connection.ErrNotFound
	}
	return roomId, nil
}

func (r *fakeConnRepo) SetRoomId(memberId, roomId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[memberId]; !ok {
		return connection.ErrNotFound
	}
	r.rooms[memberId] = roomId
	return nil
}

func (r *fakeConnRepo) Send(memberId string, msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{memberId: memberId, msg: msg.(*Message)})
	return nil
}

// take returns and forgets the messages sent so far.
func (r *fakeConnRepo) take() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sent
	r.sent = nil
	return out
}

func (r *fakeConnRepo) takeFor(memberId string) []*Message {
	var out []*Message
	for _, s := range r.take() {
		if s.memberId == memberId {
			out = append(out, s.msg)
		}
	}
	return out
}

type fakeGenerator struct {
	ids []string
}

func (g *fakeGenerator) Generate() (string, error) {
	id := g.ids[0]
	g.ids = g.ids[1:]
	return id, nil
}

type fixture struct {
	svc   *service
	conns *fakeConnRepo
	clock *clock.Mock
	rooms interface {
		Exists(string) bool
	}
}

func newFixture(t *testing.T, memberIds ...string) *fixture {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.UnixMilli(1_700_000_000_000))
	rooms := inmemory.NewRepo(mock)
	conns := newFakeConnRepo(memberIds...)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		svc:   NewService(rooms, conns, &fakeGenerator{ids: []string{"taken", "fresh"}}, mock, logger),
		conns: conns,
		clock: mock,
		rooms: rooms,
	}
}

func (f *fixture) join(t *testing.T, memberId, roomId, name string) JoinRoomResponse {
	t.Helper()
	resp, err := f.svc.JoinRoom(context.Background(), &JoinRoomParams{MemberId: memberId, RoomId: roomId, DisplayName: name})
	require.NoError(t, err)
	return resp
}

func ptr(v float64) *float64 {
	return &v
}

func TestScenario(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()

	joined := f.join(t, "a", "R1", "Alice")
	assert.Nil(t, joined.Snapshot.CurrentItem)
	assert.Empty(t, joined.Snapshot.Queue)
	msgs := f.conns.takeFor("a")
	require.Len(t, msgs, 1)
	assert.Equal(t, TypeRoomState, msgs[0].Type)

	added, err := f.svc.AddToQueue(ctx, &AddToQueueParams{MemberId: "a", Item: domain.QueueItem{SourceId: "abc", DurationSeconds: 180}})
	require.NoError(t, err)
	assert.True(t, added.Promoted)
	assert.NotEmpty(t, added.Item.Id)
	assert.Equal(t, "Alice", added.Item.AddedBy)
	msgs = f.conns.takeFor("a")
	require.Len(t, msgs, 1)
	require.Equal(t, TypeRoomState, msgs[0].Type)
	snap := msgs[0].Payload.(domain.Snapshot)
	assert.Equal(t, "abc", snap.CurrentItem.SourceId)
	assert.True(t, snap.IsPlaying)
	assert.Equal(t, 0.0, snap.Position)

	f.clock.Add(30 * time.Second)
	synced, err := f.svc.SyncTime(ctx, &SyncTimeParams{MemberId: "a"})
	require.NoError(t, err)
	assert.InDelta(t, 30, synced.SyncTime.Position, 0.01)
	assert.True(t, synced.SyncTime.IsPlaying)
	assert.Equal(t, f.clock.Now().UnixMilli(), synced.SyncTime.ServerNow)
	msgs = f.conns.takeFor("a")
	require.Len(t, msgs, 1)
	assert.Equal(t, TypeSyncTime, msgs[0].Type)

	paused, err := f.svc.Pause(ctx, &UpdatePlaybackParams{MemberId: "a"})
	require.NoError(t, err)
	require.True(t, paused.Applied)
	assert.False(t, *paused.Update.IsPlaying)
	assert.InDelta(t, 30, paused.Update.Position, 0.01)

	skipped, err := f.svc.Skip(ctx, &AdvanceParams{MemberId: "a"})
	require.NoError(t, err)
	assert.True(t, skipped.Applied)
	assert.False(t, skipped.Result.Advanced)
	msgs = f.conns.takeFor("a")
	require.Len(t, msgs, 2)
	snap = msgs[1].Payload.(domain.Snapshot)
	assert.Nil(t, snap.CurrentItem)
	assert.False(t, snap.IsPlaying)
	assert.Equal(t, 0.0, snap.Position)
}

func TestJoinIsIdempotent(t *testing.T) {
	f := newFixture(t, "a", "b")

	first := f.join(t, "a", "R1", "Alice")
	f.join(t, "b", "R1", "Bob")
	f.conns.take()

	again := f.join(t, "a", "R1", "Alice")
	assert.True(t, again.Rejoined)
	assert.False(t, first.Rejoined)
	assert.Len(t, again.Snapshot.Members, 2)

	sentMsgs := f.conns.take()
	require.Len(t, sentMsgs, 1, "rejoin only resends the snapshot")
	assert.Equal(t, "a", sentMsgs[0].memberId)
	assert.Equal(t, TypeRoomState, sentMsgs[0].msg.Type)
}

func TestJoinBroadcastsToOthers(t *testing.T) {
	f := newFixture(t, "a", "b")

	f.join(t, "a", "R1", "Alice")
	f.conns.take()
	f.join(t, "b", "R1", "")

	sentMsgs := f.conns.take()
	require.Len(t, sentMsgs, 2)
	assert.Equal(t, "b", sentMsgs[0].memberId)
	assert.Equal(t, TypeRoomState, sentMsgs[0].msg.Type)
	assert.Equal(t, "a", sentMsgs[1].memberId)
	require.Equal(t, TypeMemberJoined, sentMsgs[1].msg.Type)
	joined := sentMsgs[1].msg.Payload.(MemberJoined)
	assert.Equal(t, "Guest-b", joined.Member.DisplayName)
	assert.Len(t, joined.Members, 2)
}

func TestJoinLeavesPreviousRoom(t *testing.T) {
	f := newFixture(t, "a")

	f.join(t, "a", "R1", "Alice")
	f.join(t, "a", "R2", "Alice")

	assert.False(t, f.rooms.Exists("R1"))
	assert.True(t, f.rooms.Exists("R2"))
	roomId, err := f.conns.GetRoomId("a")
	require.NoError(t, err)
	assert.Equal(t, "R2", roomId)
}

func TestEmptyRoomIsDeleted(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()

	f.join(t, "a", "R1", "Alice")
	f.join(t, "b", "R1", "Bob")
	_, err := f.svc.AddToQueue(ctx, &AddToQueueParams{MemberId: "a", Item: domain.QueueItem{SourceId: "abc"}})
	require.NoError(t, err)
	f.conns.take()

	left, err := f.svc.LeaveRoom(ctx, &LeaveRoomParams{MemberId: "a"})
	require.NoError(t, err)
	assert.False(t, left.RoomDeleted)
	sentMsgs := f.conns.take()
	require.Len(t, sentMsgs, 1)
	assert.Equal(t, "b", sentMsgs[0].memberId)
	assert.Equal(t, TypeMemberLeft, sentMsgs[0].msg.Type)

	left, err = f.svc.LeaveRoom(ctx, &LeaveRoomParams{MemberId: "b"})
	require.NoError(t, err)
	assert.True(t, left.RoomDeleted)
	assert.Empty(t, f.conns.take())

	_, err = f.svc.GetRoom(ctx, "R1")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = f.svc.LeaveRoom(ctx, &LeaveRoomParams{MemberId: "b"})
	assert.ErrorIs(t, err, ErrMemberNotInRoom)

	fresh := f.join(t, "a", "R1", "Alice")
	assert.Nil(t, fresh.Snapshot.CurrentItem)
	assert.Empty(t, fresh.Snapshot.Queue)
}

func TestPlayIsDebounced(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()
	f.join(t, "a", "R1", "Alice")
	_, err := f.svc.AddToQueue(ctx, &AddToQueueParams{MemberId: "a", Item: domain.QueueItem{SourceId: "abc", DurationSeconds: 300}})
	require.NoError(t, err)
	_, err = f.svc.Pause(ctx, &UpdatePlaybackParams{MemberId: "a", Position: ptr(10)})
	require.NoError(t, err)
	f.conns.take()

	f.clock.Add(2 * time.Second)
	first, err := f.svc.Play(ctx, &UpdatePlaybackParams{MemberId: "a", Position: ptr(12)})
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, 12.0, first.Update.Position)

	_, err = f.svc.Pause(ctx, &UpdatePlaybackParams{MemberId: "a", Position: ptr(12)})
	require.NoError(t, err)

	f.clock.Add(500 * time.Millisecond)
	second, err := f.svc.Play(ctx, &UpdatePlaybackParams{MemberId: "a", Position: ptr(20)})
	require.NoError(t, err)
	assert.False(t, second.Applied)

	updates := 0
	for _, msg := range f.conns.takeFor("a") {
		if msg.Type == TypeRoomStateUpdated && *msg.Payload.(StateUpdate).IsPlaying {
			updates++
		}
	}
	assert.Equal(t, 1, updates)
}

func TestPlayWhilePlayingIsNoop(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()
	f.join(t, "a", "R1", "Alice")
	_, err := f.svc.AddToQueue(ctx, &AddToQueueParams{MemberId: "a", Item: domain.QueueItem{SourceId: "abc"}})
	require.NoError(t, err)
	f.conns.take()

	resp, err := f.svc.Play(ctx, &UpdatePlaybackParams{MemberId: "a"})
	require.NoError(t, err)
	assert.False(t, resp.Applied)
	assert.Empty(t, f.conns.take())
}

func TestSeek(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()
	f.join(t, "a", "R1", "Alice")
	_, err := f.svc.AddToQueue(ctx, &AddToQueueParams{MemberId: "a", Item: domain.QueueItem{SourceId: "abc", DurationSeconds: 200}})
	require.NoError(t, err)
	f.conns.take()

	_, err = f.svc.Seek(ctx, &SeekParams{MemberId: "a", Position: -5})
	assert.ErrorIs(t, err, ErrInvalidInput)

	resp, err := f.svc.Seek(ctx, &SeekParams{MemberId: "a", Position: 9999})
	require.NoError(t, err)
	assert.True(t, resp.Applied)
	assert.Nil(t, resp.Update.IsPlaying)
	assert.Equal(t, 9999.0, resp.Update.Position)

	msgs := f.conns.takeFor("a")
	require.Len(t, msgs, 1)
	assert.Equal(t, TypeRoomStateUpdated, msgs[0].Type)
}

func TestQueue(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()
	f.join(t, "a", "R1", "Alice")
	f.conns.take()

	_, err := f.svc.AddToQueue(ctx, &AddToQueueParams{MemberId: "a", Item: domain.QueueItem{Title: "no source"}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.AddToQueue(ctx, &AddToQueueParams{MemberId: "a", Item: domain.QueueItem{SourceId: "first"}})
	require.NoError(t, err)
	second, err := f.svc.AddToQueue(ctx, &AddToQueueParams{MemberId: "a", Item: domain.QueueItem{Id: "q2", SourceId: "second", AddedBy: "Bot"}})
	require.NoError(t, err)
	assert.False(t, second.Promoted)
	assert.Equal(t, "Bot", second.Item.AddedBy)

	msgs := f.conns.takeFor("a")
	require.Len(t, msgs, 2)
	assert.Equal(t, TypeRoomState, msgs[0].Type, "first item is promoted")
	assert.Equal(t, TypeQueueUpdated, msgs[1].Type)
	assert.Len(t, msgs[1].Payload.(QueueUpdate).Queue, 1)

	removed, err := f.svc.RemoveFromQueue(ctx, &RemoveFromQueueParams{MemberId: "a", ItemId: "missing"})
	require.NoError(t, err)
	assert.False(t, removed.Removed)
	assert.Empty(t, f.conns.take())

	removed, err = f.svc.RemoveFromQueue(ctx, &RemoveFromQueueParams{MemberId: "a", ItemId: "q2"})
	require.NoError(t, err)
	assert.True(t, removed.Removed)
	msgs = f.conns.takeFor("a")
	require.Len(t, msgs, 1)
	assert.Empty(t, msgs[0].Payload.(QueueUpdate).Queue)
}

func TestVideoEndedChainsQueue(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()
	f.join(t, "a", "R1", "Alice")
	f.join(t, "b", "R1", "Bob")
	for _, id := range []string{"A", "B", "C"} {
		_, err := f.svc.AddToQueue(ctx, &AddToQueueParams{MemberId: "a", Item: domain.QueueItem{Id: id, SourceId: id}})
		require.NoError(t, err)
	}

	ended, err := f.svc.EndVideo(ctx, &AdvanceParams{MemberId: "a", ItemId: "A"})
	require.NoError(t, err)
	require.True(t, ended.Applied)
	assert.Equal(t, "B", ended.Result.Item.Id)

	late, err := f.svc.EndVideo(ctx, &AdvanceParams{MemberId: "b", ItemId: "A"})
	require.NoError(t, err)
	assert.False(t, late.Applied, "second report for the same item is stale")

	repeated, err := f.svc.EndVideo(ctx, &AdvanceParams{MemberId: "a"})
	require.NoError(t, err)
	assert.False(t, repeated.Applied, "debounced within 3s")

	skipped, err := f.svc.Skip(ctx, &AdvanceParams{MemberId: "a"})
	require.NoError(t, err)
	assert.True(t, skipped.Applied, "skip has its own cooldown")
	assert.Equal(t, "C", skipped.Result.Item.Id)

	f.clock.Add(3 * time.Second)
	ended, err = f.svc.EndVideo(ctx, &AdvanceParams{MemberId: "a"})
	require.NoError(t, err)
	assert.True(t, ended.Applied)
	assert.False(t, ended.Result.Advanced)
}

func TestSyncTimeDetectsEnd(t *testing.T) {
	f := newFixture(t, "a", "b")
	ctx := context.Background()
	f.join(t, "a", "R1", "Alice")
	f.join(t, "b", "R1", "Bob")
	_, err := f.svc.AddToQueue(ctx, &AddToQueueParams{MemberId: "a", Item: domain.QueueItem{Id: "A", SourceId: "A", DurationSeconds: 60}})
	require.NoError(t, err)
	_, err = f.svc.AddToQueue(ctx, &AddToQueueParams{MemberId: "a", Item: domain.QueueItem{Id: "B", SourceId: "B", DurationSeconds: 60}})
	require.NoError(t, err)
	f.conns.take()

	f.clock.Add(59600 * time.Millisecond)
	resp, err := f.svc.SyncTime(ctx, &SyncTimeParams{MemberId: "a"})
	require.NoError(t, err)
	assert.True(t, resp.Advanced)
	assert.Equal(t, 0.0, resp.SyncTime.Position)
	assert.True(t, resp.SyncTime.IsPlaying)

	sentMsgs := f.conns.take()
	require.Len(t, sentMsgs, 3)
	assert.Equal(t, TypeRoomState, sentMsgs[0].msg.Type)
	assert.Equal(t, TypeRoomState, sentMsgs[1].msg.Type)
	assert.Equal(t, "B", sentMsgs[1].msg.Payload.(domain.Snapshot).CurrentItem.Id)
	assert.Equal(t, "a", sentMsgs[2].memberId)
	assert.Equal(t, TypeSyncTime, sentMsgs[2].msg.Type)
}

func TestSyncTimeOutsideRoom(t *testing.T) {
	f := newFixture(t, "a")

	resp, err := f.svc.SyncTime(context.Background(), &SyncTimeParams{MemberId: "a"})
	require.NoError(t, err)
	assert.Equal(t, SyncTime{ServerNow: f.clock.Now().UnixMilli()}, resp.SyncTime)
	msgs := f.conns.takeFor("a")
	require.Len(t, msgs, 1)
	assert.Equal(t, TypeSyncTime, msgs[0].Type)
}

func TestCommandsOutsideRoomAreDropped(t *testing.T) {
	f := newFixture(t, "a")
	ctx := context.Background()

	_, err := f.svc.Play(ctx, &UpdatePlaybackParams{MemberId: "a"})
	assert.ErrorIs(t, err, ErrMemberNotInRoom)
	_, err = f.svc.Skip(ctx, &AdvanceParams{MemberId: "a"})
	assert.ErrorIs(t, err, ErrMemberNotInRoom)
	_, err = f.svc.RemoveFromQueue(ctx, &RemoveFromQueueParams{MemberId: "a", ItemId: "x"})
	assert.ErrorIs(t, err, ErrMemberNotInRoom)
	assert.Empty(t, f.conns.take())
}

func TestCreateRoomId(t *testing.T) {
	f := newFixture(t, "a")
	f.join(t, "a", "taken", "Alice")

	roomId, err := f.svc.CreateRoomId(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", roomId)
}
