package domain

import (
	"time"
)

// endThreshold is how close to the item duration a playing room must be
// for a time query to count as a natural end.
const endThreshold = 0.5

type Snapshot struct {
	Id             string      `json:"id"`
	Queue          []QueueItem `json:"queue"`
	CurrentItem    *QueueItem  `json:"current_item"`
	IsPlaying      bool        `json:"is_playing"`
	Position       float64     `json:"position"`
	LastUpdateTime int64       `json:"last_update_time"`
	ServerNow      int64       `json:"server_now"`
	Members        []Member    `json:"members"`
}

type AdvanceResult struct {
	Advanced bool
	Item     *QueueItem
}

// Room holds the playback state of one room. Position is a checkpoint taken
// at lastUpdateTime; read it through CurrentPosition.
// Room is not safe for concurrent use, callers serialize access per room.
type Room struct {
	id             string
	queue          Queue
	currentItem    *QueueItem
	isPlaying      bool
	position       float64
	lastUpdateTime time.Time
	members        Members
	actions        actionLog
}

func NewRoom(id string, now time.Time) *Room {
	return &Room{
		id:             id,
		lastUpdateTime: now,
		actions:        make(actionLog),
	}
}

func (r *Room) Id() string {
	return r.id
}

func (r *Room) IsPlaying() bool {
	return r.isPlaying
}

// Position returns the raw checkpoint without extrapolation.
func (r *Room) Position() float64 {
	return r.position
}

func (r *Room) LastUpdateTime() time.Time {
	return r.lastUpdateTime
}

func (r *Room) CurrentItem() *QueueItem {
	if r.currentItem == nil {
		return nil
	}

	item := *r.currentItem
	return &item
}

func (r *Room) Queue() []QueueItem {
	return r.queue.AsList()
}

func (r *Room) CurrentPosition(now time.Time) float64 {
	if !r.isPlaying {
		return r.position
	}

	position := r.position + float64(now.Sub(r.lastUpdateTime).Milliseconds())/1000
	if position < 0 {
		position = 0
	}
	if r.currentItem != nil && r.currentItem.DurationSeconds > 0 && position > r.currentItem.DurationSeconds {
		position = r.currentItem.DurationSeconds
	}

	return position
}

// ApplyPlay reports whether the state changed. A room without a current item
// stays paused.
func (r *Room) ApplyPlay(reportedPosition *float64, now time.Time) bool {
	if r.isPlaying || r.currentItem == nil {
		return false
	}

	if reportedPosition != nil && *reportedPosition >= 0 {
		r.position = *reportedPosition
	}
	r.isPlaying = true
	r.lastUpdateTime = now

	return true
}

func (r *Room) ApplyPause(reportedPosition *float64, now time.Time) bool {
	if !r.isPlaying {
		return false
	}

	if reportedPosition != nil && *reportedPosition >= 0 {
		r.position = *reportedPosition
	} else {
		r.position = r.CurrentPosition(now)
	}
	r.isPlaying = false
	r.lastUpdateTime = now

	return true
}

// ApplySeek does not clamp the target to the item duration.
func (r *Room) ApplySeek(target float64, now time.Time) bool {
	if target < 0 || r.currentItem == nil {
		return false
	}

	r.position = target
	r.lastUpdateTime = now

	return true
}

func (r *Room) AdvanceQueue(now time.Time) AdvanceResult {
	r.position = 0
	r.lastUpdateTime = now

	item, ok := r.queue.PopFront()
	if !ok {
		r.currentItem = nil
		r.isPlaying = false
		return AdvanceResult{}
	}

	r.currentItem = &item
	r.isPlaying = true

	return AdvanceResult{Advanced: true, Item: r.CurrentItem()}
}

// Enqueue reports whether the item was promoted straight to the current item
// of an idle room instead of being appended.
func (r *Room) Enqueue(item QueueItem, now time.Time) bool {
	if r.currentItem == nil {
		r.currentItem = &item
		r.position = 0
		r.isPlaying = true
		r.lastUpdateTime = now
		return true
	}

	r.queue.Push(item)
	return false
}

func (r *Room) Dequeue(itemId string) bool {
	_, err := r.queue.RemoveById(itemId)
	return err == nil
}

// HasEnded reports whether a playing item is within the end threshold.
func (r *Room) HasEnded(now time.Time) bool {
	if !r.isPlaying || r.currentItem == nil || r.currentItem.DurationSeconds <= 0 {
		return false
	}

	return r.CurrentPosition(now) >= r.currentItem.DurationSeconds-endThreshold
}

func (r *Room) AddMember(member Member) bool {
	member.RoomId = r.id
	return r.members.Add(member) == nil
}

// RemoveMember reports whether the member was present and whether the room
// is now empty.
func (r *Room) RemoveMember(memberId string) (removed, empty bool) {
	if _, err := r.members.RemoveById(memberId); err != nil {
		return false, r.members.Length() == 0
	}
	r.actions.forget(memberId)

	return true, r.members.Length() == 0
}

func (r *Room) Member(memberId string) (Member, bool) {
	member, _, err := r.members.GetById(memberId)
	return member, err == nil
}

func (r *Room) HasMember(memberId string) bool {
	_, ok := r.Member(memberId)
	return ok
}

func (r *Room) Members() []Member {
	return r.members.AsList()
}

func (r *Room) MemberIds() []string {
	return r.members.Ids()
}

func (r *Room) IsEmpty() bool {
	return r.members.Length() == 0
}

func (r *Room) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		Id:             r.id,
		Queue:          r.queue.AsList(),
		CurrentItem:    r.CurrentItem(),
		IsPlaying:      r.isPlaying,
		Position:       r.CurrentPosition(now),
		LastUpdateTime: r.lastUpdateTime.UnixMilli(),
		ServerNow:      now.UnixMilli(),
		Members:        r.members.AsList(),
	}
}
