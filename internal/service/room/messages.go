package room

import (
	"context"

	"github.com/watchroom/server/internal/domain"
)

const (
	TypeRoomState        = "ROOM_STATE"
	TypeRoomStateUpdated = "ROOM_STATE_UPDATED"
	TypeQueueUpdated     = "QUEUE_UPDATED"
	TypeMemberJoined     = "MEMBER_JOINED"
	TypeMemberLeft       = "MEMBER_LEFT"
	TypeSyncTime         = "SYNC_TIME"
	TypeError            = "ERROR"
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StateUpdate is a partial room state. IsPlaying is absent for seeks.
type StateUpdate struct {
	IsPlaying      *bool   `json:"is_playing,omitempty"`
	Position       float64 `json:"position"`
	LastUpdateTime int64   `json:"last_update_time"`
}

type QueueUpdate struct {
	Queue []domain.QueueItem `json:"queue"`
}

type MemberJoined struct {
	Member  domain.Member   `json:"member"`
	Members []domain.Member `json:"members"`
}

type MemberLeft struct {
	MemberId string          `json:"member_id"`
	Members  []domain.Member `json:"members"`
}

type SyncTime struct {
	Position  float64 `json:"position"`
	IsPlaying bool    `json:"is_playing"`
	ServerNow int64   `json:"server_now"`
}

func (s *service) send(ctx context.Context, memberId string, msg *Message) {
	if err := s.connRepo.Send(memberId, msg); err != nil {
		s.logger.WarnContext(ctx, "failed to send message", "member_id", memberId, "message_type", msg.Type, "error", err)
	}
}

func (s *service) broadcast(ctx context.Context, memberIds []string, msg *Message) {
	for _, memberId := range memberIds {
		s.send(ctx, memberId, msg)
	}
}

func (s *service) broadcastSnapshot(ctx context.Context, r *domain.Room, snapshot domain.Snapshot) {
	s.broadcast(ctx, r.MemberIds(), &Message{Type: TypeRoomState, Payload: snapshot})
}

func (s *service) broadcastQueue(ctx context.Context, r *domain.Room) {
	s.broadcast(ctx, r.MemberIds(), &Message{Type: TypeQueueUpdated, Payload: QueueUpdate{Queue: r.Queue()}})
}

func except(ids []string, excluded string) []string {
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != excluded {
			result = append(result, id)
		}
	}

	return result
}
