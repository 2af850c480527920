package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/watchroom/server/internal/domain"
)

const displayNamePrefix = "Guest-"

type JoinRoomParams struct {
	MemberId    string
	RoomId      string
	DisplayName string
}

type JoinRoomResponse struct {
	Snapshot domain.Snapshot
	Member   domain.Member
	// Rejoined is set when the member was already in the room.
	Rejoined bool
}

func defaultDisplayName(memberId string) string {
	if len(memberId) > 5 {
		memberId = memberId[:5]
	}

	return displayNamePrefix + memberId
}

func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	if params.RoomId == "" {
		return JoinRoomResponse{}, fmt.Errorf("%w: empty room id", ErrInvalidInput)
	}

	previousRoomId, err := s.connRepo.GetRoomId(params.MemberId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get member room: %w", err)
	}
	if previousRoomId != "" && previousRoomId != params.RoomId {
		if _, err := s.leave(ctx, params.MemberId, previousRoomId); err != nil && !errors.Is(err, ErrMemberNotInRoom) && !errors.Is(err, ErrRoomNotFound) {
			return JoinRoomResponse{}, fmt.Errorf("failed to leave previous room: %w", err)
		}
	}

	displayName := params.DisplayName
	if displayName == "" {
		displayName = defaultDisplayName(params.MemberId)
	}

	var resp JoinRoomResponse
	if err := s.roomRepo.Upsert(ctx, params.RoomId, func(r *domain.Room) error {
		now := s.clock.Now()

		member, ok := r.Member(params.MemberId)
		if ok {
			resp.Rejoined = true
		} else {
			r.AddMember(domain.Member{Id: params.MemberId, DisplayName: displayName})
			member, _ = r.Member(params.MemberId)
		}
		resp.Member = member
		resp.Snapshot = r.Snapshot(now)

		s.send(ctx, params.MemberId, &Message{Type: TypeRoomState, Payload: resp.Snapshot})
		if !resp.Rejoined {
			s.broadcast(ctx, except(r.MemberIds(), params.MemberId), &Message{
				Type:    TypeMemberJoined,
				Payload: MemberJoined{Member: member, Members: resp.Snapshot.Members},
			})
		}

		return nil
	}); err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to join room: %w", err)
	}

	if err := s.connRepo.SetRoomId(params.MemberId, params.RoomId); err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to set member room: %w", err)
	}

	s.logger.InfoContext(ctx, "member joined room", "member_id", params.MemberId, "room_id", params.RoomId, "rejoined", resp.Rejoined)
	return resp, nil
}

type LeaveRoomParams struct {
	MemberId string
}

type LeaveRoomResponse struct {
	RoomId      string
	RoomDeleted bool
}

// LeaveRoom is also the disconnect path.
func (s *service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (LeaveRoomResponse, error) {
	roomId, err := s.connRepo.GetRoomId(params.MemberId)
	if err != nil {
		return LeaveRoomResponse{}, fmt.Errorf("failed to get member room: %w", err)
	}
	if roomId == "" {
		return LeaveRoomResponse{}, ErrMemberNotInRoom
	}

	deleted, err := s.leave(ctx, params.MemberId, roomId)
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	s.logger.InfoContext(ctx, "member left room", "member_id", params.MemberId, "room_id", roomId, "room_deleted", deleted)
	return LeaveRoomResponse{RoomId: roomId, RoomDeleted: deleted}, nil
}

func (s *service) leave(ctx context.Context, memberId, roomId string) (bool, error) {
	var deleted bool
	err := s.roomRepo.Update(ctx, roomId, func(r *domain.Room) error {
		removed, empty := r.RemoveMember(memberId)
		if !removed {
			return ErrMemberNotInRoom
		}

		deleted = empty
		if !empty {
			s.broadcast(ctx, r.MemberIds(), &Message{
				Type:    TypeMemberLeft,
				Payload: MemberLeft{MemberId: memberId, Members: r.Members()},
			})
		}

		return nil
	})

	if setErr := s.connRepo.SetRoomId(memberId, ""); setErr != nil {
		s.logger.DebugContext(ctx, "failed to clear member room", "member_id", memberId, "error", setErr)
	}

	return deleted, err
}
