package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/watchroom/server/internal/domain"
)

type UpdatePlaybackParams struct {
	MemberId string
	Position *float64
}

type UpdatePlaybackResponse struct {
	// Applied is false for debounced commands and commands that found the
	// room already in the requested state.
	Applied bool
	Update  StateUpdate
}

func (s *service) Play(ctx context.Context, params *UpdatePlaybackParams) (UpdatePlaybackResponse, error) {
	return s.updatePlayback(ctx, params, domain.ActionPlay)
}

func (s *service) Pause(ctx context.Context, params *UpdatePlaybackParams) (UpdatePlaybackResponse, error) {
	return s.updatePlayback(ctx, params, domain.ActionPause)
}

func (s *service) updatePlayback(ctx context.Context, params *UpdatePlaybackParams, action domain.Action) (UpdatePlaybackResponse, error) {
	var resp UpdatePlaybackResponse
	err := s.withMemberRoom(ctx, params.MemberId, func(r *domain.Room, now time.Time) error {
		if !r.AllowAction(params.MemberId, action, now) {
			s.logger.DebugContext(ctx, "duplicate command ignored", "action", action, "member_id", params.MemberId)
			return nil
		}

		var changed bool
		if action == domain.ActionPlay {
			changed = r.ApplyPlay(params.Position, now)
		} else {
			changed = r.ApplyPause(params.Position, now)
		}
		if !changed {
			s.logger.DebugContext(ctx, "room already in requested state", "action", action, "room_id", r.Id())
			return nil
		}

		isPlaying := r.IsPlaying()
		resp.Applied = true
		resp.Update = StateUpdate{
			IsPlaying:      &isPlaying,
			Position:       r.Position(),
			LastUpdateTime: r.LastUpdateTime().UnixMilli(),
		}
		s.broadcast(ctx, r.MemberIds(), &Message{Type: TypeRoomStateUpdated, Payload: resp.Update})

		return nil
	})
	if err != nil {
		return UpdatePlaybackResponse{}, fmt.Errorf("failed to apply %s: %w", action, err)
	}

	return resp, nil
}

type SeekParams struct {
	MemberId string
	Position float64
}

func (s *service) Seek(ctx context.Context, params *SeekParams) (UpdatePlaybackResponse, error) {
	if params.Position < 0 {
		return UpdatePlaybackResponse{}, fmt.Errorf("%w: negative seek position", ErrInvalidInput)
	}

	var resp UpdatePlaybackResponse
	err := s.withMemberRoom(ctx, params.MemberId, func(r *domain.Room, now time.Time) error {
		if !r.ApplySeek(params.Position, now) {
			s.logger.DebugContext(ctx, "seek ignored", "room_id", r.Id())
			return nil
		}

		resp.Applied = true
		resp.Update = StateUpdate{
			Position:       r.Position(),
			LastUpdateTime: r.LastUpdateTime().UnixMilli(),
		}
		s.broadcast(ctx, r.MemberIds(), &Message{Type: TypeRoomStateUpdated, Payload: resp.Update})

		return nil
	})
	if err != nil {
		return UpdatePlaybackResponse{}, fmt.Errorf("failed to seek: %w", err)
	}

	return resp, nil
}

type AdvanceParams struct {
	MemberId string
	// ItemId, when set, must name the current item; a stale id is ignored so
	// several members reporting the same end advance the queue once.
	ItemId string
}

type AdvanceResponse struct {
	Applied bool
	Result  domain.AdvanceResult
}

func (s *service) Skip(ctx context.Context, params *AdvanceParams) (AdvanceResponse, error) {
	return s.advance(ctx, params, domain.ActionSkip)
}

func (s *service) EndVideo(ctx context.Context, params *AdvanceParams) (AdvanceResponse, error) {
	return s.advance(ctx, params, domain.ActionVideoEnded)
}

func (s *service) advance(ctx context.Context, params *AdvanceParams, action domain.Action) (AdvanceResponse, error) {
	var resp AdvanceResponse
	err := s.withMemberRoom(ctx, params.MemberId, func(r *domain.Room, now time.Time) error {
		if !r.AllowAction(params.MemberId, action, now) {
			s.logger.DebugContext(ctx, "duplicate command ignored", "action", action, "member_id", params.MemberId)
			return nil
		}

		if params.ItemId != "" {
			if current := r.CurrentItem(); current == nil || current.Id != params.ItemId {
				s.logger.DebugContext(ctx, "stale advance ignored", "action", action, "item_id", params.ItemId)
				return nil
			}
		}

		resp.Applied = true
		resp.Result = r.AdvanceQueue(now)
		s.broadcastSnapshot(ctx, r, r.Snapshot(now))

		return nil
	})
	if err != nil {
		return AdvanceResponse{}, fmt.Errorf("failed to apply %s: %w", action, err)
	}

	return resp, nil
}

type SyncTimeParams struct {
	MemberId string
}

type SyncTimeResponse struct {
	SyncTime SyncTime
	// Advanced is set when the time query found the current item finished.
	Advanced bool
}

// SyncTime replies to the requester only. A playing item within half a
// second of its end is treated as ended first and the new state is broadcast.
func (s *service) SyncTime(ctx context.Context, params *SyncTimeParams) (SyncTimeResponse, error) {
	var resp SyncTimeResponse
	err := s.withMemberRoom(ctx, params.MemberId, func(r *domain.Room, now time.Time) error {
		if r.HasEnded(now) {
			resp.Advanced = true
			r.AdvanceQueue(now)
			s.broadcastSnapshot(ctx, r, r.Snapshot(now))
		}

		resp.SyncTime = SyncTime{
			Position:  r.CurrentPosition(now),
			IsPlaying: r.IsPlaying(),
			ServerNow: now.UnixMilli(),
		}
		s.send(ctx, params.MemberId, &Message{Type: TypeSyncTime, Payload: resp.SyncTime})

		return nil
	})
	if errors.Is(err, ErrMemberNotInRoom) || errors.Is(err, ErrRoomNotFound) {
		resp = SyncTimeResponse{SyncTime: SyncTime{ServerNow: s.clock.Now().UnixMilli()}}
		s.send(ctx, params.MemberId, &Message{Type: TypeSyncTime, Payload: resp.SyncTime})
		return resp, nil
	}
	if err != nil {
		return SyncTimeResponse{}, fmt.Errorf("failed to sync time: %w", err)
	}

	return resp, nil
}
