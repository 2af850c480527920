package room

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/watchroom/server/internal/domain"
)

type AddToQueueParams struct {
	MemberId string
	Item     domain.QueueItem
}

type AddToQueueResponse struct {
	Item     domain.QueueItem
	Promoted bool
}

func (s *service) AddToQueue(ctx context.Context, params *AddToQueueParams) (AddToQueueResponse, error) {
	if params.Item.SourceId == "" {
		return AddToQueueResponse{}, fmt.Errorf("%w: queue item without source id", ErrInvalidInput)
	}

	item := params.Item
	if item.Id == "" {
		item.Id = uuid.NewString()
	}
	if item.DurationSeconds < 0 {
		item.DurationSeconds = 0
	}

	var resp AddToQueueResponse
	err := s.withMemberRoom(ctx, params.MemberId, func(r *domain.Room, now time.Time) error {
		if item.AddedBy == "" {
			member, _ := r.Member(params.MemberId)
			item.AddedBy = member.DisplayName
		}

		resp.Item = item
		resp.Promoted = r.Enqueue(item, now)
		if resp.Promoted {
			s.broadcastSnapshot(ctx, r, r.Snapshot(now))
		} else {
			s.broadcastQueue(ctx, r)
		}

		return nil
	})
	if err != nil {
		return AddToQueueResponse{}, fmt.Errorf("failed to add to queue: %w", err)
	}

	return resp, nil
}

type RemoveFromQueueParams struct {
	MemberId string
	ItemId   string
}

type RemoveFromQueueResponse struct {
	Removed bool
}

func (s *service) RemoveFromQueue(ctx context.Context, params *RemoveFromQueueParams) (RemoveFromQueueResponse, error) {
	var resp RemoveFromQueueResponse
	err := s.withMemberRoom(ctx, params.MemberId, func(r *domain.Room, _ time.Time) error {
		resp.Removed = r.Dequeue(params.ItemId)
		if resp.Removed {
			s.broadcastQueue(ctx, r)
		}

		return nil
	})
	if err != nil {
		return RemoveFromQueueResponse{}, fmt.Errorf("failed to remove from queue: %w", err)
	}

	return resp, nil
}
