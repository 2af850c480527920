package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/room"
)

var (
	ErrMemberNotInRoom = errors.New("member is not in a room")
	ErrRoomNotFound    = room.ErrRoomNotFound
	ErrInvalidInput    = errors.New("invalid input")
)

const roomIdAttempts = 5

type iRoomRepo interface {
	Upsert(context.Context, string, func(*domain.Room) error) error
	Update(context.Context, string, func(*domain.Room) error) error
	GetSnapshot(context.Context, string) (domain.Snapshot, error)
	Exists(string) bool
}

type iConnRepo interface {
	GetRoomId(string) (string, error)
	SetRoomId(string, string) error
	Send(string, any) error
}

type iGenerator interface {
	Generate() (string, error)
}

type service struct {
	roomRepo  iRoomRepo
	connRepo  iConnRepo
	generator iGenerator
	clock     clock.Clock
	logger    *slog.Logger
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, generator iGenerator, clock clock.Clock, logger *slog.Logger) *service {
	return &service{
		roomRepo:  roomRepo,
		connRepo:  connRepo,
		generator: generator,
		clock:     clock,
		logger:    logger,
	}
}

// withMemberRoom runs fn inside the critical section of the member's room.
func (s *service) withMemberRoom(ctx context.Context, memberId string, fn func(r *domain.Room, now time.Time) error) error {
	roomId, err := s.connRepo.GetRoomId(memberId)
	if err != nil {
		return fmt.Errorf("failed to get member room: %w", err)
	}
	if roomId == "" {
		return ErrMemberNotInRoom
	}

	return s.roomRepo.Update(ctx, roomId, func(r *domain.Room) error {
		if !r.HasMember(memberId) {
			return ErrMemberNotInRoom
		}

		return fn(r, s.clock.Now())
	})
}

// CreateRoomId returns a code no live room uses. The room itself is created
// by the first join.
func (s *service) CreateRoomId(ctx context.Context) (string, error) {
	for i := 0; i < roomIdAttempts; i++ {
		roomId, err := s.generator.Generate()
		if err != nil {
			return "", fmt.Errorf("failed to generate room id: %w", err)
		}

		if !s.roomRepo.Exists(roomId) {
			return roomId, nil
		}
	}

	return "", errors.New("failed to generate unique room id")
}

func (s *service) GetRoom(ctx context.Context, roomId string) (domain.Snapshot, error) {
	return s.roomRepo.GetSnapshot(ctx, roomId)
}
