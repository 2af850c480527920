package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/pkg/ctxlogger"
	"github.com/watchroom/server/pkg/validator"
	"github.com/watchroom/server/pkg/wsconn"
	"github.com/watchroom/server/pkg/wsrouter"
)

type EmptyInput struct{}

type ErrorOutput struct {
	Message string `json:"message"`
}

// serveWs binds one websocket connection to one freshly generated member.
func (c controller) serveWs(w http.ResponseWriter, r *http.Request) {
	memberId := uuid.NewString()

	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	conn := wsconn.New(ws)
	if err := c.connRepo.Add(conn, memberId); err != nil {
		c.logger.WarnContext(r.Context(), "failed to add connection", "error", err)
		ws.Close()
		return
	}
	go func() {
		if err := conn.WriteLoop(); err != nil {
			c.logger.DebugContext(r.Context(), "write loop stopped", "member_id", memberId, "error", err)
		}
	}()

	ctx := context.WithValue(r.Context(), memberIdCtxKey, memberId)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("member_id", memberId))
	defer c.disconnect(ctx, memberId)

	c.logger.InfoContext(ctx, "member connected")
	conn.PrepareRead()
	if err := c.wsRouter.ServeConn(ctx, ws); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.logger.InfoContext(ctx, "websocket closed unexpectedly", "error", err)
		} else {
			c.logger.DebugContext(ctx, "websocket closed", "error", err)
		}
	}
}

func (c controller) disconnect(ctx context.Context, memberId string) {
	if _, err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{MemberId: memberId}); err != nil && !errors.Is(err, room.ErrMemberNotInRoom) {
		c.logger.WarnContext(ctx, "failed to leave room on disconnect", "error", err)
	}

	if err := c.connRepo.RemoveByMemberId(memberId); err != nil {
		c.logger.WarnContext(ctx, "failed to remove connection", "error", err)
	}

	c.logger.InfoContext(ctx, "member disconnected")
}

func (c controller) handleWSError(ctx context.Context, _ *websocket.Conn, err error) {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, wsrouter.ErrUnknownType), errors.Is(err, wsrouter.ErrInvalidMessage):
		c.logger.DebugContext(ctx, "bad websocket message", "error", err)
		c.reply(ctx, &room.Message{Type: room.TypeError, Payload: ErrorOutput{Message: err.Error()}})
	case errors.As(err, &validationErrors),
		errors.Is(err, wsrouter.ErrInvalidPayload),
		errors.Is(err, room.ErrInvalidInput),
		errors.Is(err, room.ErrMemberNotInRoom),
		errors.Is(err, room.ErrRoomNotFound):
		c.logger.DebugContext(ctx, "websocket message rejected", "error", err)
	default:
		c.logger.WarnContext(ctx, "failed to handle websocket message", "error", err)
	}
}

func (c controller) reply(ctx context.Context, msg *room.Message) {
	if err := c.connRepo.Send(c.getMemberIdFromCtx(ctx), msg); err != nil {
		c.logger.DebugContext(ctx, "failed to reply", "error", err)
	}
}

type JoinRoomInput struct {
	RoomId      string `json:"room_id" validate:"required,max=64"`
	DisplayName string `json:"display_name" validate:"max=32"`
}

func (c controller) handleJoinRoom(ctx context.Context, _ *websocket.Conn, input JoinRoomInput) error {
	if err := c.validate.Validate(input); err != nil {
		return err
	}

	if _, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		MemberId:    c.getMemberIdFromCtx(ctx),
		RoomId:      input.RoomId,
		DisplayName: input.DisplayName,
	}); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	return nil
}

func (c controller) handleLeaveRoom(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	if _, err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{
		MemberId: c.getMemberIdFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	return nil
}

type PlaybackInput struct {
	Position *float64 `json:"position" validate:"omitempty,gte=0"`
}

func (c controller) handlePlay(ctx context.Context, _ *websocket.Conn, input PlaybackInput) error {
	if err := c.validate.Validate(input); err != nil {
		return err
	}

	_, err := c.roomService.Play(ctx, &room.UpdatePlaybackParams{
		MemberId: c.getMemberIdFromCtx(ctx),
		Position: input.Position,
	})
	return err
}

func (c controller) handlePause(ctx context.Context, _ *websocket.Conn, input PlaybackInput) error {
	if err := c.validate.Validate(input); err != nil {
		return err
	}

	_, err := c.roomService.Pause(ctx, &room.UpdatePlaybackParams{
		MemberId: c.getMemberIdFromCtx(ctx),
		Position: input.Position,
	})
	return err
}

type SeekInput struct {
	Position *float64 `json:"position" validate:"required,gte=0"`
}

func (c controller) handleSeek(ctx context.Context, _ *websocket.Conn, input SeekInput) error {
	if err := c.validate.Validate(input); err != nil {
		return err
	}

	_, err := c.roomService.Seek(ctx, &room.SeekParams{
		MemberId: c.getMemberIdFromCtx(ctx),
		Position: *input.Position,
	})
	return err
}

type AdvanceInput struct {
	ItemId string `json:"item_id" validate:"max=64"`
}

func (c controller) handleSkip(ctx context.Context, _ *websocket.Conn, input AdvanceInput) error {
	if err := c.validate.Validate(input); err != nil {
		return err
	}

	_, err := c.roomService.Skip(ctx, &room.AdvanceParams{
		MemberId: c.getMemberIdFromCtx(ctx),
		ItemId:   input.ItemId,
	})
	return err
}

func (c controller) handleVideoEnded(ctx context.Context, _ *websocket.Conn, input AdvanceInput) error {
	if err := c.validate.Validate(input); err != nil {
		return err
	}

	_, err := c.roomService.EndVideo(ctx, &room.AdvanceParams{
		MemberId: c.getMemberIdFromCtx(ctx),
		ItemId:   input.ItemId,
	})
	return err
}

func (c controller) handleSyncTime(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	_, err := c.roomService.SyncTime(ctx, &room.SyncTimeParams{
		MemberId: c.getMemberIdFromCtx(ctx),
	})
	return err
}

type QueueItemInput struct {
	Id              string  `json:"id" validate:"max=64"`
	Title           string  `json:"title" validate:"max=256"`
	ThumbnailUrl    string  `json:"thumbnail_url" validate:"max=512"`
	DurationSeconds float64 `json:"duration_seconds" validate:"gte=0"`
	SourceId        string  `json:"source_id" validate:"required,max=64"`
	AddedBy         string  `json:"added_by" validate:"max=32"`
}

type AddToQueueInput struct {
	Item QueueItemInput `json:"item"`
}

func (c controller) handleAddToQueue(ctx context.Context, _ *websocket.Conn, input AddToQueueInput) error {
	if err := c.validate.Validate(input); err != nil {
		return err
	}

	_, err := c.roomService.AddToQueue(ctx, &room.AddToQueueParams{
		MemberId: c.getMemberIdFromCtx(ctx),
		Item: domain.QueueItem{
			Id:              input.Item.Id,
			Title:           input.Item.Title,
			ThumbnailUrl:    input.Item.ThumbnailUrl,
			DurationSeconds: input.Item.DurationSeconds,
			SourceId:        input.Item.SourceId,
			AddedBy:         input.Item.AddedBy,
		},
	})
	return err
}

type RemoveFromQueueInput struct {
	ItemId string `json:"item_id" validate:"required,max=64"`
}

func (c controller) handleRemoveFromQueue(ctx context.Context, _ *websocket.Conn, input RemoveFromQueueInput) error {
	if err := c.validate.Validate(input); err != nil {
		return err
	}

	_, err := c.roomService.RemoveFromQueue(ctx, &room.RemoveFromQueueParams{
		MemberId: c.getMemberIdFromCtx(ctx),
		ItemId:   input.ItemId,
	})
	return err
}
