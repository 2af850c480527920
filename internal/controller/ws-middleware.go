package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/gorilla/websocket"
	"github.com/watchroom/server/pkg/ctxlogger"
	"github.com/watchroom/server/pkg/wsrouter"
)

func (c controller) wsRequestIdWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", c.generateTimeBasedId()))
			return next(ctx, conn, payload)
		}
	}
}

// roomCtxWSMw tags the message with its type and the sender's room as it was
// before the handler ran.
func (c controller) roomCtxWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", wsrouter.GetMessageTypeFromCtx(ctx)))

			roomId, err := c.connRepo.GetRoomId(c.getMemberIdFromCtx(ctx))
			if err == nil && roomId != "" {
				ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", roomId))
			}

			return next(ctx, conn, payload)
		}
	}
}

func (c controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			raw, _ := payload.(json.RawMessage)
			c.logger.DebugContext(ctx, "websocket message received", "payload_bytes", len(raw))

			start := time.Now()
			err := next(ctx, conn, payload)

			attrs := []any{
				"processing_time_us", time.Since(start).Microseconds(),
				"goroutines", runtime.NumGoroutine(),
			}
			if err != nil {
				attrs = append(attrs, "rejected", true)
			}
			if errors.Is(err, wsrouter.ErrInvalidPayload) {
				attrs = append(attrs, "payload", string(raw))
			}
			c.logger.DebugContext(ctx, "websocket message handled", attrs...)

			return err
		}
	}
}
