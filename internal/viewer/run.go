package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/watchroom/server/pkg/ctxlogger"
)

func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, err
	}

	return slog.New(ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}),
	}), nil
}

// Run joins the configured room, creating one when no id is set, and reads
// commands from in until quit or ctx is done.
func Run(ctx context.Context, cfg *Config, in io.Reader, out, logs io.Writer) error {
	logger, err := NewLogger(logs, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	clk := clock.New()
	api := NewAPIClient(cfg.ServerURL, nil)

	roomId := cfg.RoomId
	if roomId == "" {
		roomId, err = api.CreateRoom(ctx)
		if err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}
		fmt.Fprintf(out, "created room %s\n", roomId)
	}
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", roomId))

	session, err := NewSession(&SessionConfig{
		ServerURL:    cfg.ServerURL,
		SyncInterval: cfg.SyncInterval,
	}, clk, logger)
	if err != nil {
		return err
	}

	var console *Console
	player := NewSimulatedPlayer(clk)
	engine := NewEngine(player, session, NewEstimator(clk), clk, logger, &EngineConfig{
		OnPrompt: func(p Prompt) { console.HandlePrompt(p) },
	})
	console = NewConsole(engine, session, api, out, logger, cfg.DisplayName, cfg.OnJoinPrompt)
	player.OnEnded(func() {
		if err := engine.PlayerEnded(); err != nil {
			logger.DebugContext(ctx, "failed to report end", "error", err)
		}
	})

	// the join is resent once the session connects
	if err := engine.Join(roomId, cfg.DisplayName); err != nil && !errors.Is(err, ErrDisconnected) {
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		session.Run(sessionCtx, engine)
	}()

	fmt.Fprintf(out, "joined room %s, type help for commands\n", roomId)
	err = console.Run(ctx, in)

	if leaveErr := engine.Leave(); leaveErr != nil {
		logger.DebugContext(ctx, "failed to leave room", "error", leaveErr)
	}
	cancel()
	<-done

	return err
}
