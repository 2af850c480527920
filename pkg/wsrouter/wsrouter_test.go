package wsrouter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seekInput struct {
	Position float64 `json:"position"`
}

type call struct {
	messageType string
	input       seekInput
}

func serve(t *testing.T, router *WSRouter) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		router.ServeConn(context.Background(), conn)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestServeConnDispatchesTypedPayloads(t *testing.T) {
	calls := make(chan call, 4)
	errs := make(chan error, 4)

	router := New()
	router.Use(func(next HandlerFunc[any]) HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			return next(ctx, conn, payload)
		}
	})
	router.OnError(func(_ context.Context, _ *websocket.Conn, err error) {
		errs <- err
	})
	Handle(router, "SEEK", func(ctx context.Context, _ *websocket.Conn, input seekInput) error {
		calls <- call{messageType: GetMessageTypeFromCtx(ctx), input: input}
		return nil
	})
	Handle(router, "FAIL", func(context.Context, *websocket.Conn, struct{}) error {
		return errors.New("boom")
	})

	conn := serve(t, router)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "SEEK", "payload": map[string]any{"position": 12.5}}))
	select {
	case c := <-calls:
		assert.Equal(t, "SEEK", c.messageType)
		assert.Equal(t, 12.5, c.input.Position)
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "SEEK"}))
	select {
	case c := <-calls:
		assert.Zero(t, c.input.Position)
	case <-time.After(time.Second):
		t.Fatal("handler was not called for empty payload")
	}

	for _, tc := range []struct {
		frame string
		want  error
	}{
		{frame: `{"type":"NOPE"}`, want: ErrUnknownType},
		{frame: `not json`, want: ErrInvalidMessage},
		{frame: `{"type":"SEEK","payload":{"position":"x"}}`, want: ErrInvalidPayload},
	} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tc.frame)))
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, tc.want)
		case <-time.After(time.Second):
			t.Fatalf("no error reported for %s", tc.frame)
		}
	}

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "FAIL"}))
	select {
	case err := <-errs:
		assert.EqualError(t, err, "boom")
	case <-time.After(time.Second):
		t.Fatal("handler error was not reported")
	}
}
