package inmemory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/repository/connection"
	"github.com/watchroom/server/pkg/wsconn"
)

type session struct {
	memberId string
	roomId   string
	conn     *wsconn.Conn
}

type repo struct {
	connList map[*websocket.Conn]*session
	idList   map[string]*session
	mu       sync.RWMutex
}

func NewRepo() *repo {
	return &repo{
		connList: make(map[*websocket.Conn]*session),
		idList:   make(map[string]*session),
	}
}

func (r *repo) Add(conn *wsconn.Conn, memberId string) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName, "member_id", memberId)
	if r.connList[conn.WS()] != nil || r.idList[memberId] != nil {
		slog.Info(funcName, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	s := &session{memberId: memberId, conn: conn}
	r.connList[conn.WS()] = s
	r.idList[memberId] = s

	return nil
}

// RemoveByMemberId closes the connection's write queue and forgets it.
func (r *repo) RemoveByMemberId(memberId string) error {
	funcName := "connection.inmemory.RemoveByMemberId"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName, "member_id", memberId)
	s, ok := r.idList[memberId]
	if !ok {
		return connection.ErrNotFound
	}
	s.conn.Close()

	delete(r.connList, s.conn.WS())
	delete(r.idList, memberId)

	return nil
}

func (r *repo) GetMemberId(conn *websocket.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.connList[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return s.memberId, nil
}

func (r *repo) SetRoomId(memberId, roomId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.idList[memberId]
	if !ok {
		return connection.ErrNotFound
	}
	s.roomId = roomId

	return nil
}

// GetRoomId returns an empty id for a connected member outside any room.
func (r *repo) GetRoomId(memberId string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.idList[memberId]
	if !ok {
		return "", connection.ErrNotFound
	}

	return s.roomId, nil
}

func (r *repo) Send(memberId string, msg any) error {
	r.mu.RLock()
	s, ok := r.idList[memberId]
	r.mu.RUnlock()
	if !ok {
		return connection.ErrNotFound
	}

	return s.conn.Send(msg)
}

func (r *repo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.idList)
}
