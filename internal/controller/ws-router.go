package controller

import (
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/pkg/wsrouter"
)

const (
	typeJoinRoom        = "JOIN_ROOM"
	typeLeaveRoom       = "LEAVE_ROOM"
	typePlay            = "PLAY"
	typePause           = "PAUSE"
	typeSeek            = "SEEK"
	typeAddToQueue      = "ADD_TO_QUEUE"
	typeRemoveFromQueue = "REMOVE_FROM_QUEUE"
	typeSkip            = "SKIP"
	typeVideoEnded      = "VIDEO_ENDED"
	typeSyncTime        = room.TypeSyncTime
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.roomCtxWSMw(), c.loggerWSMw())
	mux.OnError(c.handleWSError)

	// membership
	wsrouter.Handle(mux, typeJoinRoom, c.handleJoinRoom)
	wsrouter.Handle(mux, typeLeaveRoom, c.handleLeaveRoom)

	// player
	wsrouter.Handle(mux, typePlay, c.handlePlay)
	wsrouter.Handle(mux, typePause, c.handlePause)
	wsrouter.Handle(mux, typeSeek, c.handleSeek)
	wsrouter.Handle(mux, typeSkip, c.handleSkip)
	wsrouter.Handle(mux, typeVideoEnded, c.handleVideoEnded)
	wsrouter.Handle(mux, typeSyncTime, c.handleSyncTime)

	// queue
	wsrouter.Handle(mux, typeAddToQueue, c.handleAddToQueue)
	wsrouter.Handle(mux, typeRemoveFromQueue, c.handleRemoveFromQueue)

	return mux
}
