package viewer

import (
	"encoding/json"

	"github.com/watchroom/server/internal/domain"
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
	typeSyncTime        = "SYNC_TIME"

	typeRoomState        = "ROOM_STATE"
	typeRoomStateUpdated = "ROOM_STATE_UPDATED"
	typeQueueUpdated     = "QUEUE_UPDATED"
	typeMemberJoined     = "MEMBER_JOINED"
	typeMemberLeft       = "MEMBER_LEFT"
	typeError            = "ERROR"
)

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinRoomPayload struct {
	RoomId      string `json:"room_id"`
	DisplayName string `json:"display_name,omitempty"`
}

type positionPayload struct {
	Position *float64 `json:"position,omitempty"`
}

type seekPayload struct {
	Position float64 `json:"position"`
}

type itemIdPayload struct {
	ItemId string `json:"item_id,omitempty"`
}

type addToQueuePayload struct {
	Item domain.QueueItem `json:"item"`
}

type stateUpdatePayload struct {
	IsPlaying      *bool   `json:"is_playing"`
	Position       float64 `json:"position"`
	LastUpdateTime int64   `json:"last_update_time"`
}

type queuePayload struct {
	Queue []domain.QueueItem `json:"queue"`
}

type membersPayload struct {
	Members []domain.Member `json:"members"`
}

type syncTimePayload struct {
	Position  float64 `json:"position"`
	IsPlaying bool    `json:"is_playing"`
	ServerNow int64   `json:"server_now"`
}

type errorPayload struct {
	Message string `json:"message"`
}
