package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/watchroom/server/internal/service/catalog"
	"github.com/watchroom/server/internal/service/room"
)

func (c controller) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	videos, err := c.catalogService.Search(r.Context(), query)
	if err != nil {
		c.logger.DebugContext(r.Context(), "failed to search", "query", query, "error", err)
		switch {
		case errors.Is(err, catalog.ErrEmptyQuery):
			c.writeError(w, http.StatusBadRequest, catalog.ErrEmptyQuery.Error())
		case errors.Is(err, catalog.ErrRateLimited):
			c.writeError(w, http.StatusTooManyRequests, catalog.ErrRateLimited.Error())
		default:
			c.writeError(w, http.StatusBadGateway, catalog.ErrSearchFailed.Error())
		}
		return
	}

	c.writeJSON(w, http.StatusOK, envelope{"data": videos})
}

func (c controller) getVideo(w http.ResponseWriter, r *http.Request) {
	sourceId := chi.URLParam(r, "source-id")

	video, err := c.catalogService.GetById(r.Context(), sourceId)
	if err != nil {
		c.logger.DebugContext(r.Context(), "failed to get video", "source_id", sourceId, "error", err)
		switch {
		case errors.Is(err, catalog.ErrVideoNotFound):
			c.writeError(w, http.StatusNotFound, catalog.ErrVideoNotFound.Error())
		case errors.Is(err, catalog.ErrRateLimited):
			c.writeError(w, http.StatusTooManyRequests, catalog.ErrRateLimited.Error())
		default:
			c.writeError(w, http.StatusBadGateway, "failed to get video")
		}
		return
	}

	c.writeJSON(w, http.StatusOK, envelope{"data": video})
}

type createRoomResponse struct {
	RoomId string `json:"room_id"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	roomId, err := c.roomService.CreateRoomId(r.Context())
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to create room id", "error", err)
		c.writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	c.writeJSON(w, http.StatusCreated, envelope{"data": createRoomResponse{RoomId: roomId}})
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	snapshot, err := c.roomService.GetRoom(r.Context(), roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			c.writeError(w, http.StatusNotFound, room.ErrRoomNotFound.Error())
			return
		}

		c.logger.WarnContext(r.Context(), "failed to get room", "room_id", roomId, "error", err)
		c.writeError(w, http.StatusInternalServerError, "failed to get room")
		return
	}

	c.writeJSON(w, http.StatusOK, envelope{"data": snapshot})
}
