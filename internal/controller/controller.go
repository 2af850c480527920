package controller

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/pkg/validator"
	"github.com/watchroom/server/pkg/wsconn"
	"github.com/watchroom/server/pkg/wsrouter"
)

type iRoomService interface {
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) (room.LeaveRoomResponse, error)
	Play(context.Context, *room.UpdatePlaybackParams) (room.UpdatePlaybackResponse, error)
	Pause(context.Context, *room.UpdatePlaybackParams) (room.UpdatePlaybackResponse, error)
	Seek(context.Context, *room.SeekParams) (room.UpdatePlaybackResponse, error)
	Skip(context.Context, *room.AdvanceParams) (room.AdvanceResponse, error)
	EndVideo(context.Context, *room.AdvanceParams) (room.AdvanceResponse, error)
	AddToQueue(context.Context, *room.AddToQueueParams) (room.AddToQueueResponse, error)
	RemoveFromQueue(context.Context, *room.RemoveFromQueueParams) (room.RemoveFromQueueResponse, error)
	SyncTime(context.Context, *room.SyncTimeParams) (room.SyncTimeResponse, error)
	CreateRoomId(context.Context) (string, error)
	GetRoom(context.Context, string) (domain.Snapshot, error)
}

type iCatalogService interface {
	Search(context.Context, string) ([]domain.Video, error)
	GetById(context.Context, string) (domain.Video, error)
}

type iConnRepo interface {
	Add(*wsconn.Conn, string) error
	RemoveByMemberId(string) error
	GetRoomId(string) (string, error)
	Send(string, any) error
}

type Config struct {
	// AllowedOrigins lists browser origins allowed to open the websocket and
	// call the api. Empty or "*" allows any origin.
	AllowedOrigins []string
}

type controller struct {
	roomService    iRoomService
	catalogService iCatalogService
	connRepo       iConnRepo
	upgrader       websocket.Upgrader
	validate       *validator.Validator
	wsRouter       *wsrouter.WSRouter
	allowedOrigins []string
	logger         *slog.Logger
}

func NewController(roomService iRoomService, catalogService iCatalogService, connRepo iConnRepo, logger *slog.Logger, cfg *Config) *controller {
	c := &controller{
		roomService:    roomService,
		catalogService: catalogService,
		connRepo:       connRepo,
		validate:       validator.NewValidator(),
		allowedOrigins: cfg.AllowedOrigins,
		logger:         logger,
	}
	c.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     c.checkOrigin,
	}
	c.wsRouter = c.getWSRouter()

	return c
}

func (c controller) allowAnyOrigin() bool {
	return len(c.allowedOrigins) == 0 || slices.Contains(c.allowedOrigins, "*")
}

// checkOrigin lets through clients that send no Origin header, such as the
// headless viewer.
func (c controller) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || c.allowAnyOrigin() {
		return true
	}

	return slices.Contains(c.allowedOrigins, origin)
}

func (c controller) generateTimeBasedId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
