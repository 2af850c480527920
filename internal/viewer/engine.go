package viewer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/watchroom/server/internal/domain"
)

var (
	ErrNotInRoom       = errors.New("not in a room")
	ErrNothingPlaying  = errors.New("nothing is playing")
	ErrNoPrompt        = errors.New("no pending join prompt")
	ErrInvalidPosition = errors.New("position must not be negative")
)

type State int

const (
	StateIdle State = iota
	StateLocalControlActive
	StateAwaitingJoinPrompt
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLocalControlActive:
		return "local-control"
	case StateAwaitingJoinPrompt:
		return "awaiting-join-prompt"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	defaultControlCooldown = 3 * time.Second
	defaultAdvanceGuard    = 3 * time.Second
	maxDelayCorrection     = time.Second
	// driftThreshold is the largest playhead drift a time sync tolerates
	// without seeking.
	driftThreshold = 0.5
)

// Sender writes one protocol message to the server.
type Sender interface {
	Send(messageType string, payload any) error
}

// Prompt asks whether to catch up with a room that is already playing.
type Prompt struct {
	Item     domain.QueueItem
	Position float64
}

type EngineConfig struct {
	ControlCooldown time.Duration
	AdvanceGuard    time.Duration
	// OnPrompt runs outside the engine lock, so it may call ResolvePrompt.
	OnPrompt func(Prompt)
}

type View struct {
	State             State
	RoomId            string
	CurrentItem       *domain.QueueItem
	Queue             []domain.QueueItem
	Members           []domain.Member
	RoomPlaying       bool
	Position          float64
	HasInteractedOnce bool
}

type promptAnchor struct {
	position float64
	playing  bool
	at       time.Time
}

// Engine reconciles server pushes with local gestures. Reader, timer, player
// and command goroutines all enter through its mutex.
type Engine struct {
	player    Player
	sender    Sender
	estimator *Estimator
	clock     clock.Clock
	logger    *slog.Logger
	cfg       EngineConfig

	mu                sync.Mutex
	state             State
	hasInteractedOnce bool
	controlTimer      *clock.Timer
	controlGen        int
	roomId            string
	displayName       string
	currentItem       *domain.QueueItem
	queue             []domain.QueueItem
	members           []domain.Member
	roomPlaying       bool
	anchor            promptAnchor
	lastAdvanceAt     time.Time
}

func NewEngine(player Player, sender Sender, estimator *Estimator, clk clock.Clock, logger *slog.Logger, cfg *EngineConfig) *Engine {
	e := &Engine{
		player:    player,
		sender:    sender,
		estimator: estimator,
		clock:     clk,
		logger:    logger,
	}
	if cfg != nil {
		e.cfg = *cfg
	}
	if e.cfg.ControlCooldown <= 0 {
		e.cfg.ControlCooldown = defaultControlCooldown
	}
	if e.cfg.AdvanceGuard <= 0 {
		e.cfg.AdvanceGuard = defaultAdvanceGuard
	}

	return e
}

func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{
		State:             e.state,
		RoomId:            e.roomId,
		Queue:             append([]domain.QueueItem(nil), e.queue...),
		Members:           append([]domain.Member(nil), e.members...),
		RoomPlaying:       e.roomPlaying,
		Position:          e.player.Position(),
		HasInteractedOnce: e.hasInteractedOnce,
	}
	if e.currentItem != nil {
		item := *e.currentItem
		v.CurrentItem = &item
	}

	return v
}

// HandleMessage applies one server frame.
func (e *Engine) HandleMessage(data []byte) error {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	e.mu.Lock()
	prompt, err := e.handle(msg)
	e.mu.Unlock()

	if prompt != nil && e.cfg.OnPrompt != nil {
		e.cfg.OnPrompt(*prompt)
	}

	return err
}

func (e *Engine) handle(msg inbound) (*Prompt, error) {
	switch msg.Type {
	case typeRoomState:
		var snapshot domain.Snapshot
		if err := json.Unmarshal(msg.Payload, &snapshot); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", msg.Type, err)
		}
		return e.applySnapshot(snapshot), nil
	case typeRoomStateUpdated:
		var update stateUpdatePayload
		if err := json.Unmarshal(msg.Payload, &update); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", msg.Type, err)
		}
		e.applyUpdate(update)
	case typeQueueUpdated:
		var update queuePayload
		if err := json.Unmarshal(msg.Payload, &update); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", msg.Type, err)
		}
		if e.roomId != "" {
			e.queue = update.Queue
		}
	case typeMemberJoined, typeMemberLeft:
		var update membersPayload
		if err := json.Unmarshal(msg.Payload, &update); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", msg.Type, err)
		}
		if e.roomId != "" {
			e.members = update.Members
		}
	case typeSyncTime:
		var reply syncTimePayload
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", msg.Type, err)
		}
		e.applySyncTime(reply)
	case typeError:
		var reply errorPayload
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", msg.Type, err)
		}
		e.logger.Warn("server rejected message", "message", reply.Message)
	default:
		e.logger.Debug("unknown message type", "type", msg.Type)
	}

	return nil, nil
}

func sameItem(a, b *domain.QueueItem) bool {
	if a == nil || b == nil {
		return a == b
	}

	return a.Id == b.Id
}

// snapshotTime is the server instant the snapshot position was taken at.
func snapshotTime(s domain.Snapshot) int64 {
	if s.ServerNow != 0 {
		return s.ServerNow
	}

	return s.LastUpdateTime
}

func (e *Engine) applySnapshot(s domain.Snapshot) *Prompt {
	if e.roomId == "" || s.Id != e.roomId {
		e.logger.Debug("snapshot for another room ignored", "room_id", s.Id)
		return nil
	}

	e.queue = s.Queue
	e.members = s.Members
	e.roomPlaying = s.IsPlaying
	changed := !sameItem(e.currentItem, s.CurrentItem)
	if s.CurrentItem != nil {
		item := *s.CurrentItem
		e.currentItem = &item
	} else {
		e.currentItem = nil
	}
	defer e.requestSync()

	if changed {
		if e.currentItem == nil {
			e.player.Unload()
			if e.state == StateAwaitingJoinPrompt {
				e.state = StateIdle
			}
			return nil
		}

		e.player.Load(*e.currentItem)
		if s.IsPlaying && s.Position > 0 && !e.hasInteractedOnce {
			e.state = StateAwaitingJoinPrompt
			e.refreshAnchor(s.IsPlaying, s.Position, snapshotTime(s))
			return &Prompt{Item: *e.currentItem, Position: e.anchor.position}
		}
		if e.state == StateAwaitingJoinPrompt {
			e.state = StateIdle
		}

		// a new item is applied even during local control
		e.applyPlayback(s.IsPlaying, s.Position, snapshotTime(s))
		return nil
	}

	switch e.state {
	case StateLocalControlActive:
		e.logger.Debug("snapshot playback ignored during local control")
	case StateAwaitingJoinPrompt:
		e.refreshAnchor(s.IsPlaying, s.Position, snapshotTime(s))
	default:
		e.applyPlayback(s.IsPlaying, s.Position, snapshotTime(s))
	}

	return nil
}

func (e *Engine) applyUpdate(u stateUpdatePayload) {
	if e.roomId == "" || e.currentItem == nil {
		return
	}
	if u.IsPlaying != nil {
		e.roomPlaying = *u.IsPlaying
	}

	switch e.state {
	case StateLocalControlActive:
		e.logger.Debug("state update ignored during local control")
	case StateAwaitingJoinPrompt:
		e.refreshAnchor(e.roomPlaying, u.Position, u.LastUpdateTime)
	default:
		e.applyPlayback(e.roomPlaying, u.Position, u.LastUpdateTime)
	}
}

func (e *Engine) applySyncTime(reply syncTimePayload) {
	if !e.estimator.Observe(reply.ServerNow) {
		e.logger.Debug("unsolicited sync reply ignored")
		return
	}
	if e.roomId == "" || e.currentItem == nil {
		return
	}
	e.roomPlaying = reply.IsPlaying

	switch e.state {
	case StateLocalControlActive:
		e.logger.Debug("sync ignored during local control")
	case StateAwaitingJoinPrompt:
		e.refreshAnchor(reply.IsPlaying, reply.Position, reply.ServerNow)
	default:
		target := e.target(reply.IsPlaying, reply.Position, reply.ServerNow)
		if math.Abs(e.player.Position()-target) > driftThreshold {
			e.player.Seek(target)
		}
		e.setPlaying(reply.IsPlaying)
	}
}

// target extrapolates a server position to now. The network delay added for
// a playing room is capped at maxDelayCorrection.
func (e *Engine) target(playing bool, position float64, serverTs int64) float64 {
	if !playing {
		return position
	}

	delay := time.Duration(e.clock.Now().UnixMilli()-e.estimator.ServerToClientTime(serverTs)) * time.Millisecond
	delay = max(0, min(delay, maxDelayCorrection))

	return position + delay.Seconds()
}

func (e *Engine) applyPlayback(playing bool, position float64, serverTs int64) {
	e.player.Seek(e.target(playing, position, serverTs))
	e.setPlaying(playing)
}

func (e *Engine) setPlaying(playing bool) {
	if playing {
		e.player.Play()
	} else {
		e.player.Pause()
	}
}

func (e *Engine) refreshAnchor(playing bool, position float64, serverTs int64) {
	e.anchor = promptAnchor{
		position: e.target(playing, position, serverTs),
		playing:  playing,
		at:       e.clock.Now(),
	}
}

// ResolvePrompt answers a pending join prompt. Catching up seeks to the
// anchored position plus the time the prompt was open. Starting over rewinds
// and pauses the whole room.
func (e *Engine) ResolvePrompt(catchUp bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateAwaitingJoinPrompt {
		return ErrNoPrompt
	}
	e.state = StateIdle
	e.hasInteractedOnce = true

	if catchUp {
		position := e.anchor.position
		if e.anchor.playing {
			position += e.clock.Since(e.anchor.at).Seconds()
		}
		e.player.Seek(position)
		e.setPlaying(e.anchor.playing)
		return nil
	}

	zero := 0.0
	e.player.Seek(0)
	e.player.Pause()
	e.roomPlaying = false
	return e.send(typePause, positionPayload{Position: &zero})
}

// beginControl enters local control. Without a timer the state lasts until
// EndControl.
func (e *Engine) beginControl(timed bool) {
	e.hasInteractedOnce = true
	if e.state == StateAwaitingJoinPrompt {
		e.logger.Debug("join prompt dropped by local control")
	}
	e.state = StateLocalControlActive

	e.controlGen++
	if e.controlTimer != nil {
		e.controlTimer.Stop()
		e.controlTimer = nil
	}
	if !timed {
		return
	}

	gen := e.controlGen
	e.controlTimer = e.clock.AfterFunc(e.cfg.ControlCooldown, func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		if gen == e.controlGen && e.state == StateLocalControlActive {
			e.state = StateIdle
			e.controlTimer = nil
		}
	})
}

func (e *Engine) endControl() {
	e.controlGen++
	if e.controlTimer != nil {
		e.controlTimer.Stop()
		e.controlTimer = nil
	}
	if e.state == StateLocalControlActive {
		e.state = StateIdle
	}
}

func (e *Engine) requireItem() error {
	if e.roomId == "" {
		return ErrNotInRoom
	}
	if e.currentItem == nil {
		return ErrNothingPlaying
	}

	return nil
}

func (e *Engine) send(messageType string, payload any) error {
	if err := e.sender.Send(messageType, payload); err != nil {
		e.logger.Debug("command not sent", "type", messageType, "error", err)
		return err
	}

	return nil
}

func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireItem(); err != nil {
		return err
	}
	e.beginControl(true)
	e.player.Play()
	e.roomPlaying = true

	return e.send(typePlay, positionPayload{})
}

func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireItem(); err != nil {
		return err
	}
	e.beginControl(true)
	e.player.Pause()
	e.roomPlaying = false

	return e.send(typePause, positionPayload{})
}

func (e *Engine) Seek(position float64) error {
	if position < 0 {
		return ErrInvalidPosition
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireItem(); err != nil {
		return err
	}
	e.beginControl(true)
	e.player.Seek(position)

	return e.send(typeSeek, seekPayload{Position: position})
}

// SeekStart marks a seek drag in progress. Pushes stay suppressed until
// EndControl.
func (e *Engine) SeekStart() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireItem(); err != nil {
		return err
	}
	e.beginControl(false)

	return nil
}

// EndControl leaves local control immediately and asks for a time sync.
func (e *Engine) EndControl() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.endControl()

	return e.requestSync()
}

func (e *Engine) Skip() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireItem(); err != nil {
		return err
	}
	e.beginControl(true)

	return e.send(typeSkip, itemIdPayload{ItemId: e.currentItem.Id})
}

func (e *Engine) AddToQueue(item domain.QueueItem) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.roomId == "" {
		return ErrNotInRoom
	}
	e.hasInteractedOnce = true

	return e.send(typeAddToQueue, addToQueuePayload{Item: item})
}

func (e *Engine) RemoveFromQueue(itemId string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.roomId == "" {
		return ErrNotInRoom
	}
	e.hasInteractedOnce = true

	return e.send(typeRemoveFromQueue, itemIdPayload{ItemId: itemId})
}

// PlayerError asks the room to skip an item the player cannot play.
func (e *Engine) PlayerError() error {
	return e.advance(typeSkip)
}

// PlayerEnded reports the natural end of the current item.
func (e *Engine) PlayerEnded() error {
	return e.advance(typeVideoEnded)
}

// advance sends at most one automatic advance per guard window.
func (e *Engine) advance(messageType string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireItem(); err != nil {
		return err
	}
	now := e.clock.Now()
	if !e.lastAdvanceAt.IsZero() && now.Sub(e.lastAdvanceAt) < e.cfg.AdvanceGuard {
		e.logger.Debug("automatic advance suppressed", "type", messageType)
		return nil
	}
	e.lastAdvanceAt = now
	e.hasInteractedOnce = true

	return e.send(messageType, itemIdPayload{ItemId: e.currentItem.Id})
}

// Join switches the engine to roomId. Joining the current room again only
// resends the join.
func (e *Engine) Join(roomId, displayName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if roomId != e.roomId {
		e.resetRoom()
		e.roomId = roomId
	}
	e.displayName = displayName

	return e.send(typeJoinRoom, joinRoomPayload{RoomId: roomId, DisplayName: displayName})
}

// Rejoin resends the join for the current room after a reconnect.
func (e *Engine) Rejoin() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.roomId == "" {
		return nil
	}

	return e.send(typeJoinRoom, joinRoomPayload{RoomId: e.roomId, DisplayName: e.displayName})
}

func (e *Engine) Leave() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.roomId == "" {
		return ErrNotInRoom
	}
	e.resetRoom()

	return e.send(typeLeaveRoom, nil)
}

func (e *Engine) resetRoom() {
	e.endControl()
	e.state = StateIdle
	e.roomId = ""
	e.currentItem = nil
	e.queue = nil
	e.members = nil
	e.roomPlaying = false
	e.player.Unload()
}

func (e *Engine) RequestSync() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.requestSync()
}

func (e *Engine) requestSync() error {
	if e.roomId == "" {
		return nil
	}
	if !e.estimator.MarkRequestSent() {
		e.logger.Debug("sync request already in flight")
		return nil
	}
	if err := e.send(typeSyncTime, nil); err != nil {
		e.estimator.CancelRequest()
		return err
	}

	return nil
}
