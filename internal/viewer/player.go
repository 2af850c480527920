package viewer

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/watchroom/server/internal/domain"
)

// Player is the local playback surface the engine drives.
type Player interface {
	Load(item domain.QueueItem)
	Unload()
	Play()
	Pause()
	Seek(seconds float64)
	Position() float64
	IsPlaying() bool
}

// SimulatedPlayer keeps a virtual playhead on a clock. It reports the natural
// end of items with a known duration through onEnded.
type SimulatedPlayer struct {
	clock   clock.Clock
	onEnded func()

	mu        sync.Mutex
	item      *domain.QueueItem
	playing   bool
	position  float64
	updatedAt time.Time
	endTimer  *clock.Timer
	gen       int
}

func NewSimulatedPlayer(clk clock.Clock) *SimulatedPlayer {
	return &SimulatedPlayer{clock: clk}
}

// OnEnded sets the callback run when the playhead reaches the item's end.
func (p *SimulatedPlayer) OnEnded(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.onEnded = fn
}

func (p *SimulatedPlayer) Load(item domain.QueueItem) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.item = &item
	p.playing = false
	p.position = 0
	p.updatedAt = p.clock.Now()
	p.reschedule()
}

func (p *SimulatedPlayer) Unload() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.item = nil
	p.playing = false
	p.position = 0
	p.reschedule()
}

func (p *SimulatedPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.item == nil || p.playing {
		return
	}
	p.position = p.positionLocked()
	p.updatedAt = p.clock.Now()
	p.playing = true
	p.reschedule()
}

func (p *SimulatedPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		return
	}
	p.position = p.positionLocked()
	p.updatedAt = p.clock.Now()
	p.playing = false
	p.reschedule()
}

func (p *SimulatedPlayer) Seek(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.item == nil {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	if d := p.item.DurationSeconds; d > 0 && seconds > d {
		seconds = d
	}
	p.position = seconds
	p.updatedAt = p.clock.Now()
	p.reschedule()
}

func (p *SimulatedPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.positionLocked()
}

func (p *SimulatedPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.playing
}

func (p *SimulatedPlayer) positionLocked() float64 {
	if !p.playing {
		return p.position
	}

	pos := p.position + p.clock.Since(p.updatedAt).Seconds()
	if p.item != nil && p.item.DurationSeconds > 0 && pos > p.item.DurationSeconds {
		pos = p.item.DurationSeconds
	}

	return pos
}

// reschedule replaces the pending end timer. gen invalidates timers that
// already fired but have not taken the lock yet.
func (p *SimulatedPlayer) reschedule() {
	p.gen++
	if p.endTimer != nil {
		p.endTimer.Stop()
		p.endTimer = nil
	}
	if !p.playing || p.item == nil || p.item.DurationSeconds <= 0 {
		return
	}

	remaining := p.item.DurationSeconds - p.position
	if remaining < 0 {
		remaining = 0
	}

	gen := p.gen
	p.endTimer = p.clock.AfterFunc(time.Duration(remaining*float64(time.Second)), func() {
		p.mu.Lock()
		if gen != p.gen {
			p.mu.Unlock()
			return
		}
		p.position = p.item.DurationSeconds
		p.playing = false
		p.endTimer = nil
		onEnded := p.onEnded
		p.mu.Unlock()

		if onEnded != nil {
			onEnded()
		}
	})
}
