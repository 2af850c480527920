package viewer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/watchroom/server/internal/domain"
)

func TestSimulatedPlayerPlayhead(t *testing.T) {
	mock := clock.NewMock()
	p := NewSimulatedPlayer(mock)

	p.Play()
	assert.False(t, p.IsPlaying(), "nothing loaded")

	p.Load(domain.QueueItem{Id: "i1", DurationSeconds: 60})
	p.Seek(10)
	p.Play()
	mock.Add(5 * time.Second)
	assert.Equal(t, 15.0, p.Position())

	p.Pause()
	mock.Add(5 * time.Second)
	assert.Equal(t, 15.0, p.Position())

	p.Seek(-3)
	assert.Equal(t, 0.0, p.Position())
	p.Seek(90)
	assert.Equal(t, 60.0, p.Position())

	p.Unload()
	assert.Equal(t, 0.0, p.Position())
	assert.False(t, p.IsPlaying())
}

func TestSimulatedPlayerReportsEnd(t *testing.T) {
	mock := clock.NewMock()
	p := NewSimulatedPlayer(mock)
	var ended atomic.Int32
	p.OnEnded(func() { ended.Add(1) })

	p.Load(domain.QueueItem{Id: "i1", DurationSeconds: 20})
	p.Seek(15)
	p.Play()

	// a seek back moves the end out
	mock.Add(2 * time.Second)
	p.Seek(5)
	mock.Add(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), ended.Load())

	mock.Add(10 * time.Second)
	assert.Eventually(t, func() bool { return ended.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, p.IsPlaying())
	assert.Equal(t, 20.0, p.Position())
}

func TestSimulatedPlayerWithoutDurationNeverEnds(t *testing.T) {
	mock := clock.NewMock()
	p := NewSimulatedPlayer(mock)
	var ended atomic.Int32
	p.OnEnded(func() { ended.Add(1) })

	p.Load(domain.QueueItem{Id: "live"})
	p.Play()
	mock.Add(time.Hour)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(0), ended.Load())
	assert.Equal(t, 3600.0, p.Position())
}
