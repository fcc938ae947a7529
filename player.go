package trafficviz

import (
	"context"
	"sync"
	"time"
)

// Player steps session over time at given rate. Every step calls onFrame with the new sample index.
// Session is not goroutine-safe, so step and callback run under the locker provided by caller.
type Player struct {
	session *Session
	locker  sync.Locker
	onFrame func(int)

	mu      sync.Mutex
	fps     float64
	cancel  context.CancelFunc
	done    chan struct{}
	playing bool
	closed  bool
}

// NewPlayer prepares player. Non-positive fps falls back to DEFAULT_FPS
func NewPlayer(session *Session, locker sync.Locker, fps float64, onFrame func(int)) *Player {
	if fps <= 0 {
		fps = DEFAULT_FPS
	}
	if locker == nil {
		locker = &sync.Mutex{}
	}
	return &Player{session: session, locker: locker, fps: fps, onFrame: onFrame}
}

// Play starts stepping. It does nothing when already playing or closed
func (player *Player) Play() {
	player.mu.Lock()
	defer player.mu.Unlock()
	if player.playing {
		return
	}
	player.start()
}

// Pause stops stepping and waits for the loop to exit
func (player *Player) Pause() {
	player.mu.Lock()
	defer player.mu.Unlock()
	player.stop()
}

// Toggle switches between play and pause. Returns true when playing after the call
func (player *Player) Toggle() bool {
	player.mu.Lock()
	defer player.mu.Unlock()
	if player.playing {
		player.stop()
		return false
	}
	player.start()
	return player.playing
}

// SetFPS changes rate. Running loop is restarted with the new rate
func (player *Player) SetFPS(fps float64) {
	if fps <= 0 {
		return
	}
	player.mu.Lock()
	defer player.mu.Unlock()
	player.fps = fps
	if player.playing {
		player.stop()
		player.start()
	}
}

// Close stops stepping for good: Play, Toggle and SetFPS do nothing afterwards.
// Returns true when player was playing
func (player *Player) Close() bool {
	player.mu.Lock()
	defer player.mu.Unlock()
	wasPlaying := player.playing
	player.stop()
	player.closed = true
	return wasPlaying
}

func (player *Player) FPS() float64 {
	player.mu.Lock()
	defer player.mu.Unlock()
	return player.fps
}

func (player *Player) Playing() bool {
	player.mu.Lock()
	defer player.mu.Unlock()
	return player.playing
}

func (player *Player) start() {
	if player.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	player.cancel = cancel
	player.done = make(chan struct{})
	player.playing = true
	go player.loop(ctx, time.Duration(float64(time.Second)/player.fps), player.done)
}

func (player *Player) stop() {
	if !player.playing {
		return
	}
	player.cancel()
	<-player.done
	player.playing = false
}

func (player *Player) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			player.locker.Lock()
			idx := player.session.Next()
			if player.onFrame != nil {
				player.onFrame(idx)
			}
			player.locker.Unlock()
		}
	}
}
