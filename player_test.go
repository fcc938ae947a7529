package trafficviz

import (
	"sync"
	"testing"
	"time"
)

func TestPlayer(t *testing.T) {
	session := testSession(t)
	var mu sync.Mutex
	frames := make(chan int, 100)
	player := NewPlayer(session, &mu, 200, func(idx int) {
		frames <- idx
	})
	if player.Playing() {
		t.Errorf("Player must be paused initially")
	}
	player.Play()
	// play is idempotent
	player.Play()
	got := []int{}
	timeout := time.After(5 * time.Second)
	for len(got) < 4 {
		select {
		case idx := <-frames:
			got = append(got, idx)
		case <-timeout:
			t.Fatalf("Player must step, but got only %v", got)
		}
	}
	player.Pause()
	if player.Playing() {
		t.Errorf("Player must be paused")
	}
	// 3 samples: 0 -> 1 -> 2 -> 0 -> 1
	correct := []int{1, 2, 0, 1}
	for i := range correct {
		if got[i] != correct[i] {
			t.Errorf("Frames must be %v, but got %v", correct, got)
			break
		}
	}

	mu.Lock()
	idx := session.Index()
	mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	if session.Index() != idx {
		t.Errorf("Paused player must not step")
	}
	mu.Unlock()
}

func TestPlayerFPS(t *testing.T) {
	player := NewPlayer(testSession(t), nil, 0, nil)
	if player.FPS() != DEFAULT_FPS {
		t.Errorf("FPS must fall back to %f, but got %f", DEFAULT_FPS, player.FPS())
	}
	player.SetFPS(-1)
	if player.FPS() != DEFAULT_FPS {
		t.Errorf("Non-positive FPS must be ignored")
	}
	if !player.Toggle() {
		t.Errorf("Toggle must start playing")
	}
	player.SetFPS(30)
	if player.FPS() != 30 || !player.Playing() {
		t.Errorf("FPS change must keep playing at %f, but got %f", 30.0, player.FPS())
	}
	if player.Toggle() {
		t.Errorf("Toggle must pause")
	}
}

func TestPlayerClose(t *testing.T) {
	var mu sync.Mutex
	session := testSession(t)
	player := NewPlayer(session, &mu, 200, nil)
	player.Play()
	if !player.Close() {
		t.Errorf("Close must report that player was playing")
	}
	if player.Playing() {
		t.Errorf("Closed player must be paused")
	}
	player.Play()
	if player.Playing() {
		t.Errorf("Closed player must not start again")
	}
	if player.Toggle() {
		t.Errorf("Toggle must not start closed player")
	}
	player.SetFPS(50)
	if player.Playing() {
		t.Errorf("FPS change must not start closed player")
	}
	if player.Close() {
		t.Errorf("Second close must report paused player")
	}
	mu.Lock()
	idx := session.Index()
	mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	if session.Index() != idx {
		t.Errorf("Closed player must not step")
	}
	mu.Unlock()
}
