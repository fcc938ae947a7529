package trafficviz

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// memorySink keeps frames in memory and may stop recording after some frames
type memorySink struct {
	frames []int
	images [][]byte
	closed bool
	stopAt int
	cancel context.CancelFunc
}

func (sink *memorySink) WriteFrame(frame int, data []byte) error {
	sink.frames = append(sink.frames, frame)
	sink.images = append(sink.images, data)
	if sink.cancel != nil && len(sink.frames) == sink.stopAt {
		sink.cancel()
	}
	return nil
}

func (sink *memorySink) Close() error {
	sink.closed = true
	return nil
}

func TestRecord(t *testing.T) {
	session := testSession(t)
	session.SetIndex(1)
	sink := &memorySink{}
	vp := testViewport.Resize(201, 101)
	result, err := Record(context.Background(), session, vp, sink, RecordOptions{Workers: 3})
	if err != nil {
		t.Fatal(err)
	}
	if result.Frames != 2 || result.Stopped {
		t.Errorf("Recording must have %d frames and finish, but got %+v", 2, result)
	}
	if len(sink.frames) != 2 || sink.frames[0] != 0 || sink.frames[1] != 1 {
		t.Errorf("Frames must be written in order, but got %v", sink.frames)
	}
	if !sink.closed {
		t.Errorf("Sink must be closed")
	}
	img, err := png.Decode(bytes.NewReader(sink.images[0]))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 100 {
		t.Errorf("Frame size must be even 200x100, but got %v", img.Bounds())
	}
	if session.Index() != 1 {
		t.Errorf("Recording must not move time cursor, but got %d", session.Index())
	}
}

func TestRecordStop(t *testing.T) {
	samples := []DensitySample{}
	for i := 0; i < 20; i++ {
		samples = append(samples, DensitySample{Time: sessionStart.Add(time.Duration(i) * time.Minute), Densities: []float64{float64(i), 0, 0, 0}})
	}
	session, err := NewSession(testNetwork(), samples)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &memorySink{stopAt: 3, cancel: cancel}
	result, err := Record(ctx, session, testViewport, sink, RecordOptions{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Stopped || result.Frames != 3 {
		t.Errorf("Recording must stop after %d frames, but got %+v", 3, result)
	}
	if !sink.closed {
		t.Errorf("Sink must be closed after stop")
	}
}

func TestDirectorySink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	sink, err := NewDirectorySink(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	session := testSession(t)
	result, err := Record(context.Background(), session, testViewport, sink, RecordOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < result.Frames; i++ {
		name := filepath.Join(dir, []string{"frame_00000.png", "frame_00001.png", "frame_00002.png"}[i])
		if _, err := os.Stat(name); err != nil {
			t.Errorf("Frame file '%s' must exist", name)
		}
	}
	if result.Frames != 3 {
		t.Errorf("Number of frames must be %d, but got %d", 3, result.Frames)
	}
}

func TestEvenViewport(t *testing.T) {
	vp := EvenViewport(Viewport{Width: 641, Height: 1})
	if vp.Width != 640 || vp.Height != 2 {
		t.Errorf("View must be 640x2, but got %dx%d", vp.Width, vp.Height)
	}
}

func TestFrameColorsBuiltPerFrame(t *testing.T) {
	session := testSession(t)
	before, _ := session.Layer().EdgeStyle(0)
	base := session.frameBase()
	if base.layer.colors != nil {
		t.Errorf("Shared frame state must not hold colors")
	}
	first := base.frame(&session.Samples()[1])
	last := base.frame(&session.Samples()[2])
	if base.layer.colors != nil {
		t.Errorf("Building frame must not fill shared frame state")
	}
	after, _ := session.Layer().EdgeStyle(0)
	if after != before {
		t.Errorf("Building frame must not recolor session layer: %v, but got %v", before, after)
	}
	for i, state := range []frameState{first, last} {
		sample := session.Samples()[i+1]
		correct := session.Layer().Scale().Color(sample.At(0))
		got, _ := state.layer.EdgeStyle(0)
		if got != correct {
			t.Errorf("Frame %d color must be %v, but got %v", i+1, correct, got)
		}
		if !state.ts.Equal(sample.Time) {
			t.Errorf("Frame %d time must be %v, but got %v", i+1, sample.Time, state.ts)
		}
	}
}
