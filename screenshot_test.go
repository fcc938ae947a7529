package trafficviz

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestScreenshotName(t *testing.T) {
	name := ScreenshotName(time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC), ".png")
	if name != "road_network_2024-05-01T08-30-00.png" {
		t.Errorf("Name must be '%s', but got '%s'", "road_network_2024-05-01T08-30-00.png", name)
	}
	name = RecordingName(time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC), "mp4")
	if name != "simulation_2024-05-01T08-30-00.mp4" {
		t.Errorf("Name must be '%s', but got '%s'", "simulation_2024-05-01T08-30-00.mp4", name)
	}
}

func TestWritePNG(t *testing.T) {
	session := testSession(t)
	session.SelectEdge(3)
	var buf bytes.Buffer
	if err := WritePNG(&buf, session, testViewport); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != testViewport.Width || img.Bounds().Dy() != testViewport.Height {
		t.Errorf("Image size must be %dx%d, but got %v", testViewport.Width, testViewport.Height, img.Bounds())
	}
	// middle of edge 2 -> 3 is highlighted
	r, g, b, _ := img.At(125, 100).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("Highlighted edge must be white, but got (%d, %d, %d)", r>>8, g>>8, b>>8)
	}
	// corner is background
	r, g, b, _ = img.At(2, 199).RGBA()
	if uint8(r>>8) != BackgroundColor.R || uint8(g>>8) != BackgroundColor.G || uint8(b>>8) != BackgroundColor.B {
		t.Errorf("Corner must be background, but got (%d, %d, %d)", r>>8, g>>8, b>>8)
	}
}

func TestWriteSVG(t *testing.T) {
	session := testSession(t)
	var buf bytes.Buffer
	if err := WriteSVG(&buf, session, testViewport); err != nil {
		t.Fatal(err)
	}
	svg := buf.String()
	if !strings.Contains(svg, "<svg") || !strings.HasSuffix(strings.TrimSpace(svg), "</svg>") {
		t.Errorf("Output must be complete SVG document")
	}
	if strings.Count(svg, "<path") != 5 {
		t.Errorf("Number of paths must be %d (4 edges and dashed highway), but got %d", 5, strings.Count(svg, "<path"))
	}
	if !strings.Contains(svg, "stroke-dasharray:4,4") {
		t.Errorf("Highway must be dashed")
	}
	if !strings.Contains(svg, sessionStart.Format(TIME_LABEL_LAYOUT)) {
		t.Errorf("Time label must be drawn")
	}
	if !strings.Contains(svg, "density-legend") {
		t.Errorf("Legend must be drawn")
	}
}

func TestRenderSample(t *testing.T) {
	session := testSession(t)
	canvas, err := RenderSample(session, 2, testViewport)
	if err != nil {
		t.Fatal(err)
	}
	if w, h := canvas.Size(); w != testViewport.Width || h != testViewport.Height {
		t.Errorf("Canvas size must be %dx%d, but got %dx%d", testViewport.Width, testViewport.Height, w, h)
	}
	if session.Index() != 0 {
		t.Errorf("Time cursor must not be moved, but got %d", session.Index())
	}
	if session.Layer().Density(0) != 10 {
		t.Errorf("Session layer must keep current densities")
	}
	if _, err := RenderSample(session, 3, testViewport); !errors.Is(err, ErrNoDensitySample) {
		t.Errorf("Error must be %v, but got %v", ErrNoDensitySample, err)
	}
}
