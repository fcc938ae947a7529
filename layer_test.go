package trafficviz

import (
	"fmt"
	"image/color"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"pgregory.net/rapid"
)

// recordingCanvas remembers every drawing call
type recordingCanvas struct {
	ops    []string
	clears int
}

func (c *recordingCanvas) Size() (int, int) { return 200, 200 }
func (c *recordingCanvas) Clear() {
	c.clears++
	c.ops = append(c.ops, "clear")
}
func (c *recordingCanvas) NewPath()            { c.ops = append(c.ops, "path") }
func (c *recordingCanvas) MoveTo(x, y float64) { c.ops = append(c.ops, fmt.Sprintf("move %.1f %.1f", x, y)) }
func (c *recordingCanvas) LineTo(x, y float64) { c.ops = append(c.ops, fmt.Sprintf("line %.1f %.1f", x, y)) }
func (c *recordingCanvas) SetColor(clr color.Color) {
	n := color.NRGBAModel.Convert(clr).(color.NRGBA)
	c.ops = append(c.ops, fmt.Sprintf("color %d %d %d %d", n.R, n.G, n.B, n.A))
}
func (c *recordingCanvas) SetLineWidth(w float64)    { c.ops = append(c.ops, fmt.Sprintf("width %.2f", w)) }
func (c *recordingCanvas) SetDash(dashes ...float64) { c.ops = append(c.ops, fmt.Sprintf("dash %v", dashes)) }
func (c *recordingCanvas) StrokePreserve()           { c.ops = append(c.ops, "stroke-preserve") }
func (c *recordingCanvas) Stroke()                   { c.ops = append(c.ops, "stroke") }

func (c *recordingCanvas) count(op string) int {
	n := 0
	for _, o := range c.ops {
		if o == op {
			n++
		}
	}
	return n
}

var testViewport = Viewport{
	Center: orb.Point{37.6173, 55.7558},
	Zoom:   15,
	Width:  200,
	Height: 200,
}

// horizontalEdge builds edge which is drawn as horizontal segment at given screen row of testViewport
func horizontalEdge(id EdgeID, y float64) Edge {
	return Edge{
		ID:     id,
		Source: NodeID(id * 10),
		Target: NodeID(id*10 + 1),
		Geom: orb.LineString{
			testViewport.Unproject(orb.Point{50, y}),
			testViewport.Unproject(orb.Point{150, y}),
		},
	}
}

func TestHitTestNearest(t *testing.T) {
	click := orb.Point{100, 100}
	edges := []Edge{
		horizontalEdge(1, 120),
		horizontalEdge(2, 103),
		horizontalEdge(3, 91),
	}
	for _, useIndex := range []bool{true, false} {
		layer := NewEdgeLayer(edges, WithSpatialIndex(useIndex))
		layer.SetViewport(testViewport)
		hit, ok := layer.HitTest(click)
		if !ok {
			t.Errorf("Hit must be found (index: %v)", useIndex)
			continue
		}
		if hit.Edge.ID != 2 {
			t.Errorf("Hit edge must be %d, but got %d (index: %v)", 2, hit.Edge.ID, useIndex)
		}
		if math.Abs(hit.Distance-3) > 1e-6 {
			t.Errorf("Hit distance must be %f, but got %f", 3.0, hit.Distance)
		}
	}
}

func TestHitTestNoMatch(t *testing.T) {
	edges := []Edge{
		horizontalEdge(1, 120),
		horizontalEdge(2, 80),
		{ID: 3},
		{ID: 4, Geom: orb.LineString{testViewport.Unproject(orb.Point{100, 100})}},
	}
	for _, useIndex := range []bool{true, false} {
		layer := NewEdgeLayer(edges, WithSpatialIndex(useIndex))
		layer.SetViewport(testViewport)
		if hit, ok := layer.HitTest(orb.Point{100, 100}); ok {
			t.Errorf("Hit must not be found, but got edge %d at %f px (index: %v)", hit.Edge.ID, hit.Distance, useIndex)
		}
		// below segment end: distance to nearer endpoint (150, 120) is 11
		if _, ok := layer.HitTest(orb.Point{150, 131}); ok {
			t.Errorf("Hit beyond threshold must not be accepted (index: %v)", useIndex)
		}
		if hit, ok := layer.HitTest(orb.Point{155, 122}); !ok || hit.Edge.ID != 1 {
			t.Errorf("Hit near segment end must be edge 1 (index: %v)", useIndex)
		}
	}
}

func TestHitTestCustomThreshold(t *testing.T) {
	edges := []Edge{horizontalEdge(1, 120)}
	layer := NewEdgeLayer(edges, WithHitThreshold(25))
	layer.SetViewport(testViewport)
	if _, ok := layer.HitTest(orb.Point{100, 100}); !ok {
		t.Errorf("Hit must be found with 25px threshold")
	}
}

func TestHitTestIndexMatchesScan(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(t, "edges")
		edges := make([]Edge, n)
		for i := range edges {
			points := rapid.IntRange(0, 4).Draw(t, fmt.Sprintf("points_%d", i))
			geom := orb.LineString{}
			for j := 0; j < points; j++ {
				x := rapid.Float64Range(-50, 250).Draw(t, fmt.Sprintf("x_%d_%d", i, j))
				y := rapid.Float64Range(-50, 250).Draw(t, fmt.Sprintf("y_%d_%d", i, j))
				geom = append(geom, testViewport.Unproject(orb.Point{x, y}))
			}
			edges[i] = Edge{ID: EdgeID(i + 1), Geom: geom}
		}
		indexed := NewEdgeLayer(edges, WithSpatialIndex(true))
		scanned := NewEdgeLayer(edges, WithSpatialIndex(false))
		indexed.SetViewport(testViewport)
		scanned.SetViewport(testViewport)
		px := orb.Point{
			rapid.Float64Range(0, 200).Draw(t, "px"),
			rapid.Float64Range(0, 200).Draw(t, "py"),
		}
		hitIndexed, okIndexed := indexed.HitTest(px)
		hitScanned, okScanned := scanned.HitTest(px)
		if okIndexed != okScanned {
			t.Fatalf("Index hit must be %v, but got %v", okScanned, okIndexed)
		}
		if okScanned && hitIndexed.Index != hitScanned.Index {
			t.Fatalf("Index hit edge must be %d, but got %d", hitScanned.Index, hitIndexed.Index)
		}
	})
}

func TestRedrawSuspendedWhileZooming(t *testing.T) {
	edges := []Edge{horizontalEdge(1, 120), horizontalEdge(2, 80)}
	layer := NewEdgeLayer(edges)
	canvas := &recordingCanvas{}
	layer.AddTo(canvas, testViewport)
	if canvas.count("stroke") != 2 {
		t.Errorf("Number of strokes must be %d, but got %d", 2, canvas.count("stroke"))
	}

	layer.ZoomStart()
	ops := len(canvas.ops)
	if layer.Redraw() {
		t.Errorf("Redraw must be no-op while zooming")
	}
	layer.SetDensities([]float64{100, 200})
	layer.SetViewport(testViewport.Pan(10, 0))
	layer.SetHighlightedEdge(1)
	if len(canvas.ops) != ops {
		t.Errorf("Surface must stay unchanged while zooming: %d operations before, %d after", ops, len(canvas.ops))
	}

	layer.ZoomEnd()
	if canvas.count("stroke") != 4 {
		t.Errorf("Layer must be redrawn after zoom end: %d strokes expected, but got %d", 4, canvas.count("stroke"))
	}

	layer.Remove()
	ops = len(canvas.ops)
	layer.SetDensities([]float64{0, 0})
	if len(canvas.ops) != ops {
		t.Errorf("Removed layer must not draw")
	}
}

func TestSwappedEdgesSwapColors(t *testing.T) {
	edges := []Edge{horizontalEdge(1, 120), horizontalEdge(2, 80)}
	densities := []float64{0, 200}
	layer := NewEdgeLayer(edges)
	layer.SetDensities(densities)
	green, _ := layer.EdgeStyle(0)
	red, _ := layer.EdgeStyle(1)

	swapped := []Edge{edges[1], edges[0]}
	swappedLayer := NewEdgeLayer(swapped)
	swappedLayer.SetDensities(densities)
	first, _ := swappedLayer.EdgeStyle(0)
	second, _ := swappedLayer.EdgeStyle(1)
	if first != green || second != red {
		t.Errorf("Colors must follow density positions: expected %v and %v, but got %v and %v", green, red, first, second)
	}
	if swapped[0].ID != 2 {
		t.Errorf("Edge with ID 2 must get color of index 0")
	}
}

func TestEdgeStyle(t *testing.T) {
	edges := []Edge{horizontalEdge(1, 120), horizontalEdge(2, 80)}
	layer := NewEdgeLayer(edges, WithMaxDensity(100))
	layer.SetViewport(testViewport)
	layer.SetDensities([]float64{50, math.NaN()})

	clr, width := layer.EdgeStyle(0)
	correctWidth := (3 + 15 - DEFAULT_REFERENCE_ZOOM) * 1.0
	if width != correctWidth {
		t.Errorf("Width must be %f, but got %f", correctWidth, width)
	}
	if clr != NewColorScale(100).Color(50) {
		t.Errorf("Color must be %v, but got %v", NewColorScale(100).Color(50), clr)
	}
	if layer.Density(1) != 0 {
		t.Errorf("NaN density must be treated as %f, but got %f", 0.0, layer.Density(1))
	}
	if layer.Density(5) != 0 {
		t.Errorf("Missing density must be treated as %f, but got %f", 0.0, layer.Density(5))
	}

	layer.SetHighlightedEdge(1)
	clr, width = layer.EdgeStyle(0)
	if clr != HighlightColor {
		t.Errorf("Highlighted color must be %v, but got %v", HighlightColor, clr)
	}
	if width != correctWidth*highlightWidthFactor {
		t.Errorf("Highlighted width must be %f, but got %f", correctWidth*highlightWidthFactor, width)
	}
	layer.ClearHighlightedEdge()
	if _, ok := layer.HighlightedEdge(); ok {
		t.Errorf("Highlight must be cleared")
	}
}

func TestCustomColorFunc(t *testing.T) {
	edges := []Edge{horizontalEdge(1, 120), horizontalEdge(2, 80)}
	layer := NewEdgeLayer(edges, WithColorFunc(func(d float64) color.Color {
		return color.NRGBA{R: uint8(d), G: 1, B: 2, A: 255}
	}))
	canvas := &recordingCanvas{}
	layer.AddTo(canvas, testViewport)
	layer.SetDensities([]float64{7, 42})

	clr, _ := layer.EdgeStyle(1)
	correct := color.NRGBA{R: 42, G: 1, B: 2, A: 255}
	if clr != correct {
		t.Errorf("Color must be %v, but got %v", correct, clr)
	}
	for _, op := range []string{"color 7 1 2 255", "color 42 1 2 255"} {
		if canvas.count(op) == 0 {
			t.Errorf("Canvas must get '%s', but got %v", op, canvas.ops)
		}
	}
}

func TestRouteDrawnOverEdges(t *testing.T) {
	edges := []Edge{horizontalEdge(1, 120), horizontalEdge(2, 80)}
	layer := NewEdgeLayer(edges)
	canvas := &recordingCanvas{}
	layer.AddTo(canvas, testViewport)
	canvas.ops = nil
	layer.SetRoute([]int{0})

	if canvas.count("stroke") != 3 {
		t.Errorf("Two edges and one route edge must be stroked, but got %d strokes", canvas.count("stroke"))
	}
	routeOp := "color 30 144 255 220"
	last := -1
	for i, op := range canvas.ops {
		if op == routeOp {
			last = i
		}
	}
	if last < 0 {
		t.Fatalf("Route must be drawn, but got %v", canvas.ops)
	}
	for _, op := range canvas.ops[last:] {
		if op != routeOp && len(op) > 5 && op[:5] == "color" {
			t.Errorf("Route must be drawn after edges, but got %v", canvas.ops)
		}
	}
	// zero density at zoom 15: 5 * 0.5, times highlight factor
	if canvas.ops[last+1] != "width 3.75" {
		t.Errorf("Route width must be %s, but got %s", "width 3.75", canvas.ops[last+1])
	}

	layer.SetRoute(nil)
	if canvas.count(routeOp) != 1 {
		t.Errorf("Cleared route must not be drawn again")
	}
}

func TestHighwayDash(t *testing.T) {
	edges := []Edge{horizontalEdge(1, 120), horizontalEdge(2, 80)}
	edges[0].Name = "Autostrada A1"
	edges[1].Name = "Via Roma"
	layer := NewEdgeLayer(edges)
	canvas := &recordingCanvas{}
	layer.AddTo(canvas, testViewport)
	if canvas.count("stroke-preserve") != 1 {
		t.Errorf("Only highway must be stroked twice, but got %d preserved strokes", canvas.count("stroke-preserve"))
	}
	if canvas.count("dash [4 4]") != 1 {
		t.Errorf("Dash pattern must be set once, but got %d", canvas.count("dash [4 4]"))
	}
	if canvas.count("dash []") != 1 {
		t.Errorf("Dash pattern must be reset after highway")
	}

	plain := NewEdgeLayer(edges, WithHighwayMarkers(nil))
	canvas = &recordingCanvas{}
	plain.AddTo(canvas, testViewport)
	if canvas.count("stroke-preserve") != 0 {
		t.Errorf("No edge must be dashed without markers")
	}
}

func TestSkipEmptyGeometry(t *testing.T) {
	edges := []Edge{{ID: 1}, horizontalEdge(2, 80)}
	layer := NewEdgeLayer(edges)
	canvas := &recordingCanvas{}
	layer.AddTo(canvas, testViewport)
	if canvas.count("stroke") != 1 {
		t.Errorf("Edge without geometry must be skipped: %d strokes expected, but got %d", 1, canvas.count("stroke"))
	}
}

func TestRenderToKeepsAttachment(t *testing.T) {
	edges := []Edge{horizontalEdge(1, 120)}
	layer := NewEdgeLayer(edges)
	attached := &recordingCanvas{}
	layer.AddTo(attached, testViewport)
	layer.ZoomStart()

	other := &recordingCanvas{}
	layer.RenderTo(other, testViewport.Resize(400, 400))
	if other.count("stroke") != 1 {
		t.Errorf("Layer must be rendered onto another surface even while zooming")
	}
	if !layer.Zooming() {
		t.Errorf("Zoom gesture state must be restored")
	}
	if layer.Viewport() != testViewport {
		t.Errorf("View must be restored: %v, but got %v", testViewport, layer.Viewport())
	}
}
