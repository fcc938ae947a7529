package trafficviz

import (
	"image/color"
	"math"
	"sort"
	"strings"

	"github.com/paulmach/orb"
)

const (
	// DEFAULT_HIT_THRESHOLD is maximum distance (pixels) between pointer and edge to be treated as a hit
	DEFAULT_HIT_THRESHOLD = 10.0
	// highlightWidthFactor is multiplier of stroke width for highlighted edge
	highlightWidthFactor = 1.5
)

var (
	DEFAULT_HIGHWAY_MARKERS = []string{"autostrada", "motorway"}
	highwayDash             = []float64{4, 4}
	routeColor              = color.NRGBA{R: 30, G: 144, B: 255, A: 220}
)

// EdgeLayer draws edges colored and sized by density and resolves pointer positions into edges.
//
// Densities are aligned with edges by index: densities[i] belongs to edges[i].
type EdgeLayer struct {
	edges          []Edge
	scale          ColorScale
	colorFunc      func(float64) color.Color
	referenceZoom  float64
	hitThreshold   float64
	highwayMarkers []string
	highway        []bool
	index          *edgeIndexTree
	useIndex       bool

	densities      []float64
	colors         []color.Color
	highlighted    EdgeID
	hasHighlighted bool
	route          []int

	canvas   Canvas
	viewport Viewport
	zooming  bool
}

func WithMaxDensity(max float64) func(*EdgeLayer) {
	return func(layer *EdgeLayer) {
		layer.scale = NewColorScale(max)
	}
}

func WithColorFunc(fn func(float64) color.Color) func(*EdgeLayer) {
	return func(layer *EdgeLayer) {
		layer.colorFunc = fn
	}
}

func WithReferenceZoom(zoom float64) func(*EdgeLayer) {
	return func(layer *EdgeLayer) {
		layer.referenceZoom = zoom
	}
}

func WithHitThreshold(px float64) func(*EdgeLayer) {
	return func(layer *EdgeLayer) {
		layer.hitThreshold = px
	}
}

func WithHighwayMarkers(markers []string) func(*EdgeLayer) {
	return func(layer *EdgeLayer) {
		layer.highwayMarkers = markers
	}
}

// WithSpatialIndex toggles R-tree prefiltering of hit-test candidates
func WithSpatialIndex(enabled bool) func(*EdgeLayer) {
	return func(layer *EdgeLayer) {
		layer.useIndex = enabled
	}
}

// NewEdgeLayer prepares layer for given (fixed) list of edges
func NewEdgeLayer(edges []Edge, options ...func(*EdgeLayer)) *EdgeLayer {
	layer := &EdgeLayer{
		edges:          edges,
		scale:          NewColorScale(DEFAULT_MAX_DENSITY),
		referenceZoom:  DEFAULT_REFERENCE_ZOOM,
		hitThreshold:   DEFAULT_HIT_THRESHOLD,
		highwayMarkers: DEFAULT_HIGHWAY_MARKERS,
		useIndex:       true,
	}
	for _, option := range options {
		option(layer)
	}
	if layer.colorFunc == nil {
		scale := layer.scale
		layer.colorFunc = func(d float64) color.Color { return scale.Color(d) }
	}
	layer.highway = make([]bool, len(edges))
	for i := range edges {
		layer.highway[i] = isHighway(edges[i].Name, layer.highwayMarkers)
	}
	if layer.useIndex {
		layer.index = newEdgeIndexTree(edges)
	}
	layer.densities = make([]float64, len(edges))
	layer.recolor()
	return layer
}

// Edges returns edges layer has been built for
func (layer *EdgeLayer) Edges() []Edge {
	return layer.edges
}

// Scale returns color scale used by layer
func (layer *EdgeLayer) Scale() ColorScale {
	return layer.scale
}

// AddTo attaches layer to drawing surface and draws it
func (layer *EdgeLayer) AddTo(canvas Canvas, vp Viewport) {
	layer.canvas = canvas
	layer.viewport = vp
	layer.Redraw()
}

// Remove detaches layer from its surface. Pending zoom suspension is dropped
func (layer *EdgeLayer) Remove() {
	layer.zooming = false
	layer.canvas = nil
}

// Viewport returns current view
func (layer *EdgeLayer) Viewport() Viewport {
	return layer.viewport
}

// SetViewport handles pan / zoom / resize of the map
func (layer *EdgeLayer) SetViewport(vp Viewport) {
	layer.viewport = vp
	layer.Redraw()
}

// SetDensities replaces current density vector and recolors edges
func (layer *EdgeLayer) SetDensities(densities []float64) {
	layer.densities = densities
	layer.recolor()
	layer.Redraw()
}

// SetHighlightedEdge marks edge to be drawn with highlight style. Drawing order is not changed
func (layer *EdgeLayer) SetHighlightedEdge(id EdgeID) {
	layer.highlighted = id
	layer.hasHighlighted = true
	layer.Redraw()
}

// ClearHighlightedEdge removes highlighting
func (layer *EdgeLayer) ClearHighlightedEdge() {
	layer.hasHighlighted = false
	layer.Redraw()
}

// SetRoute marks edges with given indices as route. Route is stroked over all edges
func (layer *EdgeLayer) SetRoute(indices []int) {
	layer.route = indices
	layer.Redraw()
}

// Route returns indices of route edges
func (layer *EdgeLayer) Route() []int {
	return layer.route
}

// HighlightedEdge returns highlighted edge identifier if any
func (layer *EdgeLayer) HighlightedEdge() (EdgeID, bool) {
	return layer.highlighted, layer.hasHighlighted
}

// ZoomStart suspends drawing until ZoomEnd. Surface is cleared
func (layer *EdgeLayer) ZoomStart() {
	layer.zooming = true
	if layer.canvas != nil {
		layer.canvas.Clear()
	}
}

// ZoomEnd resumes drawing and redraws the layer
func (layer *EdgeLayer) ZoomEnd() {
	layer.zooming = false
	layer.Redraw()
}

// Zooming reports whether zoom gesture is in progress
func (layer *EdgeLayer) Zooming() bool {
	return layer.zooming
}

// Density returns current density of edge with given index (zero when missing)
func (layer *EdgeLayer) Density(i int) float64 {
	if i < 0 || i >= len(layer.densities) {
		return 0
	}
	d := layer.densities[i]
	if math.IsNaN(d) {
		return 0
	}
	return d
}

// EdgeStyle returns stroke color and width of edge with given index for current state
func (layer *EdgeLayer) EdgeStyle(i int) (color.Color, float64) {
	clr := layer.colors[i]
	width := StrokeWidth(layer.Density(i), layer.scale.Max, layer.viewport.Zoom, layer.referenceZoom)
	if layer.hasHighlighted && layer.edges[i].ID == layer.highlighted {
		clr = HighlightColor
		width *= highlightWidthFactor
	}
	return clr, width
}

// Redraw repaints every edge. It does nothing while zoom gesture is in progress
// or when layer is not attached. Returns true when surface has been repainted.
func (layer *EdgeLayer) Redraw() bool {
	if layer.canvas == nil || layer.zooming {
		return false
	}
	layer.canvas.Clear()
	for i := range layer.edges {
		layer.drawEdge(i)
	}
	for _, i := range layer.route {
		layer.drawRouteEdge(i)
	}
	return true
}

// RenderTo draws layer for given view onto another surface without attaching to it
func (layer *EdgeLayer) RenderTo(canvas Canvas, vp Viewport) {
	attached, view, zooming := layer.canvas, layer.viewport, layer.zooming
	layer.canvas, layer.viewport, layer.zooming = canvas, vp, false
	layer.Redraw()
	layer.canvas, layer.viewport, layer.zooming = attached, view, zooming
}

// detached returns copy of layer not bound to any surface. Edges, styles and index are shared
// (they are never mutated), so copies may render concurrently. Colors are not copied:
// caller sets densities and recolors
func (layer *EdgeLayer) detached() *EdgeLayer {
	clone := *layer
	clone.canvas = nil
	clone.zooming = false
	clone.colors = nil
	clone.route = append([]int(nil), layer.route...)
	return &clone
}

func (layer *EdgeLayer) drawRouteEdge(i int) {
	geom := layer.edges[i].Geom
	if len(geom) < 2 {
		return
	}
	ctx := layer.canvas
	ctx.NewPath()
	for j, pt := range geom {
		p := layer.viewport.Project(pt)
		if j == 0 {
			ctx.MoveTo(p[0], p[1])
			continue
		}
		ctx.LineTo(p[0], p[1])
	}
	_, width := layer.EdgeStyle(i)
	ctx.SetColor(routeColor)
	ctx.SetLineWidth(width * highlightWidthFactor)
	ctx.Stroke()
}

func (layer *EdgeLayer) drawEdge(i int) {
	geom := layer.edges[i].Geom
	if len(geom) == 0 {
		return
	}
	ctx := layer.canvas
	ctx.NewPath()
	first := layer.viewport.Project(geom[0])
	ctx.MoveTo(first[0], first[1])
	for _, pt := range geom[1:] {
		p := layer.viewport.Project(pt)
		ctx.LineTo(p[0], p[1])
	}
	clr, width := layer.EdgeStyle(i)
	ctx.SetColor(clr)
	ctx.SetLineWidth(width)
	if !layer.highway[i] {
		ctx.Stroke()
		return
	}
	ctx.StrokePreserve()
	ctx.SetDash(highwayDash...)
	ctx.Stroke()
	ctx.SetDash()
}

// Hit is result of hit-test
type Hit struct {
	Index    int
	Edge     *Edge
	Distance float64
}

// HitTest returns edge nearest to the given screen point. ok is false when no edge is closer than
// hit threshold. Edges with less than 2 points are ignored.
func (layer *EdgeLayer) HitTest(px orb.Point) (Hit, bool) {
	var candidates []int
	if layer.index != nil {
		size := worldSize(layer.viewport.Zoom)
		center := mercatorUnit(layer.viewport.Center)
		unit := orb.Point{
			center[0] + (px[0]-float64(layer.viewport.Width)/2)/size,
			center[1] + (px[1]-float64(layer.viewport.Height)/2)/size,
		}
		candidates = layer.index.candidates(unit, layer.viewport.pixelsToUnits(layer.hitThreshold))
		// keep list order so ties resolve the same way as full scan
		sort.Ints(candidates)
	} else {
		candidates = make([]int, len(layer.edges))
		for i := range candidates {
			candidates[i] = i
		}
	}
	best := Hit{Index: -1, Distance: math.Inf(1)}
	projected := []orb.Point{}
	for _, i := range candidates {
		geom := layer.edges[i].Geom
		if len(geom) < 2 {
			continue
		}
		projected = projected[:0]
		for _, pt := range geom {
			projected = append(projected, layer.viewport.Project(pt))
		}
		dist := pointToLineDistance(px, projected)
		if dist < best.Distance {
			best = Hit{Index: i, Edge: &layer.edges[i], Distance: dist}
		}
	}
	if best.Index < 0 || best.Distance >= layer.hitThreshold {
		return Hit{Index: -1, Distance: best.Distance}, false
	}
	return best, true
}

func (layer *EdgeLayer) recolor() {
	if len(layer.colors) != len(layer.edges) {
		layer.colors = make([]color.Color, len(layer.edges))
	}
	for i := range layer.edges {
		layer.colors[i] = layer.colorFunc(layer.Density(i))
	}
}

// isHighway checks whether road name contains any of markers (case-insensitive)
func isHighway(name string, markers []string) bool {
	lower := strings.ToLower(name)
	for _, marker := range markers {
		if marker == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
