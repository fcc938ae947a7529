package trafficviz

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

var (
	ErrEdgeNotFound    = errors.New("edge not found")
	ErrNodeNotFound    = errors.New("node not found")
	ErrInverseNotFound = errors.New("inverse edge not found")
	ErrNoSelection     = errors.New("no edge selected")
)

// Session owns everything which changes while user explores single simulation:
// time cursor, selection and view. It is the only one who talks to the EdgeLayer.
type Session struct {
	edges   []Edge
	samples []DensitySample
	layer   *EdgeLayer
	byID    map[EdgeID]int
	step    time.Duration
	current int

	selected        int
	highlightedNode orb.Point
	hasNode         bool

	router *Router

	verbose bool
}

// SessionOption configures Session
type SessionOption func(*Session)

func WithVerbose(verbose bool) SessionOption {
	return func(session *Session) {
		session.verbose = verbose
	}
}

// WithLayerOptions passes options to underlying EdgeLayer
func WithLayerOptions(options ...func(*EdgeLayer)) SessionOption {
	return func(session *Session) {
		session.layer = NewEdgeLayer(session.edges, options...)
	}
}

// NewSession validates that every sample is aligned with edges and positions time cursor at the first sample
func NewSession(edges []Edge, samples []DensitySample, options ...SessionOption) (*Session, error) {
	if len(edges) == 0 {
		return nil, errors.New("no edges provided")
	}
	if len(samples) == 0 {
		return nil, errors.New("no density samples provided")
	}
	for i := range samples {
		if len(samples[i].Densities) != len(edges) {
			return nil, fmt.Errorf("density sample at %s has %d values, but there are %d edges", samples[i].Time.Format(time.RFC3339), len(samples[i].Densities), len(edges))
		}
	}
	session := &Session{
		edges:    edges,
		samples:  samples,
		byID:     edgeIndex(edges),
		step:     SampleStep(samples),
		selected: -1,
	}
	for _, option := range options {
		option(session)
	}
	if session.layer == nil {
		session.layer = NewEdgeLayer(edges)
	}
	session.layer.SetDensities(samples[0].Densities)
	return session, nil
}

func (session *Session) Edges() []Edge {
	return session.edges
}

func (session *Session) Samples() []DensitySample {
	return session.samples
}

func (session *Session) Layer() *EdgeLayer {
	return session.layer
}

// SampleStep returns time between two consecutive samples
func (session *Session) SampleStep() time.Duration {
	return session.step
}

// Index returns index of current sample
func (session *Session) Index() int {
	return session.current
}

// Time returns timestamp of current sample
func (session *Session) Time() time.Time {
	return session.samples[session.current].Time
}

// Current returns current sample
func (session *Session) Current() *DensitySample {
	return &session.samples[session.current]
}

// InitialViewport returns view of given size centered on median point of all edges at reference zoom
func (session *Session) InitialViewport(width, height int) Viewport {
	vp := Viewport{Zoom: session.layer.referenceZoom, Width: width, Height: height}
	if center, ok := medianCenter(session.edges); ok {
		vp.Center = center
	}
	return vp
}

// Attach binds session's layer to the drawing surface
func (session *Session) Attach(canvas Canvas, vp Viewport) {
	session.layer.AddTo(canvas, vp)
}

func (session *Session) SetViewport(vp Viewport) {
	session.layer.SetViewport(vp)
}

func (session *Session) Viewport() Viewport {
	return session.layer.Viewport()
}

func (session *Session) ZoomStart() {
	session.layer.ZoomStart()
}

func (session *Session) ZoomEnd() {
	session.layer.ZoomEnd()
}

// SetTime moves time cursor to the sample with exactly given timestamp.
// When there is no such sample state is left untouched and ErrNoDensitySample is returned
func (session *Session) SetTime(ts time.Time) error {
	idx := findSample(session.samples, ts)
	if idx < 0 {
		if session.verbose {
			fmt.Printf("[WARNING]: No density data for time step: %s\n", ts.Format(time.RFC3339))
		}
		return errors.Wrapf(ErrNoDensitySample, "time step %s", ts.Format(time.RFC3339))
	}
	return session.SetIndex(idx)
}

// SampleIndex returns index of sample with exactly given timestamp
func (session *Session) SampleIndex(ts time.Time) (int, bool) {
	idx := findSample(session.samples, ts)
	return idx, idx >= 0
}

// SetIndex moves time cursor to the sample with given index
func (session *Session) SetIndex(idx int) error {
	if idx < 0 || idx >= len(session.samples) {
		if session.verbose {
			fmt.Printf("[WARNING]: No density data for sample index: %d\n", idx)
		}
		return errors.Wrapf(ErrNoDensitySample, "sample index %d", idx)
	}
	session.current = idx
	session.layer.SetDensities(session.samples[idx].Densities)
	return nil
}

// SetOffset moves time cursor to the sample which is given duration after the first one.
// Offset is snapped down to sample step, same as time slider does.
func (session *Session) SetOffset(offset time.Duration) error {
	return session.SetIndex(int(math.Floor(float64(offset) / float64(session.step))))
}

// Offset returns position of time cursor from the first sample (slider value)
func (session *Session) Offset() time.Duration {
	return time.Duration(session.current) * session.step
}

// MaxOffset returns maximum value of time slider
func (session *Session) MaxOffset() time.Duration {
	return time.Duration(len(session.samples)-1) * session.step
}

// Next advances time cursor by one sample, looping back to the start after the last one
func (session *Session) Next() int {
	next := session.current + 1
	if next >= len(session.samples) {
		next = 0
	}
	session.SetIndex(next)
	return next
}

// HoverAt tells whether pointer at given screen position is over some edge
func (session *Session) HoverAt(px orb.Point) bool {
	_, ok := session.layer.HitTest(px)
	return ok
}

// SelectAt selects edge under the pointer. When there is no edge within hit threshold
// selection stays unchanged and false is returned
func (session *Session) SelectAt(px orb.Point) (EdgeInfo, bool) {
	hit, ok := session.layer.HitTest(px)
	if !ok {
		return EdgeInfo{}, false
	}
	session.selectIndex(hit.Index)
	return session.EdgeInfo(hit.Index), true
}

// SelectEdge selects edge by its identifier
func (session *Session) SelectEdge(id EdgeID) (EdgeInfo, error) {
	idx, ok := session.byID[id]
	if !ok {
		return EdgeInfo{}, errors.Wrapf(ErrEdgeNotFound, "edge %d", id)
	}
	session.selectIndex(idx)
	return session.EdgeInfo(idx), nil
}

// FindEdge returns information about edge with given identifier without selecting it
func (session *Session) FindEdge(id EdgeID) (EdgeInfo, error) {
	idx, ok := session.byID[id]
	if !ok {
		return EdgeInfo{}, errors.Wrapf(ErrEdgeNotFound, "edge %d", id)
	}
	return session.EdgeInfo(idx), nil
}

// NodePosition returns position of node with given identifier without highlighting it
func (session *Session) NodePosition(id NodeID) (orb.Point, error) {
	pt, ok := session.nodePosition(id)
	if !ok {
		return orb.Point{}, errors.Wrapf(ErrNodeNotFound, "node %d", id)
	}
	return pt, nil
}

// SelectNode highlights node with given identifier. Node position is the first point of the first edge
// which starts from the node or the last point of the first edge which ends in it.
// Edge selection is dropped and view is centered on the node.
func (session *Session) SelectNode(id NodeID) (orb.Point, error) {
	pt, ok := session.nodePosition(id)
	if !ok {
		return orb.Point{}, errors.Wrapf(ErrNodeNotFound, "node %d", id)
	}
	session.selected = -1
	session.layer.hasHighlighted = false
	session.highlightedNode = pt
	session.hasNode = true
	vp := session.layer.Viewport()
	vp.Center = pt
	vp.Zoom = DEFAULT_NODE_ZOOM
	session.layer.SetViewport(vp)
	return pt, nil
}

// Inverse selects edge going in opposite direction to the selected one
func (session *Session) Inverse() (EdgeInfo, error) {
	if session.selected < 0 {
		return EdgeInfo{}, ErrNoSelection
	}
	current := session.edges[session.selected]
	for i := range session.edges {
		if session.edges[i].Source == current.Target && session.edges[i].Target == current.Source {
			session.selectIndex(i)
			return session.EdgeInfo(i), nil
		}
	}
	return EdgeInfo{}, errors.Wrapf(ErrInverseNotFound, "from %d to %d", current.Target, current.Source)
}

// ClearSelection drops both edge and node selection and the route
func (session *Session) ClearSelection() {
	session.selected = -1
	session.hasNode = false
	session.layer.route = nil
	session.layer.ClearHighlightedEdge()
}

// Selected returns information about selected edge for current time step
func (session *Session) Selected() (EdgeInfo, bool) {
	if session.selected < 0 {
		return EdgeInfo{}, false
	}
	return session.EdgeInfo(session.selected), true
}

// HighlightedNode returns position of highlighted node if any
func (session *Session) HighlightedNode() (orb.Point, bool) {
	return session.highlightedNode, session.hasNode
}

// EdgeInfo returns attributes of edge with given index and its density at current time step
func (session *Session) EdgeInfo(idx int) EdgeInfo {
	edge := session.edges[idx]
	info := EdgeInfo{
		ID:       edge.ID,
		Source:   edge.Source,
		Target:   edge.Target,
		Name:     edge.Name,
		MaxSpeed: edge.MaxSpeed,
		Lanes:    edge.Lanes,
		Length:   edge.Length,
	}
	if session.current >= 0 && session.current < len(session.samples) {
		sample := &session.samples[session.current]
		info.Density = sample.At(idx)
		info.HasDensity = sample.Has(idx)
	}
	return info
}

// Route finds shortest (by length) path between two nodes and stores it as current route
func (session *Session) Route(from, to NodeID) ([]EdgeID, float64, error) {
	if session.router == nil {
		router, err := NewRouter(session.edges)
		if err != nil {
			return nil, 0, errors.Wrap(err, "Can't prepare router")
		}
		session.router = router
	}
	path, cost, err := session.router.ShortestPath(from, to)
	if err != nil {
		return nil, 0, err
	}
	session.layer.SetRoute(path)
	ids := make([]EdgeID, len(path))
	for i, idx := range path {
		ids[i] = session.edges[idx].ID
	}
	return ids, cost, nil
}

// RouteIndices returns indices of edges of current route
func (session *Session) RouteIndices() []int {
	return session.layer.Route()
}

func (session *Session) selectIndex(idx int) {
	session.selected = idx
	session.hasNode = false
	edge := session.edges[idx]
	session.layer.highlighted = edge.ID
	session.layer.hasHighlighted = true
	if bound, ok := edge.Bound(); ok {
		// SetViewport redraws with new highlight
		session.layer.SetViewport(session.layer.Viewport().FitBound(bound, DEFAULT_FIT_PADDING))
		return
	}
	session.layer.Redraw()
}

func (session *Session) nodePosition(id NodeID) (orb.Point, bool) {
	for i := range session.edges {
		if session.edges[i].Source == id {
			if len(session.edges[i].Geom) == 0 {
				return orb.Point{}, false
			}
			return session.edges[i].Geom[0], true
		}
	}
	for i := range session.edges {
		if session.edges[i].Target == id {
			geom := session.edges[i].Geom
			if len(geom) == 0 {
				return orb.Point{}, false
			}
			return geom[len(geom)-1], true
		}
	}
	return orb.Point{}, false
}
