package trafficviz

import (
	"time"

	"github.com/paulmach/orb"
)

// frameBase is state shared by every frame rendered outside of the session
type frameBase struct {
	layer   *EdgeLayer
	node    orb.Point
	hasNode bool
}

// frameState is state of single frame: base plus colors of one sample
type frameState struct {
	layer   *EdgeLayer
	node    orb.Point
	hasNode bool
	ts      time.Time
}

// frameBase captures layer settings, route and highlighted node
func (session *Session) frameBase() frameBase {
	return frameBase{
		layer:   session.layer.detached(),
		node:    session.highlightedNode,
		hasNode: session.hasNode,
	}
}

// frame colors layer for given sample. Colors live only as long as the returned state
func (base frameBase) frame(sample *DensitySample) frameState {
	layer := *base.layer
	layer.densities = sample.Densities
	layer.colors = nil
	layer.recolor()
	return frameState{
		layer:   &layer,
		node:    base.node,
		hasNode: base.hasNode,
		ts:      sample.Time,
	}
}

// snapshot captures state needed to render given sample with current selection
func (session *Session) snapshot(sampleIdx int) frameState {
	return session.frameBase().frame(&session.samples[sampleIdx])
}

func (state frameState) render(vp Viewport) *ImageCanvas {
	canvas := NewImageCanvas(vp.Width, vp.Height, BackgroundColor)
	state.draw(canvas, vp)
	drawRasterDecorations(canvas, state.ts, state.layer.Scale())
	return canvas
}

// draw paints edges (route included) and highlighted node
func (state frameState) draw(canvas Canvas, vp Viewport) {
	state.layer.viewport = vp
	state.layer.RenderTo(canvas, vp)
	if state.hasNode {
		drawDisk(canvas, vp.Project(state.node), nodeHighlightRadius, HighlightColor)
	}
}
