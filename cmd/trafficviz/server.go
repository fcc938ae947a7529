package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/LdDl/trafficviz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// inMessage is what viewer sends over websocket
type inMessage struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Zoom   float64 `json:"zoom"`
	Width  int     `json:"w"`
	Height int     `json:"h"`
	Time   string  `json:"time"`
	Index  *int    `json:"index"`
	EdgeID int64   `json:"edge_id"`
	NodeID int64   `json:"node_id"`
	FPS    float64 `json:"fps"`
}

type viewMessage struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Zoom   float64 `json:"zoom"`
	Width  int     `json:"w"`
	Height int     `json:"h"`
}

// outMessage is what server sends to viewer
type outMessage struct {
	Type    string               `json:"type"`
	Edge    *trafficviz.EdgeInfo `json:"edge,omitempty"`
	Node    *[2]float64          `json:"node,omitempty"`
	Route   []trafficviz.EdgeID  `json:"route,omitempty"`
	View    *viewMessage         `json:"view,omitempty"`
	Pointer bool                 `json:"pointer,omitempty"`
	Playing bool                 `json:"playing,omitempty"`
	Index   int                  `json:"index"`
	Time    string               `json:"time,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (client *wsClient) send(msg outMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	client.writeMu.Lock()
	defer client.writeMu.Unlock()
	return client.conn.WriteMessage(websocket.TextMessage, payload)
}

// server owns the only session. Every access to session goes under mu
type server struct {
	cfg trafficviz.Config

	mu     sync.Mutex
	data   *simulationData
	canvas *trafficviz.ImageCanvas
	player *trafficviz.Player

	// reloadMu serializes reloads: only reload replaces player
	reloadMu sync.Mutex

	clientsMu sync.Mutex
	clients   map[*wsClient]struct{}
	upgrader  websocket.Upgrader
}

func newServer(cfg trafficviz.Config) (*server, error) {
	data, err := loadSimulation(cfg)
	if err != nil {
		return nil, err
	}
	srv := &server{
		cfg:     cfg,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	srv.install(data, data.session.InitialViewport(cfg.Viewport.Width, cfg.Viewport.Height), cfg.FPS)
	return srv, nil
}

// install makes data current. Caller must hold mu (or be the only user of server)
func (srv *server) install(data *simulationData, vp trafficviz.Viewport, fps float64) {
	srv.data = data
	srv.canvas = trafficviz.NewImageCanvas(vp.Width, vp.Height, trafficviz.BackgroundColor)
	data.session.Attach(srv.canvas, vp)
	var player *trafficviz.Player
	player = trafficviz.NewPlayer(data.session, &srv.mu, fps, func(idx int) {
		// runs under mu while player is stepping, so player itself is not asked
		if srv.player != player {
			// replaced by reload and about to be closed
			return
		}
		msg := srv.frameMessage()
		msg.Playing = true
		srv.broadcast(msg)
	})
	srv.player = player
}

// reload loads simulation again and replaces current one keeping view and time step
func (srv *server) reload() error {
	data, err := loadSimulation(srv.cfg)
	if err != nil {
		return err
	}
	srv.reloadMu.Lock()
	defer srv.reloadMu.Unlock()
	// player methods are never called under mu: Pause holds player lock while loop waits for mu
	old := srv.currentPlayer()
	fps := old.FPS()

	srv.mu.Lock()
	vp := srv.data.session.Viewport()
	ts := srv.data.session.Time()
	srv.install(data, vp, fps)
	if idx, ok := data.session.SampleIndex(ts); ok {
		data.session.SetIndex(idx)
	}
	player := srv.player
	srv.mu.Unlock()

	// old player takes mu on every step, so it is closed after mu is released.
	// Once replaced it can't be started again by a late "play"
	wasPlaying := old.Close()
	if current := old.FPS(); current != fps {
		player.SetFPS(current)
	}
	if wasPlaying {
		player.Play()
	}
	srv.broadcast(srv.lockedFrameMessage(wasPlaying))
	return nil
}

func (srv *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Get("/simulations", srv.handleSimulations)
		r.Get("/edges.geojson", srv.handleEdgesGeoJSON)
		r.Get("/edges/{id}", srv.handleEdge)
		r.Get("/nodes/{id}", srv.handleNode)
		r.Get("/timestamps", srv.handleTimestamps)
		r.Get("/route", srv.handleRoute)
	})
	r.Get("/overlay.png", srv.handleOverlay)
	r.Get("/frame.png", srv.handleFrame)
	r.Get("/chart.png", srv.handleChart)
	r.Get("/ws", srv.handleWebsocket)
	return r
}

func (srv *server) run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    srv.cfg.Server.Addr,
		Handler: srv.routes(),
	}
	watcher, err := watchFile(ctx, srv.cfg.Database, func() {
		log.Printf("Database '%s' changed. Reloading...", srv.cfg.Database)
		if err := srv.reload(); err != nil {
			log.Printf("[WARNING]: Can't reload database: %s", err.Error())
		}
	})
	if err != nil {
		log.Printf("[WARNING]: Can't watch database file: %s", err.Error())
	} else {
		defer watcher.Close()
	}
	go func() {
		<-ctx.Done()
		srv.currentPlayer().Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()
	log.Printf("Listening on %s", srv.cfg.Server.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "Can't serve")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps lookup errors into HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, trafficviz.ErrEdgeNotFound),
		errors.Is(err, trafficviz.ErrNodeNotFound),
		errors.Is(err, trafficviz.ErrNoPath),
		errors.Is(err, trafficviz.ErrNoDensitySample):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (srv *server) handleSimulations(w http.ResponseWriter, r *http.Request) {
	srv.mu.Lock()
	simulations := srv.data.simulations
	current := srv.data.simulation
	srv.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"current":     current,
		"simulations": simulations,
	})
}

func (srv *server) handleEdgesGeoJSON(w http.ResponseWriter, r *http.Request) {
	srv.mu.Lock()
	session := srv.data.session
	fc := trafficviz.EdgesFeatureCollection(session.Edges(), session.Current(), session.Layer().Scale())
	srv.mu.Unlock()
	payload, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(payload)
}

func (srv *server) handleEdge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "Bad edge id"))
		return
	}
	srv.mu.Lock()
	info, err := srv.data.session.FindEdge(trafficviz.EdgeID(id))
	srv.mu.Unlock()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (srv *server) handleNode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "Bad node id"))
		return
	}
	srv.mu.Lock()
	pt, err := srv.data.session.NodePosition(trafficviz.NodeID(id))
	srv.mu.Unlock()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":  id,
		"lon": pt.Lon(),
		"lat": pt.Lat(),
		"wkt": trafficviz.PrepareWKTPoint(pt),
	})
}

func (srv *server) handleTimestamps(w http.ResponseWriter, r *http.Request) {
	srv.mu.Lock()
	session := srv.data.session
	samples := session.Samples()
	times := make([]string, len(samples))
	for i := range samples {
		times[i] = samples[i].Time.Format(time.RFC3339)
	}
	response := map[string]interface{}{
		"times":        times,
		"step_seconds": session.SampleStep().Seconds(),
		"current":      session.Index(),
		"summary":      trafficviz.Summarize(session.Current()),
	}
	srv.mu.Unlock()
	writeJSON(w, http.StatusOK, response)
}

func (srv *server) handleRoute(w http.ResponseWriter, r *http.Request) {
	from, errFrom := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	to, errTo := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)
	if errFrom != nil || errTo != nil {
		writeError(w, http.StatusBadRequest, errors.New("Both 'from' and 'to' node ids should be provided"))
		return
	}
	srv.mu.Lock()
	ids, cost, err := srv.data.session.Route(trafficviz.NodeID(from), trafficviz.NodeID(to))
	srv.mu.Unlock()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"edges": ids,
		"cost":  cost,
	})
}

// handleOverlay renders map for arbitrary view and time step without touching the session view
func (srv *server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	srv.mu.Lock()
	defer srv.mu.Unlock()
	session := srv.data.session
	vp := session.Viewport()
	var err error
	if vp, err = viewportFromQuery(query.Get, vp); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	idx := session.Index()
	if t := query.Get("t"); t != "" {
		if idx, err = srv.sampleIndex(t); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
	}
	canvas, err := trafficviz.RenderSample(session, idx, vp)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	canvas.EncodePNG(w)
}

// handleFrame returns what the layer has drawn for the live view. It is empty while zooming
func (srv *server) handleFrame(w http.ResponseWriter, r *http.Request) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	w.Header().Set("Content-Type", "image/png")
	srv.canvas.EncodePNG(w)
}

func (srv *server) handleChart(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	width, _ := strconv.Atoi(query.Get("w"))
	height, _ := strconv.Atoi(query.Get("h"))
	srv.mu.Lock()
	global := srv.data.global
	current := srv.data.session.Time()
	srv.mu.Unlock()
	var buf bytes.Buffer
	err := trafficviz.RenderChart(&buf, global, trafficviz.ChartOptions{
		Column:  query.Get("column"),
		Current: current,
		Width:   width,
		Height:  height,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (srv *server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WARNING]: Can't upgrade connection: %s", err.Error())
		return
	}
	client := &wsClient{conn: conn}
	srv.clientsMu.Lock()
	srv.clients[client] = struct{}{}
	srv.clientsMu.Unlock()
	defer func() {
		conn.Close()
		srv.clientsMu.Lock()
		delete(srv.clients, client)
		srv.clientsMu.Unlock()
	}()

	if err := client.send(srv.lockedFrameMessage(srv.currentPlayer().Playing())); err != nil {
		return
	}
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var msg inMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			client.send(outMessage{Type: "error", Error: "Can't parse message: " + err.Error()})
			continue
		}
		if err := client.send(srv.handleMessage(msg)); err != nil {
			return
		}
	}
}

// handleMessage applies single viewer action to the session and returns the answer
func (srv *server) handleMessage(msg inMessage) outMessage {
	// player takes mu itself
	switch msg.Type {
	case "play":
		player := srv.currentPlayer()
		if msg.FPS > 0 {
			player.SetFPS(msg.FPS)
		}
		player.Play()
		// player could have been replaced by reload meanwhile
		return srv.lockedFrameMessage(srv.currentPlayer().Playing())
	case "pause":
		srv.currentPlayer().Pause()
		return srv.lockedFrameMessage(false)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	session := srv.data.session
	switch msg.Type {
	case "click":
		info, ok := session.SelectAt(orb.Point{msg.X, msg.Y})
		if !ok {
			return outMessage{Type: "no_match"}
		}
		return srv.edgeMessage(info)
	case "move":
		return outMessage{Type: "cursor", Pointer: session.HoverAt(orb.Point{msg.X, msg.Y})}
	case "view":
		vp := session.Viewport()
		vp.Center = orb.Point{msg.Lon, msg.Lat}
		vp.Zoom = msg.Zoom
		if msg.Width > 0 && msg.Height > 0 && (msg.Width != vp.Width || msg.Height != vp.Height) {
			vp = vp.Resize(msg.Width, msg.Height)
			srv.canvas = trafficviz.NewImageCanvas(vp.Width, vp.Height, trafficviz.BackgroundColor)
			session.Attach(srv.canvas, vp)
		} else {
			session.SetViewport(vp)
		}
		return srv.frameMessage()
	case "zoomstart":
		session.ZoomStart()
		return srv.frameMessage()
	case "zoomend":
		session.ZoomEnd()
		return srv.frameMessage()
	case "time":
		var err error
		if msg.Index != nil {
			err = session.SetIndex(*msg.Index)
		} else {
			var idx int
			if idx, err = srv.timeIndex(msg.Time); err == nil {
				err = session.SetIndex(idx)
			}
		}
		if err != nil {
			return outMessage{Type: "error", Error: err.Error()}
		}
		return srv.frameMessage()
	case "highlight":
		if msg.NodeID != 0 {
			pt, err := session.SelectNode(trafficviz.NodeID(msg.NodeID))
			if err != nil {
				return outMessage{Type: "error", Error: err.Error()}
			}
			out := srv.frameMessage()
			out.Type = "node_selected"
			out.Node = &[2]float64{pt.Lon(), pt.Lat()}
			return out
		}
		info, err := session.SelectEdge(trafficviz.EdgeID(msg.EdgeID))
		if err != nil {
			return outMessage{Type: "error", Error: err.Error()}
		}
		return srv.edgeMessage(info)
	case "inverse":
		info, err := session.Inverse()
		if err != nil {
			return outMessage{Type: "error", Error: err.Error()}
		}
		return srv.edgeMessage(info)
	case "clear":
		session.ClearSelection()
		return srv.frameMessage()
	}
	return outMessage{Type: "error", Error: fmt.Sprintf("Unknown message type '%s'", msg.Type)}
}

func (srv *server) currentPlayer() *trafficviz.Player {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.player
}

func (srv *server) lockedFrameMessage(playing bool) outMessage {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	msg := srv.frameMessage()
	msg.Playing = playing
	return msg
}

// frameMessage describes current time step, view and selection. Caller must hold mu
func (srv *server) frameMessage() outMessage {
	session := srv.data.session
	vp := session.Viewport()
	msg := outMessage{
		Type:  "frame",
		Index: session.Index(),
		Time:  session.Time().Format(time.RFC3339),
		View: &viewMessage{
			Lat:    vp.Center.Lat(),
			Lon:    vp.Center.Lon(),
			Zoom:   vp.Zoom,
			Width:  vp.Width,
			Height: vp.Height,
		},
	}
	if info, ok := session.Selected(); ok {
		msg.Edge = &info
	}
	if pt, ok := session.HighlightedNode(); ok {
		msg.Node = &[2]float64{pt.Lon(), pt.Lat()}
	}
	edges := session.Edges()
	for _, idx := range session.RouteIndices() {
		msg.Route = append(msg.Route, edges[idx].ID)
	}
	return msg
}

func (srv *server) edgeMessage(info trafficviz.EdgeInfo) outMessage {
	msg := srv.frameMessage()
	msg.Type = "edge_selected"
	msg.Edge = &info
	return msg
}

// sampleIndex accepts either sample index or timestamp (integers are indices). Caller must hold mu
func (srv *server) sampleIndex(str string) (int, error) {
	session := srv.data.session
	if idx, err := strconv.Atoi(str); err == nil {
		if idx < 0 || idx >= len(session.Samples()) {
			return 0, errors.Wrapf(trafficviz.ErrNoDensitySample, "sample index %d", idx)
		}
		return idx, nil
	}
	return srv.timeIndex(str)
}

// timeIndex finds sample with given timestamp. Caller must hold mu
func (srv *server) timeIndex(str string) (int, error) {
	ts, err := trafficviz.ParseTime(str)
	if err != nil {
		return 0, err
	}
	idx, ok := srv.data.session.SampleIndex(ts)
	if !ok {
		return 0, errors.Wrapf(trafficviz.ErrNoDensitySample, "time step %s", ts.Format(time.RFC3339))
	}
	return idx, nil
}

func (srv *server) broadcast(msg outMessage) {
	srv.clientsMu.Lock()
	defer srv.clientsMu.Unlock()
	for client := range srv.clients {
		if err := client.send(msg); err != nil {
			log.Printf("[WARNING]: Can't send message to client: %s", err.Error())
		}
	}
}

// viewportFromQuery overrides view with lat / lon / zoom / w / h query parameters when present
func viewportFromQuery(get func(string) string, vp trafficviz.Viewport) (trafficviz.Viewport, error) {
	parse := func(name string, target *float64) error {
		str := get(name)
		if str == "" {
			return nil
		}
		value, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return fmt.Errorf("Bad '%s' parameter: '%s'", name, str)
		}
		*target = value
		return nil
	}
	lat, lon := vp.Center.Lat(), vp.Center.Lon()
	width, height := float64(vp.Width), float64(vp.Height)
	for name, target := range map[string]*float64{"lat": &lat, "lon": &lon, "zoom": &vp.Zoom, "w": &width, "h": &height} {
		if err := parse(name, target); err != nil {
			return vp, err
		}
	}
	if width < 1 || height < 1 || width > 8192 || height > 8192 {
		return vp, fmt.Errorf("Bad overlay size %vx%v", width, height)
	}
	vp.Center = orb.Point{lon, lat}
	vp.Width, vp.Height = int(width), int(height)
	return vp, nil
}
