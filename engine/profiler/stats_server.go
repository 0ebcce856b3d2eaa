package profiler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oloengine/olo/engine/renderer/command"
)

// statsPushInterval is how often each connected client receives a snapshot.
const statsPushInterval = 500 * time.Millisecond

// SceneStats is one scene's command bucket statistics in a Snapshot.
type SceneStats struct {
	Name string `json:"name"`

	Packets         int `json:"packets"`
	BatchedPackets  int `json:"batched_packets"`
	DrawCalls       int `json:"draw_calls"`
	StateChanges    int `json:"state_changes"`
	ShaderSwitches  int `json:"shader_switches"`
	TextureSwitches int `json:"texture_switches"`
}

// NewSceneStats flattens a scene name and its bucket stats into a SceneStats.
//
// Parameters:
//   - name: the scene name
//   - stats: the scene's last-frame bucket statistics
//
// Returns:
//   - SceneStats: the snapshot entry
func NewSceneStats(name string, stats command.Stats) SceneStats {
	return SceneStats{
		Name:            name,
		Packets:         stats.Packets,
		BatchedPackets:  stats.BatchedPackets,
		DrawCalls:       stats.DrawCalls,
		StateChanges:    stats.StateChanges,
		ShaderSwitches:  stats.ShaderSwitches,
		TextureSwitches: stats.TextureSwitches,
	}
}

// Snapshot is one point-in-time stats payload pushed to overlay clients.
type Snapshot struct {
	FPS         float64      `json:"fps"`
	HeapMB      float64      `json:"heap_mb"`
	SysMB       float64      `json:"sys_mb"`
	Goroutines  int          `json:"goroutines"`
	LiveHandles int          `json:"live_handles"`
	Scenes      []SceneStats `json:"scenes"`
}

// SnapshotFunc produces the current stats payload. Called once per push
// interval per connected client set, from the server goroutine.
type SnapshotFunc func() Snapshot

// StatsServer streams engine statistics over a websocket for overlay tooling.
// Clients connect to ws://<addr>/stats and receive a JSON Snapshot every
// statsPushInterval until they disconnect or the server closes.
type StatsServer interface {
	// Addr returns the bound listen address, useful when the configured
	// address used port 0.
	//
	// Returns:
	//   - string: the listener's network address
	Addr() string

	// Close shuts the listener down and disconnects all clients.
	//
	// Returns:
	//   - error: an error from closing the underlying HTTP server
	Close() error
}

type statsServer struct {
	mu       sync.Mutex
	source   SnapshotFunc
	upgrader websocket.Upgrader
	httpSrv  *http.Server
	listener net.Listener
	clients  map[*websocket.Conn]struct{}
	done     chan struct{}
}

var _ StatsServer = &statsServer{}

// NewStatsServer starts a stats streaming server on addr. Pass an addr with
// port 0 to let the OS pick one; read it back with Addr.
//
// Parameters:
//   - addr: the listen address, e.g. "127.0.0.1:8077"
//   - source: the snapshot producer
//
// Returns:
//   - StatsServer: the running server
//   - error: an error if the listener cannot be created
func NewStatsServer(addr string, source SnapshotFunc) (StatsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &statsServer{
		source: source,
		// Overlay tooling connects from file:// or localhost pages, so the
		// origin check is disabled. The server binds to loopback by default.
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		listener: ln,
		clients:  make(map[*websocket.Conn]struct{}),
		done:     make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.handleStats)
	s.httpSrv = &http.Server{Handler: mux}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[Profiler] stats server error: %v", err)
		}
	}()
	go s.broadcast()

	log.Printf("[Profiler] stats server listening on %s", ln.Addr())
	return s, nil
}

func (s *statsServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *statsServer) Close() error {
	close(s.done)

	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

// handleStats upgrades the connection and registers it for broadcasts.
func (s *statsServer) handleStats(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Profiler] stats upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Drain client messages so pings and close frames are processed. The
	// read loop exits on disconnect and unregisters the connection.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// broadcast pushes a snapshot to every connected client on each tick.
func (s *statsServer) broadcast() {
	ticker := time.NewTicker(statsPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if len(s.clients) == 0 {
			s.mu.Unlock()
			continue
		}
		snap := s.snapshot()
		payload, err := json.Marshal(snap)
		if err != nil {
			s.mu.Unlock()
			log.Printf("[Profiler] stats marshal failed: %v", err)
			continue
		}
		for conn := range s.clients {
			conn.SetWriteDeadline(time.Now().Add(statsPushInterval))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				delete(s.clients, conn)
				conn.Close()
			}
		}
		s.mu.Unlock()
	}
}

// snapshot calls the source and fills in the runtime fields the server owns.
// Caller must hold s.mu.
func (s *statsServer) snapshot() Snapshot {
	var snap Snapshot
	if s.source != nil {
		snap = s.source()
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	snap.HeapMB = float64(mem.Alloc) / 1024 / 1024
	snap.SysMB = float64(mem.Sys) / 1024 / 1024
	snap.Goroutines = runtime.NumGoroutine()
	return snap
}
