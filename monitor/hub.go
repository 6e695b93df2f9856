// Package monitor exposes a live feed of cluster-agent state over socket.io,
// generalizing server.go's OnConnect/OnEvent/BroadcastToRoom wiring from
// PSI-matching session messages to cluster telemetry for a visualization
// dashboard. It is a supplemented, non-core surface: agents work correctly
// with no Hub attached.
package monitor

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"

	"github.com/vanet/clustering/cluster"
	"github.com/vanet/clustering/model"
)

const room = "dashboard"

// NodeStatus is the JSON payload pushed to every connected dashboard client
// each time an agent's state changes.
type NodeStatus struct {
	ID        uint64  `json:"id"`
	ClusterID uint64  `json:"cluster_id"`
	Degree    string  `json:"degree"`
	State     string  `json:"state"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// Hub is a cluster.Reporter backed by a socket.io server; attach it to any
// number of agents via their Config.Reporter field.
type Hub struct {
	server *socketio.Server
	mu     sync.RWMutex
	conns  map[string]socketio.Conn
	filter map[string]uint64 // session id -> cluster id the client asked to watch, 0 = all
}

// subscribeRequest is what a dashboard client sends on the "subscribe" event
// to narrow the feed to one cluster.
type subscribeRequest struct {
	ClusterID uint64 `json:"cluster_id"`
}

// parseMessage coerces a socket.io event payload (typically a map[string]any
// decoded off the wire) into a typed struct by round-tripping it through
// encoding/json, mirroring the teacher's utils.ParseMessage helper.
func parseMessage(msg any, ret any) {
	jsonBody, err := json.Marshal(msg)
	if err != nil {
		log.Printf("monitor: marshal client payload: %v", err)
		return
	}
	if err := json.Unmarshal(jsonBody, ret); err != nil {
		log.Printf("monitor: unmarshal client payload: %v", err)
	}
}

// NewHub builds a Hub. Call Serve to start accepting dashboard connections.
func NewHub() *Hub {
	h := &Hub{
		server: socketio.NewServer(&engineio.Options{}),
		conns:  make(map[string]socketio.Conn),
		filter: make(map[string]uint64),
	}
	h.server.OnConnect("/", func(s socketio.Conn) error {
		s.Join(room)
		h.mu.Lock()
		h.conns[s.ID()] = s
		h.mu.Unlock()
		return nil
	})
	h.server.OnEvent("/", "subscribe", func(s socketio.Conn, val any) {
		var req subscribeRequest
		parseMessage(val, &req)
		h.mu.Lock()
		h.filter[s.ID()] = req.ClusterID
		h.mu.Unlock()
	})
	h.server.OnError("/", func(s socketio.Conn, e error) {
		log.Printf("monitor: client error: %v", e)
	})
	h.server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		h.mu.Lock()
		delete(h.filter, s.ID())
		delete(h.conns, s.ID())
		h.mu.Unlock()
		log.Printf("monitor: client disconnected: %s", reason)
	})
	return h
}

// Report implements cluster.Reporter. Clients that subscribed to a specific
// cluster via the "subscribe" event only receive updates for that cluster;
// unsubscribed clients (and those that asked for cluster_id 0) see everything.
func (h *Hub) Report(self model.NodeInfo, state cluster.StateId) {
	status := NodeStatus{
		ID:        uint64(self.ID),
		ClusterID: uint64(self.ClusterID),
		Degree:    self.Degree.String(),
		State:     state.String(),
		X:         self.Position.X,
		Y:         self.Position.Y,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, conn := range h.conns {
		if want, ok := h.filter[id]; ok && want != 0 && want != status.ClusterID {
			continue
		}
		conn.Emit("node_status", status)
	}
}

// Serve runs the socket.io server and blocks serving HTTP on addr until the
// process exits or Serve returns an error.
func (h *Hub) Serve(addr string) error {
	go func() {
		if err := h.server.Serve(); err != nil {
			log.Printf("monitor: socket.io serve: %v", err)
		}
	}()
	defer h.server.Close()

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", h.server)
	log.Printf("monitor: dashboard feed listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
