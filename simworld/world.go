// Package simworld holds the process-wide context clustering agents share:
// a registry of live agents by id plus the last-known cluster-head summaries
// agents record as they hear beacons and density maps. Density grids
// themselves are not stored here.
// This generalizes the reference's MetaData singleton (a global registry
// ClusterControlClient::m_metaData) into an explicit value passed to every
// agent constructor, per the redesign note against global mutable state.
package simworld

import (
	"sync"

	"github.com/vanet/clustering/model"
)

// ChSummary is what the world remembers about a cluster head, independent of
// any one agent's own NeighborClusterList.
type ChSummary struct {
	Node model.NodeInfo
	Seen int64 // unix nanoseconds
}

// World is constructed once per process (one real node, or one simulated
// run of many agents) and shared by reference.
type World struct {
	mu       sync.RWMutex
	agents   map[model.NodeID]AgentHandle
	chByID   map[model.ClusterID]ChSummary
}

// AgentHandle is the minimal surface simulation tooling needs to reach into
// a running agent without the simworld package importing cluster (which
// would create an import cycle, since cluster depends on simworld).
type AgentHandle interface {
	ID() model.NodeID
	Snapshot() model.NodeInfo
}

func New() *World {
	return &World{
		agents: make(map[model.NodeID]AgentHandle),
		chByID: make(map[model.ClusterID]ChSummary),
	}
}

func (w *World) Register(a AgentHandle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.agents[a.ID()] = a
}

func (w *World) Unregister(id model.NodeID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.agents, id)
}

func (w *World) Agents() []AgentHandle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]AgentHandle, 0, len(w.agents))
	for _, a := range w.agents {
		out = append(out, a)
	}
	return out
}

func (w *World) Agent(id model.NodeID) (AgentHandle, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.agents[id]
	return a, ok
}

// UpdateCh records the latest known state of a cluster head, the analogue of
// the reference's MetaData "chInfo" registry entry.
func (w *World) UpdateCh(cid model.ClusterID, node model.NodeInfo, now int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chByID[cid] = ChSummary{Node: node, Seen: now}
}

func (w *World) Ch(cid model.ClusterID) (ChSummary, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.chByID[cid]
	return c, ok
}
