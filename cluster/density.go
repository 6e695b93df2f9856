package cluster

import (
	"time"

	"github.com/vanet/clustering/kde"
	"github.com/vanet/clustering/model"
	"github.com/vanet/clustering/wire"
)

// StopClustering is the external call that ends the formation phase,
// matching StopClustering in the reference. It is normally invoked by the
// process driving the agent (cmd/clusternode on a fixed schedule, or
// cmd/clustersim at a configured simulation time).
func (a *Agent) StopClustering() {
	a.dispatch(a.onStopClustering)
}

func (a *Agent) onStopClustering() {
	if a.current != StateClusterUpdate {
		return
	}
	if a.self.Degree == model.Standalone && a.self.IsStartingNode {
		start := a.now().Add(5 * time.Second)
		a.firstPropagationStartingTime = start
		a.haveFirstPropagationStart = true
		a.propagationStartTime = start
		a.transition(StatePropagationReady)
		a.schedulePropagationStart(start)
		return
	}

	a.transition(StateExchangeDistroMap)
	if a.self.Degree != model.ClusterHead {
		// Non-CH, non-starting STANDALONE nodes have nothing to exchange;
		// they simply wait out the decision window like the reference's
		// idle peers do.
		a.sched.Schedule(time.Second, func() {
			a.dispatch(a.onDecidePropagationParam)
		})
		return
	}

	a.computeDistroMap()
	for cid, n := range a.neighborClusterList {
		a.sendDistroMapReliable(cid, n.Info.Address)
	}
	a.sched.Schedule(time.Second, func() {
		a.dispatch(a.onDecidePropagationParam)
	})
}

// computeDistroMap fits a KDE to the current ClusterList (offsets from self)
// and stores the resulting grid on self, matching UpdateDistroMap.
func (a *Agent) computeDistroMap() [][]float32 {
	samples := []kde.Point2{{X: 0, Y: 0}}
	for _, n := range a.clusterList {
		off := n.Info.Position.Sub(a.self.Position)
		samples = append(samples, kde.Point2{X: off.X, Y: off.Y})
	}
	est, err := kde.New(samples)
	if err != nil {
		a.logger.Printf("node %d: kde fit failed: %v", a.id, err)
		grid := make([][]float32, a.params.DistroMapSize)
		for i := range grid {
			grid[i] = make([]float32, a.params.DistroMapSize)
		}
		grid[a.params.DistroMapSize/2][a.params.DistroMapSize/2] = 1.0
		a.distroMap = grid
		return grid
	}
	grid := est.Grid(a.params.DistroMapSize, a.params.DistroMapScale)
	a.distroMap = grid
	return grid
}

// sendDistroMapReliable sends the current DistroMap to peer CH cid and
// retries every MinimumTdmaSlot*1000 until acked, matching SendTo's
// ack-gated retry.
func (a *Agent) sendDistroMapReliable(cid model.ClusterID, peer model.Address) {
	a.ackTable[cid] = false
	a.retryFrame(cid, peer, wire.DistroMap{ClusterID: a.self.ClusterID, Node: a.self, Grid: a.distroMap}.Encode(), wire.TypeDistroMap)
}

func (a *Agent) retryFrame(cid model.ClusterID, peer model.Address, payload []byte, tag wire.TypeTag) {
	if a.ackTable[cid] {
		return
	}
	if err := a.sock.SendTo(peer, payload); err != nil {
		a.logger.Printf("node %d: send to cluster %d: %v", a.id, cid, err)
	}
	retryEvery := scaleDuration(a.params.MinimumTdmaSlot, 1000)
	handle := a.sched.Schedule(retryEvery, func() {
		a.dispatch(func() {
			// DistroMap retries end with EXCHANGE_DISTRO_MAP; an
			// InterClusterPropagation frame is resent until acked.
			if tag == wire.TypeDistroMap && a.current != StateExchangeDistroMap {
				delete(a.pendingRetry, cid)
				return
			}
			a.retryFrame(cid, peer, payload, tag)
		})
	})
	a.pendingRetry[cid] = handle
}

func (a *Agent) cancelRetries() {
	for cid, h := range a.pendingRetry {
		a.sched.Cancel(h)
		delete(a.pendingRetry, cid)
	}
}

func (a *Agent) onDistroMap(from model.Address, f wire.DistroMap) {
	a.neighborDistroMap[f.ClusterID] = f.Grid
	if a.world != nil {
		a.world.UpdateCh(f.ClusterID, f.Node, a.now().UnixNano())
	}
	ack := wire.Ack{ClusterID: a.self.ClusterID, AckedType: wire.TypeDistroMap}
	if err := a.sock.SendTo(f.Node.Address, ack.Encode()); err != nil {
		a.logger.Printf("node %d: ack distro map: %v", a.id, err)
	}
}

func (a *Agent) onAck(f wire.Ack) {
	a.ackTable[f.ClusterID] = true
	if h, ok := a.pendingRetry[f.ClusterID]; ok {
		a.sched.Cancel(h)
		delete(a.pendingRetry, f.ClusterID)
	}
}
