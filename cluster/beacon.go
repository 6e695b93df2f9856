package cluster

import (
	"time"

	"github.com/vanet/clustering/model"
	"github.com/vanet/clustering/wire"
)

// onInitTick fires once, TimeWindow after Start, beginning the
// broadcast/retry cycle that drives CLUSTER_INITIALIZATION.
func (a *Agent) onInitTick() {
	if a.current != StateClusterInitialization {
		return
	}
	a.broadcastClusterInfo()
	slot := scaleDuration(a.params.MinimumTdmaSlot, float64(a.params.MaxUes))
	a.sched.Schedule(slot, func() {
		a.dispatch(a.tryHeadElection)
	})
}

// tryHeadElection is InitiateCluster in the reference: retries every TDMA
// slot until this node holds the maximum id among its non-CM neighbors.
func (a *Agent) tryHeadElection() {
	if a.current != StateClusterInitialization {
		return
	}
	if a.hasMaxID() {
		a.self.ClusterID = model.ClusterID(a.id)
		a.self.Degree = model.ClusterHead
		a.touchSelf()
		a.transition(StateClusterHeadElection)
		a.broadcastInitiateCluster()
		slot := scaleDuration(a.params.MinimumTdmaSlot, float64(a.params.MaxUes))
		a.chElectionEvent = a.sched.Schedule(slot, func() {
			a.dispatch(func() {
				if a.current == StateClusterHeadElection {
					a.haveChElectionEvent = false
					a.enterClusterFormation()
				}
			})
		})
		a.haveChElectionEvent = true
		return
	}
	a.broadcastClusterInfo()
	slot := scaleDuration(a.params.MinimumTdmaSlot, float64(a.params.MaxUes))
	a.sched.Schedule(slot, func() {
		a.dispatch(a.tryHeadElection)
	})
}

// hasMaxID reports whether self.id is the largest id among known neighbors
// that are not themselves cluster members of some other CH, matching
// HasMaxId in the reference (CMs are excluded from the comparison since they
// have already deferred to a CH).
func (a *Agent) hasMaxID() bool {
	for id, n := range a.neighborList {
		if n.Info.Degree == model.ClusterMember {
			continue
		}
		if id > a.id {
			return false
		}
	}
	return true
}

// enterClusterFormation is reached once a newly-elected CH's election window
// closes with no higher id heard: it broadcasts FormCluster once, telling
// neighbors it has won and is now forming its cluster, then moves straight
// on to CLUSTER_UPDATE, matching the reference's brief CLUSTER_FORMATION
// dwell between HeadElection and steady-state operation.
func (a *Agent) enterClusterFormation() {
	a.transition(StateClusterFormation)
	a.broadcastFormCluster()
	a.enterClusterUpdate()
}

func (a *Agent) enterClusterUpdate() {
	a.transition(StateClusterUpdate)
	a.scheduleClusterUpdateTick()
}

func (a *Agent) scheduleClusterUpdateTick() {
	a.sched.Schedule(a.params.Interval, func() {
		a.dispatch(a.onClusterUpdateTick)
	})
}

// scheduleNeighborAging runs the table-aging sweep once per Interval for the
// lifetime of the agent, independent of which broadcast state it is in,
// matching the reference's self-rescheduling neighbor-list update event.
// Cancels any previously-armed aging event first: ageTables can itself call
// Start (on CH loss), which arms a fresh aging chain, so without this guard
// every CH-loss/re-init cycle would fork a second, never-cancelled chain
// running alongside the original.
func (a *Agent) scheduleNeighborAging() {
	if a.haveNeighborsUpdate {
		a.sched.Cancel(a.neighborsUpdateEvent)
		a.haveNeighborsUpdate = false
	}
	a.neighborsUpdateEvent = a.sched.Schedule(a.params.Interval, func() {
		a.dispatch(func() {
			a.haveNeighborsUpdate = false
			if a.ageTables() {
				// ageTables already called Start (CH loss -> re-init),
				// which has armed its own aging chain; rearming here
				// would fork a duplicate.
				return
			}
			a.scheduleNeighborAging()
		})
	})
	a.haveNeighborsUpdate = true
}

func (a *Agent) onClusterUpdateTick() {
	if a.current != StateClusterUpdate {
		return
	}
	a.broadcastClusterInfo()
	a.broadcastNeighborClusterInfo()
	a.ageTables()
	a.scheduleClusterUpdateTick()
}

func (a *Agent) broadcastClusterInfo() {
	a.touchSelf()
	frame := wire.ClusterInfo{Node: a.self}
	if err := a.sock.SendBroadcast(frame.Encode()); err != nil {
		a.logger.Printf("node %d: broadcast ClusterInfo: %v", a.id, err)
	}
}

func (a *Agent) broadcastInitiateCluster() {
	a.touchSelf()
	frame := wire.InitiateCluster{ClusterID: a.self.ClusterID, Node: a.self}
	if err := a.sock.SendBroadcast(frame.Encode()); err != nil {
		a.logger.Printf("node %d: broadcast InitiateCluster: %v", a.id, err)
	}
}

func (a *Agent) broadcastFormCluster() {
	a.touchSelf()
	frame := wire.FormCluster{Node: a.self}
	if err := a.sock.SendBroadcast(frame.Encode()); err != nil {
		a.logger.Printf("node %d: broadcast FormCluster: %v", a.id, err)
	}
}

// broadcastNeighborClusterInfo batches one NeighborClusterInfo sub-header per
// known remote CH behind self's own ClusterInfo, flushing the carrier packet
// at wire.MaxCarrierPacket, matching ScheduleTransmit's CLUSTER_UPDATE case.
func (a *Agent) broadcastNeighborClusterInfo() {
	carrier := wire.NewCarrierPacket(func(b []byte) {
		if err := a.sock.SendBroadcast(b); err != nil {
			a.logger.Printf("node %d: broadcast carrier packet: %v", a.id, err)
		}
	})
	a.touchSelf()
	carrier.Add(wire.ClusterInfo{Node: a.self}.Encode())
	for cid, n := range a.neighborClusterList {
		carrier.Add(wire.NeighborClusterInfo{ClusterID: cid, Node: n.Info}.Encode())
	}
	carrier.FlushNow()
}

func (a *Agent) becomeMember(of model.NodeInfo) {
	a.self.ClusterID = of.ClusterID
	a.self.ChAddress = of.Address
	a.self.Degree = model.ClusterMember
	a.touchSelf()
}

func (a *Agent) onClusterInfo(f wire.ClusterInfo) {
	if !a.inRange(f.Node.Position) {
		return
	}
	a.neighborList.Upsert(f.Node.ID, f.Node, a.now().UnixNano())
	if a.self.Degree == model.ClusterHead && f.Node.ClusterID == a.self.ClusterID && f.Node.ID != a.id {
		a.clusterList.Upsert(f.Node.ID, f.Node, a.now().UnixNano())
	} else if f.Node.ClusterID != a.self.ClusterID {
		// a member now advertising another cluster has left this one
		a.clusterList.Remove(f.Node.ID)
	}
	if f.Node.ClusterID != a.self.ClusterID && (f.Node.Degree == model.ClusterHead || f.Node.Degree == model.ClusterMember) {
		a.neighborClusterList.Upsert(f.Node.ClusterID, f.Node, a.now().UnixNano())
		if a.world != nil {
			a.world.UpdateCh(f.Node.ClusterID, f.Node, a.now().UnixNano())
		}
	}

	a.mergeCheck()

	if a.current == StateClusterInitialization && f.Node.Degree == model.ClusterHead && a.self.Degree == model.Standalone {
		a.becomeMember(f.Node)
		a.enterClusterUpdate()
	}
}

func (a *Agent) onInitiateCluster(f wire.InitiateCluster) {
	if !a.inRange(f.Node.Position) {
		return
	}
	a.neighborList.Upsert(f.Node.ID, f.Node, a.now().UnixNano())

	if (a.current == StateClusterInitialization || a.current == StateClusterHeadElection) && f.Node.ID > a.id {
		a.becomeMember(f.Node)
		if a.haveChElectionEvent {
			a.sched.Cancel(a.chElectionEvent)
			a.haveChElectionEvent = false
		}
		a.enterClusterUpdate()
	}
}

func (a *Agent) onFormCluster(f wire.FormCluster) {
	if !a.inRange(f.Node.Position) {
		return
	}
	a.neighborList.Upsert(f.Node.ID, f.Node, a.now().UnixNano())

	if a.current == StateClusterHeadElection && f.Node.Degree == model.ClusterHead {
		a.becomeMember(f.Node)
		if a.haveChElectionEvent {
			a.sched.Cancel(a.chElectionEvent)
			a.haveChElectionEvent = false
		}
		a.enterClusterUpdate()
	}
}

func (a *Agent) onNeighborClusterInfo(f wire.NeighborClusterInfo) {
	if !a.inRange(f.Node.Position) {
		return
	}
	a.neighborClusterList.Upsert(f.ClusterID, f.Node, a.now().UnixNano())
	if a.world != nil {
		a.world.UpdateCh(f.ClusterID, f.Node, a.now().UnixNano())
	}
}

// mergeCheck implements the highest-id tie-break: a STANDALONE node, or a CH
// whose ClusterList has gone empty, defers to the highest-id CH it knows
// about.
func (a *Agent) mergeCheck() {
	if a.self.Degree == model.ClusterMember {
		return
	}
	if a.self.Degree == model.ClusterHead && len(a.clusterList) > 0 {
		return
	}
	var best *model.NeighborInfo
	for _, n := range a.neighborList {
		if n.Info.Degree != model.ClusterHead {
			continue
		}
		if best == nil || n.Info.ID > best.Info.ID {
			nCopy := n
			best = &nCopy
		}
	}
	if best == nil {
		return
	}
	if a.id < best.Info.ID {
		a.becomeMember(best.Info)
		if a.current != StateClusterUpdate {
			a.enterClusterUpdate()
		}
	}
}

// ageTables evicts stale entries from every table and reacts to CH loss /
// empty-neighbor promotion, matching UpdateNeighborList (promotion is skipped
// during a node's first CLUSTER_INITIALIZATION). It returns true
// when it already called Start to re-run CLUSTER_INITIALIZATION after a
// CH-loss demotion -- Start arms its own aging chain, so the caller must not
// also reschedule one.
func (a *Agent) ageTables() bool {
	now := a.now().UnixNano()
	maxAge := int64(2 * a.params.Interval)

	hadCh := false
	if a.self.Degree == model.ClusterMember {
		if _, ok := a.neighborList.Lookup(model.NodeID(a.self.ClusterID)); ok {
			hadCh = true
		}
	}

	a.neighborList.Age(now, maxAge)
	a.clusterList.Age(now, maxAge)
	a.neighborClusterList.Age(now, maxAge)

	if a.self.Degree == model.ClusterMember && hadCh {
		if _, stillThere := a.neighborList.Lookup(model.NodeID(a.self.ClusterID)); !stillThere {
			a.self.Degree = model.Standalone
			a.touchSelf()
			a.current = StateClusterInitialization
			a.previous = StateClusterUpdate
			a.report()
			a.Start()
			return true
		}
	}

	// A node still in its first CLUSTER_INITIALIZATION (it has never left it,
	// so previous is still INIT) is left to head election instead: before
	// the first beacons go out every NeighborList is empty, and promoting
	// here would let whichever node ages first claim CH regardless of id.
	firstInit := a.current == StateClusterInitialization && a.previous == StateClusterInitialization
	if !firstInit && a.self.Degree != model.ClusterHead && len(a.neighborList) == 0 {
		a.self.ClusterID = model.ClusterID(a.id)
		a.self.Degree = model.ClusterHead
		a.touchSelf()
		a.broadcastClusterInfo()
	}
	return false
}

func scaleDuration(d time.Duration, factor float64) time.Duration {
	return time.Duration(float64(d) * factor)
}
