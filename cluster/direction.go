package cluster

import (
	"math"
	"time"

	"github.com/vanet/clustering/model"
	"github.com/vanet/clustering/wire"
)

// onDecidePropagationParam begins the decision phase once the one-second
// density-exchange window closes, matching DecidePropagationParam.
func (a *Agent) onDecidePropagationParam() {
	if a.current != StateExchangeDistroMap {
		return
	}
	a.cancelRetries()
	a.transition(StateDecidePropagationParam)

	p0, vIn, startingTime, ok := a.resolveStartingPoint()
	if !ok {
		return
	}
	a.firstPropagationStartingTime = startingTime
	a.haveFirstPropagationStart = true
	a.transmitPropagationDirection(p0, vIn, startingTime)
}

// resolveStartingPoint finds the node that originates this CH's wave: self,
// if self.IsStartingNode, or a known cluster member advertising the same
// flag. The reference seeds this decision from an incident report; since
// incident reporting is out of scope here, the seed is instead whichever
// node in the cluster was configured as the starting node, with
// initialDirection supplying the incoming vector a real incident would have
// carried.
func (a *Agent) resolveStartingPoint() (model.Vec3, model.Vec3, time.Time, bool) {
	start := a.now().Add(5 * time.Second)
	if a.self.IsStartingNode {
		return a.self.Position, a.initialDirection, start, true
	}
	for _, n := range a.clusterList {
		if n.Info.IsStartingNode {
			return n.Info.Position, a.initialDirection, start, true
		}
	}
	return model.Vec3{}, model.Vec3{}, time.Time{}, false
}

// transmitPropagationDirection is the direction-solver core: for each
// neighbor cluster's density map, it looks for a high-density cell inside
// the forward sector ahead of p0 along vIn, targets the nearest such cell,
// and reliably unicasts an InterClusterPropagation frame toward it. If the
// starting node is self, it also schedules this node's own local wave.
func (a *Agent) transmitPropagationDirection(p0, vIn model.Vec3, startingTime time.Time) {
	var outgoingSum model.Vec3
	targeted := false
	slot := 0

	for cid, grid := range a.neighborDistroMap {
		chNeighbor, ok := a.neighborClusterList.Lookup(cid)
		if !ok {
			continue
		}
		q, found := nearestSectorCell(grid, chNeighbor.Info.Position, p0, vIn, a.params.DistroMapSize, a.params.DistroMapScale, a.params.PropagationTheta)
		if !found {
			continue
		}
		dir := q.Sub(p0)
		outgoing := dir.Unit().Scale(vIn.Norm())
		outgoingSum = outgoingSum.Add(outgoing)
		targeted = true

		delay := scaleDuration(a.params.MinimumTdmaSlot, float64(a.params.MaxUes)+50*float64(slot))
		frame := wire.InterClusterPropagation{
			ClusterID:    a.self.ClusterID,
			StartingTime: startingTime.UnixNano(),
			Source:       p0,
			Destination:  q,
			Direction:    outgoing,
		}
		a.ackTable[cid] = false
		peerAddr := chNeighbor.Info.Address
		payload := frame.Encode()
		a.sched.Schedule(delay, func() {
			a.dispatch(func() {
				a.retryFrame(cid, peerAddr, payload, wire.TypeInterClusterPropagation)
			})
		})
		slot++
	}

	if targeted {
		a.propagationDirection = outgoingSum.Unit().Scale(vIn.Norm())
	} else {
		a.propagationDirection = vIn
	}

	if a.self.IsStartingNode || p0 == a.self.Position {
		a.propagationStartTime = startingTime
		a.transition(StatePropagationReady)
		a.schedulePropagationStart(startingTime)
		return
	}
	for id, n := range a.clusterList {
		if n.Info.IsStartingNode {
			a.emitIntraClusterPropagation(id, startingTime)
			return
		}
	}
}

func (a *Agent) emitIntraClusterPropagation(startingNode model.NodeID, startingTime time.Time) {
	frame := wire.IntraClusterPropagation{
		ClusterID:    a.self.ClusterID,
		StartingNode: startingNode,
		StartingTime: startingTime.UnixNano(),
		Direction:    a.propagationDirection,
	}
	if err := a.sock.SendBroadcast(frame.Encode()); err != nil {
		a.logger.Printf("node %d: broadcast IntraClusterPropagation: %v", a.id, err)
	}
}

func (a *Agent) onIntraClusterPropagation(f wire.IntraClusterPropagation) {
	if f.StartingNode != a.id || f.ClusterID != a.self.ClusterID {
		return
	}
	if a.current != StateDecidePropagationParam {
		return
	}
	start := time.Unix(0, f.StartingTime)
	a.propagationDirection = f.Direction
	a.propagationStartTime = start
	a.transition(StatePropagationReady)
	a.schedulePropagationStart(start)
}

// onInterClusterPropagation is the receiving CH's half of the exchange: find
// the member of its own cluster (or itself) nearest to the announced
// destination, compute the extra travel delay, and adopt the resulting start
// time if it improves on what this CH already has, re-running the solver
// from that node as the new origin. This is what makes propagation time
// monotonically improvable across the CH graph.
func (a *Agent) onInterClusterPropagation(from model.Address, f wire.InterClusterPropagation) {
	target, ok := a.findNodeByPosition(f.Destination)
	if !ok {
		return
	}
	delay := calcPropagationDelay(f.Source, target.Position, f.Direction)
	newTime := time.Unix(0, f.StartingTime).Add(time.Duration(float64(delay) * 1.3))

	if !a.haveFirstPropagationStart || newTime.Before(a.firstPropagationStartingTime) {
		a.haveFirstPropagationStart = true
		a.firstPropagationStartingTime = newTime
		a.transmitPropagationDirection(target.Position, f.Direction, newTime)
	}

	ack := wire.Ack{ClusterID: a.self.ClusterID, AckedType: wire.TypeInterClusterPropagation}
	if err := a.sock.SendTo(from, ack.Encode()); err != nil {
		a.logger.Printf("node %d: ack inter-cluster propagation: %v", a.id, err)
	}
}

// findNodeByPosition returns the nearest member of self's own cluster
// (including self) to target, matching FindNodeByPosition.
func (a *Agent) findNodeByPosition(target model.Vec3) (model.NodeInfo, bool) {
	best := a.self
	bestDist := model.Dist(a.self.Position, target)
	for _, n := range a.clusterList {
		d := model.Dist(n.Info.Position, target)
		if d < bestDist {
			bestDist = d
			best = n.Info
		}
	}
	return best, true
}

// calcPropagationDelay projects the displacement from source to destination
// onto direction's axis and divides by direction's magnitude (which carries
// the wave's speed), matching CalcPropagationDelay's horizontal-projection
// formula.
func calcPropagationDelay(source, destination, direction model.Vec3) time.Duration {
	speed := direction.Norm2()
	if speed == 0 {
		return 0
	}
	disp := destination.Sub(source)
	axis := model.Vec3{X: direction.X / speed, Y: direction.Y / speed}
	proj := disp.X*axis.X + disp.Y*axis.Y
	seconds := math.Abs(proj / speed)
	return time.Duration(seconds * float64(time.Second))
}

func rotate2D(v model.Vec3, theta float64) model.Vec3 {
	c, s := math.Cos(theta), math.Sin(theta)
	return model.Vec3{X: v.X*c - v.Y*s, Y: v.X*s + v.Y*c}
}

func cross2D(a, b model.Vec3) float64 {
	return a.X*b.Y - a.Y*b.X
}

// isInSector reports whether point lies within radius of origin and inside
// the angular wedge of half-width halfAngle centered on axis, tested via
// signed cross-products against the wedge's two bounding rays.
func isInSector(origin, axis, point model.Vec3, halfAngle, radius float64) bool {
	rel := point.Sub(origin)
	if rel.Norm2() > radius || rel.Norm2() == 0 {
		return false
	}
	if axis.Norm2() == 0 {
		return false
	}
	ray1 := rotate2D(axis, halfAngle)
	ray2 := rotate2D(axis, -halfAngle)
	return cross2D(ray1, rel) <= 0 && cross2D(ray2, rel) >= 0
}

// nearestSectorCell iterates grid cells with density above 1.0, reconstructs
// their world-frame position relative to chPos, keeps only cells inside the
// forward sector ahead of p0 along vIn, and returns the nearest qualifying
// cell.
func nearestSectorCell(grid [][]float32, chPos, p0, vIn model.Vec3, size int, scale, theta float64) (model.Vec3, bool) {
	offset := scale * float64(size) / 2
	var best model.Vec3
	bestDist := math.Inf(1)
	found := false
	for i := 0; i < len(grid); i++ {
		for j := 0; j < len(grid[i]); j++ {
			if grid[i][j] <= 1.0 {
				continue
			}
			cell := model.Vec3{
				X: chPos.X + scale*float64(j) - offset,
				Y: chPos.Y + scale*float64(i) - offset,
				Z: chPos.Z,
			}
			if !isInSector(p0, vIn, cell, theta/2, 100) {
				continue
			}
			d := model.Dist(p0, cell)
			if d < bestDist {
				bestDist = d
				best = cell
				found = true
			}
		}
	}
	return best, found
}
