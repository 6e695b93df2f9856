package cluster

import (
	"time"

	"github.com/vanet/clustering/model"
	"github.com/vanet/clustering/wire"
)

// interNodeDelay computes the single-hop propagation delay as straight-line
// distance over the wave's speed (direction's magnitude), matching the
// reference's HandleRead computation for InterNodePropagation, which is
// deliberately not the direction solver's horizontal-projection formula
// (CalcPropagationDelay is explicitly commented out at that call site in
// favor of plain distance/velocity).
func interNodeDelay(source, destination, direction model.Vec3) time.Duration {
	speed := direction.Norm2()
	if speed == 0 {
		return 0
	}
	distance := destination.Sub(source).Norm()
	return time.Duration(distance / speed * float64(time.Second))
}

// schedulePropagationStart arms (replacing any previously armed) the event
// that starts this node's local wave at start, matching the duplicate
// suppression rule: a scheduled start event that has not yet fired is
// cancelled before a new one is installed.
func (a *Agent) schedulePropagationStart(start time.Time) {
	if a.havePropagationEvent {
		a.sched.Cancel(a.propagationEvent)
		a.havePropagationEvent = false
	}
	delay := start.Sub(a.now())
	if delay < 0 {
		delay = 0
	}
	a.propagationEvent = a.sched.Schedule(delay, func() {
		a.dispatch(a.onPropagationStart)
	})
	a.havePropagationEvent = true
}

func (a *Agent) onPropagationStart() {
	a.havePropagationEvent = false
	if a.current != StatePropagationReady {
		return
	}
	if a.params.ReversePropagation {
		a.startReverseOscillation()
		return
	}
	a.transition(StatePropagationRunning)
	a.touchSelf()
	frame := wire.InterNodePropagation{
		ClusterID:    a.self.ClusterID,
		StartingTime: a.now().UnixNano(),
		Position:     a.self.Position,
		Direction:    a.propagationDirection,
	}
	if err := a.sock.SendBroadcast(frame.Encode()); err != nil {
		a.logger.Printf("node %d: broadcast InterNodePropagation: %v", a.id, err)
	}
	a.sched.Schedule(1500*time.Millisecond, func() {
		a.dispatch(func() {
			if a.current == StatePropagationRunning {
				a.transition(StatePropagationComplete)
			}
		})
	})
}

// onInterNodePropagation is the single-hop wave handoff: a receiver accepts
// the frame only if it lies in the sender's forward sector, and if accepted,
// may adopt an earlier start time than whatever it currently has scheduled.
func (a *Agent) onInterNodePropagation(f wire.InterNodePropagation) {
	if !isInSector(f.Position, f.Direction, a.self.Position, a.params.PropagationTheta, a.params.BfRange) {
		return
	}
	senderStart := time.Unix(0, f.StartingTime)
	newStart := senderStart.Add(interNodeDelay(f.Position, a.self.Position, f.Direction))

	now := a.now()
	if a.havePropagationEvent && now.Before(a.propagationStartTime) && newStart.Before(a.propagationStartTime) {
		if a.propagationDirection == (model.Vec3{}) {
			// fan the wave out toward this receiver rather than simply
			// repeating the sender's own direction.
			a.propagationDirection = a.self.Position.Sub(f.Position).Unit().Scale(f.Direction.Norm())
		}
		a.propagationStartTime = newStart
		a.schedulePropagationStart(newStart)
		return
	}
	if !a.havePropagationEvent && a.current == StateDecidePropagationParam {
		a.propagationDirection = f.Direction
		a.propagationStartTime = newStart
		a.transition(StatePropagationReady)
		a.schedulePropagationStart(newStart)
	}
}

// startReverseOscillation is the REVERSE_PROPAGATION diagnostic mode: rather
// than broadcasting once, the node toggles an Activate/Inactivate state on a
// 1s-on/19s-off cycle, offset from firstPropagationStartingTime. The offset
// computation wraps by adding 20s until positive, reproducing the
// reference's off-by-one wraparound intentionally: this mode is diagnostic
// and off by default (Params.ReversePropagation).
func (a *Agent) startReverseOscillation() {
	offset := a.now().Sub(a.firstPropagationStartingTime) + 3*time.Second
	for offset < 0 {
		offset += 20 * time.Second
	}
	a.transition(StatePropagationRunning)
	a.sched.Schedule(offset, func() {
		a.dispatch(a.activateNode)
	})
}

func (a *Agent) activateNode() {
	if a.current != StatePropagationRunning {
		return
	}
	a.reverseActive = true
	a.sched.Schedule(time.Second, func() {
		a.dispatch(a.inactivateNode)
	})
}

func (a *Agent) inactivateNode() {
	a.reverseActive = false
	if a.current != StatePropagationRunning {
		return
	}
	a.sched.Schedule(19*time.Second, func() {
		a.dispatch(a.activateNode)
	})
}
