package cluster

import (
	"math"
	"testing"
	"time"

	"github.com/vanet/clustering/model"
	"github.com/vanet/clustering/scheduler"
	"github.com/vanet/clustering/simworld"
	"github.com/vanet/clustering/transport/simnet"
)

func TestIsInSectorAheadOfAxis(t *testing.T) {
	origin := model.Vec3{}
	axis := model.Vec3{X: 1, Y: 0}
	ahead := model.Vec3{X: 50, Y: 5}
	behind := model.Vec3{X: -50, Y: 0}
	wide := model.Vec3{X: 10, Y: 80}

	if !isInSector(origin, axis, ahead, math.Pi/3, 100) {
		t.Fatalf("expected point ahead of axis within the sector to qualify")
	}
	if isInSector(origin, axis, behind, math.Pi/3, 100) {
		t.Fatalf("expected point behind the axis to be rejected")
	}
	if isInSector(origin, axis, wide, math.Pi/3, 100) {
		t.Fatalf("expected point outside the angular wedge to be rejected")
	}
}

func TestIsInSectorRespectsRadius(t *testing.T) {
	origin := model.Vec3{}
	axis := model.Vec3{X: 1, Y: 0}
	farButAligned := model.Vec3{X: 500, Y: 0}
	if isInSector(origin, axis, farButAligned, math.Pi/3, 100) {
		t.Fatalf("expected point beyond radius to be rejected")
	}
}

func TestCalcPropagationDelayProportionalToDistance(t *testing.T) {
	source := model.Vec3{}
	direction := model.Vec3{X: 10, Y: 0} // speed 10
	near := calcPropagationDelay(source, model.Vec3{X: 50, Y: 0}, direction)
	far := calcPropagationDelay(source, model.Vec3{X: 100, Y: 0}, direction)
	if near != 5*time.Second {
		t.Fatalf("expected 5s delay at distance 50/speed 10, got %v", near)
	}
	if far != 10*time.Second {
		t.Fatalf("expected 10s delay at distance 100/speed 10, got %v", far)
	}
}

func TestCalcPropagationDelayTakesAbsoluteValueBehindAxis(t *testing.T) {
	source := model.Vec3{}
	direction := model.Vec3{X: 10, Y: 0}
	behind := calcPropagationDelay(source, model.Vec3{X: -50, Y: 0}, direction)
	if behind != 5*time.Second {
		t.Fatalf("expected 5s delay (absolute value) for a point behind the axis, got %v", behind)
	}
}

// TestTransmitPropagationDirectionSchedulesSelfWaveWhenOriginIsSelf covers
// the case where a cluster head is not itself flagged IsStartingNode but the
// wave it is forwarding originated at its own position (as happens when
// findNodeByPosition picks self as the nearest node to an announced
// destination) -- it must still arm its own local propagation instead of
// silently dropping the wave because no cluster member carries the flag.
func TestTransmitPropagationDirectionSchedulesSelfWaveWhenOriginIsSelf(t *testing.T) {
	clock := scheduler.NewSimClock(time.Unix(0, 0))
	bus := simnet.NewBus()
	world := simworld.New()

	a := newTestAgent(clock, bus, world, 1, model.Vec3{X: 0, Y: 0}, false)
	a.current = StateDecidePropagationParam

	start := clock.Now().Add(time.Second)
	a.transmitPropagationDirection(a.self.Position, model.Vec3{X: 10, Y: 0}, start)

	if a.State() != StatePropagationReady {
		t.Fatalf("expected self-originated wave to enter PROPAGATION_READY, got %v", a.State())
	}
	if !a.havePropagationEvent {
		t.Fatalf("expected a local propagation start event to be armed")
	}
}

func TestNearestSectorCellPicksClosestQualifyingCell(t *testing.T) {
	size := 8
	scale := 10.0
	grid := make([][]float32, size)
	for i := range grid {
		grid[i] = make([]float32, size)
	}
	// Two candidate cells ahead of the origin along +X; the nearer one should win.
	grid[size/2][size/2+1] = 2.0 // one cell step right of center -> near
	grid[size/2][size/2+3] = 2.0 // three cell steps right -> far

	chPos := model.Vec3{}
	p0 := model.Vec3{}
	vIn := model.Vec3{X: 10, Y: 0}

	q, found := nearestSectorCell(grid, chPos, p0, vIn, size, scale, math.Pi/3)
	if !found {
		t.Fatalf("expected a qualifying cell")
	}
	if q.X <= 0 || q.X > scale*2 {
		t.Fatalf("expected the nearer candidate cell to be picked, got %+v", q)
	}
}
