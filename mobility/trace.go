package mobility

import (
	"fmt"
	"time"

	"github.com/kshedden/gonpy"

	"github.com/vanet/clustering/model"
)

// Trace replays a recorded mobility trace loaded from a .npy file of shape
// [ticks][nodes][3] (float64), so a batch run can reproduce the exact
// positions of a previously captured scenario instead of only synthetic
// waypoints.
type Trace struct {
	tickPeriod time.Duration
	start      time.Time
	nodeIndex  int
	ticks      int
	nodes      int
	data       []float64 // flattened [ticks][nodes][3]
	now        func() time.Time
}

// LoadTrace reads path (a .npy array of shape [ticks, nodes, 3]) and returns
// a Trace for the given nodeIndex, advancing one row every tickPeriod.
func LoadTrace(path string, nodeIndex int, tickPeriod time.Duration, start time.Time, now func() time.Time) (*Trace, error) {
	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("mobility: open trace: %w", err)
	}
	if len(r.Shape) != 3 || r.Shape[2] != 3 {
		return nil, fmt.Errorf("mobility: trace %s has shape %v, want [ticks,nodes,3]", path, r.Shape)
	}
	data, err := r.GetFloat64()
	if err != nil {
		return nil, fmt.Errorf("mobility: read trace: %w", err)
	}
	return &Trace{
		tickPeriod: tickPeriod,
		start:      start,
		nodeIndex:  nodeIndex,
		ticks:      r.Shape[0],
		nodes:      r.Shape[1],
		data:       data,
		now:        now,
	}, nil
}

func (t *Trace) Position() model.Vec3 {
	if t.ticks == 0 {
		return model.Vec3{}
	}
	elapsed := t.now().Sub(t.start)
	tick := int(elapsed / t.tickPeriod)
	if tick < 0 {
		tick = 0
	}
	if tick >= t.ticks {
		tick = t.ticks - 1
	}
	base := (tick*t.nodes + t.nodeIndex) * 3
	if base+2 >= len(t.data) {
		return model.Vec3{}
	}
	return model.Vec3{X: t.data[base], Y: t.data[base+1], Z: t.data[base+2]}
}
