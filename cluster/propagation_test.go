package cluster

import (
	"testing"
	"time"

	"github.com/vanet/clustering/model"
)

func TestInterNodeDelayUsesStraightLineDistance(t *testing.T) {
	source := model.Vec3{}
	// Off-axis destination: straight-line distance is 5 (3-4-5 triangle),
	// but the projection onto direction's axis (the x-axis here) is only 3.
	// The reference's InterNodePropagation handler uses the former, not the
	// direction solver's horizontal-projection formula.
	destination := model.Vec3{X: 3, Y: 4}
	direction := model.Vec3{X: 1, Y: 0} // speed 1

	delay := interNodeDelay(source, destination, direction)
	if delay != 5*time.Second {
		t.Fatalf("expected straight-line delay of 5s, got %v", delay)
	}
}
