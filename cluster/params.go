package cluster

import (
	"fmt"
	"time"
)

// maxUesLimit is the hard ceiling on Params.MaxUes, matching the reference's
// NS_FATAL_ERROR guard in ClusterControlClient::StartApplication.
const maxUesLimit = 10000

// Params holds the tunable protocol constants, matching the attributes
// registered by ClusterControlClient::GetTypeId in the reference module.
type Params struct {
	MaxUes          int           // maximum participating nodes, used for TDMA slot spacing
	PacketSize      int           // nominal payload size; informational only here
	MinimumTdmaSlot time.Duration // base TDMA slot width
	Interval        time.Duration // beacon / CLUSTER_UPDATE period
	TimeWindow      time.Duration // CLUSTER_INITIALIZATION dwell before first InitiateCluster
	OmniRange       float64       // beacon reception range
	BfRange         float64       // inter-node propagation acceptance range
	PropagationTheta float64      // radians: inter-node acceptance half-angle; the direction solver uses half of it
	DistroMapSize   int
	DistroMapScale  float64
	ReversePropagation bool // enables the diagnostic oscillation mode
}

// Validate fails fast on a configuration the protocol cannot run with,
// matching the reference's StartApplication guard against MaxUes above
// 10000 (a value that large no longer fits the TDMA slot-spacing scheme).
func (p Params) Validate() error {
	if p.MaxUes > maxUesLimit {
		return fmt.Errorf("cluster: MaxUes %d exceeds limit of %d", p.MaxUes, maxUesLimit)
	}
	return nil
}

// DefaultParams mirrors the reference's default attribute values.
func DefaultParams() Params {
	return Params{
		MaxUes:           100,
		PacketSize:       512,
		MinimumTdmaSlot:  time.Millisecond,
		Interval:         300 * time.Millisecond,
		TimeWindow:       time.Second,
		OmniRange:        100,
		BfRange:          100,
		PropagationTheta: 1.0471975511965976, // pi/3
		DistroMapSize:    32,
		DistroMapScale:   5,
		ReversePropagation: false,
	}
}
