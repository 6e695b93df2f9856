// Package mobility defines the MobilityProvider collaborator interface the
// agent uses to learn its own position, plus three implementations: a fixed
// point, a scripted waypoint list, and a recorded .npy trace.
package mobility

import "github.com/vanet/clustering/model"

// Provider returns a node's current position. In the reference module this
// collaborator is an ns3::MobilityModel; here it is whatever the process
// wiring supplies.
type Provider interface {
	Position() model.Vec3
}

// Static always returns the same position.
type Static struct {
	Pos model.Vec3
}

func (s Static) Position() model.Vec3 { return s.Pos }
