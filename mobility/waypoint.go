package mobility

import (
	"time"

	"github.com/vanet/clustering/model"
)

// Waypoint is one scripted position change: hold Pos from T onward, until
// the next waypoint's T.
type Waypoint struct {
	T   time.Duration
	Pos model.Vec3
}

// Scripted advances through a sorted list of Waypoints as wall/sim time
// passes, for unit tests and hand-written scenarios where a trace file is
// unnecessary.
type Scripted struct {
	start     time.Time
	waypoints []Waypoint
	now       func() time.Time
}

// NewScripted builds a Scripted provider. now is called on every Position()
// to determine elapsed time; pass a scheduler.Scheduler.Now in production so
// the provider tracks virtual time correctly under SimClock.
func NewScripted(start time.Time, waypoints []Waypoint, now func() time.Time) *Scripted {
	return &Scripted{start: start, waypoints: waypoints, now: now}
}

func (s *Scripted) Position() model.Vec3 {
	if len(s.waypoints) == 0 {
		return model.Vec3{}
	}
	elapsed := s.now().Sub(s.start)
	pos := s.waypoints[0].Pos
	for _, wp := range s.waypoints {
		if wp.T > elapsed {
			break
		}
		pos = wp.Pos
	}
	return pos
}
