package cluster

import (
	"github.com/vanet/clustering/model"
	"github.com/vanet/clustering/wire"
)

// inRange applies the range filter every inbound beacon must pass before it
// is allowed to touch any table. This is a physical reception-range check,
// not solver geometry, so it uses the full 3D distance.
func (a *Agent) inRange(pos model.Vec3) bool {
	return model.Dist3(a.self.Position, pos) < a.params.OmniRange
}

func (a *Agent) handleFrame(from model.Address, payload []byte) {
	tag, frame, err := wire.Decode(payload)
	if err != nil {
		a.logger.Printf("node %d: dropping malformed frame from %v: %v", a.id, from, err)
		return
	}
	switch tag {
	case wire.TypeClusterInfo:
		a.onClusterInfo(frame.(wire.ClusterInfo))
	case wire.TypeInitiateCluster:
		a.onInitiateCluster(frame.(wire.InitiateCluster))
	case wire.TypeFormCluster:
		a.onFormCluster(frame.(wire.FormCluster))
	case wire.TypeNeighborClusterInfo:
		a.onNeighborClusterInfo(frame.(wire.NeighborClusterInfo))
	case wire.TypeDistroMap:
		a.onDistroMap(from, frame.(wire.DistroMap))
	case wire.TypeIntraClusterPropagation:
		a.onIntraClusterPropagation(frame.(wire.IntraClusterPropagation))
	case wire.TypeInterClusterPropagation:
		a.onInterClusterPropagation(from, frame.(wire.InterClusterPropagation))
	case wire.TypeInterNodePropagation:
		a.onInterNodePropagation(frame.(wire.InterNodePropagation))
	case wire.TypeAck:
		a.onAck(frame.(wire.Ack))
	default:
		a.logger.Printf("node %d: unknown frame type %d from %v", a.id, tag, from)
	}
}
