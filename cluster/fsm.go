package cluster

// StateId identifies one of the nine protocol states.
type StateId int

// EventId identifies a transition trigger. Unlike the teacher's
// request/response protocol, most events here are messages off the wire or
// scheduler ticks rather than internally-polled conditions; the agent's
// callbacks drive every transition directly and do not reference these
// values.
type EventId int

const (
	StateClusterInitialization StateId = iota
	StateClusterHeadElection
	StateClusterFormation
	StateClusterUpdate
	StateExchangeDistroMap
	StateDecidePropagationParam
	StatePropagationReady
	StatePropagationRunning
	StatePropagationComplete
)

func (s StateId) String() string {
	switch s {
	case StateClusterInitialization:
		return "CLUSTER_INITIALIZATION"
	case StateClusterHeadElection:
		return "CLUSTER_HEAD_ELECTION"
	case StateClusterFormation:
		return "CLUSTER_FORMATION"
	case StateClusterUpdate:
		return "CLUSTER_UPDATE"
	case StateExchangeDistroMap:
		return "EXCHANGE_DISTRO_MAP"
	case StateDecidePropagationParam:
		return "DECIDE_PROPAGATION_PARAM"
	case StatePropagationReady:
		return "PROPAGATION_READY"
	case StatePropagationRunning:
		return "PROPAGATION_RUNNING"
	case StatePropagationComplete:
		return "PROPAGATION_COMPLETE"
	default:
		return "UNKNOWN"
	}
}

const (
	EventTick EventId = iota
	EventInitiateClusterRecv
	EventClusterInfoRecv
	EventFormClusterRecv
	EventHeadElectionWon
	EventStopClustering
	EventDistroMapExchanged
	EventDirectionDecided
	EventPropagationStartDue
	EventPropagationWindowElapsed
)

// Action runs whenever the agent enters the associated state.
type Action interface {
	Execute(a *Agent)
}

// Events names which event ids are meaningful to log against a state; kept
// for the same reason the teacher keeps it (a readable table of legal
// transitions), even though this agent's dispatch is callback-driven rather
// than condition-polled.
type Events map[EventId]StateId

// State binds a state to the action that runs on entry and the events it
// recognizes.
type State struct {
	Action Action
	Events Events
}

// States maps each state to its entry action, built once in NewAgent; the
// Events of each entry are left empty.
type States map[StateId]State
