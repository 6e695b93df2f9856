// Package cluster implements the per-node clustering agent: the state
// machine, neighbor/cluster/neighbor-cluster tables, beacon loop, density
// exchange, direction solver, and propagation scheduler. It is the
// generalization of the teacher's state_machine package from a fixed
// eleven-state PSI-matching protocol to this module's nine-state clustering
// protocol, and of cluster-control-client.cc's single ns-3 Application into
// an agent driven by the scheduler/transport/mobility collaborator
// interfaces defined alongside it.
package cluster

import (
	"log"
	"time"

	"github.com/vanet/clustering/model"
	"github.com/vanet/clustering/mobility"
	"github.com/vanet/clustering/scheduler"
	"github.com/vanet/clustering/simworld"
	"github.com/vanet/clustering/transport"
)

// Reporter receives a push notification whenever an agent's advertised state
// or protocol state changes, the hook the live monitor dashboard attaches to.
type Reporter interface {
	Report(self model.NodeInfo, state StateId)
}

// Agent is one node's clustering protocol instance.
type Agent struct {
	id       model.NodeID
	params   Params
	sched    scheduler.Scheduler
	sock     transport.Socket
	mobility mobility.Provider
	world    *simworld.World
	reporter Reporter
	logger   *log.Logger

	// inline, when true, runs dispatched callbacks synchronously on the
	// calling goroutine. The simulated scheduler already drives every agent
	// from one goroutine, so the agent needs no further serialization; a
	// real-time scheduler's timers and a UDP socket's read loop each run on
	// their own goroutine, so inline is false there and work is marshaled
	// onto the single Loop goroutine instead, generalizing the teacher's
	// mutex-guarded single-writer ServerStateMachine into a channel-fed one.
	inline bool
	queue  chan func()

	current  StateId
	previous StateId
	stateMap States

	self model.NodeInfo

	neighborList        model.NeighborTable
	clusterList         model.NeighborTable
	neighborClusterList model.ClusterTable
	neighborDistroMap   map[model.ClusterID][][]float32
	distroMap           [][]float32
	ackTable            map[model.ClusterID]bool
	pendingRetry        map[model.ClusterID]scheduler.EventID

	chElectionEvent        scheduler.EventID
	haveChElectionEvent    bool
	neighborsUpdateEvent   scheduler.EventID
	haveNeighborsUpdate    bool
	propagationEvent       scheduler.EventID
	havePropagationEvent   bool

	firstPropagationStartingTime time.Time
	haveFirstPropagationStart    bool
	propagationDirection         model.Vec3
	propagationStartTime         time.Time
	initialDirection             model.Vec3
	reverseActive                bool
}

// Config bundles the construction-time parameters for NewAgent.
type Config struct {
	ID               model.NodeID
	ClusterAddress   model.Address
	IsStartingNode   bool
	InitialDirection model.Vec3
	Inline           bool
	Params         Params
	Scheduler      scheduler.Scheduler
	Socket         transport.Socket
	Mobility       mobility.Provider
	World          *simworld.World
	Reporter       Reporter
	Logger         *log.Logger
}

// NewAgent constructs an agent at StateClusterInitialization, registers it
// with the world, and wires the socket's receive callback. It does not yet
// broadcast anything; call Start for that.
func NewAgent(cfg Config) *Agent {
	if err := cfg.Params.Validate(); err != nil {
		panic(err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	a := &Agent{
		id:       cfg.ID,
		params:   cfg.Params,
		sched:    cfg.Scheduler,
		sock:     cfg.Socket,
		mobility: cfg.Mobility,
		world:    cfg.World,
		reporter: cfg.Reporter,
		logger:   logger,
		inline:   cfg.Inline,

		current:  StateClusterInitialization,
		previous: StateClusterInitialization,
		stateMap: buildStates(),

		neighborList:        model.NewNeighborTable(),
		clusterList:         model.NewNeighborTable(),
		neighborClusterList: model.NewClusterTable(),
		neighborDistroMap:   make(map[model.ClusterID][][]float32),
		ackTable:            make(map[model.ClusterID]bool),
		pendingRetry:        make(map[model.ClusterID]scheduler.EventID),
		initialDirection:    cfg.InitialDirection,
	}
	if !a.inline {
		a.queue = make(chan func(), 256)
	}

	a.self = model.NodeInfo{
		Timestamp:      a.sched.Now().UnixNano(),
		ID:             cfg.ID,
		ClusterID:      model.ClusterID(cfg.ID),
		Position:       cfg.Mobility.Position(),
		Address:        cfg.ClusterAddress,
		ChAddress:      cfg.ClusterAddress,
		Degree:         model.Standalone,
		IsStartingNode: cfg.IsStartingNode,
	}

	if a.world != nil {
		a.world.Register(a)
	}
	a.sock.OnReceive(func(from model.Address, payload []byte) {
		a.dispatch(func() { a.handleFrame(from, payload) })
	})
	return a
}

// ID implements simworld.AgentHandle.
func (a *Agent) ID() model.NodeID { return a.id }

// Snapshot implements simworld.AgentHandle.
func (a *Agent) Snapshot() model.NodeInfo { return a.self }

// State returns the agent's current protocol state, for reporting tools.
func (a *Agent) State() StateId { return a.current }

// PreviousState returns the state the agent transitioned out of most
// recently, for reporting tools and tests that need to confirm a transient
// state (e.g. CLUSTER_FORMATION) was actually entered.
func (a *Agent) PreviousState() StateId { return a.previous }

// DistroMapGrid returns the density grid this agent last computed (nil
// unless it has been a CH through EXCHANGE_DISTRO_MAP at least once), for
// the distromap export tool.
func (a *Agent) DistroMapGrid() [][]float32 { return a.distroMap }

func (a *Agent) dispatch(fn func()) {
	if a.inline {
		fn()
		return
	}
	a.queue <- fn
}

// Loop drains dispatched callbacks until stop is closed. Only meaningful
// when the agent was built with Inline: false (real-time operation); an
// inline agent needs no loop since every callback already runs synchronously
// where it was scheduled.
func (a *Agent) Loop(stop <-chan struct{}) {
	for {
		select {
		case fn := <-a.queue:
			fn()
		case <-stop:
			return
		}
	}
}

// Start schedules the first CLUSTER_INITIALIZATION tick.
func (a *Agent) Start() {
	a.sched.Schedule(a.params.TimeWindow, func() {
		a.dispatch(a.onInitTick)
	})
	a.scheduleNeighborAging()
}

func (a *Agent) transition(next StateId) {
	a.previous = a.current
	a.current = next
	a.logger.Printf("node %d: %s -> %s", a.id, a.previous, a.current)
	if state, ok := a.stateMap[next]; ok && state.Action != nil {
		state.Action.Execute(a)
	}
	a.report()
}

func (a *Agent) report() {
	if a.reporter != nil {
		a.reporter.Report(a.self, a.current)
	}
}

func (a *Agent) now() time.Time { return a.sched.Now() }

func (a *Agent) touchSelf() {
	a.self.Timestamp = a.now().UnixNano()
	a.self.Position = a.mobility.Position()
}

func buildStates() States {
	return States{
		StateClusterInitialization: {Action: noopAction{}},
		StateClusterHeadElection:   {Action: noopAction{}},
		StateClusterFormation:      {Action: noopAction{}},
		StateClusterUpdate:         {Action: noopAction{}},
		StateExchangeDistroMap:     {Action: noopAction{}},
		StateDecidePropagationParam: {Action: noopAction{}},
		StatePropagationReady:      {Action: noopAction{}},
		StatePropagationRunning:    {Action: noopAction{}},
		StatePropagationComplete:   {Action: noopAction{}},
	}
}

// noopAction is the entry action for states whose real work happens in the
// scheduled callback that triggers the transition (e.g. onInitTick) rather
// than uniformly on entry; the States table is still kept, in the teacher's
// style, as documentation of legal states even though most actions here are
// no-ops by design.
type noopAction struct{}

func (noopAction) Execute(a *Agent) {}
