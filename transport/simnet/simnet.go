// Package simnet implements transport.Socket over an in-process bus, the
// simulated channel cmd/clustersim uses in place of a real UDP network so a
// whole scenario can run inside one process against a scheduler.SimClock.
package simnet

import (
	"sync"

	"github.com/vanet/clustering/model"
)

// Bus delivers broadcast and unicast frames between every Socket registered
// on it, synchronously, matching ns-3's single-process channel model.
type Bus struct {
	mu    sync.Mutex
	nodes map[model.Address]*Socket
}

func NewBus() *Bus {
	return &Bus{nodes: make(map[model.Address]*Socket)}
}

// Socket is one node's endpoint on a Bus.
type Socket struct {
	addr      model.Address
	bus       *Bus
	onReceive func(from model.Address, payload []byte)
}

// NewSocket registers and returns a Socket at addr on bus. addr must be
// unique per bus.
func (b *Bus) NewSocket(addr model.Address) *Socket {
	s := &Socket{addr: addr, bus: b}
	b.mu.Lock()
	b.nodes[addr] = s
	b.mu.Unlock()
	return s
}

func (s *Socket) SendBroadcast(payload []byte) error {
	s.bus.mu.Lock()
	if s.bus.nodes[s.addr] != s {
		// closed: a socket no longer on the bus transmits nothing
		s.bus.mu.Unlock()
		return nil
	}
	peers := make([]*Socket, 0, len(s.bus.nodes))
	for addr, peer := range s.bus.nodes {
		if addr == s.addr {
			continue
		}
		peers = append(peers, peer)
	}
	s.bus.mu.Unlock()
	for _, peer := range peers {
		peer.deliver(s.addr, payload)
	}
	return nil
}

func (s *Socket) SendTo(peerAddr model.Address, payload []byte) error {
	s.bus.mu.Lock()
	if s.bus.nodes[s.addr] != s {
		// closed: a socket no longer on the bus transmits nothing
		s.bus.mu.Unlock()
		return nil
	}
	peer, ok := s.bus.nodes[peerAddr]
	s.bus.mu.Unlock()
	if !ok {
		return nil // peer has left the simulation; matches a dropped unicast
	}
	peer.deliver(s.addr, payload)
	return nil
}

func (s *Socket) deliver(from model.Address, payload []byte) {
	if s.onReceive != nil {
		s.onReceive(from, payload)
	}
}

func (s *Socket) OnReceive(fn func(from model.Address, payload []byte)) {
	s.onReceive = fn
}

func (s *Socket) LocalAddress() model.Address {
	return s.addr
}

func (s *Socket) Close() error {
	s.bus.mu.Lock()
	delete(s.bus.nodes, s.addr)
	s.bus.mu.Unlock()
	return nil
}
