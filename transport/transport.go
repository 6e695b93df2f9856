// Package transport defines the Socket collaborator interface the clustering
// agent uses for all network I/O, so the core never imports net directly.
package transport

import "github.com/vanet/clustering/model"

// Socket is the transport collaborator: broadcast to the local radio range,
// unicast to a known peer address, and register a receive callback. Transport
// implementations own their own goroutines and may invoke the OnReceive
// callback from them; the agent serializes that work itself (its dispatch
// queue and Loop), so no two callbacks run concurrently against one agent.
type Socket interface {
	SendBroadcast(payload []byte) error
	SendTo(peer model.Address, payload []byte) error
	OnReceive(fn func(from model.Address, payload []byte))
	LocalAddress() model.Address
	Close() error
}
