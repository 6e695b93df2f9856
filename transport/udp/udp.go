// Package udp implements transport.Socket over UDP, the transport the
// reference module runs on, with broadcast and SO_REUSEPORT enabled on the
// raw file descriptor via golang.org/x/sys/unix since net.ListenUDP alone
// cannot set those socket options portably.
package udp

import (
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/vanet/clustering/model"
)

const bufSize = 4096

// Socket is a transport.Socket backed by a single UDP endpoint used for both
// sending and receiving. One Socket models the node's beacon/control radio.
type Socket struct {
	conn         *net.UDPConn
	broadcastTo  *net.UDPAddr
	local        model.Address
	mu           sync.Mutex
	onReceive    func(from model.Address, payload []byte)
	closed       bool
}

// New binds a UDP socket at listenAddr (e.g. "0.0.0.0:50000") and configures
// it to broadcast to broadcastAddr (e.g. "255.255.255.255:50000").
func New(listenAddr, broadcastAddr string) (*Socket, error) {
	laddr, err := net.ResolveUDPAddr("udp4", listenAddr)
	if err != nil {
		return nil, err
	}
	baddr, err := net.ResolveUDPAddr("udp4", broadcastAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, err
	}
	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return nil, err
	}

	s := &Socket{
		conn:        conn,
		broadcastTo: baddr,
		local:       addressOf(conn.LocalAddr()),
	}
	go s.readLoop()
	return s, nil
}

func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
		if sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	// SO_REUSEPORT is best-effort: not every platform in this family supports
	// it identically, and a single-node process does not depend on it.
	if sockErr == syscall.ENOPROTOOPT {
		return nil
	}
	return sockErr
}

func addressOf(addr net.Addr) model.Address {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok || udpAddr.IP.To4() == nil {
		return 0
	}
	ip := udpAddr.IP.To4()
	return model.Address(uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3]))
}

func addressToUDP(addr model.Address, port int) *net.UDPAddr {
	ip := net.IPv4(byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
	return &net.UDPAddr{IP: ip, Port: port}
}

func (s *Socket) readLoop() {
	buf := make([]byte, bufSize)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		s.mu.Lock()
		cb := s.onReceive
		s.mu.Unlock()
		if cb == nil {
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		cb(addressOf(from), payload)
	}
}

func (s *Socket) SendBroadcast(payload []byte) error {
	_, err := s.conn.WriteToUDP(payload, s.broadcastTo)
	return err
}

func (s *Socket) SendTo(peer model.Address, payload []byte) error {
	_, err := s.conn.WriteToUDP(payload, addressToUDP(peer, s.broadcastTo.Port))
	return err
}

func (s *Socket) OnReceive(fn func(from model.Address, payload []byte)) {
	s.mu.Lock()
	s.onReceive = fn
	s.mu.Unlock()
}

func (s *Socket) LocalAddress() model.Address {
	return s.local
}

func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.conn.Close()
}
