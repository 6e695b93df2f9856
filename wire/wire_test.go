package wire

import (
	"testing"

	"github.com/vanet/clustering/model"
)

func sampleNode() model.NodeInfo {
	return model.NodeInfo{
		Timestamp:      123456789,
		ID:             7,
		ClusterID:      7,
		Position:       model.Vec3{X: 1.5, Y: -2.5, Z: 0},
		Address:        0x0A000001,
		ChAddress:      0x0A000002,
		Degree:         model.ClusterHead,
		IsStartingNode: true,
	}
}

func TestClusterInfoRoundTrip(t *testing.T) {
	in := ClusterInfo{Node: sampleNode()}
	tag, decoded, err := Decode(in.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag != TypeClusterInfo {
		t.Fatalf("tag = %v, want TypeClusterInfo", tag)
	}
	out := decoded.(ClusterInfo)
	if out.Node != in.Node {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out.Node, in.Node)
	}
}

func TestAckRoundTrip(t *testing.T) {
	in := Ack{ClusterID: 42, AckedType: TypeDistroMap}
	tag, decoded, err := Decode(in.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag != TypeAck {
		t.Fatalf("tag = %v, want TypeAck", tag)
	}
	if decoded.(Ack) != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, in)
	}
}

func TestDistroMapRoundTrip(t *testing.T) {
	grid := make([][]float32, DistroMapSize)
	for i := range grid {
		grid[i] = make([]float32, DistroMapSize)
		grid[i][0] = float32(i)
	}
	in := DistroMap{ClusterID: 3, Node: sampleNode(), Grid: grid}
	tag, decoded, err := Decode(in.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag != TypeDistroMap {
		t.Fatalf("tag = %v, want TypeDistroMap", tag)
	}
	out := decoded.(DistroMap)
	for i := range grid {
		if out.Grid[i][0] != grid[i][0] {
			t.Fatalf("row %d mismatch: got %v, want %v", i, out.Grid[i][0], grid[i][0])
		}
	}
}

func TestDistroMapRoundTripNonDefaultSize(t *testing.T) {
	const size = 16
	grid := make([][]float32, size)
	for i := range grid {
		grid[i] = make([]float32, size)
		grid[i][1] = float32(i) * 0.5
	}
	in := DistroMap{ClusterID: 9, Node: sampleNode(), Grid: grid}
	tag, decoded, err := Decode(in.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag != TypeDistroMap {
		t.Fatalf("tag = %v, want TypeDistroMap", tag)
	}
	out := decoded.(DistroMap)
	if len(out.Grid) != size || len(out.Grid[0]) != size {
		t.Fatalf("expected %dx%d grid, got %dx%d", size, size, len(out.Grid), len(out.Grid[0]))
	}
	for i := range grid {
		if out.Grid[i][1] != grid[i][1] {
			t.Fatalf("row %d mismatch: got %v, want %v", i, out.Grid[i][1], grid[i][1])
		}
	}
}

func TestDecodeUnknownType(t *testing.T) {
	if _, _, err := Decode([]byte{0xFF, 0xFF, 0xFF, 0xFF}); err != ErrUnknownType {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	if _, _, err := Decode([]byte{0x01}); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestCarrierPacketFlushesAtThreshold(t *testing.T) {
	var flushes [][]byte
	c := NewCarrierPacket(func(b []byte) {
		flushes = append(flushes, b)
	})
	big := make([]byte, MaxCarrierPacket-10)
	c.Add(big)
	c.Add(make([]byte, 20)) // pushes over the threshold, should flush first
	c.FlushNow()
	if len(flushes) != 2 {
		t.Fatalf("expected 2 flushes, got %d", len(flushes))
	}
	if len(flushes[0]) != len(big) {
		t.Fatalf("first flush should contain only the first frame, got %d bytes", len(flushes[0]))
	}
}
