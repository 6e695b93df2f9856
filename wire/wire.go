// Package wire implements the fixed, little-endian binary codec for every
// header the clustering protocol exchanges, plus the 2296-byte carrier-packet
// batching rule used by the periodic update broadcast.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/vanet/clustering/model"
)

// TypeTag identifies a header's wire type, carried as the first field of
// every encoded frame so a receiver can dispatch before fully decoding.
type TypeTag uint32

const (
	TypeClusterInfo TypeTag = iota + 1
	TypeInitiateCluster
	TypeFormCluster
	TypeNeighborClusterInfo
	TypeDistroMap
	TypeIntraClusterPropagation
	TypeInterClusterPropagation
	TypeInterNodePropagation
	TypeAck
)

// MaxCarrierPacket is the maximum size, in bytes, of a batched carrier
// packet before it must be flushed and a new one started.
const MaxCarrierPacket = 2296

// DistroMapSize is the side length DistroMap assumes when it isn't told the
// actual grid dimensions, kept for callers (and tests) that don't have a
// cluster.Params on hand. Agents size their real grids from the configurable
// Params.DistroMapSize and Encode/decodeDistroMap always follow the grid's
// own dimensions rather than this constant.
const DistroMapSize = 32

var ErrShortBuffer = fmt.Errorf("wire: buffer too short")
var ErrUnknownType = fmt.Errorf("wire: unknown type tag")

func putVec3(buf *bytes.Buffer, v model.Vec3) {
	binary.Write(buf, binary.LittleEndian, v.X)
	binary.Write(buf, binary.LittleEndian, v.Y)
	binary.Write(buf, binary.LittleEndian, v.Z)
}

func getVec3(r *bytes.Reader) (model.Vec3, error) {
	var v model.Vec3
	if err := binary.Read(r, binary.LittleEndian, &v.X); err != nil {
		return v, ErrShortBuffer
	}
	if err := binary.Read(r, binary.LittleEndian, &v.Y); err != nil {
		return v, ErrShortBuffer
	}
	if err := binary.Read(r, binary.LittleEndian, &v.Z); err != nil {
		return v, ErrShortBuffer
	}
	return v, nil
}

func putNodeInfo(buf *bytes.Buffer, n model.NodeInfo) {
	binary.Write(buf, binary.LittleEndian, uint64(n.Timestamp))
	binary.Write(buf, binary.LittleEndian, uint64(n.ID))
	binary.Write(buf, binary.LittleEndian, uint64(n.ClusterID))
	buf.WriteByte(byte(n.Degree))
	if n.IsStartingNode {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	putVec3(buf, n.Position)
	binary.Write(buf, binary.LittleEndian, uint32(n.Address))
	binary.Write(buf, binary.LittleEndian, uint32(n.ChAddress))
}

func getNodeInfo(r *bytes.Reader) (model.NodeInfo, error) {
	var n model.NodeInfo
	var ts, id, cid uint64
	if err := binary.Read(r, binary.LittleEndian, &ts); err != nil {
		return n, ErrShortBuffer
	}
	if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
		return n, ErrShortBuffer
	}
	if err := binary.Read(r, binary.LittleEndian, &cid); err != nil {
		return n, ErrShortBuffer
	}
	degree, err := r.ReadByte()
	if err != nil {
		return n, ErrShortBuffer
	}
	starting, err := r.ReadByte()
	if err != nil {
		return n, ErrShortBuffer
	}
	pos, err := getVec3(r)
	if err != nil {
		return n, err
	}
	var addr, chAddr uint32
	if err := binary.Read(r, binary.LittleEndian, &addr); err != nil {
		return n, ErrShortBuffer
	}
	if err := binary.Read(r, binary.LittleEndian, &chAddr); err != nil {
		return n, ErrShortBuffer
	}
	n.Timestamp = int64(ts)
	n.ID = model.NodeID(id)
	n.ClusterID = model.ClusterID(cid)
	n.Degree = model.Degree(degree)
	n.IsStartingNode = starting != 0
	n.Position = pos
	n.Address = model.Address(addr)
	n.ChAddress = model.Address(chAddr)
	return n, nil
}

// ClusterInfo is the periodic beacon carrying a node's full advertised state.
type ClusterInfo struct {
	Node model.NodeInfo
}

func (f ClusterInfo) Encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(TypeClusterInfo))
	putNodeInfo(&buf, f.Node)
	return buf.Bytes()
}

func decodeClusterInfo(r *bytes.Reader) (ClusterInfo, error) {
	n, err := getNodeInfo(r)
	return ClusterInfo{Node: n}, err
}

// InitiateCluster announces a node's claim to become CH of clusterID.
type InitiateCluster struct {
	ClusterID model.ClusterID
	Node      model.NodeInfo
}

func (f InitiateCluster) Encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(TypeInitiateCluster))
	binary.Write(&buf, binary.LittleEndian, uint64(f.ClusterID))
	putNodeInfo(&buf, f.Node)
	return buf.Bytes()
}

func decodeInitiateCluster(r *bytes.Reader) (InitiateCluster, error) {
	var cid uint64
	if err := binary.Read(r, binary.LittleEndian, &cid); err != nil {
		return InitiateCluster{}, ErrShortBuffer
	}
	n, err := getNodeInfo(r)
	return InitiateCluster{ClusterID: model.ClusterID(cid), Node: n}, err
}

// FormCluster confirms a node has become CH and is now forming its cluster.
type FormCluster struct {
	Node model.NodeInfo
}

func (f FormCluster) Encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(TypeFormCluster))
	putNodeInfo(&buf, f.Node)
	return buf.Bytes()
}

func decodeFormCluster(r *bytes.Reader) (FormCluster, error) {
	n, err := getNodeInfo(r)
	return FormCluster{Node: n}, err
}

// NeighborClusterInfo relays what a CH knows about a neighboring CH,
// broadcast during CLUSTER_UPDATE so members learn about adjacent clusters.
type NeighborClusterInfo struct {
	ClusterID model.ClusterID
	Node      model.NodeInfo
}

func (f NeighborClusterInfo) Encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(TypeNeighborClusterInfo))
	binary.Write(&buf, binary.LittleEndian, uint64(f.ClusterID))
	putNodeInfo(&buf, f.Node)
	return buf.Bytes()
}

func decodeNeighborClusterInfo(r *bytes.Reader) (NeighborClusterInfo, error) {
	var cid uint64
	if err := binary.Read(r, binary.LittleEndian, &cid); err != nil {
		return NeighborClusterInfo{}, ErrShortBuffer
	}
	n, err := getNodeInfo(r)
	return NeighborClusterInfo{ClusterID: model.ClusterID(cid), Node: n}, err
}

// DistroMap carries a CH's density grid to a peer CH, reliably.
type DistroMap struct {
	ClusterID model.ClusterID
	Node      model.NodeInfo
	Grid      [][]float32 // rows x cols; agents send Params.DistroMapSize per side
}

// Encode writes the grid at whatever dimensions it actually has (rows x the
// first row's column count), prefixed on the wire so a decoder sizes its
// buffer to match rather than assuming a fixed DistroMapSize; callers running
// with a non-default Params.DistroMapSize round-trip correctly.
func (f DistroMap) Encode() []byte {
	rows := uint32(len(f.Grid))
	cols := uint32(0)
	if rows > 0 {
		cols = uint32(len(f.Grid[0]))
	}
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(TypeDistroMap))
	binary.Write(&buf, binary.LittleEndian, uint64(f.ClusterID))
	putNodeInfo(&buf, f.Node)
	binary.Write(&buf, binary.LittleEndian, rows)
	binary.Write(&buf, binary.LittleEndian, cols)
	for i := uint32(0); i < rows; i++ {
		for j := uint32(0); j < cols; j++ {
			var v float32
			if j < uint32(len(f.Grid[i])) {
				v = f.Grid[i][j]
			}
			binary.Write(&buf, binary.LittleEndian, v)
		}
	}
	return buf.Bytes()
}

func decodeDistroMap(r *bytes.Reader) (DistroMap, error) {
	var cid uint64
	if err := binary.Read(r, binary.LittleEndian, &cid); err != nil {
		return DistroMap{}, ErrShortBuffer
	}
	n, err := getNodeInfo(r)
	if err != nil {
		return DistroMap{}, err
	}
	var rows, cols uint32
	if err := binary.Read(r, binary.LittleEndian, &rows); err != nil {
		return DistroMap{}, ErrShortBuffer
	}
	if err := binary.Read(r, binary.LittleEndian, &cols); err != nil {
		return DistroMap{}, ErrShortBuffer
	}
	grid := make([][]float32, rows)
	for i := range grid {
		grid[i] = make([]float32, cols)
		for j := range grid[i] {
			if err := binary.Read(r, binary.LittleEndian, &grid[i][j]); err != nil {
				return DistroMap{}, ErrShortBuffer
			}
		}
	}
	return DistroMap{ClusterID: model.ClusterID(cid), Node: n, Grid: grid}, nil
}

// IntraClusterPropagation addresses a single starting node within a CH's own
// cluster, naming the wave's start time and direction.
type IntraClusterPropagation struct {
	ClusterID    model.ClusterID
	StartingNode model.NodeID
	StartingTime int64
	Direction    model.Vec3
}

func (f IntraClusterPropagation) Encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(TypeIntraClusterPropagation))
	binary.Write(&buf, binary.LittleEndian, uint64(f.ClusterID))
	binary.Write(&buf, binary.LittleEndian, uint64(f.StartingNode))
	binary.Write(&buf, binary.LittleEndian, uint64(f.StartingTime))
	putVec3(&buf, f.Direction)
	return buf.Bytes()
}

func decodeIntraClusterPropagation(r *bytes.Reader) (IntraClusterPropagation, error) {
	var cid, node, start uint64
	if err := binary.Read(r, binary.LittleEndian, &cid); err != nil {
		return IntraClusterPropagation{}, ErrShortBuffer
	}
	if err := binary.Read(r, binary.LittleEndian, &node); err != nil {
		return IntraClusterPropagation{}, ErrShortBuffer
	}
	if err := binary.Read(r, binary.LittleEndian, &start); err != nil {
		return IntraClusterPropagation{}, ErrShortBuffer
	}
	dir, err := getVec3(r)
	if err != nil {
		return IntraClusterPropagation{}, err
	}
	return IntraClusterPropagation{
		ClusterID:    model.ClusterID(cid),
		StartingNode: model.NodeID(node),
		StartingTime: int64(start),
		Direction:    dir,
	}, nil
}

// InterClusterPropagation is the reliable CH-to-CH unicast naming a target
// cell and direction for the wave to travel toward a neighboring cluster.
type InterClusterPropagation struct {
	ClusterID    model.ClusterID
	StartingTime int64
	Source       model.Vec3
	Destination  model.Vec3
	Direction    model.Vec3
}

func (f InterClusterPropagation) Encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(TypeInterClusterPropagation))
	binary.Write(&buf, binary.LittleEndian, uint64(f.ClusterID))
	binary.Write(&buf, binary.LittleEndian, uint64(f.StartingTime))
	putVec3(&buf, f.Source)
	putVec3(&buf, f.Destination)
	putVec3(&buf, f.Direction)
	return buf.Bytes()
}

func decodeInterClusterPropagation(r *bytes.Reader) (InterClusterPropagation, error) {
	var cid, start uint64
	if err := binary.Read(r, binary.LittleEndian, &cid); err != nil {
		return InterClusterPropagation{}, ErrShortBuffer
	}
	if err := binary.Read(r, binary.LittleEndian, &start); err != nil {
		return InterClusterPropagation{}, ErrShortBuffer
	}
	src, err := getVec3(r)
	if err != nil {
		return InterClusterPropagation{}, err
	}
	dst, err := getVec3(r)
	if err != nil {
		return InterClusterPropagation{}, err
	}
	dir, err := getVec3(r)
	if err != nil {
		return InterClusterPropagation{}, err
	}
	return InterClusterPropagation{
		ClusterID:    model.ClusterID(cid),
		StartingTime: int64(start),
		Source:       src,
		Destination:  dst,
		Direction:    dir,
	}, nil
}

// InterNodePropagation is the single broadcast a node emits when it enters
// PROPAGATION_RUNNING, carrying its position and direction for neighbors to
// test against the forward sector.
type InterNodePropagation struct {
	ClusterID    model.ClusterID
	StartingTime int64
	Position     model.Vec3
	Direction    model.Vec3
}

func (f InterNodePropagation) Encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(TypeInterNodePropagation))
	binary.Write(&buf, binary.LittleEndian, uint64(f.ClusterID))
	binary.Write(&buf, binary.LittleEndian, uint64(f.StartingTime))
	putVec3(&buf, f.Position)
	putVec3(&buf, f.Direction)
	return buf.Bytes()
}

func decodeInterNodePropagation(r *bytes.Reader) (InterNodePropagation, error) {
	var cid, start uint64
	if err := binary.Read(r, binary.LittleEndian, &cid); err != nil {
		return InterNodePropagation{}, ErrShortBuffer
	}
	if err := binary.Read(r, binary.LittleEndian, &start); err != nil {
		return InterNodePropagation{}, ErrShortBuffer
	}
	pos, err := getVec3(r)
	if err != nil {
		return InterNodePropagation{}, err
	}
	dir, err := getVec3(r)
	if err != nil {
		return InterNodePropagation{}, err
	}
	return InterNodePropagation{
		ClusterID:    model.ClusterID(cid),
		StartingTime: int64(start),
		Position:     pos,
		Direction:    dir,
	}, nil
}

// Ack acknowledges receipt of a reliably-delivered frame, naming the type tag
// of what it acknowledges so a sender with multiple outstanding kinds of
// frames to the same peer can tell them apart.
type Ack struct {
	ClusterID model.ClusterID
	AckedType TypeTag
}

func (f Ack) Encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(TypeAck))
	binary.Write(&buf, binary.LittleEndian, uint64(f.ClusterID))
	binary.Write(&buf, binary.LittleEndian, uint32(f.AckedType))
	return buf.Bytes()
}

func decodeAck(r *bytes.Reader) (Ack, error) {
	var cid uint64
	var tag uint32
	if err := binary.Read(r, binary.LittleEndian, &cid); err != nil {
		return Ack{}, ErrShortBuffer
	}
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return Ack{}, ErrShortBuffer
	}
	return Ack{ClusterID: model.ClusterID(cid), AckedType: TypeTag(tag)}, nil
}

// Decode inspects the leading type tag of buf and returns the decoded frame
// as the frame struct its tag names (ClusterInfo, Ack, ...), or
// ErrUnknownType/ErrShortBuffer.
func Decode(buf []byte) (TypeTag, interface{}, error) {
	r := bytes.NewReader(buf)
	var tag uint32
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return 0, nil, ErrShortBuffer
	}
	tt := TypeTag(tag)
	switch tt {
	case TypeClusterInfo:
		v, err := decodeClusterInfo(r)
		return tt, v, err
	case TypeInitiateCluster:
		v, err := decodeInitiateCluster(r)
		return tt, v, err
	case TypeFormCluster:
		v, err := decodeFormCluster(r)
		return tt, v, err
	case TypeNeighborClusterInfo:
		v, err := decodeNeighborClusterInfo(r)
		return tt, v, err
	case TypeDistroMap:
		v, err := decodeDistroMap(r)
		return tt, v, err
	case TypeIntraClusterPropagation:
		v, err := decodeIntraClusterPropagation(r)
		return tt, v, err
	case TypeInterClusterPropagation:
		v, err := decodeInterClusterPropagation(r)
		return tt, v, err
	case TypeInterNodePropagation:
		v, err := decodeInterNodePropagation(r)
		return tt, v, err
	case TypeAck:
		v, err := decodeAck(r)
		return tt, v, err
	default:
		return tt, nil, ErrUnknownType
	}
}

// CarrierPacket accumulates encoded sub-headers into one outbound datagram,
// flushing whenever the next frame would exceed MaxCarrierPacket, matching
// the reference's batched CLUSTER_UPDATE broadcast.
type CarrierPacket struct {
	buf    bytes.Buffer
	Flush  func([]byte)
}

func NewCarrierPacket(flush func([]byte)) *CarrierPacket {
	return &CarrierPacket{Flush: flush}
}

// Add appends an encoded frame, flushing the current packet first if adding
// it would push the packet over MaxCarrierPacket.
func (c *CarrierPacket) Add(frame []byte) {
	if c.buf.Len()+len(frame) > MaxCarrierPacket {
		c.FlushNow()
	}
	c.buf.Write(frame)
}

// FlushNow emits whatever has been accumulated so far, if anything.
func (c *CarrierPacket) FlushNow() {
	if c.buf.Len() == 0 {
		return
	}
	out := make([]byte, c.buf.Len())
	copy(out, c.buf.Bytes())
	c.Flush(out)
	c.buf.Reset()
}
