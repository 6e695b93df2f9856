package model

// NeighborTable is the shared implementation behind NeighborList and
// ClusterList: a keyed, age-evicting map of NeighborInfo. NeighborClusterList
// is the ClusterTable below, with the same storage and aging behavior but
// keyed by cluster id.
type NeighborTable map[NodeID]NeighborInfo

func NewNeighborTable() NeighborTable {
	return make(NeighborTable)
}

// Upsert inserts or refreshes the entry for id.
func (t NeighborTable) Upsert(id NodeID, info NodeInfo, now int64) {
	t[id] = NeighborInfo{Info: info, LastSeen: now}
}

func (t NeighborTable) Remove(id NodeID) {
	delete(t, id)
}

func (t NeighborTable) Lookup(id NodeID) (NeighborInfo, bool) {
	v, ok := t[id]
	return v, ok
}

// Age evicts every entry whose LastSeen is older than maxAge and returns the
// ids removed, so callers can react (e.g. demote on CH loss).
func (t NeighborTable) Age(now int64, maxAge int64) []NodeID {
	var evicted []NodeID
	for id, n := range t {
		if n.Expired(now, maxAge) {
			delete(t, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// MaxID returns the highest id currently present, and whether the table was
// non-empty. It counts every entry; the agent's head-election check
// (hasMaxID) skips cluster members and so does its own scan instead.
func (t NeighborTable) MaxID() (NodeID, bool) {
	var max NodeID
	found := false
	for id := range t {
		if !found || id > max {
			max = id
			found = true
		}
	}
	return max, found
}

// ClusterTable is a NeighborClusterList: keyed by the remote cluster's id
// rather than the reporting node's id.
type ClusterTable map[ClusterID]NeighborInfo

func NewClusterTable() ClusterTable {
	return make(ClusterTable)
}

func (t ClusterTable) Upsert(cid ClusterID, info NodeInfo, now int64) {
	t[cid] = NeighborInfo{Info: info, LastSeen: now}
}

func (t ClusterTable) Remove(cid ClusterID) {
	delete(t, cid)
}

func (t ClusterTable) Lookup(cid ClusterID) (NeighborInfo, bool) {
	v, ok := t[cid]
	return v, ok
}

func (t ClusterTable) Age(now int64, maxAge int64) []ClusterID {
	var evicted []ClusterID
	for cid, n := range t {
		if n.Expired(now, maxAge) {
			delete(t, cid)
			evicted = append(evicted, cid)
		}
	}
	return evicted
}
