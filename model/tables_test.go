package model

import "testing"

func TestNeighborTableAging(t *testing.T) {
	table := NewNeighborTable()
	table.Upsert(1, NodeInfo{ID: 1}, 0)
	table.Upsert(2, NodeInfo{ID: 2}, 100)

	evicted := table.Age(200, 150)
	if len(evicted) != 1 || evicted[0] != 1 {
		t.Fatalf("expected node 1 evicted, got %v", evicted)
	}
	if _, ok := table.Lookup(1); ok {
		t.Fatalf("node 1 should have been evicted")
	}
	if _, ok := table.Lookup(2); !ok {
		t.Fatalf("node 2 should still be present")
	}
}

func TestNeighborTableMaxID(t *testing.T) {
	table := NewNeighborTable()
	if _, found := table.MaxID(); found {
		t.Fatalf("empty table should report not found")
	}
	table.Upsert(3, NodeInfo{ID: 3}, 0)
	table.Upsert(9, NodeInfo{ID: 9}, 0)
	table.Upsert(5, NodeInfo{ID: 5}, 0)
	max, found := table.MaxID()
	if !found || max != 9 {
		t.Fatalf("expected max id 9, got %v (found=%v)", max, found)
	}
}

func TestClusterTableAging(t *testing.T) {
	table := NewClusterTable()
	table.Upsert(10, NodeInfo{ID: 10}, 0)
	evicted := table.Age(1000, 100)
	if len(evicted) != 1 || evicted[0] != 10 {
		t.Fatalf("expected cluster 10 evicted, got %v", evicted)
	}
}

func TestVec3Arithmetic(t *testing.T) {
	a := Vec3{X: 3, Y: 4, Z: 0}
	if a.Norm() != 5 {
		t.Fatalf("expected norm 5, got %v", a.Norm())
	}
	u := a.Unit()
	if u.Norm() < 0.999 || u.Norm() > 1.001 {
		t.Fatalf("expected unit vector, got norm %v", u.Norm())
	}
	if (Vec3{}).Unit() != (Vec3{}) {
		t.Fatalf("unit of zero vector should be zero vector")
	}
}

func TestDist3UsesFullThreeDimensions(t *testing.T) {
	a := Vec3{X: 0, Y: 0, Z: 0}
	b := Vec3{X: 3, Y: 4, Z: 12}
	if got := Dist3(a, b); got != 13 {
		t.Fatalf("expected 3D distance 13, got %v", got)
	}
	if got := Dist(a, b); got != 5 {
		t.Fatalf("expected planar distance 5, got %v", got)
	}
}
