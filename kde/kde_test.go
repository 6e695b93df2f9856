package kde

import "testing"

func TestNewSingleSample(t *testing.T) {
	est, err := New([]Point2{{X: 1, Y: 2}})
	if err != nil {
		t.Fatalf("New single sample: %v", err)
	}
	grid := est.Grid(4, 1)
	if grid[2][2] != 1.0 {
		t.Fatalf("expected center cell 1.0 fallback, got %v", grid[2][2])
	}
	var sum float32
	for i := range grid {
		for j := range grid[i] {
			if i == 2 && j == 2 {
				continue
			}
			sum += grid[i][j]
		}
	}
	if sum != 0 {
		t.Fatalf("expected all other cells zero, got sum %v", sum)
	}
}

func TestNewTooFewSamples(t *testing.T) {
	if _, err := New(nil); err != ErrTooFewSamples {
		t.Fatalf("expected ErrTooFewSamples, got %v", err)
	}
}

func TestEvalPeaksAtSamples(t *testing.T) {
	samples := []Point2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}
	est, err := New(samples)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	near := est.Eval(Point2{X: 0.5, Y: 0.5})
	far := est.Eval(Point2{X: 500, Y: 500})
	if near <= far {
		t.Fatalf("expected density near the cluster (%v) to exceed density far away (%v)", near, far)
	}
	if far < 0 {
		t.Fatalf("density must be non-negative, got %v", far)
	}
}

func TestGridRawSumNotNormalized(t *testing.T) {
	// With many coincident samples, Eval at the sample point should exceed 1,
	// since the reference does not divide by N.
	samples := make([]Point2, 20)
	for i := range samples {
		samples[i] = Point2{X: 0, Y: 0}
	}
	// Perturb two samples along different axes so the covariance isn't
	// singular (samples that all lie on one line give a singular matrix).
	samples[0] = Point2{X: 0.01, Y: 0}
	samples[1] = Point2{X: 0, Y: 0.01}
	est, err := New(samples)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if v := est.Eval(Point2{X: 0, Y: 0}); v <= 1.0 {
		t.Fatalf("expected un-normalized raw sum > 1 at a dense cluster, got %v", v)
	}
}
