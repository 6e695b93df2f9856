// Package kde implements the two-dimensional Gaussian kernel density
// estimator each cluster head uses to summarize the spatial distribution of
// its members, adapted from the kdepp::Kde2d template in the original
// ns-3 clustering module.
package kde

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when the sample covariance matrix cannot be
// inverted, matching the reference's "Singular data matrix" failure.
var ErrSingular = errors.New("kde: singular covariance matrix")

// ErrTooFewSamples is returned when fewer than one sample is supplied.
var ErrTooFewSamples = errors.New("kde: at least one sample required")

// Point2 is a single 2-D sample: a cluster member's offset from its CH.
type Point2 struct {
	X, Y float64
}

// Estimator is a fitted 2-D Gaussian KDE: bandwidth matrix, its inverse, and
// the normalizing constant, plus the sample set itself.
type Estimator struct {
	samples []Point2
	h       *mat.Dense // 2x2 bandwidth matrix
	hInv    *mat.Dense // H^-1
	norm    float64    // det(H)^-1/2 * (2*pi)^-1
}

// New fits a bandwidth matrix to samples via Scott's rule (H = cov * N^(-1/3),
// squared per-axis since d=2) and returns a ready-to-evaluate Estimator.
// A single sample is accepted; New does not itself implement the N=1 grid
// fallback — that lives in Grid, since a single-sample density surface is
// not actually Gaussian.
func New(samples []Point2) (*Estimator, error) {
	if len(samples) < 1 {
		return nil, ErrTooFewSamples
	}
	if len(samples) == 1 {
		return &Estimator{samples: samples}, nil
	}

	cov, err := covariance2d(samples)
	if err != nil {
		return nil, err
	}

	// Scott's rule: bandwidth = covariance * n^(-2/(d+4)), d=2.
	scale := math.Pow(float64(len(samples)), -2.0/6.0)
	h := mat.NewDense(2, 2, nil)
	h.Scale(scale, cov)

	return fit(samples, h)
}

// NewWithBandwidth fits an Estimator using an explicit 2x2 bandwidth matrix
// supplied as [h00, h01, h10, h11], bypassing Scott's rule.
func NewWithBandwidth(samples []Point2, bandwidth [4]float64) (*Estimator, error) {
	if len(samples) < 1 {
		return nil, ErrTooFewSamples
	}
	h := mat.NewDense(2, 2, bandwidth[:])
	return fit(samples, h)
}

func fit(samples []Point2, h *mat.Dense) (*Estimator, error) {
	det := mat.Det(h)
	if det == 0 {
		return nil, ErrSingular
	}
	var hInv mat.Dense
	if err := hInv.Inverse(h); err != nil {
		return nil, ErrSingular
	}
	norm := 1.0 / (math.Sqrt(math.Abs(det)) * 2 * math.Pi)
	return &Estimator{samples: samples, h: h, hInv: &hInv, norm: norm}, nil
}

// covariance2d computes the unbiased (N-1 divisor) 2x2 sample covariance
// matrix, matching kdemath::covariance2d in the reference.
func covariance2d(samples []Point2) (*mat.Dense, error) {
	n := float64(len(samples))
	var mx, my float64
	for _, p := range samples {
		mx += p.X
		my += p.Y
	}
	mx /= n
	my /= n

	var sxx, syy, sxy float64
	for _, p := range samples {
		dx, dy := p.X-mx, p.Y-my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	if n <= 1 {
		return nil, ErrTooFewSamples
	}
	sxx /= n - 1
	syy /= n - 1
	sxy /= n - 1

	return mat.NewDense(2, 2, []float64{sxx, sxy, sxy, syy}), nil
}

// Eval returns the raw (un-normalized, not divided by N) sum of Gaussian
// kernel contributions at point p, matching the reference implementation.
func (e *Estimator) Eval(p Point2) float64 {
	if e.h == nil {
		// single-sample estimator: handled by Grid's N=1 fallback, not here.
		return 0
	}
	var sum float64
	for _, s := range e.samples {
		dx := p.X - s.X
		dy := p.Y - s.Y
		// (p-s)^T H^-1 (p-s), H^-1 symmetric 2x2.
		a := e.hInv.At(0, 0)
		b := e.hInv.At(0, 1)
		d := e.hInv.At(1, 1)
		quad := dx*dx*a + 2*dx*dy*b + dy*dy*d
		sum += math.Exp(-0.5 * quad)
	}
	return sum * e.norm
}

// Grid fills a size x size grid of Eval samples, spaced by scale, centered on
// the estimator's origin, matching UpdateDistroMap's cell reconstruction. If
// only one sample was fit, the center cell is set to 1.0 and all others to 0,
// matching the reference's N=1 special case.
func (e *Estimator) Grid(size int, scale float64) [][]float32 {
	grid := make([][]float32, size)
	for i := range grid {
		grid[i] = make([]float32, size)
	}

	if len(e.samples) == 1 {
		grid[size/2][size/2] = 1.0
		return grid
	}

	offset := scale * float64(size) / 2
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			x := scale*float64(j) - offset
			y := scale*float64(i) - offset
			grid[i][j] = float32(e.Eval(Point2{X: x, Y: y}))
		}
	}
	return grid
}
