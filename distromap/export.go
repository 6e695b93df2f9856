// Package distromap exports a cluster head's density grid to .npy files for
// offline inspection (e.g. plotting in NumPy/matplotlib), the supplemented
// replacement for the reference's debug-only grid dump.
package distromap

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"
)

// Export writes grid (row-major, sizeXsize) to path as a flat float32 .npy
// array of length size*size; the grid's square shape is implicit in its
// length and is not re-encoded, matching GentableNPIO's flat-array style.
func Export(path string, grid [][]float32) error {
	flat := make([]float32, 0, len(grid)*len(grid))
	for _, row := range grid {
		flat = append(flat, row...)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("distromap: create %s: %w", path, err)
	}
	defer f.Close()
	if err := npyio.Write(f, flat); err != nil {
		return fmt.Errorf("distromap: write %s: %w", path, err)
	}
	return nil
}
