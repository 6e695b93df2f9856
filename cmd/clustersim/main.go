// Command clustersim runs a batch, in-process simulation of N clustering
// agents sharing one simulated clock, the direct analogue of an ns-3
// simulation script driving many ClusterControlClient instances in one
// process. It reports final cluster/propagation state and, on request,
// exports each cluster head's density grid to .npy for offline inspection.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/vanet/clustering/cluster"
	"github.com/vanet/clustering/distromap"
	"github.com/vanet/clustering/mobility"
	"github.com/vanet/clustering/model"
	"github.com/vanet/clustering/scheduler"
	"github.com/vanet/clustering/simworld"
	"github.com/vanet/clustering/transport/simnet"
)

func main() {
	numNodes := flag.Int("nodes", 20, "number of simulated nodes")
	areaSize := flag.Float64("area", 300, "side length, in meters, of the square spawn area")
	seed := flag.Int64("seed", 1, "RNG seed for node placement")
	tickStep := flag.Duration("tick", 50*time.Millisecond, "simulated clock advance per step")
	formationTime := flag.Duration("formation-time", 8*time.Second, "how long to let clustering form before StopClustering")
	horizon := flag.Duration("horizon", 30*time.Second, "total simulated duration")
	reverse := flag.Bool("reverse-propagation", false, "enable the diagnostic oscillation propagation mode")
	exportDir := flag.String("export-dir", "", "if set, write each CH's density grid to <dir>/<run-id>/chNN.npy")
	debug := flag.Int("debug", 0, "whether to enable debug logging")
	flag.Parse()

	if *debug == 0 {
		log.SetOutput(io.Discard)
	}

	runID, err := uuid.NewV4()
	if err != nil {
		log.Fatalf("clustersim: generate run id: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	epoch := time.Unix(0, 0)
	clock := scheduler.NewSimClock(epoch)
	bus := simnet.NewBus()
	world := simworld.New()
	params := cluster.DefaultParams()
	params.ReversePropagation = *reverse

	agents := make([]*cluster.Agent, *numNodes)
	for i := 0; i < *numNodes; i++ {
		id := model.NodeID(i + 1)
		addr := model.Address(i + 1)
		pos := model.Vec3{X: rng.Float64() * *areaSize, Y: rng.Float64() * *areaSize}
		sock := bus.NewSocket(addr)
		mob := mobility.Static{Pos: pos}

		agents[i] = cluster.NewAgent(cluster.Config{
			ID:               id,
			ClusterAddress:   addr,
			IsStartingNode:   i == 0,
			InitialDirection: model.Vec3{X: 10, Y: 0},
			Inline:           true,
			Params:           params,
			Scheduler:        clock,
			Socket:           sock,
			Mobility:         mob,
			World:            world,
		})
	}

	totalSteps := int(*horizon / *tickStep)
	bar := progressbar.Default(int64(totalSteps))

	stopCalled := false
	for step := 0; step < totalSteps; step++ {
		clock.Advance(*tickStep)
		if !stopCalled && clock.Now().Sub(epoch) >= *formationTime {
			for _, a := range agents {
				a.StopClustering()
			}
			stopCalled = true
		}
		bar.Add(1)
	}

	fmt.Printf("\nrun %s: final state after %s simulated\n", runID, *horizon)
	chCount := 0
	for _, a := range agents {
		snap := a.Snapshot()
		fmt.Printf("  node %d: degree=%s cluster=%d state=%s pos=(%.1f,%.1f)\n",
			snap.ID, snap.Degree, snap.ClusterID, a.State(), snap.Position.X, snap.Position.Y)
		if snap.Degree == model.ClusterHead {
			chCount++
		}
	}
	fmt.Printf("total clusters formed: %d\n", chCount)

	if *exportDir != "" {
		outDir := filepath.Join(*exportDir, runID.String())
		if err := os.MkdirAll(outDir, 0777); err != nil {
			log.Fatalf("clustersim: create export dir: %v", err)
		}
		for _, a := range agents {
			grid := a.DistroMapGrid()
			if grid == nil {
				continue
			}
			path := filepath.Join(outDir, fmt.Sprintf("ch%d.npy", a.ID()))
			if err := distromap.Export(path, grid); err != nil {
				log.Printf("clustersim: export %s: %v", path, err)
			}
		}
		fmt.Printf("exported density grids to %s\n", outDir)
	}
}
