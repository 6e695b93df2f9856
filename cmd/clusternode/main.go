// Command clusternode runs a single clustering agent against a live UDP
// transport and the real-time scheduler, the runnable analogue of one
// ns-3 ClusterControlClient instance.
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/vanet/clustering/cluster"
	"github.com/vanet/clustering/mobility"
	"github.com/vanet/clustering/model"
	"github.com/vanet/clustering/monitor"
	"github.com/vanet/clustering/scheduler"
	"github.com/vanet/clustering/simworld"
	"github.com/vanet/clustering/transport/udp"
)

func main() {
	nodeID := flag.Uint64("id", 1, "this node's id")
	listenAddr := flag.String("listen", "0.0.0.0:50000", "UDP address to listen on")
	broadcastAddr := flag.String("broadcast", "255.255.255.255:50000", "UDP broadcast address for beacons")
	posX := flag.Float64("x", 0, "initial x position")
	posY := flag.Float64("y", 0, "initial y position")
	startingNode := flag.Bool("starting-node", false, "mark this node as the propagation wave's origin")
	dirX := flag.Float64("dir-x", 10, "initial propagation direction x (used when this node, or as CH one of its members, is the starting node)")
	dirY := flag.Float64("dir-y", 0, "initial propagation direction y (used when this node, or as CH one of its members, is the starting node)")
	clusteringDuration := flag.Duration("clustering-duration", 10*time.Second, "how long to run formation before calling StopClustering")
	reverse := flag.Bool("reverse-propagation", false, "enable the diagnostic oscillation propagation mode")
	monitorAddr := flag.String("monitor-addr", "", "if set, serve a live socket.io status feed on this address")
	debug := flag.Int("debug", 0, "whether to enable debug logging")
	flag.Parse()

	if *debug == 0 {
		log.SetOutput(io.Discard)
	}

	sock, err := udp.New(*listenAddr, *broadcastAddr)
	if err != nil {
		log.Fatalf("clusternode: open socket: %v", err)
	}
	defer sock.Close()

	params := cluster.DefaultParams()
	params.ReversePropagation = *reverse

	world := simworld.New()
	sched := scheduler.NewRealtime()
	mob := mobility.Static{Pos: model.Vec3{X: *posX, Y: *posY}}

	var reporter cluster.Reporter
	if *monitorAddr != "" {
		hub := monitor.NewHub()
		go func() {
			if err := hub.Serve(*monitorAddr); err != nil {
				log.Printf("clusternode: monitor serve: %v", err)
			}
		}()
		reporter = hub
	}

	agent := cluster.NewAgent(cluster.Config{
		ID:               model.NodeID(*nodeID),
		ClusterAddress:   sock.LocalAddress(),
		IsStartingNode:   *startingNode,
		InitialDirection: model.Vec3{X: *dirX, Y: *dirY},
		Inline:           false,
		Params:           params,
		Scheduler:        sched,
		Socket:           sock,
		Mobility:         mob,
		World:            world,
		Reporter:         reporter,
	})

	stop := make(chan struct{})
	go agent.Loop(stop)

	agent.Start()
	sched.Schedule(*clusteringDuration, func() {
		agent.StopClustering()
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	close(stop)
	world.Unregister(agent.ID())
}
