// Command ghostmesh starts a single GhostMesh peer node: it loads or mints
// the node's identity, restores its CRDT log from disk, joins the overlay,
// and serves a local dashboard until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/neviim/ghostmesh/internal/ble"
	"github.com/neviim/ghostmesh/internal/gossip"
	"github.com/neviim/ghostmesh/internal/httpapi"
	"github.com/neviim/ghostmesh/internal/identity"
	"github.com/neviim/ghostmesh/internal/node"
	"github.com/neviim/ghostmesh/internal/store"
	"github.com/neviim/ghostmesh/internal/transport"
)

func main() {
	fs := flag.NewFlagSet("ghostmesh", flag.ExitOnError)
	port := fs.Int("port", 0, "port to listen on (0 = ephemeral)")
	fs.IntVar(port, "p", 0, "port to listen on (0 = ephemeral)")
	enableDHT := fs.Bool("dht", false, "enable Kademlia DHT for wide-area peer discovery")
	fs.Parse(os.Args[1:])

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*port, *enableDHT, logger); err != nil {
		logger.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(port int, enableDHT bool, logger *zap.Logger) error {
	id, err := identity.LoadOrCreate(port)
	if err != nil {
		return fmt.Errorf("loading identity: %w", err)
	}
	logger.Info("identity loaded", zap.String("peer_id", id.String()))

	log, err := store.Load(port)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t, err := transport.New(id.PrivateKey, port, logger)
	if err != nil {
		return fmt.Errorf("creating transport: %w", err)
	}
	if err := t.Start(ctx); err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}
	defer t.Stop()

	if enableDHT {
		if err := t.EnableDHT(ctx); err != nil {
			logger.Warn("DHT discovery disabled", zap.Error(err))
		}
	}

	router, err := gossip.New(ctx, t.Host(), logger)
	if err != nil {
		return fmt.Errorf("creating gossip router: %w", err)
	}
	defer router.Stop()

	n := node.New(port, id, log, t, router, logger)

	scanner := ble.New(logger)
	go func() {
		if err := scanner.Run(); err != nil {
			logger.Warn("BLE scanner exited", zap.Error(err))
		}
	}()

	transportPort, err := t.Port()
	if err != nil {
		return fmt.Errorf("resolving bound transport port: %w", err)
	}

	httpServer := httpapi.New(n.Registry(), n.Commands(), "web", logger)
	go func() {
		addr := fmt.Sprintf("0.0.0.0:%d", transportPort+1)
		logger.Info("http surface listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(addr); err != nil {
			logger.Error("http server exited", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return n.Run(ctx, os.Stdin)
}
