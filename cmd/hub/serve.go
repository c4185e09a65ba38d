package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/rs/zerolog"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/sagar-a16z/hub/engine"
	"github.com/sagar-a16z/hub/events"
	"github.com/sagar-a16z/hub/gossipnet"
	"github.com/sagar-a16z/hub/identity"
	"github.com/sagar-a16z/hub/metrics"
	"github.com/sagar-a16z/hub/rpc"
	"github.com/sagar-a16z/hub/storage"
	"github.com/sagar-a16z/hub/storage/badgerkv"
	"github.com/sagar-a16z/hub/store"
	"github.com/sagar-a16z/hub/syncengine"
)

// peerBook tracks the RPC addresses of replicas discovered through
// gossiped ContactInfo, so the periodic sync loop has someone to pull
// from without a separate discovery protocol.
type peerBook struct {
	mu    sync.Mutex
	addrs map[string]string // gossip peer id -> rpc http base URL
}

func newPeerBook() *peerBook { return &peerBook{addrs: map[string]string{}} }

func (b *peerBook) add(info gossipnet.ContactInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addrs[info.PeerId] = info.RpcAddr
}

func (b *peerBook) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.addrs))
	for _, addr := range b.addrs {
		out = append(out, addr)
	}
	return out
}

// version is announced in gossiped ContactInfo so peers can log which
// build they're syncing against; bumped by hand, not by a build tag,
// since this project has no release pipeline.
const version = "0.1.0"

// runPeriodicSync reconciles against every peer discovered so far on a
// fixed interval, skipping a peer already mid-sync rather than queuing
// concurrent attempts (syncengine.Engine already rejects those on its own).
func runPeriodicSync(ctx context.Context, syncEng *syncengine.Engine, merger syncengine.Merger, peers *peerBook, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, addr := range peers.snapshot() {
				client := rpc.NewClient(addr, nil)
				syncCtx, cancel := context.WithTimeout(ctx, interval)
				if err := syncEng.Sync(syncCtx, client, merger); err != nil {
					log.Debug().Err(err).Str("peer", addr).Msg("periodic sync failed")
				}
				cancel()
			}
		}
	}
}

func run(cfg Config) error {
	log := newLogger(cfg.LogLevel)
	log.Info().Str("datadir", cfg.DataDir).Msg("hub starting up")

	db, err := badgerkv.Open(cfg.DataDir, cfg.InMemory)
	if err != nil {
		return fmt.Errorf("could not open key-value store: %w", err)
	}
	defer db.Close()

	bus := events.NewBus()
	mc := metrics.NoopCollector{}

	registry := store.NewRegistry(db, bus, mc, store.Limits{})
	idStore := identity.New(db, bus, registry)
	eng := engine.New(registry, idStore, engine.Config{FeatureReactions: cfg.FeatureReactions})
	syncEng := syncengine.New(bus, mc)

	rpcServer := rpc.NewServer(registry, idStore, eng, syncEng, log)
	httpSrv := rpcServer.NewHTTPServer(cfg.HTTPAddr)
	grpcSrv, healthSrv := rpc.NewGRPCHealthServer()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	key, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	if err != nil {
		return fmt.Errorf("could not generate gossip identity key: %w", err)
	}
	node, err := gossipnet.New(ctx, cfg.ListenAddr, key, log, gossipnet.WithCodec(storage.EncodeMessage, storage.DecodeMessage))
	if err != nil {
		return fmt.Errorf("could not start gossip node: %w", err)
	}
	defer node.Close()

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("rpc http surface listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("rpc http surface stopped")
		}
	}()

	grpcLis, err := rpc.ListenGRPC(cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("could not listen for grpc health checks: %w", err)
	}
	go func() {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc health surface listening")
		if err := grpcSrv.Serve(grpcLis); err != nil {
			log.Error().Err(err).Msg("grpc health surface stopped")
		}
	}()

	peers := newPeerBook()
	go func() {
		if err := node.Run(ctx, eng, peers.add); err != nil {
			log.Error().Err(err).Msg("gossip loop stopped")
		}
	}()

	rpcAddr := fmt.Sprintf("http://localhost%s", cfg.HTTPAddr)
	if err := node.PublishContactInfo(ctx, gossipnet.ContactInfo{PeerId: node.ID().String(), RpcAddr: rpcAddr, Version: version}); err != nil {
		log.Warn().Err(err).Msg("could not announce contact info")
	}

	go runPeriodicSync(ctx, syncEng, eng, peers, cfg.SyncInterval, log)

	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	log.Info().Msg("hub ready")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info().Msg("hub shutting down")
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	cancel()
	grpcSrv.GracefulStop()
	return httpSrv.Shutdown(context.Background())
}
