package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/blockflow"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/chainindex"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/database"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/genesis"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/handler"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/mempool"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/miner"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/peer"
	"github.com/blockflow-labs/blockflow-node/foundation/blockchain/syncproto"
	"github.com/blockflow-labs/blockflow-node/foundation/events"
	"github.com/blockflow-labs/blockflow-node/foundation/validate"
)

// nodeConfig is the single immutable configuration value threaded through
// construction. Defaults come from the conf tags; environment variables
// and flags under the BLOCKFLOW prefix override them.
type nodeConfig struct {
	MainGroup   int           `conf:"default:0" validate:"gte=0"`
	BrokerFrom  int           `conf:"default:0" validate:"gte=0"`
	BrokerUntil int           `conf:"default:1" validate:"gt=0"`
	Beneficiary string        `conf:"default:0xF01813E4B85e178A83e29B8E7bF26BD830a25f32" validate:"required"`
	GenesisPath string        `conf:"default:zblock/genesis.json" validate:"required"`
	DBPath      string        `conf:"default:zblock/chains/" validate:"required"`
	SyncListen  string        `conf:"default:0.0.0.0:9080" validate:"required"`
	SyncPeers   []string
	SyncPoll    time.Duration `conf:"default:5s"`
	Mine        bool          `conf:"default:true"`
}

func serveCmd(log *zap.SugaredLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the broker node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(log)
		},
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Node nodeConfig
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "blockflow broker node",
		},
	}

	const prefix = "BLOCKFLOW"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	if err := validate.Check(cfg.Node); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	log.Infow("starting node", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	ev := eventHandler(log)

	// =========================================================================
	// Genesis and chain grid

	gen, err := genesis.Load(cfg.Node.GenesisPath)
	if err != nil {
		return fmt.Errorf("loading genesis: %w", err)
	}

	beneficiary, err := database.ToAccountID(cfg.Node.Beneficiary)
	if err != nil {
		return fmt.Errorf("parsing beneficiary: %w", err)
	}

	broker, err := chainindex.NewBrokerConfig(uint16(cfg.Node.BrokerFrom), uint16(cfg.Node.BrokerUntil), gen.GroupCount)
	if err != nil {
		return fmt.Errorf("constructing broker config: %w", err)
	}

	bf := blockflow.New(gen, ev)
	genHashes := blockflow.GenesisHashes(gen)
	if err := bf.Genesis(genHashes); err != nil {
		return fmt.Errorf("seeding genesis: %w", err)
	}

	// =========================================================================
	// Handler mesh, body store, miner

	mp, err := mempool.New()
	if err != nil {
		return fmt.Errorf("constructing mempool: %w", err)
	}

	handlers := handler.NewAllHandlers(bf, broker, mp, ev)
	if err := handlers.SeedGenesis(genHashes); err != nil {
		return fmt.Errorf("seeding chain handlers: %w", err)
	}

	bodies := syncproto.NewMemoryBodyStore()
	handlers.OnBlockStored(bodies.Record)

	// fatal carries storage corruption out of the persistence hook; the
	// shutdown select below turns it into node termination.
	fatal := make(chan error, 1)

	persister, err := newBlockPersister(cfg.Node.DBPath, gen, database.NewMemoryKVStore(), fatal, log)
	if err != nil {
		return fmt.Errorf("constructing block persister: %w", err)
	}
	handlers.OnBlockStored(persister.OnBlockStored)

	var m *miner.Miner
	if cfg.Node.Mine {
		bus := events.New()
		m, err = miner.New(uint16(cfg.Node.MainGroup), beneficiary, gen, handlers, bus, ev)
		if err != nil {
			return fmt.Errorf("constructing miner: %w", err)
		}
		handlers.Flow.OnBlockAdded(m.OnBlockAdded)
	}

	handlers.Start()
	defer handlers.Shutdown()

	if m != nil {
		m.Start()
		defer m.Shutdown()
	}

	// =========================================================================
	// Sync protocol: inbound server plus one session per known peer

	mux := http.NewServeMux()
	mux.Handle("/v1/sync", syncproto.NewServer(gen.ChainID, broker, bf, bodies, ev))

	srv := http.Server{
		Addr:    cfg.Node.SyncListen,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infow("startup", "status", "sync server listening", "host", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	peers := peer.NewPeerSet()
	for _, host := range cfg.Node.SyncPeers {
		if !peers.Add(peer.New(host)) {
			continue
		}
		go syncWithPeer(ctx, host, gen.ChainID, broker, bf, handlers, cfg.Node.SyncPoll, log)
	}

	// =========================================================================
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("sync server error: %w", err)
	case err := <-fatal:
		return fmt.Errorf("fatal storage corruption, terminating: %w", err)
	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()

		if err := srv.Shutdown(shutCtx); err != nil {
			srv.Close()
		}
	}

	return nil
}

// syncWithPeer keeps one sync session alive against host, redialing with a
// flat backoff whenever the connection drops.
func syncWithPeer(ctx context.Context, host string, chainID uint16, broker chainindex.BrokerConfig, bf *blockflow.BlockFlow, handlers *handler.AllHandlers, poll time.Duration, log *zap.SugaredLogger) {
	url := fmt.Sprintf("ws://%s/v1/sync", host)

	for {
		session, err := syncproto.Dial(url, chainID, broker, bf, handlers, eventHandler(log))
		if err != nil {
			log.Infow("sync", "status", "dial failed", "peer", host, "ERROR", err)
		} else {
			if err := session.Sync(ctx, poll); err != nil && ctx.Err() == nil {
				log.Infow("sync", "status", "session ended", "peer", host, "ERROR", err)
			}
			session.Close()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(poll):
		}
	}
}
