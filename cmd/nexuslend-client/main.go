package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/quantum-go-utils/log"

	clientconfig "github.com/quantumauth-io/nexuslend-client/cmd/nexuslend-client/config"
	"github.com/quantumauth-io/nexuslend-client/internal/assets"
	"github.com/quantumauth-io/nexuslend-client/internal/chains"
	"github.com/quantumauth-io/nexuslend-client/internal/history"
	clienthttp "github.com/quantumauth-io/nexuslend-client/internal/http"
	"github.com/quantumauth-io/nexuslend-client/internal/ledger/evm"
	"github.com/quantumauth-io/nexuslend-client/internal/metrics"
	"github.com/quantumauth-io/nexuslend-client/internal/mirror"
	"github.com/quantumauth-io/nexuslend-client/internal/orchestrator"
	"github.com/quantumauth-io/nexuslend-client/internal/session"
	"github.com/quantumauth-io/nexuslend-client/internal/valuation"
	"github.com/quantumauth-io/nexuslend-client/internal/wallet"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	log.Info("nexuslend-client",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := clientconfig.Load()
	if err != nil {
		log.Fatal("failed to parse config", "error", err)
	}

	registry, err := assets.NewRegistry(cfg.Assets)
	if err != nil {
		log.Fatal("invalid asset configuration", "error", err)
	}
	addrs, err := cfg.Contracts.Resolve()
	if err != nil {
		log.Fatal("invalid contract configuration", "error", err)
	}

	chainSvc, err := chains.Dial(ctx, cfg.Chains)
	if err != nil {
		log.Error("failed to connect to chain", "error", err)
		return
	}
	defer chainSvc.Close()

	w, err := wallet.Load(cfg.ClientSettings.KeystorePath)
	if err != nil {
		log.Error("failed to load wallet", "error", err)
		return
	}
	var signer evm.Signer
	if w != nil {
		signer = w
		log.Info("account connected", "address", w.Address().Hex())
	}

	journal, err := history.Open(cfg.ClientSettings.HistoryPath)
	if err != nil {
		log.Error("failed to open history", "path", cfg.ClientSettings.HistoryPath, "error", err)
		return
	}
	defer func() {
		if err = journal.Close(); err != nil {
			log.Error("failed to close history", "error", err)
		}
	}()

	engineMetrics := metrics.Engine()
	reader := evm.NewReader(chainSvc.Client(), cfg.Engine.ReadsPerSecond, cfg.Engine.ReadTimeout())
	writer := evm.NewWriter(chainSvc.Client(), signer, chainSvc.ChainID(), cfg.Engine.ReceiptPollInterval())

	list := registry.List()
	user, _ := writer.Account()

	state := mirror.New(ctx, reader, addrs, mirror.WithMetrics(engineMetrics))
	values := valuation.NewEngine(state, list, user)
	go values.Run(ctx)

	engine := orchestrator.NewEngine(ctx, writer, state, addrs, list,
		orchestrator.WithJournal(journal),
		orchestrator.WithMetrics(engineMetrics),
		orchestrator.WithConfig(orchestrator.Config{
			SettleDelay:         cfg.Engine.SettleDelay(),
			ApprovalSettleDelay: cfg.Engine.ApprovalSettleDelay(),
			ReceiptTimeout:      cfg.Engine.ReceiptTimeout(),
		}),
	)
	sessions := session.New(engine, registry, values, engineMetrics)

	refresher := newFullRefresh(state, user, list)
	refresher.RefreshAll()

	handler := clienthttp.NewHandler(clienthttp.Deps{
		Reports:   values,
		Refresher: refresher,
		Sessions:  sessions,
		Accounts:  engine,
		History:   journal,
		Records:   engine.Tracker(),
	})

	addr := net.JoinHostPort(cfg.ClientSettings.LocalHost, cfg.ClientSettings.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           clienthttp.NewRouter(handler, cfg.ClientSettings.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	} else {
		log.Info("HTTP server gracefully stopped")
	}
	engine.Wait()
}

// fullRefresh refreshes every market read and, when an account is connected,
// every account read.
type fullRefresh struct {
	state  *mirror.Mirror
	user   common.Address
	assets []common.Address
}

func newFullRefresh(state *mirror.Mirror, user common.Address, list []assets.Asset) *fullRefresh {
	r := &fullRefresh{state: state, user: user}
	for _, a := range list {
		r.assets = append(r.assets, a.Address)
	}
	return r
}

func (r *fullRefresh) RefreshAll() <-chan struct{} {
	markets := r.state.RefreshMarkets(r.assets)
	account := r.state.RefreshAccount(r.user, r.assets)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-markets
		<-account
	}()
	return done
}
