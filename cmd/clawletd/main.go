package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/clawlet-dev/clawlet/internal/broker"
	"github.com/clawlet-dev/clawlet/internal/chainio"
	"github.com/clawlet-dev/clawlet/internal/chainreg"
	"github.com/clawlet-dev/clawlet/internal/config"
	"github.com/clawlet-dev/clawlet/internal/httpapi"
	"github.com/clawlet-dev/clawlet/internal/ledger"
	"github.com/clawlet-dev/clawlet/internal/logging"
	"github.com/clawlet-dev/clawlet/internal/mcpapi"
	"github.com/clawlet-dev/clawlet/internal/rules"
	"github.com/clawlet-dev/clawlet/internal/store"
	"github.com/clawlet-dev/clawlet/internal/tools"
	"github.com/clawlet-dev/clawlet/internal/walletmanager"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogPretty)
	log.Info().Bool("demoMode", cfg.DemoMode).Int("port", cfg.Port).Str("network", cfg.Network).Msg("starting clawletd")

	s, err := store.Load(cfg.DataDir, store.WithLogger(log))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load state store")
	}

	rpcOverrides := map[chainreg.Network]string{}
	if cfg.BaseRPCURL != "" {
		rpcOverrides[chainreg.NetworkBase] = cfg.BaseRPCURL
	}
	if cfg.BaseSepoliaRPCURL != "" {
		rpcOverrides[chainreg.NetworkBaseSepolia] = cfg.BaseSepoliaRPCURL
	}
	chain := chainio.NewClient(rpcOverrides, chainio.WithLogger(log))

	l := ledger.New(s)
	r := rules.New(s, l)
	manager := walletmanager.New(s, chain, walletmanager.WithLogger(log))
	b := broker.New(s, l, r, manager,
		broker.WithLogger(log),
		broker.WithPaymentCallback(func(evt broker.PaymentEvent) {
			logEvt := log.Info()
			if evt.Type == broker.PaymentEventFailure {
				logEvt = log.Error()
			}
			logEvt.Str("event", string(evt.Type)).Str("service", evt.Service).
				Str("amount", evt.Amount).Str("network", evt.Network).
				Msg("payment callback")
		}),
	)
	catalog := tools.New(s, l, r, manager, b, cfg.DemoMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b.StartSweeper(ctx)

	router := httpapi.NewRouter(catalog)
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("http api listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	mcpSrv := mcpapi.NewServer("clawletd", "0.1.0", catalog)
	mcpHandler := mcpserver.NewStreamableHTTPServer(mcpSrv)
	mcpHTTPSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port+1),
		Handler: mcpHandler,
	}

	go func() {
		log.Info().Str("addr", mcpHTTPSrv.Addr).Msg("mcp tool server listening")
		if err := mcpHTTPSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("mcp server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shutdown")
	}
	if err := mcpHTTPSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("mcp server forced to shutdown")
	}

	log.Info().Msg("clawletd exited")
}
