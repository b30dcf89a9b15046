// Command lws-server runs the HTTP light-wallet-server described by
// spec.md §6: it opens the account store, wires it to the upstream
// daemon oracle, the optional ZMQ abort/reorg signal watcher, and the
// optional pending-request broker, then serves every wallet endpoint
// until told to stop.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cryptonote-tools/lws-go/internal/api"
	"github.com/cryptonote-tools/lws-go/internal/broker"
	"github.com/cryptonote-tools/lws-go/internal/config"
	"github.com/cryptonote-tools/lws-go/internal/lwserr"
	"github.com/cryptonote-tools/lws-go/internal/oracle"
	"github.com/cryptonote-tools/lws-go/internal/requestbus"
	"github.com/cryptonote-tools/lws-go/internal/store"
	"github.com/cryptonote-tools/lws-go/internal/zmq"
)

func main() {
	cfg, err := config.FromFlags()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("store open: %v", err)
	}
	defer st.Close()

	oc := oracle.New(cfg.RPCURL, cfg.RPCUser, cfg.RPCPassword, 20*time.Second)

	if cfg.ZMQEndpoint != "" {
		signals := make(chan *lwserr.Error, 16)
		go func() {
			if err := zmq.Notify(ctx, zmq.NotifyConfig{
				Endpoint:       cfg.ZMQEndpoint,
				ReconnectDelay: 2 * time.Second,
				ReadTimeout:    30 * time.Second,
				WriteTimeout:   5 * time.Second,
			}, signals, log.Printf); err != nil && ctx.Err() == nil {
				log.Printf("zmq: %v", err)
			}
		}()
		go func() {
			for sig := range signals {
				log.Printf("zmq: received %s", sig.Name())
			}
		}()
	}

	br, err := broker.Open(ctx, broker.Config{
		Driver: cfg.BrokerDriver,
		URL:    cfg.BrokerURL,
		Topic:  cfg.BrokerTopic,
	})
	if err != nil {
		log.Fatalf("broker open: %v", err)
	}
	if br != nil {
		defer br.Close()

		rb, err := requestbus.New(st, br, requestbus.Config{
			PollInterval: cfg.BrokerPollInterval,
			BatchSize:    cfg.BrokerBatchSize,
		})
		if err != nil {
			log.Fatalf("requestbus init: %v", err)
		}
		go func() {
			if err := rb.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("requestbus stopped: %v", err)
				cancel()
			}
		}()
	}

	apiServer, err := api.New(st, oc, api.WithWorkers(cfg.Workers))
	if err != nil {
		log.Fatalf("api init: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           apiServer.Handler(),
		ConnContext:       apiServer.ConnContext,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s", cfg.ListenAddr())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("http: %v", err)
	}
}
