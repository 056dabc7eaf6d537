// Command agora runs a town: the broker, its websocket front, and the
// resident services (timeline feed, directive analyst, heartbeat).
//
// Configuration is environment based:
//
//	AGORA_ADDR          listen address (default :8080)
//	AGORA_ADMIN_SECRET  shared secret for the admin identity (unset disables admin)
//	AGORA_EVENT_LOG     path of the JSONL event log (unset keeps history in memory)
//	AGORA_QUIET         set to any value to disable the console timeline
//	NATS_URL            when set, mirror traffic to NATS under agora.events.*
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fogfish/opts"
	_ "github.com/joho/godotenv/autoload"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"

	"github.com/casualjim/agora/broker"
	"github.com/casualjim/agora/eventlog"
	"github.com/casualjim/agora/natsbridge"
	"github.com/casualjim/agora/pkg/natsx"
	"github.com/casualjim/agora/pkg/slogx"
	"github.com/casualjim/agora/server"
	"github.com/casualjim/agora/services"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelDebug}),
	))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("agora exited", slogx.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	brokerOpts := []opts.Option[broker.Broker]{
		broker.WithHook(broker.LoggingHook()),
	}

	if secret := os.Getenv("AGORA_ADMIN_SECRET"); secret != "" {
		brokerOpts = append(brokerOpts, broker.WithAdminSecret(secret))
	} else {
		slog.Warn("AGORA_ADMIN_SECRET is unset, admin identity disabled")
	}

	if path := os.Getenv("AGORA_EVENT_LOG"); path != "" {
		elog, err := eventlog.Open(path, eventlog.DefaultCapacity)
		if err != nil {
			return err
		}
		brokerOpts = append(brokerOpts, broker.WithEventLog(elog))
		slog.Info("event log open", slog.String("path", path))
	}

	if os.Getenv("AGORA_QUIET") == "" {
		brokerOpts = append(brokerOpts,
			broker.WithHook(services.NewTimeline(os.Stdout, services.DefaultStatusTopic)))
	}

	var bridge *natsbridge.Bridge
	if os.Getenv("NATS_URL") != "" {
		nc, err := natsx.NewClient()
		if err != nil {
			return err
		}
		bridge = natsbridge.New(nc)
		brokerOpts = append(brokerOpts, broker.WithHook(bridge))
		slog.Info("mirroring to nats", slog.String("subject", natsbridge.SubjectPrefix+".>"))
	}

	b := broker.New(brokerOpts...)

	b.AddHook(services.NewAnalyst(b, "system"))

	heartbeat := services.NewHeartbeat(b)
	go heartbeat.Run(ctx)

	serverOpts := []opts.Option[server.Server]{}
	if addr := os.Getenv("AGORA_ADDR"); addr != "" {
		serverOpts = append(serverOpts, server.WithAddr(addr))
	}
	srv := server.New(b, serverOpts...)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if bridge != nil {
		err = errors.Join(err, bridge.Close())
	}
	return err
}
