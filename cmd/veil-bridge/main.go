// veil-bridge is the subprocess a parent client launches to talk to the
// messaging core: JSON-RPC requests in on stdin, responses and
// notifications out on stdout, one JSON document per line. The parent
// signals termination by closing stdin or sending the shutdown method.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/veilmsg/veilbridge/pkg/bridge"
	"github.com/veilmsg/veilbridge/pkg/config"
	"github.com/veilmsg/veilbridge/pkg/jsonrpc"
	"github.com/veilmsg/veilbridge/pkg/logging"
)

func main() {
	dataDir := flag.String("data-dir", "data", "Path to the data directory (VEIL_DATA_DIR overrides)")
	flag.Parse()

	_ = godotenv.Load()

	logger := logging.New()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *dataDir, logger); err != nil {
		logger.Errorf("fatal error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dataDir string, logger *logging.Logger) error {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.Logging); err != nil {
		return err
	}

	b, err := bridge.New(cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	srv := jsonrpc.NewServer(os.Stdin, os.Stdout, b.Handlers(), logger)
	b.BindShutdown(srv.Shutdown)

	logger.Infof("bridge ready, data dir %s", cfg.DataDir)
	err = srv.Run(ctx)
	logger.Info("bridge exiting")
	return err
}
