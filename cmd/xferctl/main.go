package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/xferctl/internal/checksum"
	"github.com/danmuck/xferctl/internal/client"
	"github.com/danmuck/xferctl/internal/config"
	"github.com/danmuck/xferctl/internal/cryptoutil"
	"github.com/danmuck/xferctl/internal/logging"
	"github.com/danmuck/xferctl/internal/observability"
)

const exitUsage = 2

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("xferctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "TOML config path (built-in defaults when empty)")
	transferInfo := fs.String("transfer-info", "", "override transfer.info path")
	meInfo := fs.String("me-info", "", "override me.info path")
	privKey := fs.String("priv-key", "", "override priv.key path")
	metricsFile := fs.String("metrics-textfile", "", "write prometheus metrics to this file after the run")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return exitUsage
	}

	logging.ConfigureRuntime()
	log := logging.New("xferctl")

	cfg, err := config.LoadClientConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "xferctl: %v\n", err)
		return exitUsage
	}
	overrideString(&cfg.TransferInfo, *transferInfo)
	overrideString(&cfg.MeInfo, *meInfo)
	overrideString(&cfg.PrivKey, *privKey)
	overrideString(&cfg.MetricsTextfile, *metricsFile)
	logging.SetLevel(cfg.LogLevel)

	res := client.Run(ctx, cfg.Session, client.Deps{
		Crypto:   cryptoutil.NewSuite(),
		Checksum: checksum.Files{},
		Storage:  cfg.Files(),
	})

	if cfg.MetricsTextfile != "" {
		if err := observability.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Warnf("%v", err)
		}
	}
	return res.ExitCode()
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
