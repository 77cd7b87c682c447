// Command reelforge-server hosts a PlaybackEngine without a live audio
// device and exposes it over the JSON control plane. Nothing in this
// command calls Process or ProcessOffline, so no audio blocks are rendered.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	charmlog "github.com/charmbracelet/log"

	"github.com/reelforge/engine/internal/cloudmetrics"
	"github.com/reelforge/engine/internal/control"
	"github.com/reelforge/engine/internal/engine"
	"github.com/reelforge/engine/internal/rflog"
)

type CLI struct {
	Addr        string `help:"Control-plane bind address" default:":7878"`
	SampleRate  int    `help:"Engine sample rate" default:"48000"`
	BlockSize   int    `help:"Engine block size in frames" default:"512"`
	Verbose     bool   `short:"v" help:"Enable debug logging"`
	CloudWatch  bool   `help:"Publish meter snapshots to AWS CloudWatch"`
	MetricEvery time.Duration `help:"CloudWatch publish interval" default:"10s"`
}

func main() {
	cli := &CLI{}
	kong.Parse(cli,
		kong.Name("reelforge-server"),
		kong.Description("PlaybackEngine control-plane host"),
		kong.UsageOnError(),
	)

	if cli.Verbose {
		rflog.SetLevel(charmlog.DebugLevel)
	}
	log := rflog.With("server")

	eng := engine.New(float64(cli.SampleRate), cli.BlockSize)
	srv := control.New(eng)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cli.CloudWatch {
		exporter, err := cloudmetrics.New(ctx, "reelforge-server", cli.MetricEvery)
		if err != nil {
			log.Warn("cloudwatch exporter disabled", "error", err)
		} else {
			go exporter.Run(ctx, eng.MasterMeter, eng.Voices)
		}
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		cancel()
		os.Exit(0)
	}()

	log.Info("starting control plane", "addr", cli.Addr, "sample_rate", cli.SampleRate, "block_size", cli.BlockSize)
	if err := srv.ListenAndServe(cli.Addr); err != nil {
		log.Error("control plane exited", "error", err)
		os.Exit(1)
	}
}
