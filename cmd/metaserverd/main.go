// metaserverd boots the startup orchestrator, the disk manager and worker,
// and the chunkserver registry, then runs the event loop. CLI wiring uses
// a single github.com/urfave/cli/v2 App, github.com/juicedata/godaemon for
// the -d background flag, and github.com/google/gops as a diagnostics
// agent alongside the long-running process.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/juicedata/godaemon"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"kfscore/pkg/disk"
	"kfscore/pkg/netio"
	"kfscore/pkg/registry"
	"kfscore/pkg/startup"
	"kfscore/pkg/utils"
	"kfscore/pkg/worker"
)

var logger = utils.GetLogger("metaserverd")

func main() {
	app := &cli.App{
		Name:  "metaserverd",
		Usage: "kfscore metadata server daemon",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "d", Aliases: []string{"background"}, Usage: "run in background"},
			&cli.StringFlag{Name: "log", Value: "/var/log/metaserverd.log", Usage: "path of log file when running in background"},
			&cli.StringFlag{Name: "cp-dir", Value: "./cp", Usage: "checkpoint directory"},
			&cli.StringFlag{Name: "log-dir", Value: "./log", Usage: "log segment directory"},
			&cli.StringFlag{Name: "compress", Value: "zstd", Usage: "checkpoint/log compression algorithm (zstd, lz4, none)"},
			&cli.Int64Flag{Name: "min-chunkservers", Value: 1, Usage: "minimum chunkservers to register before accepting client traffic"},
			&cli.StringFlag{Name: "redis-addr", Value: "127.0.0.1:6379", Usage: "redis address backing the chunkserver registry"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug-level logging"},
			&cli.BoolFlag{Name: "no-gops", Usage: "disable the gops diagnostics agent"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(c *cli.Context) error {
	if c.Bool("verbose") {
		utils.SetLogLevel(logrus.DebugLevel)
	} else {
		utils.SetLogLevel(logrus.InfoLevel)
	}

	if c.Bool("d") && godaemon.Stage() == 0 {
		var attrs godaemon.DaemonAttr
		logfile, err := os.OpenFile(c.String("log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logger.Errorf("open log file: %s", err)
		} else {
			attrs.Stdout = logfile
		}
		if _, _, err := godaemon.MakeDaemon(&attrs); err != nil {
			return err
		}
	}

	if !c.Bool("no-gops") {
		if err := agent.Listen(agent.Options{}); err != nil {
			logger.Warnf("gops agent: %s", err)
		} else {
			defer agent.Close()
		}
	}

	rdb := redis.NewClient(&redis.Options{Addr: c.String("redis-addr")})
	defer rdb.Close()
	reg := registry.New(rdb)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg := startup.Config{
		CheckpointDir:        c.String("cp-dir"),
		LogDir:               c.String("log-dir"),
		CompressAlgo:         c.String("compress"),
		MinChunkservers:      c.Int64("min-chunkservers"),
		RegistryWaitInterval: time.Second,
	}
	logger.Infof("restoring checkpoint and replaying logs from %s / %s", cfg.CheckpointDir, cfg.LogDir)
	result, err := startup.Run(ctx, cfg, reg)
	if err != nil {
		return err
	}
	defer result.LogWriter.Close()
	logger.Infof("startup complete: seq=%d chunkVersionInc=%d logSegment=%d",
		result.Tree.Seq(), result.Tree.ChunkVersionInc(), result.LogWriter.Number())

	diskMgr := disk.NewManager(4, 0)
	defer diskMgr.Close()

	wk := worker.New()
	wk.Start(func(ctx context.Context) {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Debugf("checkpoint worker tick (outstanding disk ops: %d)", diskMgr.Outstanding())
			}
		}
	})
	defer wk.Stop()

	loop := netio.NewLoop()
	loop.RegisterTimeoutHandler(diskMgr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			logger.Infof("shutting down")
			return nil
		case <-ticker.C:
			loop.Tick()
		}
	}
}
