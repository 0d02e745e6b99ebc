// kfsck is an offline checkpoint/log inspector: it runs the same
// Restore+Replay sequence pkg/startup does, without the registry gate, and
// prints the resulting sequence number, the chunkVersionInc counter, and the
// number of the log segment opened next. The progress bar uses
// github.com/vbauerster/mpb/v8 + github.com/mattn/go-isatty via
// utils.NewDynProgressBar.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"kfscore/pkg/startup"
	"kfscore/pkg/utils"
)

var logger = utils.GetLogger("kfsck")

func main() {
	app := &cli.App{
		Name:  "kfsck",
		Usage: "inspect a kfscore checkpoint and log directory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "cp-dir", Value: "./cp", Usage: "checkpoint directory"},
			&cli.StringFlag{Name: "log-dir", Value: "./log", Usage: "log segment directory"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "suppress the progress bar"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(c *cli.Context) error {
	progress, bar := utils.NewDynProgressBar("kfsck", c.Bool("quiet"))
	bar.SetTotal(1, false)

	cfg := startup.Config{
		CheckpointDir: c.String("cp-dir"),
		LogDir:        c.String("log-dir"),
		CompressAlgo:  "zstd",
	}
	result, err := startup.Run(context.Background(), cfg, nil)
	bar.SetTotal(1, true)
	progress.Wait()
	if err != nil {
		return err
	}

	fmt.Printf("sequence:         %d\n", result.Tree.Seq())
	fmt.Printf("chunkVersionInc:  %d\n", result.Tree.ChunkVersionInc())
	fmt.Printf("next log segment: %d\n", result.LogWriter.Number())
	return result.LogWriter.Close()
}
