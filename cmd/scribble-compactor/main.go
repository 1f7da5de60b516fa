package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/scribble-board/scribble/scribble-board/boarddao"
	"github.com/scribble-board/scribble/scribble-board/compactor"
	"github.com/scribble-board/scribble/scribble-board/linedao"
	"github.com/scribble-board/scribble/scribble-board/raster"
	"github.com/scribble-board/scribble/scribble-board/store/ddbstore"
	scribblearchive "github.com/scribble-board/scribble/scribble-archive"
	scribblecli "github.com/scribble-board/scribble/scribble-cli"
	scribblecron "github.com/scribble-board/scribble/scribble-cron"
	scribbleddb "github.com/scribble-board/scribble/scribble-ddb"
)

var opts struct {
	MinEvents int
	Workers   int
	PruneLog  bool
	Settle    time.Duration
	Width     int
	Height    int
}

var service = scribblecli.NewService("scribble-compactor")

func main() {
	flags := append(scribblecli.CommonFlags, scribbleddb.DDBFlags...)
	flags = append(flags, scribblecron.CronFlags...)
	flags = append(flags, scribblearchive.ArchiveFlags...)
	flags = append(flags,
		scribblecli.IntFlag("min-events", "Boards with fewer new lines are left for a later round", &opts.MinEvents, compactor.DefaultMinEvents),
		scribblecli.IntFlag("workers", "Boards compacted in parallel", &opts.Workers, compactor.DefaultWorkers),
		scribblecli.DurationFlag("settle", "Leave lines younger than this for the next round", &opts.Settle, compactor.DefaultSettle),
		scribblecli.BoolFlag("prune-log", "Delete lines once they are folded into a snapshot", &opts.PruneLog),
		scribblecli.IntFlag("width", "Snapshot width in pixels", &opts.Width, raster.DefaultWidth),
		scribblecli.IntFlag("height", "Snapshot height in pixels", &opts.Height, raster.DefaultHeight),
	)

	app := scribblecli.App(service, action, flags...)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	logger := scribblecli.Logger(service)

	sess := scribbleddb.Session()
	st, err := ddbstore.FromFlags(context.Background(), sess, logger)
	if err != nil {
		return err
	}

	rasterizer := raster.New()
	rasterizer.Width, rasterizer.Height = opts.Width, opts.Height

	boards := boarddao.New(st, nil)
	c := &compactor.Compactor{
		Boards:     boards,
		Lines:      linedao.New(st, boards),
		Rasterizer: rasterizer,
		Metrics:    scribblecli.BuildMetrics(service, sess),
		Logger:     logger,
		MinEvents:  opts.MinEvents,
		Workers:    opts.Workers,
		Prune:      opts.PruneLog,
		Settle:     opts.Settle,
	}
	if archiver := scribblearchive.Build(service, sess); archiver != nil {
		c.Archiver = archiver
	}

	handler := scribblecron.NewHandler(service, func(ctx context.Context) error {
		_, err := c.Run(ctx)
		return err
	})
	return handler.Start()
}
