package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/urfave/cli/v2"

	"github.com/scribble-board/scribble/scribble-board/boarddao"
	"github.com/scribble-board/scribble/scribble-board/connectiondao"
	"github.com/scribble-board/scribble/scribble-board/linedao"
	"github.com/scribble-board/scribble/scribble-board/store/ddbstore"
	scribblecli "github.com/scribble-board/scribble/scribble-cli"
	scribbleddb "github.com/scribble-board/scribble/scribble-ddb"
	scribblews "github.com/scribble-board/scribble/scribble-ws"
)

var opts struct {
	ConnTTL     time.Duration
	Concurrency int
}

var service = scribblecli.NewService("scribble-ws")

func main() {
	flags := append(scribblecli.CommonFlags, scribbleddb.DDBFlags...)
	flags = append(flags,
		scribblecli.DurationFlag("conn-ttl", "How long connection rows outlive a missed $disconnect", &opts.ConnTTL, connectiondao.DefaultTTL),
		scribblecli.IntFlag("concurrency", "Max concurrent sends per fan-out", &opts.Concurrency, scribblews.DefaultConcurrency),
	)

	app := scribblecli.App(service, action, flags...)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	ctx := context.Background()
	logger := scribblecli.Logger(service)

	sess := scribbleddb.Session()
	st, err := ddbstore.FromFlags(ctx, sess, logger)
	if err != nil {
		return err
	}

	boards := boarddao.New(st, nil)
	handler := &scribblews.Handler{
		Boards:      boards,
		Connections: connectiondao.New(st, boards, opts.ConnTTL),
		Lines:       linedao.New(st, boards),
		Senders:     &scribblews.GatewaySenders{Config: aws.NewConfig().WithRegion(scribbleddb.DDBOpts.Region)},
		Metrics:     scribblecli.BuildMetrics(service, sess),
		Logger:      logger,
		Concurrency: opts.Concurrency,
	}

	if scribblecli.CommonOpts.Console {
		if scribbleddb.DDBOpts.CreateTable {
			return nil
		}
		return errors.New("the websocket handler runs behind API Gateway; use --create-table to only prepare the table")
	}

	lambda.Start(handler.HandleEvent)
	return nil
}
