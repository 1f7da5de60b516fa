package main

import (
	"context"
	"log"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v2"

	"github.com/scribble-board/scribble/scribble-board/boardapi"
	"github.com/scribble-board/scribble/scribble-board/boarddao"
	"github.com/scribble-board/scribble/scribble-board/linedao"
	"github.com/scribble-board/scribble/scribble-board/store/ddbstore"
	scribblecli "github.com/scribble-board/scribble/scribble-cli"
	scribbleddb "github.com/scribble-board/scribble/scribble-ddb"
	scribblerest "github.com/scribble-board/scribble/scribble-rest"
)

var service = scribblecli.NewService("scribble-api")

func main() {
	flags := append(scribblecli.CommonFlags, scribblecli.PortFlag(5001))
	flags = append(flags, scribbleddb.DDBFlags...)

	app := scribblecli.App(service, action, flags...)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	logger := scribblecli.Logger(service)

	st, err := ddbstore.FromFlags(context.Background(), scribbleddb.Session(), logger)
	if err != nil {
		return err
	}

	boards := boarddao.New(st, nil)
	api := &boardapi.API{
		Boards: boards,
		Lines:  linedao.New(st, boards),
	}

	routes := scribblerest.Middlewares(service, chi.NewRouter())
	api.Routes(routes)
	return scribblerest.Webserver(service, routes)
}
