package scribbleddb

import (
	scribblecli "github.com/scribble-board/scribble/scribble-cli"
	"github.com/urfave/cli/v2"
)

var DDBOpts struct {
	CreateTable bool
	DAXCluster  string
	Endpoint    string
	Region      string
	TableName   string
}

var CreateTableFlag = scribblecli.BoolFlag("create-table", "Create the board table if it does not exist (console mode only)", &DDBOpts.CreateTable)
var DAXClusterFlag = scribblecli.StringFlag("dax-cluster", "The DAX cluster to connect to", &DDBOpts.DAXCluster)
var EndpointFlag = scribblecli.StringFlag("ddb-endpoint", "Override the DynamoDB endpoint, e.g. http://localhost:8000", &DDBOpts.Endpoint)
var RegionFlag = scribblecli.StringFlag("region", "The AWS region", &DDBOpts.Region, "us-east-2")
var TableNameFlag = scribblecli.StringFlag("table-name", "The board table; defaults to the environment's table", &DDBOpts.TableName)

var DDBFlags = []cli.Flag{
	CreateTableFlag,
	DAXClusterFlag,
	EndpointFlag,
	RegionFlag,
	TableNameFlag,
}
