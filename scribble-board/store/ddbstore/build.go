package ddbstore

import (
	"context"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/rs/zerolog"

	scribblecli "github.com/scribble-board/scribble/scribble-cli"
	scribbleddb "github.com/scribble-board/scribble/scribble-ddb"
)

// Build creates a store on the standard table for the given environment.
func Build(api dynamodbiface.DynamoDBAPI, env string) *Store {
	return New(api, TableName(env))
}

// TableName returns the DynamoDB table name for the given environment.
func TableName(env string) string {
	return env + "-scribble--board"
}

// FromFlags builds the store the DDB flags describe. In console mode with
// --create-table the table is created first.
func FromFlags(ctx context.Context, s *session.Session, logger zerolog.Logger) (*Store, error) {
	api, err := scribbleddb.DynamoDBAPI(s)
	if err != nil {
		return nil, err
	}

	tableName := scribbleddb.DDBOpts.TableName
	if tableName == "" {
		tableName = TableName(scribblecli.CommonOpts.Env)
	}
	st := New(api, tableName)

	if scribblecli.CommonOpts.Console && scribbleddb.DDBOpts.CreateTable {
		logger.Info().Str("table", tableName).Msg("creating table")
		if err := st.CreateTableIfNotExists(ctx); err != nil {
			return nil, err
		}
	}
	return st, nil
}
