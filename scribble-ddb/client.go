// Package scribbleddb builds the DynamoDB (or DAX) client the board store runs
// on.
package scribbleddb

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// Session returns an AWS session for the configured region.
func Session() *session.Session {
	config := aws.NewConfig()
	if DDBOpts.Region != "" {
		config = config.WithRegion(DDBOpts.Region)
	}
	return session.Must(session.NewSession(config))
}

// DynamoDBAPI returns a DAX client when a cluster is configured, otherwise a
// plain DynamoDB client, honouring the endpoint override.
func DynamoDBAPI(s *session.Session) (dynamodbiface.DynamoDBAPI, error) {
	if DDBOpts.DAXCluster != "" {
		return newDAX(DDBOpts.DAXCluster, aws.StringValue(s.Config.Region))
	}
	if DDBOpts.Endpoint != "" {
		return dynamodb.New(s, aws.NewConfig().WithEndpoint(DDBOpts.Endpoint)), nil
	}
	return dynamodb.New(s), nil
}
