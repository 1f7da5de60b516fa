package scribblews

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
)

// ErrGone is returned by a Sender when the connection no longer exists.
var ErrGone = errors.New("connection gone")

// Sender pushes one message to one connection.
type Sender interface {
	Send(ctx context.Context, connID string, data []byte) error
}

// Senders returns the Sender for a gateway endpoint.
type Senders interface {
	For(endpoint string) Sender
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, connID string, data []byte) error

func (fn SenderFunc) Send(ctx context.Context, connID string, data []byte) error {
	return fn(ctx, connID, data)
}

// GatewaySenders posts through the API Gateway Management API, caching one
// client per endpoint.
type GatewaySenders struct {
	Config *aws.Config // optional base config, e.g. region or credentials

	mu      sync.RWMutex
	clients map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
}

func (g *GatewaySenders) For(endpoint string) Sender {
	return gatewaySender{api: g.client(endpoint)}
}

func (g *GatewaySenders) client(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI {
	g.mu.RLock()
	if client, ok := g.clients[endpoint]; ok {
		g.mu.RUnlock()
		return client
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if client, ok := g.clients[endpoint]; ok {
		return client
	}
	if g.clients == nil {
		g.clients = map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI{}
	}

	config := aws.NewConfig()
	if g.Config != nil {
		config = g.Config.Copy()
	}
	sess := session.Must(session.NewSession(config.WithEndpoint(endpoint)))
	client := apigatewaymanagementapi.New(sess)
	g.clients[endpoint] = client
	return client
}

type gatewaySender struct {
	api apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
}

// NewGatewaySender wraps an existing management API client.
func NewGatewaySender(api apigatewaymanagementapiiface.ApiGatewayManagementApiAPI) Sender {
	return gatewaySender{api: api}
}

func (g gatewaySender) Send(ctx context.Context, connID string, data []byte) error {
	_, err := g.api.PostToConnectionWithContext(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connID),
		Data:         data,
	})
	if err != nil {
		if isGoneException(err) {
			return fmt.Errorf("posting to connection %v: %w", connID, ErrGone)
		}
		return fmt.Errorf("posting to connection %v: %w", connID, err)
	}
	return nil
}

// Endpoint is the management API endpoint for a websocket stage.
func Endpoint(domainName, stage string) string {
	return fmt.Sprintf("https://%s/%s", domainName, stage)
}

// isGoneException reports whether the gateway answered GoneException (HTTP
// 410): the WebSocket connection no longer exists. Only the error code or
// status counts; other failures leave the connection joined.
func isGoneException(err error) bool {
	var failure awserr.RequestFailure
	if errors.As(err, &failure) && failure.StatusCode() == http.StatusGone {
		return true
	}
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == apigatewaymanagementapi.ErrCodeGoneException
}
