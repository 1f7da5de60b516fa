package scribblews

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
	"github.com/tj/assert"
)

type mockManagementAPI struct {
	apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
	err   error
	input *apigatewaymanagementapi.PostToConnectionInput
}

func (m *mockManagementAPI) PostToConnectionWithContext(_ context.Context, input *apigatewaymanagementapi.PostToConnectionInput, _ ...request.Option) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	m.input = input
	return &apigatewaymanagementapi.PostToConnectionOutput{}, m.err
}

func TestGatewaySender(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		api := &mockManagementAPI{}
		err := NewGatewaySender(api).Send(ctx, "A", []byte("hi"))
		assert.NoError(t, err)
		assert.Equal(t, "A", *api.input.ConnectionId)
		assert.Equal(t, []byte("hi"), api.input.Data)
	})

	t.Run("gone", func(t *testing.T) {
		api := &mockManagementAPI{err: awserr.New(apigatewaymanagementapi.ErrCodeGoneException, "gone", nil)}
		err := NewGatewaySender(api).Send(ctx, "A", nil)
		assert.True(t, errors.Is(err, ErrGone))
	})

	t.Run("gone status", func(t *testing.T) {
		api := &mockManagementAPI{err: awserr.NewRequestFailure(awserr.New("Unknown", "gone", nil), 410, "req-1")}
		err := NewGatewaySender(api).Send(ctx, "A", nil)
		assert.True(t, errors.Is(err, ErrGone))
	})

	t.Run("throttled with 410 in the request id", func(t *testing.T) {
		api := &mockManagementAPI{err: awserr.NewRequestFailure(awserr.New("ThrottlingException", "Rate exceeded", nil), 429, "7c1e4102-9d1f-4c52-8410-aa00bb11cc22")}
		err := NewGatewaySender(api).Send(ctx, "A", nil)
		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrGone))
	})

	t.Run("other failure", func(t *testing.T) {
		api := &mockManagementAPI{err: errors.New("throttled")}
		err := NewGatewaySender(api).Send(ctx, "A", nil)
		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrGone))
	})
}

func TestGatewaySendersCachesClients(t *testing.T) {
	var senders GatewaySenders
	a := senders.client("https://a.example.com/test")
	b := senders.client("https://b.example.com/test")
	assert.True(t, a == senders.client("https://a.example.com/test"))
	assert.False(t, a == b)
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://abc.execute-api.us-east-2.amazonaws.com/prod", Endpoint("abc.execute-api.us-east-2.amazonaws.com", "prod"))
}
