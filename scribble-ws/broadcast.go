package scribblews

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	scribbleboard "github.com/scribble-board/scribble/scribble-board"
	scribblecli "github.com/scribble-board/scribble/scribble-cli"
)

// DefaultConcurrency bounds concurrent PostToConnection calls per fan-out.
const DefaultConcurrency = 50

// Members is the part of the connection directory the broadcaster needs.
type Members interface {
	MembersOf(ctx context.Context, boardID string) ([]string, error)
	Leave(ctx context.Context, connID string) (string, bool, error)
}

// Broadcaster fans messages out to the connections joined to a board.
// Delivery is best effort: a failed send is logged and never fails the
// caller. Connections the gateway reports gone are removed from the
// directory.
type Broadcaster struct {
	Members     Members
	Sender      Sender
	Metrics     scribblecli.Recorder
	Logger      zerolog.Logger
	Concurrency int
}

// NotifyOthers sends the same message to every member of boardID except
// excludeConnID. It returns an error only when the members can't be read.
func (b *Broadcaster) NotifyOthers(ctx context.Context, boardID, excludeConnID, action string, payload interface{}) error {
	data, err := EncodeMessage(action, payload)
	if err != nil {
		return err
	}
	return b.NotifyEach(ctx, boardID, excludeConnID, action, func(string, []string) ([]byte, error) {
		return data, nil
	})
}

// Build returns the encoded message for one recipient given the board's
// current members.
type Build func(connID string, members []string) ([]byte, error)

// NotifyEach sends a message built per recipient to every member of boardID
// except excludeConnID.
func (b *Broadcaster) NotifyEach(ctx context.Context, boardID, excludeConnID, action string, build Build) error {
	members, err := b.Members.MembersOf(ctx, boardID)
	if err != nil {
		return fmt.Errorf("failed to read members of board %v: %w", boardID, err)
	}

	concurrency := b.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var failed int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, connID := range members {
		if connID == excludeConnID {
			continue
		}
		connID := connID
		g.Go(func() error {
			data, err := build(connID, members)
			if err == nil {
				err = b.send(gctx, connID, data)
			}
			if err != nil {
				atomic.AddInt32(&failed, 1)
				b.Logger.Warn().Err(err).
					Str("board_id", boardID).
					Str("connection_id", connID).
					Str("action", action).
					Msg("failed to deliver message")
			}
			return nil
		})
	}
	_ = g.Wait()

	if n := atomic.LoadInt32(&failed); n > 0 {
		b.metrics().Gauge(ctx, scribblecli.DeliveryFailureMetric, float64(n), scribblecli.Operation(action))
	}
	return nil
}

// SendTo delivers one message to one connection and returns the failure, if
// any, wrapped in scribbleboard.ErrDeliveryFailure.
func (b *Broadcaster) SendTo(ctx context.Context, connID, action string, payload interface{}) error {
	data, err := EncodeMessage(action, payload)
	if err != nil {
		return err
	}
	return b.send(ctx, connID, data)
}

func (b *Broadcaster) send(ctx context.Context, connID string, data []byte) error {
	err := b.Sender.Send(ctx, connID, data)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrGone) {
		b.Logger.Info().Str("connection_id", connID).Msg("connection gone, cleaning up")
		if _, _, leaveErr := b.Members.Leave(ctx, connID); leaveErr != nil {
			b.Logger.Error().Err(leaveErr).Str("connection_id", connID).Msg("failed to remove gone connection")
		}
	}
	return fmt.Errorf("%w: %v: %w", scribbleboard.ErrDeliveryFailure, connID, err)
}

func (b *Broadcaster) metrics() scribblecli.Recorder {
	if b.Metrics == nil {
		return scribblecli.NopMetrics{}
	}
	return b.Metrics
}
