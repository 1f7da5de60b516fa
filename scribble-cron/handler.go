// Package scribblecron runs a job on a schedule: as a Lambda invoked by an
// EventBridge rule, or from the console on a ticker.
package scribblecron

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	scribblecli "github.com/scribble-board/scribble/scribble-cli"
)

var CronOpts struct {
	Interval time.Duration
}

var IntervalFlag = scribblecli.DurationFlag("interval", "In console mode, repeat the job at this interval; 0 runs it once", &CronOpts.Interval, 0)

var CronFlags = []cli.Flag{
	IntervalFlag,
}

type RunCallback func(ctx context.Context) error

type Handler struct {
	service scribblecli.Service
	logger  zerolog.Logger

	runOnce RunCallback
}

func NewHandler(
	service scribblecli.Service,
	runOnce RunCallback,
) *Handler {
	return &Handler{
		service: service,
		logger:  scribblecli.Logger(service),
		runOnce: runOnce,
	}
}

func (h *Handler) RunOnce(ctx context.Context, _ json.RawMessage) error {
	h.logger.Info().Msg("running scheduled task")
	return h.runOnce(ctx)
}

// Every runs the job immediately and then once per interval until ctx is
// done. A failed run is logged and the next tick still fires.
func (h *Handler) Every(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for ctx.Err() == nil {
		if err := h.RunOnce(ctx, nil); err != nil {
			h.logger.Error().Err(err).Msg("scheduled task failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func (h *Handler) Start() error {
	switch {
	case scribblecli.CommonOpts.Console && CronOpts.Interval > 0:
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		h.logger.Info().Dur("interval", CronOpts.Interval).Msg("running scheduled task from the console")
		return h.Every(ctx, CronOpts.Interval)

	case scribblecli.CommonOpts.Console:
		return h.RunOnce(context.Background(), nil)

	default:
		lambda.Start(h.RunOnce)
	}
	return nil
}
