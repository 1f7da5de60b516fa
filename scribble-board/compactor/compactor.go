// Package compactor folds each board's outstanding lines into its raster
// snapshot and advances the board's watermark.
package compactor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	scribbleboard "github.com/scribble-board/scribble/scribble-board"
	"github.com/scribble-board/scribble/scribble-board/boarddao"
	"github.com/scribble-board/scribble/scribble-board/linedao"
	"github.com/scribble-board/scribble/scribble-board/raster"
	scribblecli "github.com/scribble-board/scribble/scribble-cli"
)

const (
	DefaultMinEvents = 10
	DefaultWorkers   = 4
	DefaultSettle    = 5 * time.Second
)

// Boards is the part of the board registry the compactor needs.
type Boards interface {
	List(ctx context.Context) ([]boarddao.Board, error)
	ApplySnapshot(ctx context.Context, boardID string, createdTS, watermark int64, image []byte) error
}

// Lines is the part of the line log the compactor needs.
type Lines interface {
	Query(ctx context.Context, boardID string, after int64) ([]linedao.Line, error)
	PruneUpTo(ctx context.Context, boardID string, watermark int64) (int, error)
}

// Archiver keeps a copy of each committed snapshot.
type Archiver interface {
	Archive(ctx context.Context, boardID string, watermark int64, image []byte) error
}

// Outcome of compacting one board.
type Outcome string

const (
	Compacted Outcome = "compacted"
	Skipped   Outcome = "skipped"
	Failed    Outcome = "failed"
)

// Summary totals one compaction round.
type Summary struct {
	Boards    int
	Compacted int
	Skipped   int
	Failed    int
	Lines     int
}

// Compactor runs compaction rounds. It must not run concurrently with itself
// on the same board; a scheduled job with one invocation at a time satisfies
// that.
type Compactor struct {
	Boards     Boards
	Lines      Lines
	Rasterizer raster.Rasterizer
	Archiver   Archiver // optional
	Metrics    scribblecli.Recorder
	Logger     zerolog.Logger
	MinEvents  int  // boards with fewer outstanding lines are skipped (default 10)
	Workers    int  // boards compacted in parallel (default 4)
	Prune      bool // delete folded lines once the snapshot is committed

	// Settle leaves lines younger than this out of the round, so an append
	// from a writer with a lagging clock lands above the watermark rather
	// than below it. Zero folds everything.
	Settle time.Duration

	now func() time.Time
}

// Run compacts every board once. A failure on one board is logged and counted;
// only failing to enumerate the boards fails the round.
func (c *Compactor) Run(ctx context.Context) (Summary, error) {
	begin := time.Now()
	ctx = c.Logger.WithContext(ctx)

	boards, err := c.Boards.List(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to enumerate boards: %w", err)
	}

	workers := c.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var (
		mu      sync.Mutex
		summary = Summary{Boards: len(boards)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, board := range boards {
		board := board
		g.Go(func() error {
			outcome, folded, err := c.CompactBoard(gctx, board)
			if err != nil {
				c.Logger.Error().Err(err).Str("board_id", board.ID).Msg("failed to compact board")
			}

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case Compacted:
				summary.Compacted++
				summary.Lines += folded
			case Skipped:
				summary.Skipped++
			default:
				summary.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	c.metrics().Gauge(ctx, scribblecli.BoardsCompactedMetric, float64(summary.Compacted))
	c.metrics().Gauge(ctx, scribblecli.LinesCompactedMetric, float64(summary.Lines))
	if summary.Failed > 0 {
		c.metrics().Gauge(ctx, scribblecli.CompactionFailedMetric, float64(summary.Failed))
	}
	c.metrics().Timing(ctx, scribblecli.ResponseTimeMetric, begin, scribblecli.Operation("compact"))

	c.Logger.Info().
		Dur("elapsed", time.Since(begin)).
		Int("boards", summary.Boards).
		Int("compacted", summary.Compacted).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int("lines", summary.Lines).
		Msg("compaction round complete")

	return summary, nil
}

// CompactBoard folds the board's lines after its watermark into its snapshot.
// The new watermark is the ts of the last folded line, so a line appended
// while this runs stays after the watermark and is folded next round.
func (c *Compactor) CompactBoard(ctx context.Context, board boarddao.Board) (Outcome, int, error) {
	logger := c.Logger.With().Str("board_id", board.ID).Logger()

	lines, err := c.Lines.Query(ctx, board.ID, board.LastCompactedTS)
	if err != nil {
		return Failed, 0, err
	}

	if c.Settle > 0 {
		lines = settled(lines, c.clock().Add(-c.Settle).UnixMilli())
	}

	minEvents := c.MinEvents
	if minEvents <= 0 {
		minEvents = DefaultMinEvents
	}
	if len(lines) == 0 || len(lines) < minEvents {
		logger.Debug().Int("lines", len(lines)).Int("min", minEvents).Msg("not enough lines to compact")
		return Skipped, 0, nil
	}

	strokes := make([]scribbleboard.Stroke, len(lines))
	for i, line := range lines {
		strokes[i] = line.Stroke
	}

	image, err := c.Rasterizer.Render(board.SnapshotImage, strokes)
	if err != nil {
		return Failed, 0, fmt.Errorf("failed to render board %v: %w", board.ID, err)
	}

	watermark := lines[len(lines)-1].TS
	if err := c.Boards.ApplySnapshot(ctx, board.ID, board.CreatedTS, watermark, image); err != nil {
		return Failed, 0, err
	}

	logger.Info().
		Int("lines", len(lines)).
		Int64("previous_watermark", board.LastCompactedTS).
		Int64("watermark", watermark).
		Int("bytes", len(image)).
		Msg("snapshot committed")

	if c.Archiver != nil {
		if err := c.Archiver.Archive(ctx, board.ID, watermark, image); err != nil {
			logger.Warn().Err(err).Msg("failed to archive snapshot")
		}
	}

	if c.Prune {
		if _, err := c.Lines.PruneUpTo(ctx, board.ID, watermark); err != nil {
			// the snapshot is committed; the next successful prune removes these too
			logger.Warn().Err(err).Msg("failed to prune lines")
		}
	}

	return Compacted, len(lines), nil
}

// settled returns the prefix of the ascending lines with ts <= cutoff.
func settled(lines []linedao.Line, cutoff int64) []linedao.Line {
	n := sort.Search(len(lines), func(i int) bool { return lines[i].TS > cutoff })
	return lines[:n]
}

func (c *Compactor) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

func (c *Compactor) metrics() scribblecli.Recorder {
	if c.Metrics == nil {
		return scribblecli.NopMetrics{}
	}
	return c.Metrics
}
