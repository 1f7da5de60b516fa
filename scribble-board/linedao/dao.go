// Package linedao is the per-board, append-only log of strokes.
package linedao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	scribbleboard "github.com/scribble-board/scribble/scribble-board"
	"github.com/scribble-board/scribble/scribble-board/boarddao"
	"github.com/scribble-board/scribble/scribble-board/store"
)

// maxAppendAttempts bounds how often Append re-keys after losing a race for a ts.
const maxAppendAttempts = 16

// Boards is the part of the board registry the log needs.
type Boards interface {
	Get(ctx context.Context, boardID string) (boarddao.Board, error)
}

// DAO provides access to line rows.
type DAO struct {
	store  store.Store
	boards Boards
	now    func() time.Time
}

// New creates a line DAO.
func New(s store.Store, boards Boards) *DAO {
	return &DAO{
		store:  s,
		boards: boards,
		now:    time.Now,
	}
}

// Append adds a stroke to the board's log and returns it with its assigned ts.
// The ts is the current time in millis unless that would not be strictly
// greater than the board's last ts, in which case it is last+1. Keys are
// written conditionally, so a concurrent append never overwrites another.
// A ts never falls at or below the board's watermark, even after the log
// was pruned. A stroke that fails validation is rejected with a
// *scribbleboard.MalformedInputError.
func (d *DAO) Append(ctx context.Context, boardID string, stroke scribbleboard.Stroke) (Line, error) {
	if err := stroke.Validate(); err != nil {
		return Line{}, err
	}

	board, err := d.boards.Get(ctx, boardID)
	if err != nil {
		return Line{}, err
	}

	data, err := json.Marshal(stroke)
	if err != nil {
		return Line{}, fmt.Errorf("failed to marshal stroke for board %v: %w", boardID, err)
	}

	pk := store.LineKey(boardID)
	ts := d.now().UnixMilli()
	if ts <= board.LastCompactedTS {
		ts = board.LastCompactedTS + 1
	}
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		last, err := d.store.Last(ctx, pk)
		switch {
		case err == nil:
			if ts <= last.SK {
				ts = last.SK + 1
			}
		case !errors.Is(err, store.ErrNotFound):
			return Line{}, fmt.Errorf("failed to read last line of board %v: %w", boardID, err)
		}

		item := store.Item{PK: pk, SK: ts, BoardID: boardID, Data: data}
		if err := d.store.Create(ctx, item); err != nil {
			if errors.Is(err, store.ErrConflict) {
				ts++
				continue
			}
			return Line{}, fmt.Errorf("failed to append line to board %v: %w", boardID, err)
		}

		if attempt > 0 {
			zerolog.Ctx(ctx).Debug().
				Str("board_id", boardID).
				Int("attempts", attempt+1).
				Int64("ts", ts).
				Msg("line re-keyed after ts collision")
		}
		return Line{BoardID: boardID, TS: ts, Stroke: stroke}, nil
	}
	return Line{}, fmt.Errorf("failed to append line to board %v after %v attempts: %w", boardID, maxAppendAttempts, scribbleboard.ErrConflict)
}

// Query returns the board's lines with ts > after in ascending ts order. An
// after of 0 returns the whole log.
func (d *DAO) Query(ctx context.Context, boardID string, after int64) ([]Line, error) {
	items, err := d.store.Query(ctx, store.LineKey(boardID), after)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines of board %v: %w", boardID, err)
	}

	lines := make([]Line, 0, len(items))
	for _, item := range items {
		var stroke scribbleboard.Stroke
		if err := json.Unmarshal(item.Data, &stroke); err != nil {
			return nil, fmt.Errorf("failed to decode line %v of board %v: %w", item.SK, boardID, err)
		}
		lines = append(lines, Line{BoardID: boardID, TS: item.SK, Stroke: stroke})
	}
	return lines, nil
}

// PruneUpTo deletes the board's lines with ts <= watermark.
func (d *DAO) PruneUpTo(ctx context.Context, boardID string, watermark int64) (n int, err error) {
	defer func(begin time.Time) {
		zerolog.Ctx(ctx).Info().
			Dur("elapsed", time.Since(begin)).
			Err(err).
			Str("board_id", boardID).
			Int64("watermark", watermark).
			Int("pruned", n).
			Msg("pruned lines")
	}(time.Now())

	n, err = d.store.DeleteUpTo(ctx, store.LineKey(boardID), watermark)
	if err != nil {
		return n, fmt.Errorf("failed to prune board %v up to %v: %w", boardID, watermark, err)
	}
	return n, nil
}
