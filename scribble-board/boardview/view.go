// Package boardview assembles what a client needs to show a board: the
// latest snapshot plus every line drawn since it was taken.
package boardview

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/scribble-board/scribble/scribble-board/boarddao"
	"github.com/scribble-board/scribble/scribble-board/linedao"
)

// maxAttempts bounds the re-reads when a compaction commits mid-load.
const maxAttempts = 3

type Boards interface {
	Get(ctx context.Context, boardID string) (boarddao.Board, error)
}

type Lines interface {
	Query(ctx context.Context, boardID string, after int64) ([]linedao.Line, error)
}

// View is a consistent picture of a board: Image renders every line with
// ts <= Watermark and Lines holds the rest in ts order.
type View struct {
	BoardID   string
	Watermark int64
	Image     []byte
	Lines     []linedao.Line
}

// Load reads the board, then its lines after the board's watermark. If the
// watermark moved between the two reads the lines may have been pruned, so
// the load starts over.
func Load(ctx context.Context, boards Boards, lines Lines, boardID string) (View, error) {
	logger := zerolog.Ctx(ctx)

	board, err := boards.Get(ctx, boardID)
	if err != nil {
		return View{}, err
	}

	for attempt := 1; ; attempt++ {
		pending, err := lines.Query(ctx, boardID, board.LastCompactedTS)
		if err != nil {
			return View{}, err
		}

		again, err := boards.Get(ctx, boardID)
		if err != nil {
			return View{}, err
		}
		if again.LastCompactedTS == board.LastCompactedTS {
			return View{
				BoardID:   boardID,
				Watermark: board.LastCompactedTS,
				Image:     board.SnapshotImage,
				Lines:     pending,
			}, nil
		}

		logger.Debug().
			Str("board_id", boardID).
			Int64("watermark", board.LastCompactedTS).
			Int64("moved_to", again.LastCompactedTS).
			Msg("watermark moved while loading board")
		if attempt == maxAttempts {
			return View{}, fmt.Errorf("board %v kept compacting during %v loads", boardID, maxAttempts)
		}
		board = again
	}
}
