// Package boarddao is the board registry: it creates and resolves boards and
// records each board's compaction watermark and snapshot.
package boarddao

import (
	"context"
	"errors"
	"fmt"
	"time"

	scribbleboard "github.com/scribble-board/scribble/scribble-board"
	"github.com/scribble-board/scribble/scribble-board/store"
)

// maxIDAttempts bounds the retry loop when a generated id is already taken.
const maxIDAttempts = 5

// DAO provides access to board rows.
type DAO struct {
	store store.Store
	ids   IDGenerator
	now   func() time.Time
}

// New creates a board DAO. A nil generator selects UUIDGenerator.
func New(s store.Store, ids IDGenerator) *DAO {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	return &DAO{
		store: s,
		ids:   ids,
		now:   time.Now,
	}
}

// Resolve creates a board when requestedID is NewBoard, otherwise looks it up.
func (d *DAO) Resolve(ctx context.Context, requestedID string) (Board, error) {
	if requestedID == NewBoard {
		return d.Create(ctx)
	}
	return d.Get(ctx, requestedID)
}

// Create allocates a fresh board id and writes the board row.
func (d *DAO) Create(ctx context.Context) (Board, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := d.ids.NewID()
		if id == "" || id == NewBoard {
			continue
		}

		if _, err := d.Get(ctx, id); err == nil {
			continue
		} else if !errors.Is(err, scribbleboard.ErrBoardNotFound) {
			return Board{}, err
		}

		board := Board{
			ID:        id,
			CreatedTS: d.now().UnixMilli(),
		}
		if err := d.store.Create(ctx, board.item()); err != nil {
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return Board{}, fmt.Errorf("failed to create board %v: %w", id, err)
		}
		return board, nil
	}
	return Board{}, fmt.Errorf("failed to allocate a board id after %v attempts: %w", maxIDAttempts, scribbleboard.ErrConflict)
}

// Get returns the board or scribbleboard.ErrBoardNotFound.
func (d *DAO) Get(ctx context.Context, boardID string) (Board, error) {
	if boardID == "" {
		return Board{}, scribbleboard.ErrBoardNotFound
	}
	items, err := d.store.Query(ctx, store.BoardKey(boardID), 0)
	if err != nil {
		return Board{}, fmt.Errorf("failed to get board %v: %w", boardID, err)
	}
	if len(items) == 0 {
		return Board{}, fmt.Errorf("board %v: %w", boardID, scribbleboard.ErrBoardNotFound)
	}
	// a board row is never rewritten under a new key; the earliest row is the board
	return fromItem(items[0]), nil
}

// List returns every board.
func (d *DAO) List(ctx context.Context) ([]Board, error) {
	items, err := d.store.Scan(ctx, store.BoardPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}

	seen := map[string]bool{}
	boards := make([]Board, 0, len(items))
	for _, item := range items {
		if seen[item.BoardID] {
			continue
		}
		seen[item.BoardID] = true
		boards = append(boards, fromItem(item))
	}
	return boards, nil
}

// ApplySnapshot sets the watermark and snapshot image of the board row keyed by
// (boardID, createdTS) in one conditional write. It returns
// scribbleboard.ErrConflict when the row is gone or already carries a later
// watermark.
func (d *DAO) ApplySnapshot(ctx context.Context, boardID string, createdTS, watermark int64, image []byte) error {
	err := d.store.AdvanceWatermark(ctx, store.BoardKey(boardID), createdTS, watermark, image)
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("board %v snapshot at %v: %w", boardID, watermark, scribbleboard.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to apply snapshot to board %v: %w", boardID, err)
	}
	return nil
}
