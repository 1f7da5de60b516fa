// Package connectiondao is the connection directory: which board each
// connection joined, and which connections are on each board.
package connectiondao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	scribbleboard "github.com/scribble-board/scribble/scribble-board"
	"github.com/scribble-board/scribble/scribble-board/boarddao"
	"github.com/scribble-board/scribble/scribble-board/store"
)

// DefaultTTL expires rows whose $disconnect was never delivered.
const DefaultTTL = 2 * time.Hour

const maxJoinAttempts = 16

// Boards is the part of the board registry the directory needs.
type Boards interface {
	Get(ctx context.Context, boardID string) (boarddao.Board, error)
}

// DAO provides access to connection and membership rows.
type DAO struct {
	store  store.Store
	boards Boards
	ttl    time.Duration
	now    func() time.Time
}

// New creates a connection DAO. A zero ttl selects DefaultTTL.
func New(s store.Store, boards Boards, ttl time.Duration) *DAO {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DAO{
		store:  s,
		boards: boards,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Join registers connID as a member of boardID. The board must exist. A
// connection already on another board is moved.
func (d *DAO) Join(ctx context.Context, connID, boardID string) (Connection, error) {
	if _, err := d.boards.Get(ctx, boardID); err != nil {
		return Connection{}, err
	}

	if previous, ok, err := d.Leave(ctx, connID); err != nil {
		return Connection{}, err
	} else if ok {
		zerolog.Ctx(ctx).Info().
			Str("connection_id", connID).
			Str("from_board_id", previous).
			Str("board_id", boardID).
			Msg("connection moved boards")
	}

	now := d.now()
	conn := Connection{
		ConnectionID: connID,
		BoardID:      boardID,
		JoinedTS:     now.UnixMilli(),
		TTL:          now.Add(d.ttl).Unix(),
	}

	// two connections joining the same board in the same millisecond would
	// share a membership key; bump until the key is free
	var joined bool
	for attempt := 0; attempt < maxJoinAttempts; attempt++ {
		err := d.store.Create(ctx, conn.membershipItem())
		if err == nil {
			joined = true
			break
		}
		if !errors.Is(err, store.ErrConflict) {
			return Connection{}, fmt.Errorf("failed to add %v to board %v: %w", connID, boardID, err)
		}
		conn.JoinedTS++
	}
	if !joined {
		return Connection{}, fmt.Errorf("failed to add %v to board %v after %v attempts: %w", connID, boardID, maxJoinAttempts, scribbleboard.ErrConflict)
	}

	if err := d.store.Create(ctx, conn.connectionItem()); err != nil {
		if delErr := d.store.Delete(ctx, store.MembershipKey(boardID), conn.JoinedTS); delErr != nil {
			zerolog.Ctx(ctx).Error().Err(delErr).Str("connection_id", connID).Msg("failed to roll back membership")
		}
		return Connection{}, fmt.Errorf("failed to store connection %v: %w", connID, err)
	}
	return conn, nil
}

// Get returns the connection or scribbleboard.ErrConnectionNotFound.
func (d *DAO) Get(ctx context.Context, connID string) (Connection, error) {
	items, err := d.store.Query(ctx, store.ConnectionKey(connID), 0)
	if err != nil {
		return Connection{}, fmt.Errorf("failed to get connection %v: %w", connID, err)
	}
	if len(items) == 0 {
		return Connection{}, fmt.Errorf("connection %v: %w", connID, scribbleboard.ErrConnectionNotFound)
	}
	return fromItem(items[0]), nil
}

// Leave removes the connection and its membership row and returns the board
// it vacated. Leaving an unknown connection returns ok == false and no error.
func (d *DAO) Leave(ctx context.Context, connID string) (boardID string, ok bool, err error) {
	items, err := d.store.Query(ctx, store.ConnectionKey(connID), 0)
	if err != nil {
		return "", false, fmt.Errorf("failed to get connection %v: %w", connID, err)
	}
	if len(items) == 0 {
		return "", false, nil
	}

	for _, item := range items {
		conn := fromItem(item)
		if err := d.store.Delete(ctx, store.MembershipKey(conn.BoardID), conn.JoinedTS); err != nil {
			return "", false, fmt.Errorf("failed to remove %v from board %v: %w", connID, conn.BoardID, err)
		}
		if err := d.store.Delete(ctx, item.PK, item.SK); err != nil {
			return "", false, fmt.Errorf("failed to delete connection %v: %w", connID, err)
		}
		boardID = conn.BoardID
	}
	return boardID, true, nil
}

// MembersOf returns the ids of the connections on the board, in no particular
// order. Rows past their TTL are skipped; DynamoDB expires them lazily.
func (d *DAO) MembersOf(ctx context.Context, boardID string) ([]string, error) {
	items, err := d.store.Query(ctx, store.MembershipKey(boardID), 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query members of board %v: %w", boardID, err)
	}

	now := d.now().Unix()
	seen := map[string]bool{}
	members := make([]string, 0, len(items))
	for _, item := range items {
		if item.TTL > 0 && item.TTL < now {
			continue
		}
		if seen[item.ConnectionID] {
			continue
		}
		seen[item.ConnectionID] = true
		members = append(members, item.ConnectionID)
	}
	return members, nil
}
