package connectiondao

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tj/assert"

	scribbleboard "github.com/scribble-board/scribble/scribble-board"
	"github.com/scribble-board/scribble/scribble-board/boarddao"
	"github.com/scribble-board/scribble/scribble-board/store/memstore"
)

func withBoards(t *testing.T, n int, callback func(ctx context.Context, dao *DAO, boards []boarddao.Board)) {
	var (
		ctx      = context.Background()
		s        = memstore.New()
		registry = boarddao.New(s, nil)
		dao      = New(s, registry, 0)
		boards   []boarddao.Board
	)

	for i := 0; i < n; i++ {
		board, err := registry.Create(ctx)
		assert.NoError(t, err)
		boards = append(boards, board)
	}

	callback(ctx, dao, boards)
}

func TestJoin(t *testing.T) {
	withBoards(t, 1, func(ctx context.Context, dao *DAO, boards []boarddao.Board) {
		board := boards[0]

		conn, err := dao.Join(ctx, "conn-a", board.ID)
		assert.NoError(t, err)
		assert.Equal(t, board.ID, conn.BoardID)
		assert.True(t, conn.TTL > time.Now().Unix())

		_, err = dao.Join(ctx, "conn-b", board.ID)
		assert.NoError(t, err)

		members, err := dao.MembersOf(ctx, board.ID)
		assert.NoError(t, err)
		assert.ElementsMatch(t, []string{"conn-a", "conn-b"}, members)

		got, err := dao.Get(ctx, "conn-a")
		assert.NoError(t, err)
		assert.Equal(t, conn, got)
	})
}

func TestJoinUnknownBoard(t *testing.T) {
	withBoards(t, 0, func(ctx context.Context, dao *DAO, _ []boarddao.Board) {
		_, err := dao.Join(ctx, "conn-a", "ghost")
		assert.True(t, errors.Is(err, scribbleboard.ErrBoardNotFound))

		_, err = dao.Get(ctx, "conn-a")
		assert.True(t, errors.Is(err, scribbleboard.ErrConnectionNotFound))
	})
}

func TestJoinSameMillisecond(t *testing.T) {
	withBoards(t, 1, func(ctx context.Context, dao *DAO, boards []boarddao.Board) {
		dao.now = func() time.Time { return time.UnixMilli(42_000) }

		for _, id := range []string{"a", "b", "c"} {
			_, err := dao.Join(ctx, id, boards[0].ID)
			assert.NoError(t, err)
		}

		members, err := dao.MembersOf(ctx, boards[0].ID)
		assert.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b", "c"}, members)

		for _, id := range []string{"a", "b", "c"} {
			boardID, ok, err := dao.Leave(ctx, id)
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, boards[0].ID, boardID)
		}

		members, err = dao.MembersOf(ctx, boards[0].ID)
		assert.NoError(t, err)
		assert.Len(t, members, 0)
	})
}

func TestLeaveIsIdempotent(t *testing.T) {
	withBoards(t, 2, func(ctx context.Context, dao *DAO, boards []boarddao.Board) {
		_, err := dao.Join(ctx, "conn-a", boards[0].ID)
		assert.NoError(t, err)

		boardID, ok, err := dao.Leave(ctx, "conn-a")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, boards[0].ID, boardID)

		boardID, ok, err = dao.Leave(ctx, "conn-a")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, "", boardID)

		for _, board := range boards {
			members, err := dao.MembersOf(ctx, board.ID)
			assert.NoError(t, err)
			assert.NotContains(t, members, "conn-a")
		}

		_, ok, err = dao.Leave(ctx, "never-joined")
		assert.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestJoinMovesBoards(t *testing.T) {
	withBoards(t, 2, func(ctx context.Context, dao *DAO, boards []boarddao.Board) {
		_, err := dao.Join(ctx, "conn-a", boards[0].ID)
		assert.NoError(t, err)
		_, err = dao.Join(ctx, "conn-a", boards[1].ID)
		assert.NoError(t, err)

		first, err := dao.MembersOf(ctx, boards[0].ID)
		assert.NoError(t, err)
		assert.Len(t, first, 0)

		second, err := dao.MembersOf(ctx, boards[1].ID)
		assert.NoError(t, err)
		assert.Equal(t, []string{"conn-a"}, second)
	})
}

func TestMembersOfSkipsExpired(t *testing.T) {
	withBoards(t, 1, func(ctx context.Context, dao *DAO, boards []boarddao.Board) {
		_, err := dao.Join(ctx, "stale", boards[0].ID)
		assert.NoError(t, err)

		dao.now = func() time.Time { return time.Now().Add(DefaultTTL + time.Minute) }
		_, err = dao.Join(ctx, "fresh", boards[0].ID)
		assert.NoError(t, err)

		members, err := dao.MembersOf(ctx, boards[0].ID)
		assert.NoError(t, err)
		assert.Equal(t, []string{"fresh"}, members)
	})
}
