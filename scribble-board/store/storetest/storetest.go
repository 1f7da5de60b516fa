// Package storetest holds the behaviour every store.Store must share.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/tj/assert"

	"github.com/scribble-board/scribble/scribble-board/store"
)

// Run exercises s against the store.Store contract. s must start empty.
func Run(t *testing.T, s store.Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Get(ctx, "missing", 1)
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("create then conflict", func(t *testing.T) {
		item := store.Item{PK: store.BoardKey("b1"), SK: 100, BoardID: "b1"}
		assert.NoError(t, s.Create(ctx, item))

		err := s.Create(ctx, store.Item{PK: item.PK, SK: item.SK, BoardID: "other"})
		assert.True(t, errors.Is(err, store.ErrConflict))

		got, err := s.Get(ctx, item.PK, item.SK)
		assert.NoError(t, err)
		assert.Equal(t, "b1", got.BoardID)
	})

	t.Run("query after", func(t *testing.T) {
		pk := store.LineKey("q1")
		for _, sk := range []int64{30, 10, 20} {
			assert.NoError(t, s.Create(ctx, store.Item{PK: pk, SK: sk, Data: []byte("x")}))
		}
		assert.NoError(t, s.Create(ctx, store.Item{PK: store.LineKey("q2"), SK: 15}))

		items, err := s.Query(ctx, pk, 0)
		assert.NoError(t, err)
		assert.Equal(t, []int64{10, 20, 30}, sks(items))

		items, err = s.Query(ctx, pk, 10)
		assert.NoError(t, err)
		assert.Equal(t, []int64{20, 30}, sks(items))

		items, err = s.Query(ctx, pk, 30)
		assert.NoError(t, err)
		assert.Len(t, items, 0)
	})

	t.Run("last", func(t *testing.T) {
		last, err := s.Last(ctx, store.LineKey("q1"))
		assert.NoError(t, err)
		assert.EqualValues(t, 30, last.SK)

		_, err = s.Last(ctx, store.LineKey("empty"))
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("scan prefix", func(t *testing.T) {
		assert.NoError(t, s.Create(ctx, store.Item{PK: store.BoardKey("b2"), SK: 200, BoardID: "b2"}))

		items, err := s.Scan(ctx, store.BoardPrefix)
		assert.NoError(t, err)

		var ids []string
		for _, item := range items {
			ids = append(ids, item.BoardID)
		}
		assert.ElementsMatch(t, []string{"b1", "b2"}, ids)
	})

	t.Run("advance watermark", func(t *testing.T) {
		pk := store.BoardKey("b1")
		assert.NoError(t, s.AdvanceWatermark(ctx, pk, 100, 50, []byte("img-50")))

		got, err := s.Get(ctx, pk, 100)
		assert.NoError(t, err)
		assert.EqualValues(t, 50, got.LastCompactedTS)
		assert.Equal(t, []byte("img-50"), got.Image)

		// same watermark again is allowed
		assert.NoError(t, s.AdvanceWatermark(ctx, pk, 100, 50, []byte("img-50")))

		err = s.AdvanceWatermark(ctx, pk, 100, 40, []byte("img-40"))
		assert.True(t, errors.Is(err, store.ErrConflict))

		err = s.AdvanceWatermark(ctx, pk, 999, 60, []byte("img-60"))
		assert.True(t, errors.Is(err, store.ErrConflict))

		got, err = s.Get(ctx, pk, 100)
		assert.NoError(t, err)
		assert.EqualValues(t, 50, got.LastCompactedTS)
	})

	t.Run("delete", func(t *testing.T) {
		pk := store.ConnectionKey("c1")
		assert.NoError(t, s.Create(ctx, store.Item{PK: pk, SK: 1, BoardID: "b1"}))
		assert.NoError(t, s.Delete(ctx, pk, 1))
		assert.NoError(t, s.Delete(ctx, pk, 1))

		_, err := s.Get(ctx, pk, 1)
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("delete up to", func(t *testing.T) {
		pk := store.LineKey("p1")
		for sk := int64(1); sk <= 30; sk++ {
			assert.NoError(t, s.Create(ctx, store.Item{PK: pk, SK: sk}))
		}

		n, err := s.DeleteUpTo(ctx, pk, 27)
		assert.NoError(t, err)
		assert.Equal(t, 27, n)

		items, err := s.Query(ctx, pk, 0)
		assert.NoError(t, err)
		assert.Equal(t, []int64{28, 29, 30}, sks(items))
	})
}

func sks(items []store.Item) []int64 {
	var out []int64
	for _, item := range items {
		out = append(out, item.SK)
	}
	return out
}
