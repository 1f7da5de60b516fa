package boarddao

import "github.com/scribble-board/scribble/scribble-board/store"

// NewBoard is the board id a client sends to ask for a fresh board.
const NewBoard = "new"

// Board is a drawing surface. LastCompactedTS and SnapshotImage are zero until
// the first compaction; together they stand for every line with
// ts <= LastCompactedTS, rendered.
type Board struct {
	ID              string
	CreatedTS       int64
	LastCompactedTS int64
	SnapshotImage   []byte
}

// HasSnapshot reports whether the board has been compacted at least once.
func (b Board) HasSnapshot() bool {
	return b.LastCompactedTS > 0 && len(b.SnapshotImage) > 0
}

func (b Board) item() store.Item {
	return store.Item{
		PK:              store.BoardKey(b.ID),
		SK:              b.CreatedTS,
		BoardID:         b.ID,
		LastCompactedTS: b.LastCompactedTS,
		Image:           b.SnapshotImage,
	}
}

func fromItem(item store.Item) Board {
	return Board{
		ID:              item.BoardID,
		CreatedTS:       item.SK,
		LastCompactedTS: item.LastCompactedTS,
		SnapshotImage:   item.Image,
	}
}
