package connectiondao

import "github.com/scribble-board/scribble/scribble-board/store"

// Connection is a client joined to a board. The connection row and the
// board's membership row share JoinedTS so both can be deleted by it.
type Connection struct {
	ConnectionID string
	BoardID      string
	JoinedTS     int64
	TTL          int64
}

func (c Connection) connectionItem() store.Item {
	return store.Item{
		PK:           store.ConnectionKey(c.ConnectionID),
		SK:           c.JoinedTS,
		BoardID:      c.BoardID,
		ConnectionID: c.ConnectionID,
		TTL:          c.TTL,
	}
}

func (c Connection) membershipItem() store.Item {
	return store.Item{
		PK:           store.MembershipKey(c.BoardID),
		SK:           c.JoinedTS,
		BoardID:      c.BoardID,
		ConnectionID: c.ConnectionID,
		TTL:          c.TTL,
	}
}

func fromItem(item store.Item) Connection {
	return Connection{
		ConnectionID: item.ConnectionID,
		BoardID:      item.BoardID,
		JoinedTS:     item.SK,
		TTL:          item.TTL,
	}
}
