// Package store defines the single-table key-value contract the board engine is
// written against. Items are addressed by a partition key and a numeric
// ordering key; entity families are told apart by partition key prefix.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no item exists at a key.
	ErrNotFound = errors.New("item not found")

	// ErrConflict is returned when a conditional write's condition failed.
	ErrConflict = errors.New("condition failed")
)

// Partition key prefixes of the entity families sharing the table.
const (
	BoardPrefix      = "board#"
	MembershipPrefix = "board_conns#"
	ConnectionPrefix = "conn#"
	LinePrefix       = "line#"
)

func BoardKey(boardID string) string { return BoardPrefix + boardID }
func MembershipKey(boardID string) string { return MembershipPrefix + boardID }
func ConnectionKey(connID string) string { return ConnectionPrefix + connID }
func LineKey(boardID string) string { return LinePrefix + boardID }

// Item is one row of the table. Which attributes are set depends on the
// family: board rows carry the snapshot, line rows carry Data, connection and
// membership rows carry the ids that link them.
type Item struct {
	PK string `dynamodbav:"pk" ddb:"hash"`
	SK int64  `dynamodbav:"sk" ddb:"range"`

	BoardID         string `dynamodbav:"board_id,omitempty"`
	ConnectionID    string `dynamodbav:"connection_id,omitempty"`
	Data            []byte `dynamodbav:"data,omitempty"`
	LastCompactedTS int64  `dynamodbav:"last_compacted_ts,omitempty"`
	Image           []byte `dynamodbav:"image,omitempty"`
	TTL             int64  `dynamodbav:"ttl,omitempty"`
}

func (i Item) String() string {
	return fmt.Sprintf("%v/%v", i.PK, i.SK)
}

// Store is the storage primitive. Each single-item write is atomic; there are
// no cross-item transactions.
type Store interface {
	// Get returns the item at (pk, sk) or ErrNotFound.
	Get(ctx context.Context, pk string, sk int64) (Item, error)

	// Query returns the items of a partition with sk > after, ascending.
	Query(ctx context.Context, pk string, after int64) ([]Item, error)

	// Last returns the item with the greatest sk in a partition, or ErrNotFound.
	Last(ctx context.Context, pk string) (Item, error)

	// Scan returns every item whose partition key starts with prefix.
	Scan(ctx context.Context, prefix string) ([]Item, error)

	// Create writes an item that must not exist yet; ErrConflict otherwise.
	Create(ctx context.Context, item Item) error

	// AdvanceWatermark sets LastCompactedTS and Image together on an existing
	// item. It fails with ErrConflict when the item is missing or already
	// carries a greater watermark.
	AdvanceWatermark(ctx context.Context, pk string, sk int64, watermark int64, image []byte) error

	// Delete removes the item at (pk, sk). Deleting a missing item is not an error.
	Delete(ctx context.Context, pk string, sk int64) error

	// DeleteUpTo removes every item of a partition with sk <= upTo and returns
	// how many were removed.
	DeleteUpTo(ctx context.Context, pk string, upTo int64) (int, error)
}
