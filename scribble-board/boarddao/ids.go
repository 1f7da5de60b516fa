package boarddao

import (
	"strings"

	"github.com/google/uuid"
)

// IDGenerator produces candidate board ids. Candidates may collide; the DAO
// checks and retries.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator draws ids from random (version 4) UUIDs: 122 random bits, so
// a collision is not expected before ~2^61 boards exist.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() string

func (fn IDGeneratorFunc) NewID() string { return fn() }
