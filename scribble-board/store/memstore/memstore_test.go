package memstore

import (
	"testing"

	"github.com/scribble-board/scribble/scribble-board/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, New())
}
