package scribblews

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/tj/assert"

	scribbleboard "github.com/scribble-board/scribble/scribble-board"
)

type staticMembers struct {
	mu      sync.Mutex
	members []string
	left    []string
}

func (s *staticMembers) MembersOf(context.Context, string) ([]string, error) {
	return s.members, nil
}

func (s *staticMembers) Leave(_ context.Context, connID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = append(s.left, connID)
	return "b1", true, nil
}

func TestNotifyOthers(t *testing.T) {
	ctx := context.Background()

	var members []string
	for i := 0; i < 120; i++ {
		members = append(members, fmt.Sprintf("conn-%03d", i))
	}
	dir := &staticMembers{members: members}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	b := &Broadcaster{
		Members: dir,
		Sender: SenderFunc(func(_ context.Context, connID string, _ []byte) error {
			mu.Lock()
			defer mu.Unlock()
			seen[connID]++
			switch connID {
			case "conn-007":
				return ErrGone
			case "conn-008":
				return errors.New("boom")
			}
			return nil
		}),
		Logger:      zerolog.Nop(),
		Concurrency: 8,
	}

	err := b.NotifyOthers(ctx, "b1", "conn-000", ActionLineAdded, scribbleboard.Stroke{})
	assert.NoError(t, err)
	assert.Len(t, seen, 119)
	assert.Equal(t, 0, seen["conn-000"])
	for connID, n := range seen {
		assert.Equal(t, 1, n, connID)
	}
	assert.Equal(t, []string{"conn-007"}, dir.left)
}

func TestSendTo(t *testing.T) {
	ctx := context.Background()
	dir := &staticMembers{}
	b := &Broadcaster{
		Members: dir,
		Sender: SenderFunc(func(context.Context, string, []byte) error {
			return ErrGone
		}),
		Logger: zerolog.Nop(),
	}

	err := b.SendTo(ctx, "A", ActionBoardID, BoardIDPayload{BoardID: "b1"})
	assert.True(t, errors.Is(err, scribbleboard.ErrDeliveryFailure))
	assert.True(t, errors.Is(err, ErrGone))
	assert.Equal(t, []string{"A"}, dir.left)
}
