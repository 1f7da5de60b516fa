package scribblews

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/tj/assert"

	scribbleboard "github.com/scribble-board/scribble/scribble-board"
	"github.com/scribble-board/scribble/scribble-board/boarddao"
	"github.com/scribble-board/scribble/scribble-board/connectiondao"
	"github.com/scribble-board/scribble/scribble-board/linedao"
	"github.com/scribble-board/scribble/scribble-board/store/memstore"
)

// outbox records every message sent, per connection.
type outbox struct {
	mu       sync.Mutex
	messages map[string][]Envelope
	gone     map[string]bool
}

func newOutbox() *outbox {
	return &outbox{
		messages: map[string][]Envelope{},
		gone:     map[string]bool{},
	}
}

func (o *outbox) For(string) Sender {
	return SenderFunc(func(_ context.Context, connID string, data []byte) error {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.gone[connID] {
			return ErrGone
		}
		var envelope Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return err
		}
		o.messages[connID] = append(o.messages[connID], envelope)
		return nil
	})
}

func (o *outbox) take(connID string) []Envelope {
	o.mu.Lock()
	defer o.mu.Unlock()
	got := o.messages[connID]
	delete(o.messages, connID)
	return got
}

type fixture struct {
	boards      *boarddao.DAO
	connections *connectiondao.DAO
	lines       *linedao.DAO
	outbox      *outbox
	handler     *Handler
}

func newFixture() *fixture {
	s := memstore.New()
	boards := boarddao.New(s, nil)
	connections := connectiondao.New(s, boards, 0)
	lines := linedao.New(s, boards)
	out := newOutbox()
	return &fixture{
		boards:      boards,
		connections: connections,
		lines:       lines,
		outbox:      out,
		handler: &Handler{
			Boards:      boards,
			Connections: connections,
			Lines:       lines,
			Senders:     out,
			Logger:      zerolog.Nop(),
		},
	}
}

func event(route, connID, body string, query map[string]string) events.APIGatewayWebsocketProxyRequest {
	return events.APIGatewayWebsocketProxyRequest{
		Body:                  body,
		QueryStringParameters: query,
		RequestContext: events.APIGatewayWebsocketProxyRequestContext{
			RouteKey:     route,
			ConnectionID: connID,
			DomainName:   "example.execute-api.us-east-2.amazonaws.com",
			Stage:        "test",
		},
	}
}

func (f *fixture) do(t *testing.T, req events.APIGatewayWebsocketProxyRequest) int {
	resp, err := f.handler.HandleEvent(context.Background(), req)
	assert.NoError(t, err)
	return resp.StatusCode
}

func (f *fixture) connect(t *testing.T, connID, boardID string) int {
	return f.do(t, event("$connect", connID, "", map[string]string{BoardIDParam: boardID}))
}

func (f *fixture) boardOf(t *testing.T, connID string) string {
	conn, err := f.connections.Get(context.Background(), connID)
	assert.NoError(t, err)
	return conn.BoardID
}

func addLineBody(boardID string, stroke scribbleboard.Stroke) string {
	payload, _ := json.Marshal(AddLineRequest{BoardID: boardID, Stroke: stroke})
	body, _ := json.Marshal(Envelope{Action: ActionAddLine, Payload: payload})
	return string(body)
}

func decodeBoardData(t *testing.T, envelope Envelope) BoardData {
	assert.Equal(t, ActionBoardData, envelope.Action)
	var data BoardData
	assert.NoError(t, json.Unmarshal(envelope.Payload, &data))
	return data
}

var stroke = scribbleboard.Stroke{Points: []float64{0, 0, 10, 10}, Color: "#ff0000", Width: 2}

func TestJoinDrawLeave(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	b1, err := f.boards.Create(ctx)
	assert.NoError(t, err)

	assert.Equal(t, 200, f.connect(t, "A", boarddao.NewBoard))
	boardA := f.boardOf(t, "A")
	assert.NotEqual(t, b1.ID, boardA)
	assert.NotEqual(t, boarddao.NewBoard, boardA)

	assert.Equal(t, 200, f.connect(t, "C", b1.ID))
	assert.Equal(t, b1.ID, f.boardOf(t, "C"))

	// A moves onto B1; C hears about it
	assert.Equal(t, 200, f.connect(t, "A", b1.ID))
	roster := f.outbox.take("C")
	assert.Len(t, roster, 1)
	data := decodeBoardData(t, roster[0])
	assert.Equal(t, b1.ID, data.BoardID)
	assert.Equal(t, "C", data.MyConnectionID)
	assert.ElementsMatch(t, []string{"A", "C"}, data.Connections)

	assert.Equal(t, 200, f.do(t, event(ActionAddLine, "A", addLineBody(b1.ID, stroke), nil)))

	got := f.outbox.take("C")
	assert.Len(t, got, 1)
	assert.Equal(t, ActionLineAdded, got[0].Action)
	var added scribbleboard.Stroke
	assert.NoError(t, json.Unmarshal(got[0].Payload, &added))
	assert.Equal(t, stroke, added)
	assert.Len(t, f.outbox.take("A"), 0)

	lines, err := f.lines.Query(ctx, b1.ID, 0)
	assert.NoError(t, err)
	assert.Len(t, lines, 1)

	assert.Equal(t, 200, f.do(t, event("$disconnect", "C", "", nil)))
	got = f.outbox.take("A")
	assert.Len(t, got, 1)
	data = decodeBoardData(t, got[0])
	assert.Equal(t, []string{"A"}, data.Connections)
	assert.Equal(t, "A", data.MyConnectionID)

	t.Run("disconnect twice", func(t *testing.T) {
		assert.Equal(t, 200, f.do(t, event("$disconnect", "C", "", nil)))
		assert.Len(t, f.outbox.take("A"), 0)
	})
}

func TestSharedNewBoard(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	assert.Equal(t, 200, f.connect(t, "A", boarddao.NewBoard))
	b1 := f.boardOf(t, "A")

	assert.Equal(t, 200, f.connect(t, "C", b1))
	got := f.outbox.take("A")
	assert.Len(t, got, 1)
	data := decodeBoardData(t, got[0])
	assert.Equal(t, b1, data.BoardID)
	assert.Equal(t, []string{"A", "C"}, data.Connections)

	assert.Equal(t, 200, f.do(t, event(ActionAddLine, "A", addLineBody(b1, stroke), nil)))
	got = f.outbox.take("C")
	assert.Len(t, got, 1)
	assert.Equal(t, ActionLineAdded, got[0].Action)
	assert.Len(t, f.outbox.take("A"), 0)

	lines, err := f.lines.Query(ctx, b1, 0)
	assert.NoError(t, err)
	assert.Len(t, lines, 1)
	assert.Equal(t, stroke, lines[0].Stroke)

	assert.Equal(t, 200, f.do(t, event("$disconnect", "C", "", nil)))
	got = f.outbox.take("A")
	assert.Len(t, got, 1)
	data = decodeBoardData(t, got[0])
	assert.Equal(t, "A", data.MyConnectionID)
	assert.Equal(t, []string{"A"}, data.Connections)
	assert.Len(t, f.outbox.take("C"), 0)
}

func TestConnect(t *testing.T) {
	f := newFixture()

	t.Run("missing board id", func(t *testing.T) {
		assert.Equal(t, 400, f.connect(t, "A", ""))
	})

	t.Run("unknown board", func(t *testing.T) {
		assert.Equal(t, 400, f.connect(t, "A", "nope"))
		_, err := f.connections.Get(context.Background(), "A")
		assert.True(t, errors.Is(err, scribbleboard.ErrConnectionNotFound))
	})

	t.Run("unknown route", func(t *testing.T) {
		assert.Equal(t, 400, f.do(t, event("subscribe", "A", "", nil)))
	})
}

func TestInitReplaysSnapshotAndLaterLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	board, err := f.boards.Create(ctx)
	assert.NoError(t, err)
	var lines []linedao.Line
	for i := 0; i < 5; i++ {
		line, err := f.lines.Append(ctx, board.ID, stroke)
		assert.NoError(t, err)
		lines = append(lines, line)
	}
	assert.NoError(t, f.boards.ApplySnapshot(ctx, board.ID, board.CreatedTS, lines[2].TS, []byte("snapshot")))

	assert.Equal(t, 200, f.connect(t, "A", board.ID))
	assert.Equal(t, 200, f.do(t, event("$default", "A", `{"action":"init"}`, nil)))

	got := f.outbox.take("A")
	assert.Len(t, got, 1)
	data := decodeBoardData(t, got[0])
	assert.Equal(t, board.ID, data.BoardID)
	assert.Equal(t, "A", data.MyConnectionID)
	assert.Equal(t, []byte("snapshot"), data.Image)
	assert.Equal(t, []string{"A"}, data.Connections)
	assert.Len(t, data.Lines, 2)
	assert.Equal(t, lines[3].TS, data.Lines[0].TS)
	assert.Equal(t, lines[4].TS, data.Lines[1].TS)
	assert.Equal(t, stroke, data.Lines[0].Stroke)
}

func TestGetBoardID(t *testing.T) {
	f := newFixture()
	assert.Equal(t, 200, f.connect(t, "A", boarddao.NewBoard))

	assert.Equal(t, 200, f.do(t, event(ActionGetBoardID, "A", "", nil)))
	got := f.outbox.take("A")
	assert.Len(t, got, 1)
	assert.Equal(t, ActionBoardID, got[0].Action)

	var payload BoardIDPayload
	assert.NoError(t, json.Unmarshal(got[0].Payload, &payload))
	assert.Equal(t, f.boardOf(t, "A"), payload.BoardID)

	t.Run("not joined", func(t *testing.T) {
		assert.Equal(t, 400, f.do(t, event(ActionGetBoardID, "Z", "", nil)))
	})
}

func TestMalformedInputIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	assert.Equal(t, 200, f.connect(t, "A", boarddao.NewBoard))
	boardID := f.boardOf(t, "A")

	bodies := map[string]string{
		"not json":       `{"action":`,
		"unknown action": `{"action":"erase"}`,
		"no payload":     `{"action":"addLine"}`,
		"odd points":     addLineBody(boardID, scribbleboard.Stroke{Points: []float64{1, 2, 3}, Color: "#000", Width: 1}),
		"bad color":      addLineBody(boardID, scribbleboard.Stroke{Points: []float64{1, 2}, Color: "red", Width: 1}),
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, 200, f.do(t, event("$default", "A", body, nil)))
		})
	}

	lines, err := f.lines.Query(ctx, boardID, 0)
	assert.NoError(t, err)
	assert.Len(t, lines, 0)
}

func TestAddLineWithoutBoardIDUsesJoinedBoard(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	assert.Equal(t, 200, f.connect(t, "A", boarddao.NewBoard))

	assert.Equal(t, 200, f.do(t, event("$default", "A", addLineBody("", stroke), nil)))
	lines, err := f.lines.Query(ctx, f.boardOf(t, "A"), 0)
	assert.NoError(t, err)
	assert.Len(t, lines, 1)

	t.Run("unknown board", func(t *testing.T) {
		assert.Equal(t, 400, f.do(t, event(ActionAddLine, "A", addLineBody("nope", stroke), nil)))
	})
}

func TestGoneConnectionsAreRemoved(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	board, err := f.boards.Create(ctx)
	assert.NoError(t, err)
	for _, connID := range []string{"A", "B", "C"} {
		assert.Equal(t, 200, f.connect(t, connID, board.ID))
	}
	f.outbox.take("A")
	f.outbox.take("B")
	f.outbox.gone["B"] = true

	assert.Equal(t, 200, f.do(t, event(ActionAddLine, "C", addLineBody(board.ID, stroke), nil)))
	assert.Len(t, f.outbox.take("A"), 1)

	members, err := f.connections.MembersOf(ctx, board.ID)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "C"}, members)
}
