package scribblews

import (
	"encoding/json"
	"fmt"
	"strings"

	scribbleboard "github.com/scribble-board/scribble/scribble-board"
	"github.com/scribble-board/scribble/scribble-board/linedao"
)

// client actions
const (
	ActionAddLine    = "addLine"
	ActionInit       = "init"
	ActionGetBoardID = "getBoardId"
)

// server actions
const (
	ActionBoardData = "boardData"
	ActionLineAdded = "lineAdded"
	ActionBoardID   = "boardId"
)

// Envelope wraps every message in either direction.
type Envelope struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Request is one of AddLineRequest, InitRequest or GetBoardIDRequest.
type Request interface {
	action() string
}

// AddLineRequest appends a stroke to a board. BoardID may be left empty to
// draw on the board the connection joined.
type AddLineRequest struct {
	BoardID string               `json:"boardId"`
	Stroke  scribbleboard.Stroke `json:"stroke"`
}

// InitRequest asks for a replay of the connection's board.
type InitRequest struct{}

// GetBoardIDRequest asks which board the connection joined.
type GetBoardIDRequest struct{}

func (AddLineRequest) action() string { return ActionAddLine }
func (InitRequest) action() string { return ActionInit }
func (GetBoardIDRequest) action() string { return ActionGetBoardID }

// ParseRequest decodes a message body. When action is empty the body's own
// action field selects the request type. Anything that fails to parse or
// validate is a *scribbleboard.MalformedInputError.
func ParseRequest(action, body string) (Request, error) {
	var envelope Envelope
	if strings.TrimSpace(body) != "" {
		if err := json.Unmarshal([]byte(body), &envelope); err != nil {
			return nil, scribbleboard.Malformed("body is not a json envelope", err)
		}
	}
	if action == "" {
		action = envelope.Action
	}

	switch action {
	case ActionAddLine:
		if len(envelope.Payload) == 0 {
			return nil, scribbleboard.Malformed("addLine without payload", nil)
		}
		var req AddLineRequest
		if err := json.Unmarshal(envelope.Payload, &req); err != nil {
			return nil, scribbleboard.Malformed("addLine payload", err)
		}
		if err := req.Stroke.Validate(); err != nil {
			return nil, err
		}
		return req, nil
	case ActionInit:
		return InitRequest{}, nil
	case ActionGetBoardID:
		return GetBoardIDRequest{}, nil
	case "":
		return nil, scribbleboard.Malformed("missing action", nil)
	default:
		return nil, scribbleboard.Malformed(fmt.Sprintf("unknown action %q", action), nil)
	}
}

// BoardData carries a board replay or a roster update. Rosters leave Image
// and Lines empty.
type BoardData struct {
	BoardID        string        `json:"boardId"`
	MyConnectionID string        `json:"myConnectionId,omitempty"`
	Image          []byte        `json:"image,omitempty"`
	Lines          []LinePayload `json:"lines,omitempty"`
	Connections    []string      `json:"connections"`
}

// LinePayload is a stroke as sent to clients.
type LinePayload struct {
	TS int64 `json:"ts"`
	scribbleboard.Stroke
}

// BoardIDPayload answers getBoardId.
type BoardIDPayload struct {
	BoardID string `json:"boardId"`
}

func linePayloads(lines []linedao.Line) []LinePayload {
	if len(lines) == 0 {
		return nil
	}
	payloads := make([]LinePayload, len(lines))
	for i, line := range lines {
		payloads[i] = LinePayload{TS: line.TS, Stroke: line.Stroke}
	}
	return payloads
}

// EncodeMessage wraps payload in an Envelope.
func EncodeMessage(action string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %v payload: %w", action, err)
	}
	return json.Marshal(Envelope{Action: action, Payload: data})
}
