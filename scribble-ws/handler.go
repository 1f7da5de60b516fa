// Package scribblews serves the board over an API Gateway WebSocket API:
// joining and leaving boards, drawing, and replaying a board to a client.
package scribblews

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	scribbleboard "github.com/scribble-board/scribble/scribble-board"
	"github.com/scribble-board/scribble/scribble-board/boarddao"
	"github.com/scribble-board/scribble/scribble-board/boardview"
	"github.com/scribble-board/scribble/scribble-board/connectiondao"
	"github.com/scribble-board/scribble/scribble-board/linedao"
	scribblecli "github.com/scribble-board/scribble/scribble-cli"
)

// BoardIDParam is the $connect query parameter naming the board to join.
const BoardIDParam = "bid"

// Handler handles WebSocket API Gateway events.
type Handler struct {
	Boards      *boarddao.DAO
	Connections *connectiondao.DAO
	Lines       *linedao.DAO
	Senders     Senders
	Metrics     scribblecli.Recorder
	Logger      zerolog.Logger
	Concurrency int // max concurrent PostToConnection calls per fan-out (default 50)
}

// HandleEvent routes an API Gateway WebSocket event to the appropriate handler.
func (h *Handler) HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	begin := time.Now()
	route := req.RequestContext.RouteKey
	logger := h.Logger.With().
		Str("connection_id", req.RequestContext.ConnectionID).
		Str("route", route).
		Logger()
	ctx = logger.WithContext(ctx)

	defer func() {
		h.metrics().Event(ctx, scribblecli.RequestMetric, scribblecli.Operation(route))
		h.metrics().Timing(ctx, scribblecli.ResponseTimeMetric, begin, scribblecli.Operation(route))
	}()

	switch route {
	case "$connect":
		return h.handleConnect(ctx, logger, req)
	case "$disconnect":
		return h.handleDisconnect(ctx, logger, req)
	case ActionAddLine, ActionInit, ActionGetBoardID:
		return h.handleMessage(ctx, logger, req, route)
	case "$default":
		return h.handleMessage(ctx, logger, req, "")
	default:
		logger.Warn().Msg("unknown route")
		return status(400), nil
	}
}

func (h *Handler) handleConnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID
	requested := req.QueryStringParameters[BoardIDParam]
	if requested == "" {
		logger.Warn().Msg("board id not defined")
		return status(400), nil
	}

	board, err := h.Boards.Resolve(ctx, requested)
	if err != nil {
		if errors.Is(err, scribbleboard.ErrBoardNotFound) {
			logger.Warn().Str("board_id", requested).Msg("board does not exist")
			return status(400), nil
		}
		logger.Error().Err(err).Str("board_id", requested).Msg("failed to resolve board")
		return status(500), nil
	}

	logger = logger.With().Str("board_id", board.ID).Logger()
	if _, err := h.Connections.Join(ctx, connID, board.ID); err != nil {
		if errors.Is(err, scribbleboard.ErrBoardNotFound) {
			logger.Warn().Msg("board does not exist")
			return status(400), nil
		}
		logger.Error().Err(err).Msg("failed to join board")
		return status(500), nil
	}

	h.notifyRoster(ctx, logger, req, board.ID, connID)
	logger.Info().Bool("created", requested == boarddao.NewBoard).Msg("connection joined board")
	return status(200), nil
}

func (h *Handler) handleDisconnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID

	boardID, ok, err := h.Connections.Leave(ctx, connID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to leave board")
		return status(200), nil
	}
	if !ok {
		logger.Debug().Msg("connection was not joined")
		return status(200), nil
	}

	logger = logger.With().Str("board_id", boardID).Logger()
	h.notifyRoster(ctx, logger, req, boardID, connID)
	logger.Info().Msg("connection closed")
	return status(200), nil
}

func (h *Handler) handleMessage(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest, action string) (events.APIGatewayProxyResponse, error) {
	request, err := ParseRequest(action, req.Body)
	if err != nil {
		// malformed input is acknowledged and ignored
		logger.Warn().Err(err).Msg("invalid message")
		return status(200), nil
	}

	switch r := request.(type) {
	case AddLineRequest:
		return h.handleAddLine(ctx, logger, req, r)
	case InitRequest:
		return h.handleInit(ctx, logger, req)
	case GetBoardIDRequest:
		return h.handleGetBoardID(ctx, logger, req)
	default:
		logger.Warn().Str("action", request.action()).Msg("unhandled action")
		return status(200), nil
	}
}

func (h *Handler) handleAddLine(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest, r AddLineRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID

	boardID := r.BoardID
	if boardID == "" {
		conn, err := h.Connections.Get(ctx, connID)
		if err != nil {
			logger.Warn().Err(err).Msg("addLine without a board")
			return status(400), nil
		}
		boardID = conn.BoardID
	}
	logger = logger.With().Str("board_id", boardID).Logger()

	line, err := h.Lines.Append(ctx, boardID, r.Stroke)
	if err != nil {
		if errors.Is(err, scribbleboard.ErrBoardNotFound) {
			logger.Warn().Msg("board does not exist")
			return status(400), nil
		}
		logger.Error().Err(err).Msg("failed to append line")
		return status(500), nil
	}
	h.metrics().Event(ctx, scribblecli.LinesAppendedMetric)

	if err := h.broadcaster(logger, req).NotifyOthers(ctx, boardID, connID, ActionLineAdded, line.Stroke); err != nil {
		logger.Error().Err(err).Msg("failed to notify board")
	}

	logger.Debug().Int64("ts", line.TS).Int("points", len(line.Stroke.Points)/2).Msg("line added")
	return status(200), nil
}

func (h *Handler) handleInit(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID

	conn, err := h.Connections.Get(ctx, connID)
	if err != nil {
		logger.Warn().Err(err).Msg("init from a connection without a board")
		return status(400), nil
	}
	logger = logger.With().Str("board_id", conn.BoardID).Logger()

	view, err := boardview.Load(ctx, h.Boards, h.Lines, conn.BoardID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load board")
		return status(500), nil
	}
	members, err := h.Connections.MembersOf(ctx, conn.BoardID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read members")
		return status(500), nil
	}

	data := BoardData{
		BoardID:        conn.BoardID,
		MyConnectionID: connID,
		Image:          view.Image,
		Lines:          linePayloads(view.Lines),
		Connections:    members,
	}
	if err := h.broadcaster(logger, req).SendTo(ctx, connID, ActionBoardData, data); err != nil {
		logger.Error().Err(err).Msg("failed to send board data")
		return status(500), nil
	}

	logger.Debug().
		Int64("watermark", view.Watermark).
		Int("lines", len(view.Lines)).
		Msg("board replayed")
	return status(200), nil
}

func (h *Handler) handleGetBoardID(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID

	conn, err := h.Connections.Get(ctx, connID)
	if err != nil {
		logger.Warn().Err(err).Msg("getBoardId from a connection without a board")
		return status(400), nil
	}

	if err := h.broadcaster(logger, req).SendTo(ctx, connID, ActionBoardID, BoardIDPayload{BoardID: conn.BoardID}); err != nil {
		logger.Error().Err(err).Msg("failed to send board id")
		return status(500), nil
	}
	return status(200), nil
}

// notifyRoster tells every member of boardID other than connID who is on the
// board now.
func (h *Handler) notifyRoster(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest, boardID, connID string) {
	build := func(recipient string, members []string) ([]byte, error) {
		return EncodeMessage(ActionBoardData, BoardData{
			BoardID:        boardID,
			MyConnectionID: recipient,
			Connections:    members,
		})
	}
	if err := h.broadcaster(logger, req).NotifyEach(ctx, boardID, connID, ActionBoardData, build); err != nil {
		logger.Error().Err(err).Msg("failed to notify roster")
	}
}

func (h *Handler) broadcaster(logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) *Broadcaster {
	return &Broadcaster{
		Members:     h.Connections,
		Sender:      h.Senders.For(Endpoint(req.RequestContext.DomainName, req.RequestContext.Stage)),
		Metrics:     h.Metrics,
		Logger:      logger,
		Concurrency: h.Concurrency,
	}
}

func (h *Handler) metrics() scribblecli.Recorder {
	if h.Metrics == nil {
		return scribblecli.NopMetrics{}
	}
	return h.Metrics
}

func status(code int) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{StatusCode: code}
}
