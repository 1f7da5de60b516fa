// Package boardapi exposes boards read-only over HTTP for viewers that don't
// hold a websocket, e.g. link previews.
package boardapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	scribbleboard "github.com/scribble-board/scribble/scribble-board"
	"github.com/scribble-board/scribble/scribble-board/boardview"
)

// Board is the JSON form of a board view.
type Board struct {
	BoardID   string `json:"boardId"`
	Watermark int64  `json:"watermark"`
	Image     []byte `json:"image,omitempty"`
	Lines     []Line `json:"lines"`
}

type Line struct {
	TS int64 `json:"ts"`
	scribbleboard.Stroke
}

type API struct {
	Boards boardview.Boards
	Lines  boardview.Lines
}

// Routes mounts the API on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/boards/{boardID}", a.getBoard)
	r.Get("/boards/{boardID}/snapshot.png", a.getSnapshot)
}

func (a *API) getBoard(w http.ResponseWriter, req *http.Request) {
	view, ok := a.load(w, req)
	if !ok {
		return
	}

	board := Board{
		BoardID:   view.BoardID,
		Watermark: view.Watermark,
		Image:     view.Image,
		Lines:     make([]Line, 0, len(view.Lines)),
	}
	for _, line := range view.Lines {
		board.Lines = append(board.Lines, Line{TS: line.TS, Stroke: line.Stroke})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(board); err != nil {
		zerolog.Ctx(req.Context()).Warn().Err(err).Msg("failed to write board")
	}
}

func (a *API) getSnapshot(w http.ResponseWriter, req *http.Request) {
	view, ok := a.load(w, req)
	if !ok {
		return
	}
	if len(view.Image) == 0 {
		http.Error(w, "board has no snapshot yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(view.Image)))
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(view.Watermark, 10)))
	_, _ = w.Write(view.Image)
}

func (a *API) load(w http.ResponseWriter, req *http.Request) (boardview.View, bool) {
	ctx := req.Context()
	boardID := chi.URLParam(req, "boardID")

	view, err := boardview.Load(ctx, a.Boards, a.Lines, boardID)
	if err != nil {
		if errors.Is(err, scribbleboard.ErrBoardNotFound) {
			http.Error(w, "board not found", http.StatusNotFound)
			return boardview.View{}, false
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("board_id", boardID).Msg("failed to load board")
		http.Error(w, "failed to load board", http.StatusInternalServerError)
		return boardview.View{}, false
	}
	return view, true
}
