package linedao

import scribbleboard "github.com/scribble-board/scribble/scribble-board"

// Line is one appended stroke. TS is assigned by the log, strictly increasing
// per board, and doubles as the compaction watermark unit.
type Line struct {
	BoardID string
	TS      int64
	Stroke  scribbleboard.Stroke
}
