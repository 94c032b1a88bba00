package world

import (
	"fmt"

	"bizarre-tabletop/server/internal/proto"
)

// RollLogLimit bounds the dice-roll history; the oldest entry is evicted
// once a sixteenth arrives.
const RollLogLimit = 15

// StatusBar is one current/max counter pair on a token.
type StatusBar struct {
	Current int
	Max     int
}

// Token is a positioned board marker. Its identifier on the wire is its
// position in the world's token list; the protocol only appends and updates
// in place, so positions are stable for the session lifetime.
type Token struct {
	Bar1  StatusBar
	Bar2  StatusBar
	Bar3  StatusBar
	Name  string
	Image int
	X     int
	Y     int
}

// Color is an RGBA quadruple carried as four float fields on the wire.
type Color struct {
	R, G, B, A float64
}

// World is the authoritative map/token/log state for one session. It is not
// internally locked; the hub serializes every mutation behind its own mutex.
type World struct {
	Width      int
	Height     int
	ScrollX    int
	ScrollY    int
	Grid       bool
	Fog        bool
	Background Color
	GridColor  Color
	Selected   int

	tokens  []Token
	rollLog []string
}

// New seeds the board the way a fresh DM console starts: a 20x20 white map
// with a gray grid and two example tokens.
func New() *World {
	w := &World{
		Width:      20,
		Height:     20,
		Background: Color{R: 255, G: 255, B: 255, A: 255},
		GridColor:  Color{R: 130, G: 130, B: 130, A: 255},
		Selected:   -1,
	}
	w.tokens = []Token{
		{Image: 2, X: 128, Y: 128},
		{Image: 1, X: 256, Y: 256},
	}
	return w
}

// TokenCount reports the number of tokens on the board.
func (w *World) TokenCount() int {
	return len(w.tokens)
}

// Token returns a copy of the token at index.
func (w *World) Token(index int) (Token, bool) {
	if index < 0 || index >= len(w.tokens) {
		return Token{}, false
	}
	return w.tokens[index], true
}

// Tokens returns a copy of the token list.
func (w *World) Tokens() []Token {
	out := make([]Token, len(w.tokens))
	copy(out, w.tokens)
	return out
}

// MoveToken overwrites a token's board position. Out-of-range indices are
// rejected without mutation.
func (w *World) MoveToken(index, x, y int) error {
	if index < 0 || index >= len(w.tokens) {
		return fmt.Errorf("move: token %d out of range (have %d)", index, len(w.tokens))
	}
	w.tokens[index].X = x
	w.tokens[index].Y = y
	return nil
}

// UpsertToken replaces the token at index, or appends when index is -1, and
// returns the index that ended up holding it.
func (w *World) UpsertToken(index int, tok Token) (int, error) {
	if index == -1 {
		w.tokens = append(w.tokens, tok)
		return len(w.tokens) - 1, nil
	}
	if index < 0 || index >= len(w.tokens) {
		return 0, fmt.Errorf("update_token: token %d out of range (have %d)", index, len(w.tokens))
	}
	// Position is owned by move; an update keeps the token where it is.
	tok.X = w.tokens[index].X
	tok.Y = w.tokens[index].Y
	w.tokens[index] = tok
	return index, nil
}

// MapUpdate carries the full replacement state of an update_map command.
type MapUpdate struct {
	Width      int
	Height     int
	ScrollX    int
	ScrollY    int
	Grid       bool
	Fog        bool
	Background Color
	GridColor  Color
	Selected   int
}

// ResetMap replaces every map field and clears the token list. This is a
// full-state reset, not a merge.
func (w *World) ResetMap(u MapUpdate) {
	w.Width = u.Width
	w.Height = u.Height
	w.ScrollX = u.ScrollX
	w.ScrollY = u.ScrollY
	w.Grid = u.Grid
	w.Fog = u.Fog
	w.Background = u.Background
	w.GridColor = u.GridColor
	w.Selected = u.Selected
	w.tokens = nil
}

// AppendRoll records a formatted roll-result line, evicting the oldest entry
// once the log passes RollLogLimit.
func (w *World) AppendRoll(line string) {
	w.rollLog = append(w.rollLog, line)
	if len(w.rollLog) > RollLogLimit {
		w.rollLog = w.rollLog[1:]
	}
}

// RollLog returns a copy of the roll history, oldest first.
func (w *World) RollLog() []string {
	out := make([]string, len(w.rollLog))
	copy(out, w.rollLog)
	return out
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// SnapshotLines renders the world as the wire commands that rebuild it on a
// client: one update_map followed by an appending update_token per token.
// The same sequence goes out to the whole table whenever a client logs in.
func (w *World) SnapshotLines() []string {
	lines := make([]string, 0, 1+len(w.tokens))
	lines = append(lines, proto.Build(proto.TagUpdateMap,
		proto.Itoa(w.Width), proto.Itoa(w.Height),
		proto.Itoa(w.ScrollX), proto.Itoa(w.ScrollY),
		boolField(w.Grid), boolField(w.Fog),
		proto.Ftoa(w.Background.R), proto.Ftoa(w.Background.G), proto.Ftoa(w.Background.B), proto.Ftoa(w.Background.A),
		proto.Ftoa(w.GridColor.R), proto.Ftoa(w.GridColor.G), proto.Ftoa(w.GridColor.B), proto.Ftoa(w.GridColor.A),
		proto.Itoa(w.Selected),
	))
	for _, tok := range w.tokens {
		lines = append(lines, proto.Build(proto.TagUpdateToken,
			"-1",
			proto.Itoa(tok.Bar1.Current), proto.Itoa(tok.Bar1.Max),
			proto.Itoa(tok.Bar2.Current), proto.Itoa(tok.Bar2.Max),
			proto.Itoa(tok.Bar3.Current), proto.Itoa(tok.Bar3.Max),
			tok.Name,
			proto.Itoa(tok.Image),
		))
	}
	return lines
}
