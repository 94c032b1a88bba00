package world

import (
	"fmt"
	"strings"
	"testing"

	"bizarre-tabletop/server/internal/proto"
)

func mustParse(t *testing.T, line string) proto.Command {
	t.Helper()
	cmd, ok := proto.ParseLine(line)
	if !ok {
		t.Fatalf("line %q did not parse", line)
	}
	return cmd
}

func TestNewSeedsReferenceBoard(t *testing.T) {
	w := New()
	if w.Width != 20 || w.Height != 20 {
		t.Fatalf("board = %dx%d, want 20x20", w.Width, w.Height)
	}
	if w.Background != (Color{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("background = %+v", w.Background)
	}
	if w.GridColor != (Color{R: 130, G: 130, B: 130, A: 255}) {
		t.Fatalf("grid color = %+v", w.GridColor)
	}
	if w.Selected != -1 {
		t.Fatalf("selected = %d, want -1", w.Selected)
	}
	if w.TokenCount() != 2 {
		t.Fatalf("token count = %d, want 2", w.TokenCount())
	}
	first, _ := w.Token(0)
	if first.Image != 2 || first.X != 128 || first.Y != 128 {
		t.Fatalf("seed token 0 = %+v", first)
	}
}

func TestMoveToken(t *testing.T) {
	w := New()
	if err := w.MoveToken(1, 300, 310); err != nil {
		t.Fatalf("move: %v", err)
	}
	tok, _ := w.Token(1)
	if tok.X != 300 || tok.Y != 310 {
		t.Fatalf("token at (%d,%d), want (300,310)", tok.X, tok.Y)
	}

	if err := w.MoveToken(5, 0, 0); err == nil {
		t.Fatalf("out-of-range move must be rejected")
	}
	if err := w.MoveToken(-1, 0, 0); err == nil {
		t.Fatalf("negative index must be rejected")
	}
}

func TestUpsertTokenAppend(t *testing.T) {
	w := New()
	idx, err := w.UpsertToken(-1, Token{Name: "DIO", Image: 7})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if idx != 2 {
		t.Fatalf("append index = %d, want prior length 2", idx)
	}
	tok, _ := w.Token(2)
	if tok.Name != "DIO" || tok.Image != 7 {
		t.Fatalf("appended token = %+v", tok)
	}
}

func TestUpsertTokenUpdatePreservesPosition(t *testing.T) {
	w := New()
	if err := w.MoveToken(0, 400, 500); err != nil {
		t.Fatalf("move: %v", err)
	}
	idx, err := w.UpsertToken(0, Token{Name: "Star Platinum", Image: 3, Bar1: StatusBar{Current: 9, Max: 10}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if idx != 0 {
		t.Fatalf("update index = %d, want 0", idx)
	}
	tok, _ := w.Token(0)
	if tok.X != 400 || tok.Y != 500 {
		t.Fatalf("update moved the token to (%d,%d)", tok.X, tok.Y)
	}
	if tok.Name != "Star Platinum" || tok.Bar1.Current != 9 {
		t.Fatalf("update lost sheet fields: %+v", tok)
	}

	if _, err := w.UpsertToken(9, Token{}); err == nil {
		t.Fatalf("out-of-range update must be rejected")
	}
}

func TestResetMapClearsTokens(t *testing.T) {
	w := New()
	w.ResetMap(MapUpdate{Width: 10, Height: 12, Grid: true, Selected: -1})
	if w.Width != 10 || w.Height != 12 || !w.Grid {
		t.Fatalf("map fields not replaced: %+v", w)
	}
	if w.TokenCount() != 0 {
		t.Fatalf("reset kept %d tokens", w.TokenCount())
	}
}

func TestRollLogEviction(t *testing.T) {
	w := New()
	for i := 0; i < RollLogLimit+3; i++ {
		w.AppendRoll(fmt.Sprintf("roll %d", i))
	}
	log := w.RollLog()
	if len(log) != RollLogLimit {
		t.Fatalf("log holds %d entries, want %d", len(log), RollLogLimit)
	}
	if log[0] != "roll 3" {
		t.Fatalf("oldest surviving entry = %q, want %q", log[0], "roll 3")
	}
	if log[len(log)-1] != fmt.Sprintf("roll %d", RollLogLimit+2) {
		t.Fatalf("newest entry = %q", log[len(log)-1])
	}
}

func TestApplyMove(t *testing.T) {
	w := New()
	handled, err := Apply(w, mustParse(t, "move|0|64|64"))
	if !handled || err != nil {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	tok, _ := w.Token(0)
	if tok.X != 64 || tok.Y != 64 {
		t.Fatalf("token at (%d,%d)", tok.X, tok.Y)
	}
}

func TestApplyMoveValidation(t *testing.T) {
	w := New()
	cases := []string{
		"move|0|64",
		"move|zero|64|64",
		"move|99|64|64",
	}
	for _, line := range cases {
		handled, err := Apply(w, mustParse(t, line))
		if !handled {
			t.Fatalf("%q: move should always be handled", line)
		}
		if err == nil {
			t.Fatalf("%q: expected validation error", line)
		}
	}
	tok, _ := w.Token(0)
	if tok.X != 128 {
		t.Fatalf("rejected command mutated state: %+v", tok)
	}
}

func TestApplyUpdateToken(t *testing.T) {
	w := New()
	handled, err := Apply(w, mustParse(t, "update_token|-1|4|10|2|5|0|0|Hierophant Green|6"))
	if !handled || err != nil {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	tok, ok := w.Token(2)
	if !ok {
		t.Fatalf("token not appended")
	}
	if tok.Bar1 != (StatusBar{Current: 4, Max: 10}) || tok.Bar2 != (StatusBar{Current: 2, Max: 5}) {
		t.Fatalf("bars = %+v", tok)
	}
	if tok.Name != "Hierophant Green" || tok.Image != 6 {
		t.Fatalf("token = %+v", tok)
	}
}

func TestApplyUpdateMap(t *testing.T) {
	w := New()
	line := "update_map|10|10|0|0|1|0|255|255|255|255|130|130|130|255|-1"
	handled, err := Apply(w, mustParse(t, line))
	if !handled || err != nil {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	if w.Width != 10 || w.Height != 10 || !w.Grid || w.Fog {
		t.Fatalf("map = %+v", w)
	}
	if w.TokenCount() != 0 {
		t.Fatalf("update_map must clear tokens, kept %d", w.TokenCount())
	}
	if w.Selected != -1 {
		t.Fatalf("selected = %d", w.Selected)
	}
}

func TestApplyRoll(t *testing.T) {
	w := New()
	handled, err := Apply(w, mustParse(t, "roll|1|alice|4"))
	if !handled || err != nil {
		t.Fatalf("handled=%v err=%v", handled, err)
	}
	log := w.RollLog()
	if len(log) != 1 || log[0] != "alice rolled a dice(1-6): 4" {
		t.Fatalf("roll log = %v", log)
	}

	if _, err := Apply(w, mustParse(t, "roll|1|alice|six")); err == nil {
		t.Fatalf("non-numeric face should be rejected")
	}
}

func TestApplyUnknownTag(t *testing.T) {
	w := New()
	handled, err := Apply(w, mustParse(t, "menacing"))
	if handled || err != nil {
		t.Fatalf("stateless tags must pass through, handled=%v err=%v", handled, err)
	}
	if Mutates("play_music") {
		t.Fatalf("play_music carries no world state")
	}
	if !Mutates("update_map") {
		t.Fatalf("update_map should mutate")
	}
}

func TestSnapshotLines(t *testing.T) {
	w := New()
	lines := w.SnapshotLines()
	if len(lines) != 3 {
		t.Fatalf("snapshot has %d lines, want map + two tokens", len(lines))
	}
	if lines[0] != "update_map|20|20|0|0|0|0|255|255|255|255|130|130|130|255|-1" {
		t.Fatalf("map line = %q", lines[0])
	}
	for _, line := range lines[1:] {
		if !strings.HasPrefix(line, "update_token|-1|") {
			t.Fatalf("token line = %q, want appending update", line)
		}
	}

	// Replaying the snapshot into a fresh world reproduces the state.
	replay := New()
	for _, line := range lines {
		if _, err := Apply(replay, mustParse(t, line)); err != nil {
			t.Fatalf("replay %q: %v", line, err)
		}
	}
	if replay.TokenCount() != w.TokenCount() {
		t.Fatalf("replay count = %d, want %d", replay.TokenCount(), w.TokenCount())
	}
}
