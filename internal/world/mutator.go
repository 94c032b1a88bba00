package world

import (
	"fmt"

	"bizarre-tabletop/server/internal/proto"
)

// applyFunc validates one command's field count and types, then mutates the
// world. An error means the command is dropped: not applied and not relayed.
type applyFunc func(*World, proto.Command) error

// handlers is the mutator dispatch table. Tags absent from it either belong
// to the connection layer (name, exit, update_account) or carry no state
// (menacing, roundabout, play_music, turncounter) and are relayed untouched.
var handlers = map[string]applyFunc{
	proto.TagMove:        applyMove,
	proto.TagUpdateToken: applyUpdateToken,
	proto.TagUpdateMap:   applyUpdateMap,
	proto.TagRoll:        applyRoll,
}

// Mutates reports whether tag has a world-state handler.
func Mutates(tag string) bool {
	_, ok := handlers[tag]
	return ok
}

// Apply dispatches cmd against the world. The boolean reports whether the
// tag had a handler at all; the error reports a validation failure that must
// drop the command while leaving the connection open.
func Apply(w *World, cmd proto.Command) (bool, error) {
	fn, ok := handlers[cmd.Tag]
	if !ok {
		return false, nil
	}
	return true, fn(w, cmd)
}

func applyMove(w *World, cmd proto.Command) error {
	if len(cmd.Args) < 3 {
		return fmt.Errorf("move: want 3 fields, got %d", len(cmd.Args))
	}
	index, err := cmd.Int(0)
	if err != nil {
		return err
	}
	x, err := cmd.Int(1)
	if err != nil {
		return err
	}
	y, err := cmd.Int(2)
	if err != nil {
		return err
	}
	return w.MoveToken(index, x, y)
}

func applyUpdateToken(w *World, cmd proto.Command) error {
	if len(cmd.Args) < 9 {
		return fmt.Errorf("update_token: want 9 fields, got %d", len(cmd.Args))
	}
	index, err := cmd.Int(0)
	if err != nil {
		return err
	}

	var tok Token
	bars := []*int{
		&tok.Bar1.Current, &tok.Bar1.Max,
		&tok.Bar2.Current, &tok.Bar2.Max,
		&tok.Bar3.Current, &tok.Bar3.Max,
	}
	for i, dst := range bars {
		v, err := cmd.Int(1 + i)
		if err != nil {
			return err
		}
		*dst = v
	}
	tok.Name = cmd.Arg(7)
	if tok.Image, err = cmd.Int(8); err != nil {
		return err
	}

	_, err = w.UpsertToken(index, tok)
	return err
}

func applyUpdateMap(w *World, cmd proto.Command) error {
	if len(cmd.Args) < 15 {
		return fmt.Errorf("update_map: want 15 fields, got %d", len(cmd.Args))
	}

	var u MapUpdate
	ints := []struct {
		dst *int
		idx int
	}{
		{&u.Width, 0},
		{&u.Height, 1},
		{&u.ScrollX, 2},
		{&u.ScrollY, 3},
		{&u.Selected, 14},
	}
	for _, f := range ints {
		v, err := cmd.Int(f.idx)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	grid, err := cmd.Int(4)
	if err != nil {
		return err
	}
	fog, err := cmd.Int(5)
	if err != nil {
		return err
	}
	u.Grid = grid != 0
	u.Fog = fog != 0

	colors := []*float64{
		&u.Background.R, &u.Background.G, &u.Background.B, &u.Background.A,
		&u.GridColor.R, &u.GridColor.G, &u.GridColor.B, &u.GridColor.A,
	}
	for i, dst := range colors {
		v, err := cmd.Float(6 + i)
		if err != nil {
			return err
		}
		*dst = v
	}

	w.ResetMap(u)
	return nil
}

func applyRoll(w *World, cmd proto.Command) error {
	if len(cmd.Args) < 3 {
		return fmt.Errorf("roll: want 3 fields, got %d", len(cmd.Args))
	}
	if _, err := cmd.Int(0); err != nil {
		return err
	}
	face, err := cmd.Int(2)
	if err != nil {
		return err
	}
	w.AppendRoll(fmt.Sprintf("%s rolled a dice(1-6): %d", cmd.Arg(1), face))
	return nil
}
