package proto

import (
	"io"
	"strings"
	"testing"
)

func TestParseLineSplitsTagAndArgs(t *testing.T) {
	cmd, ok := ParseLine("move|2|128|256\r\n")
	if !ok {
		t.Fatalf("expected command, got blank")
	}
	if cmd.Tag != TagMove {
		t.Fatalf("tag = %q, want %q", cmd.Tag, TagMove)
	}
	if len(cmd.Args) != 3 {
		t.Fatalf("args = %v, want three fields", cmd.Args)
	}
	if cmd.Raw != "move|2|128|256" {
		t.Fatalf("raw = %q, want trimmed line", cmd.Raw)
	}
}

func TestParseLineBlank(t *testing.T) {
	if _, ok := ParseLine("\n"); ok {
		t.Fatalf("blank line should not parse")
	}
	if _, ok := ParseLine(""); ok {
		t.Fatalf("empty line should not parse")
	}
}

func TestCommandArgOutOfRange(t *testing.T) {
	cmd, _ := ParseLine("roll|1|alice|4")
	if got := cmd.Arg(7); got != "" {
		t.Fatalf("Arg(7) = %q, want empty", got)
	}
	if got := cmd.Arg(-1); got != "" {
		t.Fatalf("Arg(-1) = %q, want empty", got)
	}
}

func TestCommandIntAndFloat(t *testing.T) {
	cmd, _ := ParseLine("update_map|20| 20|0|0|1|0|255.5|0|0|255")
	if v, err := cmd.Int(0); err != nil || v != 20 {
		t.Fatalf("Int(0) = %d, %v", v, err)
	}
	if v, err := cmd.Int(1); err != nil || v != 20 {
		t.Fatalf("Int(1) should tolerate padding, got %d, %v", v, err)
	}
	if v, err := cmd.Float(6); err != nil || v != 255.5 {
		t.Fatalf("Float(6) = %v, %v", v, err)
	}
	if _, err := cmd.Int(2); err != nil {
		t.Fatalf("Int(2): %v", err)
	}
	if _, err := cmd.Int(9); err != nil {
		t.Fatalf("Int(9): %v", err)
	}
	if _, err := cmd.Int(10); err == nil {
		t.Fatalf("Int on missing field should fail")
	}
}

func TestCommandIntMalformed(t *testing.T) {
	cmd, _ := ParseLine("move|abc|1|2")
	_, err := cmd.Int(0)
	if err == nil {
		t.Fatalf("expected parse error for %q", cmd.Arg(0))
	}
	if !strings.Contains(err.Error(), "field 1 of move") {
		t.Fatalf("error should name the field, got %v", err)
	}
}

func TestBuild(t *testing.T) {
	if got := Build(TagExit); got != "exit" {
		t.Fatalf("Build(exit) = %q", got)
	}
	got := Build(TagMove, Itoa(0), Itoa(64), Itoa(64))
	if got != "move|0|64|64" {
		t.Fatalf("Build = %q", got)
	}
	if got := Ftoa(130); got != "130" {
		t.Fatalf("Ftoa(130) = %q", got)
	}
}

// chunkReader delivers its payload a few bytes at a time so a command line
// straddles many reads, the way a congested socket delivers it.
type chunkReader struct {
	data []byte
	size int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.size
	if n > len(r.data) {
		n = len(r.data)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func TestLineScannerReassemblesFragments(t *testing.T) {
	payload := "name|alice|pass|1a2b\nmove|0|64|64\nroll|1|alice|6\n"
	sc := NewLineScanner(&chunkReader{data: []byte(payload), size: 3})

	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []string{"name|alice|pass|1a2b", "move|0|64|64", "roll|1|alice|6"}
	if len(lines) != len(want) {
		t.Fatalf("scanned %d lines, want %d: %v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestLineScannerBacklog(t *testing.T) {
	// Two commands arriving in one read must still come out as two lines.
	sc := NewLineScanner(strings.NewReader("menacing\nroundabout\n"))
	if !sc.Scan() || sc.Text() != "menacing" {
		t.Fatalf("first line = %q", sc.Text())
	}
	if !sc.Scan() || sc.Text() != "roundabout" {
		t.Fatalf("second line = %q", sc.Text())
	}
	if sc.Scan() {
		t.Fatalf("unexpected extra line %q", sc.Text())
	}
}
