// Command tabletop-bot is a scripted table client for smoke-testing a
// running session server: it logs in, optionally rolls dice or moves a
// token, and prints everything the server fans out to it.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/crypto/blake2b"

	"bizarre-tabletop/server/internal/proto"
)

func main() {
	var (
		addr     = flag.String("addr", "127.0.0.1:8001", "session server address")
		name     = flag.String("name", "bot", "account name to log in with")
		pass     = flag.String("pass", "bot", "account password (digested before sending)")
		rolls    = flag.Int("rolls", 0, "number of public dice rolls to send")
		moveIdx  = flag.Int("move", -1, "token index to move, -1 to skip")
		moveX    = flag.Int("x", 64, "target x for -move")
		moveY    = flag.Int("y", 64, "target y for -move")
		interval = flag.Duration("interval", time.Second, "delay between scripted commands")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *addr, *name, *pass, *rolls, *moveIdx, *moveX, *moveY, *interval); err != nil {
		fmt.Fprintf(os.Stderr, "tabletop-bot: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, name, pass string, rolls, moveIdx, moveX, moveY int, interval time.Duration) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	send := func(line string) error {
		_, err := conn.Write([]byte(line + "\n"))
		return err
	}

	if err := send(proto.Build(proto.TagName, name, "pass", digest(pass))); err != nil {
		return err
	}

	// Scripted commands run alongside the printer so broadcasts keep
	// flowing while the bot acts.
	go func() {
		time.Sleep(interval)
		if moveIdx >= 0 {
			send(proto.Build(proto.TagMove, proto.Itoa(moveIdx), proto.Itoa(moveX), proto.Itoa(moveY)))
			time.Sleep(interval)
		}
		for i := 0; i < rolls; i++ {
			face := rand.Intn(6) + 1
			send(proto.Build(proto.TagRoll, "1", name, proto.Itoa(face)))
			time.Sleep(interval)
		}
	}()

	printer := newPrinter()
	sc := proto.NewLineScanner(conn)
	for sc.Scan() {
		cmd, ok := proto.ParseLine(sc.Text())
		if !ok {
			continue
		}
		printer.print(cmd)
		if cmd.Tag == proto.TagLoginFailure {
			return fmt.Errorf("login rejected for %q", name)
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// digest hashes the password client-side; the server stores and compares
// the digest, never the password itself.
func digest(pass string) string {
	sum := blake2b.Sum256([]byte(pass))
	return hex.EncodeToString(sum[:8])
}

type printer struct {
	roll  *color.Color
	login *color.Color
	event *color.Color
	plain *color.Color
}

func newPrinter() *printer {
	return &printer{
		roll:  color.New(color.FgYellow),
		login: color.New(color.FgGreen, color.Bold),
		event: color.New(color.FgCyan),
		plain: color.New(color.FgWhite),
	}
}

func (p *printer) print(cmd proto.Command) {
	switch cmd.Tag {
	case proto.TagRoll:
		p.roll.Printf("%s rolled a dice(1-6): %s\n", cmd.Arg(1), cmd.Arg(2))
	case proto.TagLoginSuccess:
		p.login.Printf("logged in as %s\n", cmd.Arg(0))
	case proto.TagLoginCreated:
		p.login.Printf("account %s created\n", cmd.Arg(0))
	case proto.TagName:
		p.event.Printf("%s joined the table\n", cmd.Arg(0))
	case proto.TagMove, proto.TagUpdateToken, proto.TagUpdateMap:
		p.event.Printf("board: %s\n", cmd.Raw)
	default:
		p.plain.Printf("%s\n", cmd.Raw)
	}
}
