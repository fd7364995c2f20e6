package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/satriahrh/supermom/usecase"
)

const helpText = `commands:
  /rec          start recording
  /stop         stop recording and send it
  /list         show the conversation or the memo board
  /done N       complete memo N
  /undo N       reopen memo N
  /rm N         remove memo N
  /timer        ring the timer chime
  /reconnect    open a new channel
  /quit         exit
anything else is sent as a message, or added as a memo on the memo surface`

var errQuit = errors.New("quit")

// usageError is a mistyped command; its text is shown as is
type usageError string

func (e usageError) Error() string {
	return string(e)
}

func usagef(format string, args ...interface{}) error {
	return usageError(fmt.Sprintf(format, args...))
}

// alertText returns what the user should see for a failed command, or ""
// when the surface already showed it
func alertText(err error) string {
	var usage usageError
	switch {
	case errors.As(err, &usage):
		return usage.Error()
	case usecase.Alerted(err):
		return ""
	}
	return usecase.AlertFor(err)
}

type recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type ringer interface {
	Ring(ctx context.Context) error
}

// repl dispatches console lines to the active surface. Exactly one of chat
// and memo is set.
type repl struct {
	out     io.Writer
	chat    *usecase.ChatSurface
	memo    *usecase.MemoSurface
	capture recorder
	chime   ringer
	connect func(ctx context.Context) error
}

func (r *repl) handleLine(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return r.submit(line)
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		fmt.Fprintln(r.out, helpText)
		return nil
	case "/rec":
		return r.capture.Start(ctx)
	case "/stop":
		return r.capture.Stop(ctx)
	case "/list":
		r.list()
		return nil
	case "/timer":
		return r.chime.Ring(ctx)
	case "/reconnect":
		return r.connect(ctx)
	case "/done", "/undo", "/rm":
		return r.memoCommand(fields)
	}
	return usagef("unknown command %s, try /help", fields[0])
}

func (r *repl) submit(text string) error {
	if r.memo != nil {
		_, err := r.memo.AddMemo(text)
		return err
	}
	return r.chat.SendText(text)
}

func (r *repl) list() {
	if r.memo != nil {
		fmt.Fprintln(r.out, formatMemos(r.memo.Memos()))
		return
	}
	for _, turn := range r.chat.Turns() {
		fmt.Fprintln(r.out, formatTurn(r.chat.Surface(), turn))
	}
}

func (r *repl) memoCommand(fields []string) error {
	if r.memo == nil {
		return usagef("%s only works on the memo surface", fields[0])
	}
	if len(fields) != 2 {
		return usagef("usage: %s N", fields[0])
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return usagef("invalid memo number %q", fields[1])
	}
	memo, err := r.memo.MemoAt(n - 1)
	if err != nil {
		return err
	}

	var op func(uuid.UUID) error
	switch fields[0] {
	case "/done":
		op = r.memo.CompleteMemo
	case "/undo":
		op = r.memo.ReopenMemo
	default:
		op = r.memo.RemoveMemo
	}
	return op(memo.ID)
}
