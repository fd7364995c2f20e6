package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/satriahrh/supermom/domain"
	"github.com/satriahrh/supermom/domain/entities"
	"github.com/satriahrh/supermom/usecase"
)

// consoleView renders surface state as lines of text
type consoleView struct {
	mu  sync.Mutex
	out io.Writer
}

var _ usecase.View = (*consoleView)(nil)

func newConsoleView(out io.Writer) *consoleView {
	return &consoleView{out: out}
}

func (v *consoleView) printf(format string, args ...interface{}) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, format+"\n", args...)
}

func (v *consoleView) TurnAppended(surface domain.Surface, turn entities.Turn) {
	v.printf("%s", formatTurn(surface, turn))
}

func (v *consoleView) PendingChanged(surface domain.Surface, state entities.PendingState) {
	switch state {
	case entities.PendingAwaitingRecognition:
		v.printf("[%s] listening...", surface)
	case entities.PendingAwaitingReply:
		v.printf("[%s] thinking...", surface)
	case entities.PendingAbandoned:
		v.printf("[%s] request interrupted", surface)
	}
}

func (v *consoleView) Alert(surface domain.Surface, message string) {
	v.printf("[%s] ! %s", surface, message)
}

func (v *consoleView) BannerShown(text string) {
	v.printf("*** %s ***", text)
}

func (v *consoleView) BannerHidden() {}

func (v *consoleView) MemosChanged(memos []entities.Memo) {
	v.printf("%s", formatMemos(memos))
}

func formatTurn(surface domain.Surface, turn entities.Turn) string {
	speaker := "you"
	if turn.Sender == entities.SenderAssistant {
		speaker = string(surface)
	}
	line := fmt.Sprintf("%s> %s", speaker, turn.Text)
	if turn.HasAudio() {
		line += " [audio]"
	}
	return line
}

func formatMemos(memos []entities.Memo) string {
	if len(memos) == 0 {
		return "(no memos)"
	}
	var b strings.Builder
	for i, m := range memos {
		mark := " "
		if m.Done {
			mark = "x"
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%2d. [%s] %s", i+1, mark, m.Text)
	}
	return b.String()
}
