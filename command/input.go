package command

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"chatoverlay/notify"
)

// lineBroker owns stdin for the watch command. A pending notification
// permission prompt takes the next line; every other line is a command or a
// message.
type lineBroker struct {
	mu      sync.Mutex
	out     io.Writer
	pending chan string
	closed  bool
	lines   chan string
}

func newLineBroker(out io.Writer) *lineBroker {
	return &lineBroker{out: out, lines: make(chan string)}
}

func (b *lineBroker) run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()

		b.mu.Lock()
		answer := b.pending
		b.pending = nil
		b.mu.Unlock()

		if answer != nil {
			answer <- line
			continue
		}
		b.lines <- line
	}

	b.mu.Lock()
	b.closed = true
	if b.pending != nil {
		close(b.pending)
		b.pending = nil
	}
	b.mu.Unlock()
	close(b.lines)
}

// Prompt satisfies notify.Prompter.
func (b *lineBroker) Prompt(question string) (bool, error) {
	answer := make(chan string, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false, io.EOF
	}
	b.pending = answer
	b.mu.Unlock()

	fmt.Fprintf(b.out, "%s [y/N] ", question)
	line, ok := <-answer
	if !ok {
		return false, io.EOF
	}
	return notify.IsYes(line), nil
}
