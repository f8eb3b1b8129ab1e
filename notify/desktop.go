package notify

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gen2brain/beeep"
)

const permissionQuestion = "Show desktop notifications when you are mentioned?"

// Prompter asks the user a yes/no question. Returning an error leaves the
// permission undetermined.
type Prompter func(question string) (bool, error)

// TerminalPrompter reads a y/N answer from in after writing the question
// to out.
func TerminalPrompter(in io.Reader, out io.Writer) Prompter {
	reader := bufio.NewReader(in)
	return func(question string) (bool, error) {
		fmt.Fprintf(out, "%s [y/N] ", question)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false, err
		}
		return IsYes(line), nil
	}
}

func IsYes(answer string) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// Desktop sends OS notifications through beeep. Permission requests are
// answered asynchronously, like a browser permission prompt: the request
// returns at once and the decision applies to later mentions.
type Desktop struct {
	mu         sync.Mutex
	permission Permission
	prompt     Prompter
	pending    chan struct{}
	send       func(title, body string) error
}

func NewDesktop(permission Permission, prompt Prompter) *Desktop {
	return &Desktop{
		permission: permission,
		prompt:     prompt,
		send: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
	}
}

func (d *Desktop) Permission() Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permission
}

// RequestPermission starts resolving an undetermined permission and returns
// the current value. Without a prompter the request is refused outright.
func (d *Desktop) RequestPermission() Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.permission != PermissionDefault || d.pending != nil {
		return d.permission
	}
	if d.prompt == nil {
		d.permission = PermissionDenied
		return d.permission
	}

	done := make(chan struct{})
	d.pending = done
	go func() {
		defer close(done)
		ok, err := d.prompt(permissionQuestion)

		d.mu.Lock()
		defer d.mu.Unlock()
		d.pending = nil
		switch {
		case err != nil:
		case ok:
			d.permission = PermissionGranted
		default:
			d.permission = PermissionDenied
		}
	}()
	return d.permission
}

// Settled returns a channel closed once no permission request is in
// flight.
func (d *Desktop) Settled() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return d.pending
}

func (d *Desktop) Notify(title, body string) error {
	if d.Permission() != PermissionGranted {
		return nil
	}
	return d.send(title, body)
}
