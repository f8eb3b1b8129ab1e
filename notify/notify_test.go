package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	"chatoverlay/api"
	"chatoverlay/ledger"
)

type fakeNotifier struct {
	permission Permission
	grantOn    Permission
	requests   int
	sent       []string
	err        error
}

func (f *fakeNotifier) Permission() Permission { return f.permission }

func (f *fakeNotifier) RequestPermission() Permission {
	f.requests++
	if f.grantOn != "" {
		f.permission = f.grantOn
	}
	return f.permission
}

func (f *fakeNotifier) Notify(title, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, title+"|"+body)
	return nil
}

func mentionEntry(id int64) ledger.Entry {
	return ledger.Entry{
		Message:   api.Message{ID: id, Username: "alice", Message: "hey @john"},
		Mentioned: true,
	}
}

func TestGateDeliversWhenGranted(t *testing.T) {
	n := &fakeNotifier{permission: PermissionGranted}
	g := NewGate(n, nil)

	g.Applied(mentionEntry(1))
	g.Applied(ledger.Entry{Message: api.Message{ID: 2, Message: "no mention"}})

	if len(n.sent) != 1 {
		t.Fatalf("expected one notification, got %v", n.sent)
	}
	if n.sent[0] != "Mention in chat|alice: hey @john" {
		t.Fatalf("unexpected notification %q", n.sent[0])
	}
}

func TestGateSkipsSelfAuthored(t *testing.T) {
	n := &fakeNotifier{permission: PermissionGranted}
	g := NewGate(n, nil)

	e := mentionEntry(1)
	e.IsMine = true
	g.Applied(e)
	if len(n.sent) != 0 {
		t.Fatalf("self-authored mention notified: %v", n.sent)
	}
}

func TestGateRequestsPermissionOnce(t *testing.T) {
	n := &fakeNotifier{permission: PermissionDefault}
	g := NewGate(n, nil)

	for i := int64(1); i <= 3; i++ {
		g.Applied(mentionEntry(i))
	}
	if n.requests != 1 {
		t.Fatalf("expected exactly one permission request, got %d", n.requests)
	}
	if len(n.sent) != 0 {
		t.Fatalf("undetermined permission must suppress delivery, got %v", n.sent)
	}
}

func TestGateDeliversAfterGrant(t *testing.T) {
	n := &fakeNotifier{permission: PermissionDefault, grantOn: PermissionGranted}
	g := NewGate(n, nil)

	g.Applied(mentionEntry(1))
	g.Applied(mentionEntry(2))
	if len(n.sent) != 1 || g.Sent() != 1 {
		t.Fatalf("expected the second mention to notify, got %v", n.sent)
	}
}

func TestGateDeniedIsSilent(t *testing.T) {
	n := &fakeNotifier{permission: PermissionDenied}
	g := NewGate(n, nil)
	g.Applied(mentionEntry(1))
	if n.requests != 0 || len(n.sent) != 0 {
		t.Fatalf("denied permission must neither request nor send")
	}
}

func TestGateSwallowsNotifierErrors(t *testing.T) {
	n := &fakeNotifier{permission: PermissionGranted, err: errors.New("no dbus")}
	g := NewGate(n, nil)
	g.Applied(mentionEntry(1))
	if g.Sent() != 0 {
		t.Fatalf("failed notification counted as sent")
	}
}

func TestBodyTruncates(t *testing.T) {
	e := ledger.Entry{Message: api.Message{Username: "bob", Message: strings.Repeat("word  ", 40)}}
	body := Body(e)
	if n := len([]rune(body)); n != maxBodyLength {
		t.Fatalf("expected %d runes, got %d", maxBodyLength, n)
	}
	if !strings.HasSuffix(body, "…") || strings.Contains(body, "  ") {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestParsePermission(t *testing.T) {
	cases := map[string]Permission{
		"granted": PermissionGranted,
		" YES ":   PermissionGranted,
		"denied":  PermissionDenied,
		"off":     PermissionDenied,
		"prompt":  PermissionDefault,
		"":        PermissionDefault,
	}
	for in, want := range cases {
		if got := ParsePermission(in); got != want {
			t.Errorf("ParsePermission(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDesktopPromptResolvesAsync(t *testing.T) {
	answer := make(chan bool)
	d := NewDesktop(PermissionDefault, func(string) (bool, error) {
		return <-answer, nil
	})
	var sent []string
	d.send = func(title, body string) error {
		sent = append(sent, body)
		return nil
	}

	if got := d.RequestPermission(); got != PermissionDefault {
		t.Fatalf("expected request to return while pending, got %q", got)
	}
	if err := d.Notify("t", "before"); err != nil || len(sent) != 0 {
		t.Fatalf("notified before permission was granted")
	}

	answer <- true
	select {
	case <-d.Settled():
	case <-time.After(time.Second):
		t.Fatal("permission request never settled")
	}

	if d.Permission() != PermissionGranted {
		t.Fatalf("expected granted, got %q", d.Permission())
	}
	if err := d.Notify("t", "after"); err != nil || len(sent) != 1 {
		t.Fatalf("expected one notification after grant, got %v", sent)
	}
}

func TestDesktopWithoutPrompterDenies(t *testing.T) {
	d := NewDesktop(PermissionDefault, nil)
	if got := d.RequestPermission(); got != PermissionDenied {
		t.Fatalf("expected denied, got %q", got)
	}
}

func TestTerminalPrompter(t *testing.T) {
	var out strings.Builder
	p := TerminalPrompter(strings.NewReader("Y\n"), &out)
	ok, err := p("allow?")
	if err != nil || !ok {
		t.Fatalf("expected yes, got %v %v", ok, err)
	}
	if !strings.Contains(out.String(), "allow? [y/N]") {
		t.Fatalf("question not written: %q", out.String())
	}
}
