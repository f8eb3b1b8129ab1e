// Package ledger applies chat messages to a session exactly once per id and
// fans every accepted message out to the render, badge and notification
// sinks.
package ledger

import (
	"strings"

	"chatoverlay/api"
	"chatoverlay/datekey"
	"chatoverlay/mention"
	"chatoverlay/session"

	"github.com/samber/mo"
)

// Entry is an accepted message together with everything the presentation
// layer needs to draw it.
type Entry struct {
	Message    api.Message
	Stamp      datekey.Stamp
	DayDivider bool   // a day divider goes above this message
	DayLabel   string // label of that divider
	IsMine     bool
	Mentioned  bool
	Initial    bool // part of a silent catch-up
}

// Sink receives accepted entries. Sinks run on the ledger's goroutine and
// must not block.
type Sink interface {
	Applied(Entry)
}

type SinkFunc func(Entry)

func (f SinkFunc) Applied(e Entry) { f(e) }

type Result struct {
	Accepted bool
	IsNew    bool
}

type Ledger struct {
	state    *session.State
	dates    *datekey.Normalizer
	aliases  mention.AliasSet
	identity string
	sinks    []Sink
}

func New(state *session.State, dates *datekey.Normalizer, identity string, aliases mention.AliasSet) *Ledger {
	if dates == nil {
		dates = datekey.New()
	}
	return &Ledger{
		state:    state,
		dates:    dates,
		aliases:  aliases,
		identity: identity,
	}
}

// Attach registers a sink. Sinks are called in registration order.
func (l *Ledger) Attach(s Sink) {
	l.sinks = append(l.sinks, s)
}

// Apply accepts m unless its id was already applied. A message without an
// id is shown but never moves the high-water mark.
func (l *Ledger) Apply(m api.Message, initial bool) Result {
	if m.ID > 0 && m.ID <= l.state.LastAppliedID {
		return Result{}
	}

	res := Result{Accepted: true}
	if m.ID > 0 {
		l.state.LastAppliedID = m.ID
		res.IsNew = true
	}

	entry := Entry{
		Message: m,
		Stamp:   l.dates.Parse(m.CreatedAt),
		Initial: initial,
	}
	if key := entry.Stamp.DayKey; key != "" && key != l.state.LastRenderedDayKey.OrEmpty() {
		entry.DayDivider = true
		entry.DayLabel = l.dates.Label(key)
		l.state.LastRenderedDayKey = mo.Some(key)
	}

	entry.IsMine = l.IsMine(m.Username)
	if !entry.IsMine {
		entry.Mentioned = mention.Matches(m.Message, l.aliases)
	}

	for _, s := range l.sinks {
		s.Applied(entry)
	}
	return res
}

// ApplyAll applies a batch in the order given and returns how many were
// accepted.
func (l *Ledger) ApplyAll(msgs []api.Message, initial bool) int {
	n := 0
	for _, m := range msgs {
		if l.Apply(m, initial).Accepted {
			n++
		}
	}
	return n
}

func (l *Ledger) IsMine(username string) bool {
	return strings.EqualFold(username, l.identity)
}

func (l *Ledger) LastAppliedID() int64 {
	return l.state.LastAppliedID
}
