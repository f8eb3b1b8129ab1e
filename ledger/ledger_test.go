package ledger

import (
	"testing"
	"time"

	"chatoverlay/api"
	"chatoverlay/datekey"
	"chatoverlay/mention"
	"chatoverlay/session"
)

type recorder struct {
	entries []Entry
}

func (r *recorder) Applied(e Entry) {
	r.entries = append(r.entries, e)
}

func (r *recorder) dividers() int {
	n := 0
	for _, e := range r.entries {
		if e.DayDivider {
			n++
		}
	}
	return n
}

func newTestLedger(identity string) (*Ledger, *session.State, *recorder) {
	state := session.New()
	dates := datekey.New(
		datekey.WithLocation(time.UTC),
		datekey.WithClock(func() time.Time { return time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC) }),
	)
	l := New(state, dates, identity, mention.BuildAliasSet(identity, nil))
	rec := &recorder{}
	l.Attach(rec)
	return l, state, rec
}

func msg(id int64, user, body, createdAt string) api.Message {
	return api.Message{ID: id, RoomID: 1, Username: user, Message: body, CreatedAt: createdAt}
}

func TestApplyIsIdempotent(t *testing.T) {
	l, state, rec := newTestLedger("john.doe")
	m := msg(7, "alice", "hi", "2024-01-01 10:00:00")

	first := l.Apply(m, false)
	second := l.Apply(m, false)

	if !first.Accepted || !first.IsNew {
		t.Fatalf("expected first apply accepted and new, got %+v", first)
	}
	if second.Accepted || second.IsNew {
		t.Fatalf("expected duplicate rejected, got %+v", second)
	}
	if len(rec.entries) != 1 {
		t.Fatalf("expected exactly one render, got %d", len(rec.entries))
	}
	if state.LastAppliedID != 7 {
		t.Fatalf("expected last applied id 7, got %d", state.LastAppliedID)
	}
}

func TestApplyOrderIndependentUnderDuplication(t *testing.T) {
	l, state, rec := newTestLedger("john.doe")
	pulled := []api.Message{
		msg(1, "alice", "one", "2024-01-01 10:00:00"),
		msg(2, "bob", "two", "2024-01-01 10:01:00"),
		msg(3, "alice", "three", "2024-01-01 10:02:00"),
	}

	if n := l.ApplyAll(pulled, false); n != 3 {
		t.Fatalf("expected 3 accepted from pull, got %d", n)
	}
	for _, m := range pulled[1:] {
		if res := l.Apply(m, false); res.Accepted {
			t.Fatalf("push re-delivery of %d must be rejected", m.ID)
		}
	}

	if state.LastAppliedID != 3 {
		t.Fatalf("expected last applied id 3, got %d", state.LastAppliedID)
	}
	if len(rec.entries) != 3 {
		t.Fatalf("expected 3 rendered messages, got %d", len(rec.entries))
	}
}

func TestApplyRejectsOlderIDs(t *testing.T) {
	l, state, rec := newTestLedger("me")

	l.Apply(msg(5, "alice", "five", ""), false)
	if res := l.Apply(msg(4, "alice", "four", ""), false); res.Accepted {
		t.Fatal("expected id below the high-water mark to be rejected")
	}
	if state.LastAppliedID != 5 || len(rec.entries) != 1 {
		t.Fatalf("unexpected state: last=%d renders=%d", state.LastAppliedID, len(rec.entries))
	}
}

func TestApplyMissingIDNeverAdvances(t *testing.T) {
	l, state, rec := newTestLedger("me")
	l.Apply(msg(3, "alice", "three", ""), false)

	res := l.Apply(msg(0, "alice", "no id", ""), false)
	if !res.Accepted || res.IsNew {
		t.Fatalf("expected id-less message accepted but not new, got %+v", res)
	}
	if state.LastAppliedID != 3 {
		t.Fatalf("id-less message moved high-water mark to %d", state.LastAppliedID)
	}

	// id-less messages do not deduplicate either
	l.Apply(msg(0, "alice", "no id", ""), false)
	if len(rec.entries) != 3 {
		t.Fatalf("expected 3 renders, got %d", len(rec.entries))
	}
}

func TestApplyMissingBodyRendersEmpty(t *testing.T) {
	l, _, rec := newTestLedger("me")
	res := l.Apply(api.Message{ID: 1, Username: "alice"}, false)
	if !res.Accepted {
		t.Fatal("expected message without body to be applied")
	}
	if rec.entries[0].Message.Message != "" {
		t.Fatalf("expected empty body, got %q", rec.entries[0].Message.Message)
	}
}

func TestDayGrouping(t *testing.T) {
	l, state, rec := newTestLedger("me")

	l.Apply(msg(1, "alice", "a", "2024-01-01 10:00:00"), false)
	l.Apply(msg(2, "alice", "b", "2024-01-01 11:00:00"), false)
	if rec.dividers() != 1 {
		t.Fatalf("expected one divider for the same day, got %d", rec.dividers())
	}

	l.Apply(msg(3, "alice", "c", "2024-01-02 09:00:00"), false)
	if rec.dividers() != 2 {
		t.Fatalf("expected a second divider for the next day, got %d", rec.dividers())
	}
	if got := rec.entries[0].DayLabel; got != "Yesterday" {
		t.Fatalf("expected first divider labelled Yesterday, got %q", got)
	}
	if got := rec.entries[2].DayLabel; got != "Today" {
		t.Fatalf("expected second divider labelled Today, got %q", got)
	}
	if key := state.LastRenderedDayKey.OrEmpty(); key != "2024-01-02" {
		t.Fatalf("expected last day key 2024-01-02, got %q", key)
	}
}

func TestMalformedTimestampSkipsDivider(t *testing.T) {
	l, state, rec := newTestLedger("me")

	res := l.Apply(msg(1, "alice", "a", "yesterday-ish"), false)
	if !res.Accepted {
		t.Fatal("malformed timestamp must not block the message")
	}
	if rec.entries[0].DayDivider || rec.entries[0].Stamp.Time != "" {
		t.Fatalf("expected no divider and blank time, got %+v", rec.entries[0])
	}
	if state.LastRenderedDayKey.IsPresent() {
		t.Fatal("malformed timestamp must not set the day key")
	}
}

func TestSelfAuthoredMentionIsNotAMention(t *testing.T) {
	l, _, rec := newTestLedger("John.Doe")

	l.Apply(msg(1, "john.doe", "note to self @john", ""), false)
	l.Apply(msg(2, "alice", "hey @john check this", ""), false)

	if !rec.entries[0].IsMine || rec.entries[0].Mentioned {
		t.Fatalf("self-authored message flagged wrong: %+v", rec.entries[0])
	}
	if rec.entries[1].IsMine || !rec.entries[1].Mentioned {
		t.Fatalf("mention from alice flagged wrong: %+v", rec.entries[1])
	}
}

func TestSinksRunInOrder(t *testing.T) {
	l, _, _ := newTestLedger("me")
	var order []string
	l.Attach(SinkFunc(func(Entry) { order = append(order, "a") }))
	l.Attach(SinkFunc(func(Entry) { order = append(order, "b") }))

	l.Apply(msg(1, "alice", "x", ""), false)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected sink order %v", order)
	}
}
