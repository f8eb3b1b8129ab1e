// Package datekey turns loosely formatted timestamps into the day keys and
// clock times used to group and label chat messages.
package datekey

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const keyLayout = "2006-01-02"

var naiveStampRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[ T](\d{2}):(\d{2})`)

// Stamp is the canonical (day key, time of day) pair. The zero value means
// the timestamp could not be read.
type Stamp struct {
	DayKey string // YYYY-MM-DD
	Time   string // HH:MM, 24h
}

func (s Stamp) IsZero() bool {
	return s.DayKey == ""
}

// Labels are the words substituted for today's and yesterday's day keys.
type Labels struct {
	Today     string
	Yesterday string
}

var DefaultLabels = Labels{Today: "Today", Yesterday: "Yesterday"}

type Normalizer struct {
	loc    *time.Location
	now    func() time.Time
	labels Labels
}

type Option func(*Normalizer)

func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

func WithLabels(labels Labels) Option {
	return func(n *Normalizer) {
		if labels.Today != "" {
			n.labels.Today = labels.Today
		}
		if labels.Yesterday != "" {
			n.labels.Yesterday = labels.Yesterday
		}
	}
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		loc:    time.Local,
		now:    time.Now,
		labels: DefaultLabels,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Parse reads a timestamp. Naive "YYYY-MM-DD HH:MM" prefixes are taken
// verbatim so server-local times are never shifted; anything else goes
// through generic parsing in the normalizer's location.
func (n *Normalizer) Parse(raw string) Stamp {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Stamp{}
	}
	if m := naiveStampRe.FindStringSubmatch(s); m != nil {
		return Stamp{DayKey: m[1], Time: m[2] + ":" + m[3]}
	}

	t, err := dateparse.ParseIn(s, n.loc)
	// fragments like "12:" parse to year zero
	if err != nil || t.Year() < 1 {
		return Stamp{}
	}
	t = t.In(n.loc)
	return Stamp{DayKey: t.Format(keyLayout), Time: t.Format("15:04")}
}

// Label renders a day key for a divider: the today/yesterday words when
// they apply, DD.MM.YYYY otherwise, and "" for an empty key.
func (n *Normalizer) Label(dayKey string) string {
	if dayKey == "" {
		return ""
	}
	now := n.now().In(n.loc)
	if dayKey == now.Format(keyLayout) {
		return n.labels.Today
	}
	yesterday := time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, n.loc)
	if dayKey == yesterday.Format(keyLayout) {
		return n.labels.Yesterday
	}
	if len(dayKey) != len(keyLayout) {
		return dayKey
	}
	return dayKey[8:10] + "." + dayKey[5:7] + "." + dayKey[0:4]
}
