// Package mention derives the alias tokens a user answers to and detects
// @-references to them in message text.
package mention

import (
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"
)

const marker = "@"

var (
	// A token is @ at the start of the text or after whitespace or
	// punctuation, followed by name characters.
	tokenRe     = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_@])@([a-z0-9._-]+)`)
	whitespace  = regexp.MustCompile(`\s+`)
	nonNameRe   = regexp.MustCompile(`[^a-z0-9._-]`)
	separatorRe = regexp.MustCompile(`[._-]`)
)

// AliasSet is the immutable set of lowercase tokens that refer to the
// current user.
type AliasSet struct {
	tokens map[string]struct{}
}

// BuildAliasSet derives every variant of rawUsername a colleague might type
// after @, unioned with extraAliases.
func BuildAliasSet(rawUsername string, extraAliases []string) AliasSet {
	set := AliasSet{tokens: map[string]struct{}{}}

	raw := strings.ToLower(strings.TrimSpace(rawUsername))
	raw = strings.TrimLeft(raw, marker)
	raw = strings.TrimSpace(raw)

	if raw != "" {
		variants := []string{
			raw,
			whitespace.ReplaceAllString(raw, ""),
			firstField(raw),
			nonNameRe.ReplaceAllString(raw, ""),
		}
		variants = append(variants, separatorRe.ReplaceAllString(nonNameRe.ReplaceAllString(raw, ""), ""))
		variants = lo.Uniq(lo.Compact(variants))

		for _, v := range variants {
			set.add(v)
			for _, sep := range []string{".", "_", "-"} {
				if head, _, found := strings.Cut(v, sep); found {
					set.add(head)
				}
			}
		}
	}

	for _, alias := range extraAliases {
		set.add(strings.TrimLeft(strings.ToLower(strings.TrimSpace(alias)), marker))
	}
	return set
}

func (s AliasSet) add(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	s.tokens[token] = struct{}{}
}

func (s AliasSet) Contains(token string) bool {
	_, ok := s.tokens[strings.ToLower(token)]
	return ok
}

func (s AliasSet) Len() int {
	return len(s.tokens)
}

// Tokens returns the aliases in sorted order.
func (s AliasSet) Tokens() []string {
	out := lo.Keys(s.tokens)
	sort.Strings(out)
	return out
}

// Tokens extracts the lowercase mention targets from text, without the @.
func Tokens(text string) []string {
	matches := tokenRe.FindAllStringSubmatch(text, -1)
	return lo.Map(matches, func(m []string, _ int) string {
		return strings.ToLower(m[1])
	})
}

// Matches reports whether text mentions any alias in set. A trailing
// separator is forgiven so "@john." still reaches john.
func Matches(text string, set AliasSet) bool {
	if set.Len() == 0 {
		return false
	}
	for _, token := range Tokens(text) {
		if set.Contains(token) {
			return true
		}
		if trimmed := strings.TrimRight(token, "._-"); trimmed != token && set.Contains(trimmed) {
			return true
		}
	}
	return false
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
