// Package matcher asks the matching service which catalog program, if any,
// a set of trend keywords refers to.
package matcher

import "context"

// Program is a matched catalog entry.
type Program struct {
	Title            string   `json:"title"`
	Kind             string   `json:"program_type"`
	ReleaseYear      int      `json:"release_year,omitempty"`
	Descriptions     []string `json:"descriptions,omitempty"`
	Cast             []string `json:"cast"`
	TrendExplanation string   `json:"explanation_of_trend"`
	ExternalID       string   `json:"imdb_id"`
	Trending         bool     `json:"-"`
}

type OutcomeKind int

const (
	OutcomeNoMatch OutcomeKind = iota
	OutcomeMatched
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeMatched:
		return "matched"
	case OutcomeFailed:
		return "failed"
	default:
		return "no_match"
	}
}

// Outcome is the tagged result of one match call. Program is set only for
// OutcomeMatched, Error only for OutcomeFailed. Info is an optional note.
type Outcome struct {
	Kind    OutcomeKind
	Program *Program
	Error   string
	Info    string
}

func Matched(p Program) Outcome     { return Outcome{Kind: OutcomeMatched, Program: &p} }
func NoMatch(info string) Outcome   { return Outcome{Kind: OutcomeNoMatch, Info: info} }
func Failed(message string) Outcome { return Outcome{Kind: OutcomeFailed, Error: message} }

// Matcher maps keywords to a program. Transport problems are reported as
// OutcomeFailed rather than returned.
type Matcher interface {
	Match(ctx context.Context, keywords []string) Outcome
	Name() string
}
