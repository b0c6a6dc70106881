package matcher

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// CatalogEntry is one rule of the in-process matcher. The first entry whose
// pattern occurs in the joined keywords decides the outcome.
type CatalogEntry struct {
	Pattern *regexp.Regexp
	Program *Program
	Error   string
}

// CatalogMatcher is a deterministic in-process matcher used for local
// runs and tests.
type CatalogMatcher struct {
	entries []CatalogEntry
}

func NewCatalogMatcher(entries []CatalogEntry) *CatalogMatcher {
	return &CatalogMatcher{entries: entries}
}

// NewDefaultCatalogMatcher returns the built-in demo catalog.
func NewDefaultCatalogMatcher() *CatalogMatcher {
	return NewCatalogMatcher(DefaultCatalog())
}

func (m *CatalogMatcher) Name() string { return "catalog" }

func (m *CatalogMatcher) Match(ctx context.Context, keywords []string) Outcome {
	if err := ctx.Err(); err != nil {
		return Failed(err.Error())
	}
	if len(keywords) == 0 {
		return Failed("no keywords provided")
	}
	joined := cases.Fold().String(strings.Join(keywords, " "))

	for _, e := range m.entries {
		if !e.Pattern.MatchString(joined) {
			continue
		}
		if e.Error != "" {
			return Failed(e.Error)
		}
		if e.Program == nil {
			return NoMatch("")
		}
		return Matched(*e.Program)
	}
	return NoMatch("")
}

func DefaultCatalog() []CatalogEntry {
	word := func(w string) *regexp.Regexp { return regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`) }
	sub := func(s string) *regexp.Regexp { return regexp.MustCompile(regexp.QuoteMeta(s)) }

	return []CatalogEntry{
		{Pattern: sub("dune"), Program: &Program{
			Title:       "Dune: Part Two",
			Kind:        "movie",
			ReleaseYear: 2024,
			Descriptions: []string{
				"Paul Atreides unites with Chani and the Fremen while seeking revenge against the conspirators who destroyed his family.",
				"The epic sequel to the 2021 Dune film, featuring stunning visuals and a stellar cast.",
			},
			Cast:             []string{"Timothée Chalamet", "Zendaya", "Rebecca Ferguson", "Josh Brolin", "Stellan Skarsgård", "Dave Bautista"},
			TrendExplanation: "Latest blockbuster sequel with stellar cast and impressive box office performance. Trending due to recent release and strong critical reception.",
			ExternalID:       "tt15398776",
			Trending:         true,
		}},
		{Pattern: sub("oppenheimer"), Program: &Program{
			Title:       "Oppenheimer",
			Kind:        "movie",
			ReleaseYear: 2023,
			Descriptions: []string{
				"The story of American scientist J. Robert Oppenheimer and his role in the development of the atomic bomb.",
				"Christopher Nolan's biographical thriller about the father of the atomic bomb.",
			},
			Cast:             []string{"Cillian Murphy", "Emily Blunt", "Matt Damon", "Robert Downey Jr.", "Florence Pugh"},
			TrendExplanation: "Oscar-winning biopic that dominated awards season and box office. Trending due to recent Oscar wins and continued popularity.",
			ExternalID:       "tt34683290",
			Trending:         true,
		}},
		{Pattern: sub("wednesday"), Program: &Program{
			Title:       "Wednesday",
			Kind:        "show",
			ReleaseYear: 2022,
			Descriptions: []string{
				"Follows Wednesday Addams' years as a student at Nevermore Academy, where she attempts to master her emerging psychic ability.",
				"A supernatural mystery comedy series based on the Addams Family characters.",
			},
			Cast:             []string{"Jenna Ortega", "Gwendoline Christie", "Christina Ricci", "Catherine Zeta-Jones"},
			TrendExplanation: "Netflix's viral hit series with massive social media buzz. Trending due to viral dance scenes and strong fan following.",
			ExternalID:       "tt13443470",
			Trending:         true,
		}},
		{Pattern: regexp.MustCompile(`game of thrones|\bgot\b`), Program: &Program{
			Title:       "Game of Thrones",
			Kind:        "show",
			ReleaseYear: 2011,
			Descriptions: []string{
				"Nine noble families fight for control over the mythical lands of Westeros.",
				"A medieval fantasy drama series based on George R.R. Martin's novels.",
			},
			Cast:             []string{"Emilia Clarke", "Kit Harington", "Peter Dinklage", "Lena Headey"},
			TrendExplanation: "Classic series, but not actively trending in the last 7 days. Ended in 2019 with no recent news or releases.",
			ExternalID:       "tt0944947",
		}},
		{Pattern: sub("breaking bad"), Program: &Program{
			Title:       "Breaking Bad",
			Kind:        "show",
			ReleaseYear: 2008,
			Descriptions: []string{
				"A high school chemistry teacher diagnosed with inoperable lung cancer turns to manufacturing and selling methamphetamine.",
				"A crime drama series following Walter White's transformation into a drug kingpin.",
			},
			Cast:             []string{"Bryan Cranston", "Aaron Paul", "Anna Gunn", "Dean Norris"},
			TrendExplanation: "Highly acclaimed series that ended in 2013. Not currently trending as there are no new episodes or related content.",
			ExternalID:       "tt0903747",
		}},
		{Pattern: word("error"), Error: "Agent analysis failed: Unable to connect to search service"},
		{Pattern: word("timeout"), Error: "Agent analysis failed: Request timeout while searching for trends"},
		{Pattern: word("invalid"), Error: "Agent analysis failed: Invalid input format provided"},
	}
}
