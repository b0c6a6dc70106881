package matcher

// AnalyzeRequest is the body of POST /api/analyze-trends.
type AnalyzeRequest struct {
	Keywords []string `json:"keywords"`
}

// ProgramPayload is the program as it appears on the wire.
type ProgramPayload struct {
	Title              string   `json:"title"`
	ProgramType        string   `json:"program_type"`
	ReleaseYear        *int     `json:"release_year"`
	Description        string   `json:"description"`
	Descriptions       []string `json:"descriptions,omitempty"`
	Cast               []string `json:"cast"`
	ExplanationOfTrend string   `json:"explanation_of_trend"`
	ImdbID             string   `json:"imdb_id"`
	PosterPath         *string  `json:"poster_path"`
}

// AnalyzeResponse is the response of POST /api/analyze-trends.
type AnalyzeResponse struct {
	Success           bool            `json:"success"`
	ProgramIsTrending *bool           `json:"program_is_trending,omitempty"`
	Program           *ProgramPayload `json:"program,omitempty"`
	Error             string          `json:"error,omitempty"`
	Message           string          `json:"message,omitempty"`
}

const (
	messageMatched = "Successfully identified trending program"
	messageFailed  = "Agent analysis failed"
	messageNoMatch = "Agent Completed, but no program was identified and no specific error was returned"
)

// ResponseFromOutcome renders an outcome in the wire format.
func ResponseFromOutcome(o Outcome) AnalyzeResponse {
	switch o.Kind {
	case OutcomeMatched:
		p := o.Program
		trending := p.Trending
		payload := &ProgramPayload{
			Title:              p.Title,
			ProgramType:        p.Kind,
			Descriptions:       p.Descriptions,
			Cast:               p.Cast,
			ExplanationOfTrend: p.TrendExplanation,
			ImdbID:             p.ExternalID,
		}
		if payload.ProgramType == "" {
			payload.ProgramType = "movie"
		}
		if payload.Cast == nil {
			payload.Cast = []string{}
		}
		if p.ReleaseYear > 0 {
			year := p.ReleaseYear
			payload.ReleaseYear = &year
		}
		if len(p.Descriptions) > 0 {
			payload.Description = p.Descriptions[0]
		}
		return AnalyzeResponse{Success: true, ProgramIsTrending: &trending, Program: payload, Message: messageMatched}
	case OutcomeFailed:
		return AnalyzeResponse{Success: false, Error: o.Error, Message: messageFailed}
	default:
		trending := false
		msg := o.Info
		if msg == "" {
			msg = messageNoMatch
		}
		return AnalyzeResponse{Success: true, ProgramIsTrending: &trending, Message: msg}
	}
}

// OutcomeFromResponse interprets a wire response.
func OutcomeFromResponse(r AnalyzeResponse) Outcome {
	if !r.Success {
		msg := r.Error
		if msg == "" {
			msg = r.Message
		}
		if msg == "" {
			msg = "matching service reported failure"
		}
		return Failed(msg)
	}
	if r.Program == nil || r.Program.Title == "" {
		return NoMatch(r.Message)
	}

	p := Program{
		Title:            r.Program.Title,
		Kind:             r.Program.ProgramType,
		Descriptions:     r.Program.Descriptions,
		Cast:             r.Program.Cast,
		TrendExplanation: r.Program.ExplanationOfTrend,
		ExternalID:       r.Program.ImdbID,
		Trending:         r.ProgramIsTrending == nil || *r.ProgramIsTrending,
	}
	if len(p.Descriptions) == 0 && r.Program.Description != "" {
		p.Descriptions = []string{r.Program.Description}
	}
	if r.Program.ReleaseYear != nil {
		p.ReleaseYear = *r.Program.ReleaseYear
	}
	return Matched(p)
}
