package historymind

import (
	"github.com/brunobiangulo/historymind/conflict"
	"github.com/brunobiangulo/historymind/intent"
	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/nlu"
	"github.com/brunobiangulo/historymind/retrieval"
	"github.com/brunobiangulo/historymind/synth"
	"github.com/brunobiangulo/historymind/verify"
)

// Outcome classifies how an answer was produced.
type Outcome string

const (
	OutcomeAnswered      Outcome = "answered"
	OutcomeCanned        Outcome = "canned"
	OutcomeIdentity      Outcome = "identity"
	OutcomeConflict      Outcome = "conflict"
	OutcomeNoResults     Outcome = "no_results"
	OutcomeConservative  Outcome = "conservative"
	OutcomeInternalError Outcome = "internal_error"
)

// Answer represents the result of a query.
type Answer struct {
	Text         string              `json:"text"`
	Intent       intent.Intent       `json:"intent"`
	QuestionType intent.QuestionType `json:"question_type"`
	Outcome      Outcome             `json:"outcome"`
	Verification *verify.Result      `json:"verification,omitempty"`
	Confidence   float64             `json:"confidence"`
	Sources      []Source            `json:"sources"`
	Conflict     *conflict.Verdict   `json:"conflict,omitempty"`
	Trace        Trace               `json:"trace"`
}

// Err returns the sentinel error matching the outcome, or nil for
// outcomes that answered the question.
func (a *Answer) Err() error {
	switch a.Outcome {
	case OutcomeConflict:
		return ErrConflict
	case OutcomeNoResults:
		return ErrNoResults
	case OutcomeConservative:
		return ErrHardVerification
	case OutcomeInternalError:
		if a.Trace.Error == ErrStoreClosed.Error() {
			return ErrStoreClosed
		}
		return errInternal
	}
	return nil
}

// Source represents a corpus record backing an answer.
type Source struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Year       kb.Year `json:"year"`
	Score      float64 `json:"score"`
	CrossScore float64 `json:"cross_score"`
	Strategy   string  `json:"strategy"`
}

// Trace records how a request went through the pipeline.
type Trace struct {
	RequestID   string                  `json:"request_id"`
	Rewritten   string                  `json:"rewritten"`
	Variants    []string                `json:"variants,omitempty"`
	Corrections []nlu.Correction        `json:"corrections,omitempty"`
	Rule        string                  `json:"rule,omitempty"`
	Strategy    string                  `json:"strategy,omitempty"`
	Fallback    string                  `json:"fallback,omitempty"`
	Template    synth.Template          `json:"template,omitempty"`
	Attempts    []retrieval.Attempt     `json:"attempts,omitempty"`
	Searches    []retrieval.SearchTrace `json:"searches,omitempty"`
	Retrieved   int                     `json:"retrieved"`
	Reranked    int                     `json:"reranked"`
	Steps       []Step                  `json:"steps"`
	Error       string                  `json:"error,omitempty"`
	ElapsedMs   int64                   `json:"elapsed_ms"`
}

// Step represents one pipeline stage of a request.
type Step struct {
	Stage     string `json:"stage"`
	Output    string `json:"output,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

func sourcesOf(cands []retrieval.Candidate) []Source {
	out := make([]Source, 0, len(cands))
	for _, c := range cands {
		out = append(out, Source{
			ID:         c.Doc.ID,
			Title:      c.Doc.Title,
			Year:       c.Doc.Year,
			Score:      c.Score,
			CrossScore: c.CrossScore,
			Strategy:   c.Strategy,
		})
	}
	return out
}
