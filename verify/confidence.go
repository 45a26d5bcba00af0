package verify

import (
	"strings"

	"github.com/brunobiangulo/historymind/retrieval"
	"github.com/brunobiangulo/historymind/vntext"
)

// ConfidenceWeights controls the relative importance of confidence factors.
type ConfidenceWeights struct {
	SourceCoverage float64 `json:"source_coverage" yaml:"source_coverage" mapstructure:"source_coverage"` // How many top candidates the answer draws on
	YearGrounding  float64 `json:"year_grounding" yaml:"year_grounding" mapstructure:"year_grounding"`    // Share of answer years found in the evidence
	Verification   float64 `json:"verification" yaml:"verification" mapstructure:"verification"`          // Outcome of the output checks
	AnswerLength   float64 `json:"answer_length" yaml:"answer_length" mapstructure:"answer_length"`       // Whether the answer is substantive
}

// DefaultConfidenceWeights returns balanced weights.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		SourceCoverage: 0.3,
		YearGrounding:  0.3,
		Verification:   0.25,
		AnswerLength:   0.15,
	}
}

// Confidence calculates a [0,1] confidence score for a verified answer.
func Confidence(answer string, r Result, cands []retrieval.Candidate, w ConfidenceWeights) float64 {
	conf := sourceCoverageScore(answer, cands)*w.SourceCoverage +
		yearGroundingScore(r)*w.YearGrounding +
		verificationScore(r)*w.Verification +
		answerLengthScore(answer)*w.AnswerLength

	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}

// sourceCoverageScore measures what fraction of top candidates are
// reflected in the answer.
func sourceCoverageScore(answer string, cands []retrieval.Candidate) float64 {
	if len(cands) == 0 {
		return 0
	}
	n := len(cands)
	if n > 5 {
		n = 5
	}

	lower := vntext.Normalize(answer)
	referenced := 0
	for _, c := range cands[:n] {
		if c.Doc.Title != "" && strings.Contains(lower, vntext.Normalize(c.Doc.Title)) {
			referenced++
			continue
		}
		// First few words of the narrative
		words := strings.Fields(c.Doc.Text())
		if len(words) > 5 {
			words = words[:5]
		}
		if len(words) > 0 && strings.Contains(lower, vntext.Normalize(strings.Join(words, " "))) {
			referenced++
		}
	}
	return float64(referenced) / float64(n)
}

func yearGroundingScore(r Result) float64 {
	if r.Years == 0 {
		return 0.5 // neutral if no years found
	}
	return float64(r.Grounded) / float64(r.Years)
}

func verificationScore(r Result) float64 {
	switch r.Severity {
	case Pass:
		return 1
	case AutoFix:
		return 0.9
	case SoftFail:
		return 0.5
	}
	return 0
}

// answerLengthScore gives higher scores to substantive answers.
func answerLengthScore(answer string) float64 {
	words := len(strings.Fields(answer))
	switch {
	case words < 10:
		return 0.2
	case words < 30:
		return 0.5
	case words < 100:
		return 0.8
	case words < 500:
		return 1.0
	default:
		return 0.9 // slightly lower for very long answers
	}
}
