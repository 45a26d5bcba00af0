package eval

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/historymind"
	"github.com/brunobiangulo/historymind/intent"
)

// Scenario categories used by the built-in dataset.
const (
	CategoryMeta      = "meta"
	CategoryYear      = "year"
	CategoryRange     = "range"
	CategoryPerson    = "person"
	CategoryFactCheck = "fact-check"
	CategoryIdentity  = "identity"
	CategoryConflict  = "conflict"
	CategoryTypo      = "typo"
)

// Dataset is a collection of scenarios for evaluation.
type Dataset struct {
	Name      string     `json:"name" yaml:"name"`
	Scenarios []Scenario `json:"scenarios" yaml:"scenarios"`
}

// Scenario defines a single evaluation question. Empty expectations are not
// checked.
type Scenario struct {
	Question string `json:"question" yaml:"question"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	Intent  intent.Intent       `json:"intent,omitempty" yaml:"intent,omitempty"`
	Outcome historymind.Outcome `json:"outcome,omitempty" yaml:"outcome,omitempty"`

	// ExpectedFacts should appear in the answer. A fact may list
	// alternatives separated by "|".
	ExpectedFacts []string `json:"expected_facts,omitempty" yaml:"expected_facts,omitempty"`

	// ForbiddenFacts must not appear in the answer.
	ForbiddenFacts []string `json:"forbidden_facts,omitempty" yaml:"forbidden_facts,omitempty"`

	// ExpectedSources are record ids that should back the answer.
	ExpectedSources []string `json:"expected_sources,omitempty" yaml:"expected_sources,omitempty"`
}

// LoadDataset reads a dataset from a YAML or JSON file.
func LoadDataset(path string) (Dataset, error) {
	var ds Dataset
	data, err := os.ReadFile(path)
	if err != nil {
		return ds, fmt.Errorf("reading dataset: %w", err)
	}
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return ds, fmt.Errorf("decoding dataset %s: %w", path, err)
	}
	if ds.Name == "" {
		ds.Name = path
	}
	for i, s := range ds.Scenarios {
		if s.Question == "" {
			return ds, fmt.Errorf("dataset %s: scenario %d has no question", path, i+1)
		}
	}
	return ds, nil
}

// Filter returns the scenarios of ds in the given categories. No categories
// returns ds unchanged.
func (ds Dataset) Filter(categories ...string) Dataset {
	if len(categories) == 0 {
		return ds
	}
	keep := make(map[string]bool, len(categories))
	for _, c := range categories {
		keep[c] = true
	}
	out := Dataset{Name: ds.Name}
	for _, s := range ds.Scenarios {
		if keep[s.Category] {
			out.Scenarios = append(out.Scenarios, s)
		}
	}
	return out
}

// HistoryDataset returns scenarios over well-known events of Vietnamese
// history that any reasonable corpus covers.
func HistoryDataset() Dataset {
	return Dataset{
		Name: "Vietnamese history - core scenarios",
		Scenarios: []Scenario{
			{
				Question: "xin chào",
				Category: CategoryMeta,
				Intent:   intent.Greeting,
				Outcome:  historymind.OutcomeCanned,
			},
			{
				Question: "bạn là ai?",
				Category: CategoryMeta,
				Intent:   intent.Identity,
				Outcome:  historymind.OutcomeCanned,
			},
			{
				Question:      "Năm 1945 có sự kiện gì?",
				Category:      CategoryYear,
				Intent:        intent.YearSpecific,
				ExpectedFacts: []string{"1945", "độc lập|cách mạng tháng tám"},
			},
			{
				Question:      "Chiến thắng Điện Biên Phủ diễn ra năm nào?",
				Category:      CategoryYear,
				ExpectedFacts: []string{"1954"},
			},
			{
				Question:      "Các sự kiện từ năm 1954 đến 1975",
				Category:      CategoryRange,
				Intent:        intent.YearRange,
				ExpectedFacts: []string{"1954", "1975"},
			},
			{
				Question:      "Trần Hưng Đạo là ai?",
				Category:      CategoryPerson,
				ExpectedFacts: []string{"nguyên|mông", "bạch đằng"},
			},
			{
				Question:       "Chiến thắng Điện Biên Phủ năm 1874 đúng không?",
				Category:       CategoryFactCheck,
				Intent:         intent.FactCheck,
				ExpectedFacts:  []string{"không phải năm 1874", "1954"},
				ForbiddenFacts: []string{"đúng, sự kiện"},
			},
			{
				Question:      "Quang Trung và Nguyễn Huệ có phải là một người không?",
				Category:      CategoryIdentity,
				Intent:        intent.Relationship,
				Outcome:       historymind.OutcomeIdentity,
				ExpectedFacts: []string{"cùng một người"},
			},
			{
				Question:      "Trần Hưng Đạo năm 1945",
				Category:      CategoryConflict,
				Outcome:       historymind.OutcomeConflict,
				ExpectedFacts: []string{"không sống vào năm 1945"},
			},
			{
				Question:      "tran hung dao danh quan nguyen",
				Category:      CategoryTypo,
				ExpectedFacts: []string{"trần hưng đạo|bạch đằng"},
			},
		},
	}
}
