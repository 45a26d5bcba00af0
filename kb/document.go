package kb

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/historymind/vntext"
)

// Tone is the narrative register of an event record.
type Tone string

const (
	ToneHeroic  Tone = "heroic"
	ToneNeutral Tone = "neutral"
	ToneTragic  Tone = "tragic"
)

// ParseTone maps free-form tone labels onto the closed set; anything
// unrecognised is neutral.
func ParseTone(s string) Tone {
	switch vntext.Fold(s) {
	case "heroic", "hao hung", "anh hung":
		return ToneHeroic
	case "tragic", "bi thuong", "bi trang":
		return ToneTragic
	default:
		return ToneNeutral
	}
}

// Document is one event record of the corpus. Values are validated once at
// load time; downstream code never re-checks field types.
type Document struct {
	ID          string   `json:"id"`
	Year        Year     `json:"year"`
	Title       string   `json:"title"`
	Event       string   `json:"event"`
	Story       string   `json:"story"`
	Dynasty     string   `json:"dynasty"`
	Persons     []string `json:"persons"`
	PersonsAll  []string `json:"persons_all"`
	Places      []string `json:"places"`
	Keywords    []string `json:"keywords"`
	Tone        Tone     `json:"tone"`
	Nature      []string `json:"nature,omitempty"`
	SubjectType string   `json:"subject_type,omitempty"`
}

// Text returns the narrative used for matching and display: the story when
// present, otherwise the event label, otherwise the title.
func (d *Document) Text() string {
	switch {
	case d.Story != "":
		return d.Story
	case d.Event != "":
		return d.Event
	default:
		return d.Title
	}
}

// AllPersons returns Persons followed by PersonsAll without duplicates.
func (d *Document) AllPersons() []string {
	seen := make(map[string]bool, len(d.Persons)+len(d.PersonsAll))
	var out []string
	for _, p := range append(append([]string(nil), d.Persons...), d.PersonsAll...) {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// NewDocument builds a Document from a loosely typed record (decoded JSON,
// a spreadsheet row, a database row). Malformed fields are coerced: a bad
// year becomes Unknown, non-string text becomes "", non-list lists become
// empty. fallbackID is used when the record carries no id.
func NewDocument(raw map[string]any, fallbackID string) Document {
	d := Document{
		ID:          asString(raw["id"]),
		Year:        NormalizeYear(raw["year"]),
		Title:       strings.TrimSpace(asText(raw["title"])),
		Event:       strings.TrimSpace(asText(raw["event"])),
		Story:       strings.TrimSpace(asText(raw["story"])),
		Dynasty:     vntext.Normalize(asString(raw["dynasty"])),
		Persons:     normalizeList(asStrings(raw["persons"])),
		PersonsAll:  normalizeList(asStrings(raw["persons_all"])),
		Places:      normalizeList(asStrings(raw["places"])),
		Keywords:    normalizeKeywords(asStrings(raw["keywords"])),
		Tone:        ParseTone(asString(raw["tone"])),
		Nature:      normalizeList(asStrings(raw["nature"])),
		SubjectType: asString(raw["subject_type"]),
	}
	if d.ID == "" {
		d.ID = fallbackID
	}
	return d
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case int, int64, float64:
		// Numeric ids are common in exported spreadsheets.
		return fmt.Sprint(x)
	default:
		return ""
	}
}

// asText accepts only strings; a number in a narrative field is malformed.
func asText(v any) string {
	s, _ := v.(string)
	return s
}

func asStrings(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(x) == "" {
			return nil
		}
		return strings.FieldsFunc(x, func(r rune) bool { return r == ';' || r == ',' || r == '|' })
	default:
		return nil
	}
}

func normalizeList(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = vntext.Normalize(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Index keys use spaces, but the offline pipeline emits snake_case keywords.
func normalizeKeywords(in []string) []string {
	spaced := make([]string, len(in))
	for i, s := range in {
		spaced[i] = strings.ReplaceAll(s, "_", " ")
	}
	return normalizeList(spaced)
}
