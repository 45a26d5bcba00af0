package rerank

import (
	"strings"

	"github.com/brunobiangulo/historymind/kb"
)

// PassageText is the document text scored by the cross-encoder: year,
// title, story, dynasty and persons joined as sentences.
func PassageText(d *kb.Document) string {
	var parts []string
	if d.Year.Known() {
		parts = append(parts, "Năm "+d.Year.String())
	}
	title := d.Title
	if title == "" {
		title = d.Event
	}
	if title != "" {
		parts = append(parts, title)
	}
	if d.Story != "" {
		parts = append(parts, d.Story)
	}
	if d.Dynasty != "" {
		parts = append(parts, "Triều "+d.Dynasty)
	}
	if persons := d.AllPersons(); len(persons) > 0 {
		parts = append(parts, "Nhân vật: "+strings.Join(persons, ", "))
	}
	return strings.Join(parts, ". ")
}

// premise is "Năm Y. title. story", the story cut to PremiseRunes runes.
func (f *Filter) premise(d *kb.Document) string {
	var b strings.Builder
	if d.Year.Known() {
		b.WriteString("Năm ")
		b.WriteString(d.Year.String())
		b.WriteString(". ")
	}
	if d.Title != "" {
		b.WriteString(d.Title)
		b.WriteString(". ")
	}
	story := []rune(d.Text())
	if f.cfg.PremiseRunes > 0 && len(story) > f.cfg.PremiseRunes {
		story = story[:f.cfg.PremiseRunes]
	}
	b.WriteString(string(story))
	return b.String()
}
