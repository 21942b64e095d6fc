// Package feedback turns the model's semi-structured reply into collapsible sections.
//
// The reply is split on "##". The first line of each section is its title;
// lines starting with "**" are emphasized, other non-blank lines are plain
// text. Nothing is validated: unexpected input simply yields fewer or odd
// sections.
package feedback

import (
	"html"
	"strings"
)

const sectionDelimiter = "##"

// Line is one rendered line of a section body.
type Line struct {
	Text       string
	Emphasized bool
}

// Section is a collapsible block. Index is its identity; titles may repeat.
type Section struct {
	Index int
	Title string
	Lines []Line
}

// Parse splits text into sections. Blank sections are dropped.
func Parse(text string) []Section {
	var sections []Section
	for _, raw := range strings.Split(text, sectionDelimiter) {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		lines := strings.Split(raw, "\n")
		section := Section{
			Index: len(sections),
			Title: strings.TrimSpace(lines[0]),
		}
		for _, line := range lines[1:] {
			switch {
			case strings.HasPrefix(line, "**"):
				section.Lines = append(section.Lines, Line{
					Text:       strings.TrimSpace(strings.ReplaceAll(line, "*", "")),
					Emphasized: true,
				})
			case strings.TrimSpace(line) != "":
				section.Lines = append(section.Lines, Line{Text: strings.TrimSpace(line)})
			}
		}
		sections = append(sections, section)
	}
	return sections
}

// Accordion holds parsed sections and which of them are expanded.
type Accordion struct {
	Sections []Section
	expanded map[int]bool
}

// NewAccordion parses text with every section collapsed.
func NewAccordion(text string) *Accordion {
	return &Accordion{
		Sections: Parse(text),
		expanded: make(map[int]bool),
	}
}

// Toggle flips the section at index and returns its new state. Unknown indexes are ignored.
func (a *Accordion) Toggle(index int) bool {
	if index < 0 || index >= len(a.Sections) {
		return false
	}
	a.expanded[index] = !a.expanded[index]
	return a.expanded[index]
}

func (a *Accordion) Expanded(index int) bool {
	return a.expanded[index]
}

// RenderHTML formats the accordion as Telegram HTML.
func (a *Accordion) RenderHTML() string {
	if len(a.Sections) == 0 {
		return "<i>No feedback sections.</i>"
	}
	var sb strings.Builder
	for _, section := range a.Sections {
		marker := "▸"
		if a.expanded[section.Index] {
			marker = "▾"
		}
		sb.WriteString(marker)
		sb.WriteString(" <b>")
		sb.WriteString(html.EscapeString(section.Title))
		sb.WriteString("</b>\n")
		if !a.expanded[section.Index] {
			continue
		}
		for _, line := range section.Lines {
			if line.Emphasized {
				sb.WriteString("<b>" + html.EscapeString(line.Text) + "</b>\n")
			} else {
				sb.WriteString(html.EscapeString(line.Text) + "\n")
			}
		}
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String())
}
