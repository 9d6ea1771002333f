package report

import (
	"fmt"
	"strconv"
	"strings"
)

// Section is one planned section of a report. Content is empty until the
// section has been written.
type Section struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Research    bool   `json:"research"`
	Content     string `json:"content"`
}

const notWritten = "[Not yet written]"

// FormatSections renders sections as context for the sections that are
// written last.
func FormatSections(sections []Section) string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)
	for i, s := range sections {
		content := s.Content
		if content == "" {
			content = notWritten
		}
		fmt.Fprintf(&b, "\n%s\nSection %d: %s\n%s\n", rule, i+1, s.Name, rule)
		fmt.Fprintf(&b, "Description:\n%s\n", s.Description)
		fmt.Fprintf(&b, "Requires Research: \n%s\n\n", strconv.FormatBool(s.Research))
		fmt.Fprintf(&b, "Content:\n%s\n\n", content)
	}
	return b.String()
}

// Assemble fills the plan with the written content, keyed by plan index,
// and joins the written sections in plan order. Sections without content
// are left out of the text.
func Assemble(plan []Section, written map[int]string) ([]Section, string) {
	sections := make([]Section, len(plan))
	parts := make([]string, 0, len(plan))
	for i, s := range plan {
		if c, ok := written[i]; ok {
			s.Content = c
		}
		sections[i] = s
		if strings.TrimSpace(s.Content) != "" {
			parts = append(parts, s.Content)
		}
	}
	return sections, strings.Join(parts, "\n\n")
}
