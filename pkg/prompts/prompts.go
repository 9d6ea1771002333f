package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var defaults embed.FS

var ErrMissingTemplate = errors.New("missing prompt template")

const (
	CompetitorQueries        = "competitor_queries"
	CompetitorNames          = "competitor_names"
	CompetitorStatsQueries   = "competitor_stats_queries"
	CompetitorStats          = "competitor_stats"
	CompetitorProductQueries = "competitor_product_queries"
	CompetitorProducts       = "competitor_products"
	CompetitorReport         = "competitor_report"
	ExecutiveSummary         = "executive_summary"
	ReportPlanQueries        = "report_plan_queries"
	ReportPlan               = "report_plan"
	SectionQueries           = "section_queries"
	SectionWriter            = "section_writer"
	FinalSectionWriter       = "final_section_writer"
	LandscapeFinal           = "landscape_final"
	SWOTReviewSource         = "swot_review_source"
	SWOTAnalysis             = "swot_analysis"
	Canvas                   = "canvas"
)

// Required lists every template a Set must provide.
var Required = []string{
	CompetitorQueries,
	CompetitorNames,
	CompetitorStatsQueries,
	CompetitorStats,
	CompetitorProductQueries,
	CompetitorProducts,
	CompetitorReport,
	ExecutiveSummary,
	ReportPlanQueries,
	ReportPlan,
	SectionQueries,
	SectionWriter,
	FinalSectionWriter,
	LandscapeFinal,
	SWOTReviewSource,
	SWOTAnalysis,
	Canvas,
}

// Set holds parsed prompt templates keyed by name.
type Set struct {
	templates map[string]*template.Template
}

// Default returns the built-in templates.
func Default() *Set {
	set, err := fromFS(defaults, "templates")
	if err != nil {
		panic(fmt.Sprintf("embedded prompts are invalid: %v", err))
	}
	return set
}

// Load reads templates from dir. An empty dir selects the built-in
// templates. Every name in Required must exist as <name>.tmpl.
func Load(dir string) (*Set, error) {
	if dir == "" {
		return Default(), nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("prompts directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("prompts directory %s is not a directory", dir)
	}
	return fromFS(os.DirFS(dir), ".")
}

func fromFS(fsys fs.FS, root string) (*Set, error) {
	set := &Set{templates: make(map[string]*template.Template, len(Required))}
	for _, name := range Required {
		path := name + ".tmpl"
		if root != "." {
			path = root + "/" + path
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrMissingTemplate, name)
			}
			return nil, fmt.Errorf("failed to read prompt %s: %w", name, err)
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt %s: %w", name, err)
		}
		set.templates[name] = tmpl
	}
	return set, nil
}

// Render executes the named template with data.
func (s *Set) Render(name string, data any) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingTemplate, name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
