package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/market-research/pkg/archive"
	"github.com/mikeboe/market-research/pkg/config"
	"github.com/mikeboe/market-research/pkg/landscape"
	"github.com/mikeboe/market-research/pkg/report"
	"github.com/mikeboe/market-research/pkg/research"
	"github.com/mikeboe/market-research/pkg/workflow"
)

var (
	outDir       string
	writeSources bool
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// A missing .env is fine as long as the variables are set.
	_ = godotenv.Load()
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:          "market-research",
		Short:        "LLM-driven market research from the terminal",
		Long:         `market-research discovers and profiles competitors, writes researched reports and business landscapes, and drafts business model canvases.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", ".", "Directory the results are written to")
	rootCmd.PersistentFlags().BoolVar(&writeSources, "sources", false, "Also write the collected sources as JSON")

	rootCmd.AddCommand(
		competitorsCmd(cfg),
		reportCmd(cfg),
		landscapeCmd(cfg),
		canvasCmd(cfg),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run builds the engine, runs fn with an observer that logs progress and
// collects sources, and writes the collected sources when requested.
func run(cmd *cobra.Command, cfg *config.Config, name string, fn func(ctx context.Context, e *research.Engine, observer workflow.Observer) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	engine, err := research.NewEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	collector := archive.NewCollector()
	observer := func(e workflow.Event) {
		collector.Observe(e)
		if e.Err != "" {
			slog.Warn(e.Message, "pipeline", e.Pipeline, "stage", e.Stage, "entity", e.Entity, "error", e.Err)
			return
		}
		slog.Info(e.Message, "pipeline", e.Pipeline, "stage", e.Stage, "entity", e.Entity)
	}

	if err := fn(ctx, engine, observer); err != nil {
		return err
	}
	if writeSources {
		return writeJSON(name+"_sources", sourceIndex(collector.Entries()))
	}
	return nil
}

type sourceRef struct {
	Pipeline string `json:"pipeline"`
	Entity   string `json:"entity"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

func sourceIndex(entries []archive.Entry) []sourceRef {
	refs := []sourceRef{}
	for _, e := range entries {
		for _, s := range e.Sources {
			refs = append(refs, sourceRef{Pipeline: e.Pipeline, Entity: e.Entity, Title: s.Title, URL: s.URL})
		}
	}
	return refs
}

func outputPath(name, ext string) string {
	return filepath.Join(outDir, fmt.Sprintf("%s_%s.%s", name, time.Now().Format("20060102_150405"), ext))
}

func writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return writeFile(outputPath(name, "json"), data)
}

func writeMarkdown(name, content string) error {
	return writeFile(outputPath(name, "md"), []byte(content))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	slog.Info("Wrote output", "path", path)
	return nil
}

func argOrFlag(args []string, flag string) string {
	if flag != "" {
		return flag
	}
	return strings.TrimSpace(strings.Join(args, " "))
}

func competitorsCmd(cfg *config.Config) *cobra.Command {
	var (
		idea           string
		maxCompetitors int
		concurrency    int
		swotAnalysis   bool
		screenshots    bool
		limits         = cfg.Limits
	)

	cmd := &cobra.Command{
		Use:   "competitors [business idea]",
		Short: "Discover and profile the competitors of a business idea",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, "competitors", func(ctx context.Context, e *research.Engine, observer workflow.Observer) error {
				in := e.DefaultCompetitorInput(argOrFlag(args, idea))
				in.Limits = limits
				in.MaxCompetitors = maxCompetitors
				if cmd.Flags().Changed("concurrency") {
					in.Concurrency = concurrency
				}
				in.SWOT = swotAnalysis
				in.Screenshots = screenshots

				result, err := e.Competitors(slog.Default(), observer).Run(ctx, in)
				if err != nil {
					return err
				}
				if len(result.Failed) > 0 {
					slog.Warn("Some competitors could not be researched", "failed", len(result.Failed))
				}
				return writeJSON("competitors", result)
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&idea, "idea", "i", "", "The business idea to research")
	f.IntVar(&maxCompetitors, "max-competitors", 0, "Research at most this many competitors (0 for all)")
	f.IntVar(&concurrency, "concurrency", 0, "Competitors researched at once (0 for all)")
	f.BoolVar(&swotAnalysis, "swot", false, "Write a SWOT analysis per competitor")
	f.BoolVar(&screenshots, "screenshots", false, "Render result pages and send screenshots to the model")
	limitFlags(cmd, "competition", &limits.Competition)
	limitFlags(cmd, "stat", &limits.Stats)
	limitFlags(cmd, "product", &limits.Products)
	return cmd
}

// limitFlags registers --<prefix>-queries, --<prefix>-results and
// --<prefix>-tokens, defaulting to the configured values.
func limitFlags(cmd *cobra.Command, prefix string, l *config.Limits) {
	f := cmd.Flags()
	f.IntVar(&l.Queries, prefix+"-queries", l.Queries, "Search queries generated for the "+prefix+" phase")
	f.IntVar(&l.Results, prefix+"-results", l.Results, "Results kept per query in the "+prefix+" phase")
	f.IntVar(&l.TokensPerSource, prefix+"-tokens", l.TokensPerSource, "Tokens per source in the "+prefix+" phase")
}

func reportCmd(cfg *config.Config) *cobra.Command {
	var (
		topic         string
		structureFile string
		concurrency   int
		plan          = report.DefaultPlanLimits
		section       = report.DefaultSectionLimits
	)

	cmd := &cobra.Command{
		Use:   "report [topic]",
		Short: "Plan, research and write a report on a topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := report.DefaultInput(argOrFlag(args, topic), "")
			if structureFile != "" {
				data, err := os.ReadFile(structureFile)
				if err != nil {
					return fmt.Errorf("failed to read report structure: %w", err)
				}
				in.Structure = string(data)
			}
			in.Plan = plan
			in.Section = section
			in.Concurrency = concurrency
			if err := in.Validate(); err != nil {
				return err
			}

			return run(cmd, cfg, "report", func(ctx context.Context, e *research.Engine, observer workflow.Observer) error {
				rep, err := e.Report(slog.Default(), observer).Run(ctx, in)
				if err != nil {
					return err
				}
				return writeMarkdown("report", rep.FinalReport+sourcesSection(rep.Sources))
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&topic, "topic", "t", "", "The report topic")
	f.StringVar(&structureFile, "structure", "", "Markdown file describing the report structure")
	f.IntVar(&concurrency, "concurrency", 0, "Sections researched at once (0 for all)")
	limitFlags(cmd, "plan", &plan)
	limitFlags(cmd, "section", &section)
	return cmd
}

func sourcesSection(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n## Sources\n\n")
	for _, u := range urls {
		b.WriteString("- " + u + "\n")
	}
	return b.String()
}

func landscapeCmd(cfg *config.Config) *cobra.Command {
	var (
		idea        string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "landscape [business idea]",
		Short: "Write six topical reports on a business idea and consolidate them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, "landscape", func(ctx context.Context, e *research.Engine, observer workflow.Observer) error {
				result, err := e.Landscape(slog.Default(), observer).Run(ctx, landscape.Input{
					BusinessIdea: argOrFlag(args, idea),
					Concurrency:  concurrency,
				})
				if err != nil {
					return err
				}
				if err := writeJSON("landscape", result); err != nil {
					return err
				}
				return writeMarkdown("landscape", result.FinalReport)
			})
		},
	}

	cmd.Flags().StringVarP(&idea, "idea", "i", "", "The business idea to research")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Topical reports written at once (0 for all)")
	return cmd
}

func canvasCmd(cfg *config.Config) *cobra.Command {
	var idea string

	cmd := &cobra.Command{
		Use:   "canvas [business idea]",
		Short: "Draft a business model canvas for a business idea",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, "canvas", func(ctx context.Context, e *research.Engine, _ workflow.Observer) error {
				c, err := e.Canvas(slog.Default()).Generate(ctx, argOrFlag(args, idea))
				if err != nil {
					return err
				}
				return writeJSON("canvas", c)
			})
		},
	}

	cmd.Flags().StringVarP(&idea, "idea", "i", "", "The business idea")
	return cmd
}
