// Package report renders a comparison run to files on disk: per provider a
// verbatim raw response and a formatted markdown report, plus one
// side-by-side comparison summary.
package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tjfontaine/research-compare/internal/domain"
	"github.com/tjfontaine/research-compare/internal/tokens"
)

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// WithEstimator sets the token estimator used for report-length estimates.
func WithEstimator(estimator *tokens.Estimator) Option {
	return func(w *Writer) {
		w.estimator = estimator
	}
}

// Writer renders comparison results into a directory.
type Writer struct {
	dir       string
	estimator *tokens.Estimator
	logger    *slog.Logger
}

// NewWriter creates a writer that renders into dir.
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{
		dir:       dir,
		estimator: tokens.NewEstimator(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders all files for one comparison. Files are written per
// provider; one provider's render failure does not stop the others.
func (w *Writer) Write(result *domain.ComparisonResult) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var errs []string
	for _, outcome := range result.Outcomes {
		if err := w.writeRawResponse(outcome); err != nil {
			errs = append(errs, err.Error())
		}
		if err := w.writeProviderReport(result, outcome); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if err := w.writeComparison(result); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("report rendering: %s", strings.Join(errs, "; "))
	}

	w.logger.Info("reports written",
		slog.String("comparison_id", result.ID),
		slog.String("dir", w.dir))
	return nil
}

func (w *Writer) writeRawResponse(outcome *domain.ResearchOutcome) error {
	path := filepath.Join(w.dir, outcome.Provider+"_full_response.json")

	payload := outcome.Raw
	if len(payload) == 0 {
		// Nothing raw survived (e.g. submission rejected); store the
		// normalized outcome so the file always exists.
		encoded, err := json.MarshalIndent(outcome, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal outcome for %s: %w", outcome.Provider, err)
		}
		payload = encoded
	} else if indented, err := indentJSON(payload); err == nil {
		payload = indented
	}

	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (w *Writer) writeProviderReport(result *domain.ComparisonResult, outcome *domain.ResearchOutcome) error {
	path := filepath.Join(w.dir, outcome.Provider+"_report.md")

	var b strings.Builder
	fmt.Fprintf(&b, "# %s research report\n\n", outcome.Provider)
	if result.Request != nil {
		fmt.Fprintf(&b, "**Query:** %s\n\n", result.Request.Query)
	}
	fmt.Fprintf(&b, "**Status:** %s  \n", outcome.Status)
	fmt.Fprintf(&b, "**Duration:** %s\n\n", outcome.Duration.Round(time.Second))

	if outcome.Cause != nil {
		fmt.Fprintf(&b, "**Error (%s):** %s\n\n", outcome.Cause.Kind, outcome.Cause.Message)
	}

	if outcome.Report != "" {
		b.WriteString(outcome.Report)
		b.WriteString("\n")
	}

	if len(outcome.Citations) > 0 {
		b.WriteString("\n## Sources\n\n")
		for i, c := range outcome.Citations {
			line := fmt.Sprintf("%d. %s", i+1, citationLabel(c))
			if c.Date != "" {
				line += fmt.Sprintf(" (%s)", c.Date)
			}
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\n## Usage\n\n")
	w.writeUsage(&b, outcome)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (w *Writer) writeUsage(b *strings.Builder, outcome *domain.ResearchOutcome) {
	fmt.Fprintf(b, "- Prompt tokens: %s\n", counter(outcome.Usage.PromptTokens))
	fmt.Fprintf(b, "- Completion tokens: %s\n", counter(outcome.Usage.CompletionTokens))
	fmt.Fprintf(b, "- Total tokens: %s\n", counter(outcome.Usage.TotalTokens))
	fmt.Fprintf(b, "- Citation tokens: %s\n", counter(outcome.Usage.CitationTokens))
	fmt.Fprintf(b, "- Reasoning tokens: %s\n", counter(outcome.Usage.ReasoningTokens))
	fmt.Fprintf(b, "- Search queries: %s\n", counter(outcome.Usage.SearchQueries))

	if outcome.Report != "" && w.estimator != nil {
		if n, err := w.estimator.Count(outcome.Report); err == nil {
			fmt.Fprintf(b, "- Report tokens (local estimate): %d\n", n)
		}
	}
}

func (w *Writer) writeComparison(result *domain.ComparisonResult) error {
	path := filepath.Join(w.dir, "comparison.md")

	var b strings.Builder
	b.WriteString("# Research comparison\n\n")
	if result.Request != nil {
		fmt.Fprintf(&b, "**Query:** %s\n\n", result.Request.Query)
	}
	fmt.Fprintf(&b, "**Run:** %s  \n", result.ID)
	fmt.Fprintf(&b, "**Started:** %s  \n", result.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "**Total duration:** %s\n\n", result.Duration.Round(time.Second))

	b.WriteString("| Provider | Status | Duration | Report tokens (est.) | Total tokens | Search queries | Sources |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, outcome := range result.Outcomes {
		estimate := "n/a"
		if outcome.Report != "" && w.estimator != nil {
			if n, err := w.estimator.Count(outcome.Report); err == nil {
				estimate = fmt.Sprintf("%d", n)
			}
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %d |\n",
			outcome.Provider,
			outcome.Status,
			outcome.Duration.Round(time.Second),
			estimate,
			counter(outcome.Usage.TotalTokens),
			counter(outcome.Usage.SearchQueries),
			len(outcome.Citations))
	}

	for _, outcome := range result.Outcomes {
		if outcome.Cause != nil {
			fmt.Fprintf(&b, "\n- **%s** did not produce a report: %s (%s)\n",
				outcome.Provider, outcome.Cause.Message, outcome.Cause.Kind)
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// counter renders a usage counter, keeping a missing value distinguishable
// from a reported zero.
func counter(v *int) string {
	if v == nil {
		return "n/a (not reported)"
	}
	return fmt.Sprintf("%d", *v)
}

func citationLabel(c domain.Citation) string {
	switch {
	case c.Title != "" && c.URL != "":
		return fmt.Sprintf("[%s](%s)", c.Title, c.URL)
	case c.URL != "":
		return c.URL
	default:
		return c.Title
	}
}

func indentJSON(raw json.RawMessage) (json.RawMessage, error) {
	var buf strings.Builder
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.String()), nil
}
