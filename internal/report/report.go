// Package report renders analysis outcomes as Markdown documents.
package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/example/agrilens/internal/outcome"
)

// ErrNoOutcome is returned when there is nothing to report.
var ErrNoOutcome = errors.New("report requires an outcome")

// Scan is the input of a scan report.
type Scan struct {
	SessionID   string
	Kind        outcome.Kind
	Outcome     *outcome.Outcome
	ImageName   string
	ImageOrigin string
	ImageSHA1   string
	AnalyzedAt  time.Time
}

// WriteScan renders s to w.
func WriteScan(w io.Writer, s Scan) error {
	if s.Outcome == nil {
		return ErrNoOutcome
	}
	md := markdown.NewMarkdown(w)

	switch {
	case s.Outcome.Diagnosis != nil:
		md.H1("Crop Diagnosis Report")
	case s.Outcome.Grade != nil:
		md.H1("Quality Certificate")
	default:
		return ErrNoOutcome
	}
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Session", "`" + s.SessionID + "`"},
			{"Image", imageLabel(s)},
			{"Analyzed", s.AnalyzedAt.UTC().Format("2006-01-02 15:04:05 MST")},
		},
	})
	md.PlainText("")

	if d := s.Outcome.Diagnosis; d != nil {
		writeDiagnosis(md, d)
	}
	if g := s.Outcome.Grade; g != nil {
		writeGrade(md, g)
	}

	md.HorizontalRule()
	md.PlainText("Results are simulated and do not reflect the image content.")
	return md.Build()
}

func imageLabel(s Scan) string {
	name := s.ImageName
	if name == "" {
		name = "(unnamed)"
	}
	if s.ImageOrigin != "" {
		name += " via " + s.ImageOrigin
	}
	if len(s.ImageSHA1) >= 12 {
		name += " (`" + s.ImageSHA1[:12] + "`)"
	}
	return name
}

func writeDiagnosis(md *markdown.Markdown, d *outcome.Diagnosis) {
	md.H2(d.Name)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Crop", "Severity", "Confidence"},
		Rows:   [][]string{{d.Crop, d.Severity, strconv.FormatFloat(d.Confidence, 'f', 1, 64) + "%"}},
	})
	md.PlainText("")
	md.PlainText(d.Description)
	md.PlainText("")

	if d.Healthy() {
		md.Tip("No disease detected.")
	} else {
		md.Warningf("%s detected with %s severity. Start treatment promptly.", d.Name, d.Severity)
	}
	md.PlainText("")

	md.H2("Recommended Treatment")
	md.PlainText("")
	rows := make([][]string, 0, len(d.Remedies))
	for _, r := range d.Remedies {
		rows = append(rows, []string{r.Type, r.Name, r.Instructions})
	}
	md.Table(markdown.TableSet{Header: []string{"Type", "Remedy", "Instructions"}, Rows: rows})
	md.PlainText("")
}

func writeGrade(md *markdown.Markdown, g *outcome.Grade) {
	md.H2(fmt.Sprintf("Grade %s: %s", g.Grade, g.Label))
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Score"},
		Rows: [][]string{
			{"Overall", strconv.Itoa(g.Score)},
			{"Color Uniformity", strconv.Itoa(g.Details.ColorUniformity)},
			{"Size Distribution", strconv.Itoa(g.Details.SizeDistribution)},
			{"Surface Quality", strconv.Itoa(g.Details.SurfaceQuality)},
			{"Freshness", strconv.Itoa(g.Details.Freshness)},
			{"Trust Score", strconv.Itoa(g.TrustScore)},
		},
	})
	md.PlainText("")
	md.Importantf("Suggested price multiplier: %.2fx market rate.", g.PriceMultiplier)
	md.PlainText("")
}

// Share is one row of a distribution report.
type Share struct {
	Label    string
	Count    int64
	Expected float64
}

// WriteDistribution renders observed outcome counts next to their expected
// shares, with a pie chart.
func WriteDistribution(w io.Writer, kind outcome.Kind, shares []Share) error {
	md := markdown.NewMarkdown(w)
	md.H1(fmt.Sprintf("Outcome Distribution (%s)", kind))
	md.PlainText("")

	var total int64
	for _, s := range shares {
		total += s.Count
	}

	rows := make([][]string, 0, len(shares)+1)
	chart := piechart.NewPieChart(io.Discard, piechart.WithTitle("Observed outcomes"), piechart.WithShowData(true))
	for _, s := range shares {
		observed := 0.0
		if total > 0 {
			observed = float64(s.Count) / float64(total)
		}
		rows = append(rows, []string{
			s.Label,
			strconv.FormatInt(s.Count, 10),
			formatPercent(observed),
			formatPercent(s.Expected),
		})
		if s.Count > 0 {
			chart.LabelAndIntValue(s.Label, uint64(s.Count))
		}
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.FormatInt(total, 10) + "**", "", ""})

	md.Table(markdown.TableSet{Header: []string{"Outcome", "Count", "Observed", "Expected"}, Rows: rows})
	md.PlainText("")
	if total > 0 {
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}
	return md.Build()
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 1, 64) + "%"
}
