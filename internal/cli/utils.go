// Package cli provides CLI output writers for annlab.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/annlab/internal/models"
	"github.com/hyperjump/annlab/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one tab-separated line per neighbor.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts text, compact and json.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("%w: unknown output format %q (use text, compact or json)", models.ErrInvalidParameter, s)
	}
}

// SearchReport is everything printed for one search.
type SearchReport struct {
	Query  models.SearchQuery   `json:"query"`
	Near   *models.Point        `json:"near,omitempty"`
	Result *models.SearchResult `json:"result"`
	// Clusters supplies colors for text output. It is not serialized.
	Clusters []models.Cluster `json:"-"`
}

// WriteSearchResults writes a search report to w in the given format.
func WriteSearchResults(w io.Writer, report *SearchReport, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, report)
	case OutputCompact:
		for i, n := range report.Result.Neighbors {
			fmt.Fprintf(w, "%d\t%s\t%s\t%.4f\n", i+1, n.Point.ID, clusterLabel(n.Point), n.Distance)
		}
		return nil
	default:
		writeSearchResultsText(w, report)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, report *SearchReport) {
	st := NewStyles(w)
	q, res := report.Query, report.Result
	colors := clusterColors(report.Clusters)

	fmt.Fprintln(w)
	if report.Near != nil {
		fmt.Fprintf(w, "Query placed on %s (%s)\n", report.Near.ID, utils.Truncate(report.Near.Label, 40))
	}
	fmt.Fprintln(w, st.Header.Render(fmt.Sprintf("%s search at (%.2f, %.2f), top %d",
		modeName(res.Mode), q.X, q.Y, q.TopK)))
	fmt.Fprintf(w, "Scanned %d of %d points (%.1f%%)", res.ScannedCount, res.TotalPoints, scanPercent(res))
	if res.Mode == models.ModeApprox {
		fmt.Fprintf(w, " | probed clusters %v of n-probes %d", res.ProbedClusters, q.NProbes)
	}
	fmt.Fprintf(w, " | recall %s\n", formatRecall(res.Recall))
	if res.Recall < 100 {
		fmt.Fprintln(w, st.Warn.Render("Some true neighbors were missed. Increase n-probes to trade speed for accuracy."))
	}
	fmt.Fprintln(w, st.Dim.Render(strings.Repeat("─", 57)))
	if len(res.Neighbors) == 0 {
		fmt.Fprintln(w, "No neighbors found.")
	}
	for i, n := range res.Neighbors {
		color := ""
		if n.Point.ClusterID != nil {
			color = colors[*n.Point.ClusterID]
		}
		fmt.Fprintf(w, "%2d. %-12s %-24s (%6.2f, %6.2f)  %s  dist² %.4f\n",
			i+1,
			n.Point.ID,
			utils.Truncate(n.Point.Label, 21),
			n.Point.X, n.Point.Y,
			st.Cluster(color, clusterLabel(n.Point)),
			n.Distance,
		)
	}
	fmt.Fprintln(w)
}

// WriteIndexSummary writes the clusters of idx with their sizes and centroids.
func WriteIndexSummary(w io.Writer, idx *models.Index, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, idx)
	}
	st := NewStyles(w)
	state := "converged"
	if !idx.Converged {
		state = "stopped at the iteration cap"
	}
	fmt.Fprintf(w, "\nIndex: %d points, %d clusters, %d iterations (%s), seed %d\n",
		len(idx.Points), len(idx.Clusters), idx.Iterations, state, idx.Seed)
	for _, c := range idx.Clusters {
		line := fmt.Sprintf("  cluster %-3d centroid (%6.2f, %6.2f)  %4d points", c.ID, c.CX, c.CY, c.Size)
		if c.Empty {
			line += "  " + st.Warn.Render("empty")
		}
		fmt.Fprintln(w, st.Cluster(c.Color, line))
	}
	fmt.Fprintln(w)
	return nil
}

// WriteDatasets lists stored datasets.
func WriteDatasets(w io.Writer, datasets []*models.Dataset, format OutputFormat) error {
	if format == OutputJSON {
		if datasets == nil {
			datasets = []*models.Dataset{}
		}
		return writeJSON(w, datasets)
	}
	if len(datasets) == 0 {
		fmt.Fprintln(w, "No datasets stored.")
		return nil
	}
	for _, ds := range datasets {
		fmt.Fprintf(w, "%s  %-8s %4d points  %s  %s\n",
			ds.ID, ds.Source, ds.PointCount, ds.CreatedAt.Format("2006-01-02 15:04"), utils.Truncate(ds.Prompt, 40))
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func modeName(m models.SearchMode) string {
	if m == models.ModeExact {
		return "Exact (brute force)"
	}
	return "Approximate (IVF)"
}

func clusterLabel(p models.Point) string {
	if p.ClusterID == nil {
		return "unassigned"
	}
	return fmt.Sprintf("cluster %d", *p.ClusterID)
}

func clusterColors(clusters []models.Cluster) map[int]string {
	out := make(map[int]string, len(clusters))
	for _, c := range clusters {
		out[c.ID] = c.Color
	}
	return out
}

func scanPercent(res *models.SearchResult) float64 {
	if res.TotalPoints == 0 {
		return 0
	}
	return float64(res.ScannedCount) / float64(res.TotalPoints) * 100
}

// formatRecall prints whole percentages without decimals.
func formatRecall(r float64) string {
	r = utils.Round(r, 1)
	if r == float64(int(r)) {
		return fmt.Sprintf("%d%%", int(r))
	}
	return fmt.Sprintf("%.1f%%", r)
}
