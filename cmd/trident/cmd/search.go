package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trident-search/trident/internal/config"
	"github.com/trident-search/trident/internal/errors"
	"github.com/trident-search/trident/internal/output"
	"github.com/trident-search/trident/internal/retrieval"
	"github.com/trident-search/trident/internal/telemetry"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit     int
	typeHint  string
	filters   []string // key=value pairs
	format    string   // "text", "json"
	backends  []string // subset of graph, vector, keyword
	telemetry bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Long: `Search the knowledge base with hybrid retrieval.

The query fans out to the graph, vector, and keyword backends; scores
are normalized, merged, and deduplicated into one ranking. Backends
that fail are reported, not fatal.

Examples:
  trident search "who is the project lead"
  trident search "migration notes" --limit 5 --format json
  trident search "link the outage to the deploy" --type semantic_linkage
  trident search "quarterly report" --filter modality=text --backends keyword,vector`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.typeHint, "type", "t", "", "Query type hint: factual, lookup, summarization, semantic_linkage, reasoning")
	cmd.Flags().StringArrayVar(&opts.filters, "filter", nil, "Metadata filter key=value (repeatable)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringSliceVar(&opts.backends, "backends", nil, "Restrict to a backend subset (graph, vector, keyword)")
	cmd.Flags().BoolVar(&opts.telemetry, "telemetry", false, "Include collected query telemetry in the output")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	slog.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))
	out := output.New(cmd.OutOrStdout())

	filters, err := parseFilters(opts.filters)
	if err != nil {
		return err
	}
	backends, err := parseBackends(opts.backends)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	collector := telemetry.NewCollector(0)
	pipeline, err := buildPipeline(cfg, stores, retrieval.WithMetrics(collector))
	if err != nil {
		return err
	}

	resp, err := pipeline.Search(ctx, query, retrieval.SearchOptions{
		TypeHint: retrieval.QueryType(opts.typeHint),
		Filters:  filters,
		Limit:    opts.limit,
		Backends: backends,
	})
	if err != nil {
		if errors.GetCode(err) == errors.ErrCodeAllBackendsFailed {
			out.Error("All backends failed; no results could be retrieved.")
		}
		return err
	}

	var snap *telemetry.Snapshot
	if opts.telemetry {
		snap = collector.Snapshot()
	}

	switch opts.format {
	case "json":
		return formatSearchJSON(cmd, query, resp, snap)
	default:
		formatSearchText(out, query, resp)
		if snap != nil {
			formatTelemetryText(out, snap)
		}
		return nil
	}
}

// parseFilters converts repeatable key=value flags into a map.
func parseFilters(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", pair)
		}
		filters[key] = value
	}
	return filters, nil
}

// parseBackends validates the --backends subset.
func parseBackends(names []string) ([]config.Backend, error) {
	if len(names) == 0 {
		return nil, nil
	}
	valid := make(map[config.Backend]bool)
	for _, b := range config.AllBackends() {
		valid[b] = true
	}
	backends := make([]config.Backend, 0, len(names))
	for _, name := range names {
		b := config.Backend(strings.ToLower(strings.TrimSpace(name)))
		if !valid[b] {
			return nil, fmt.Errorf("unknown backend %q, expected graph, vector, or keyword", name)
		}
		backends = append(backends, b)
	}
	return backends, nil
}

// searchJSONOutput is the JSON output shape for search.
type searchJSONOutput struct {
	Query     string                    `json:"query"`
	QueryType string                    `json:"query_type"`
	Degraded  bool                      `json:"degraded"`
	ElapsedMS int64                     `json:"elapsed_ms"`
	Backends  map[string]backendJSON    `json:"backends"`
	Results   []*retrieval.MergedResult `json:"results"`
	Telemetry *telemetry.Snapshot       `json:"telemetry,omitempty"`
}

type backendJSON struct {
	Succeeded bool   `json:"succeeded"`
	Results   int    `json:"results"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Reason    string `json:"reason,omitempty"`
}

func formatSearchJSON(cmd *cobra.Command, query string, resp *retrieval.Response, snap *telemetry.Snapshot) error {
	out := searchJSONOutput{
		Query:     query,
		QueryType: string(resp.QueryType),
		Degraded:  resp.Report.Degraded,
		ElapsedMS: resp.Elapsed.Milliseconds(),
		Backends:  make(map[string]backendJSON, len(resp.Report.Backends)),
		Results:   resp.Results,
		Telemetry: snap,
	}
	for name, entry := range resp.Report.Backends {
		out.Backends[string(name)] = backendJSON{
			Succeeded: entry.Succeeded,
			Results:   entry.Results,
			ElapsedMS: entry.Elapsed.Milliseconds(),
			Reason:    entry.Reason,
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func formatSearchText(out *output.Writer, query string, resp *retrieval.Response) {
	if resp.Report.Degraded {
		names := make([]string, 0, len(resp.Report.Backends))
		for name, entry := range resp.Report.Backends {
			if !entry.Succeeded {
				names = append(names, string(name))
			}
		}
		sort.Strings(names)
		out.Warningf("Degraded results: %s failed", strings.Join(names, ", "))
	}

	if len(resp.Results) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		return
	}

	out.Statusf("🔍", "Found %d results for %q (%s, %s):",
		len(resp.Results), query, resp.QueryType, resp.Elapsed.Round(time.Millisecond))
	out.Newline()

	for _, r := range resp.Results {
		location := r.Provenance.SourceFile
		if location == "" {
			location = r.ID
		}
		backendNames := make([]string, len(r.Backends))
		for i, b := range r.Backends {
			backendNames[i] = string(b)
		}
		out.Statusf("", "%d. %s (score: %.3f, via %s)",
			r.Rank, location, r.Combined, strings.Join(backendNames, "+"))
		out.Snippet(r.Content, 120)
	}
}

func formatTelemetryText(out *output.Writer, snap *telemetry.Snapshot) {
	out.Section("Telemetry")
	out.KVf("Queries", "%d", snap.TotalQueries)
	out.KVf("Degraded", "%d", snap.DegradedCount)
	out.KVf("Zero results", "%d", snap.ZeroResultCount)

	names := make([]string, 0, len(snap.BackendStats))
	for name := range snap.BackendStats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stats := snap.BackendStats[name]
		out.KVf(name, "%d attempts, %d failures, avg %s",
			stats.Attempts, stats.Failures, stats.AverageElapsed().Round(time.Microsecond))
	}
}
