package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tommynabo/TalentScope-sub000/internal/collector"
	"github.com/tommynabo/TalentScope-sub000/internal/config"
	"github.com/tommynabo/TalentScope-sub000/internal/contact"
	"github.com/tommynabo/TalentScope-sub000/internal/domain"
	"github.com/tommynabo/TalentScope-sub000/internal/enrich"
	"github.com/tommynabo/TalentScope-sub000/internal/events"
	"github.com/tommynabo/TalentScope-sub000/internal/scanner"
)

var (
	scanPreset       string
	scanLanguages    []string
	scanMinFollowers int
	scanThreshold    int
	scanTarget       int
	scanPages        int
	scanEnrich       bool

	enrichParallelism int
	enrichRetries     int
	enrichAll         bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [campaign]",
	Short: "Discover developers on GitHub",
	Long: `Search GitHub with a preset or custom filter, analyze each profile and
store the accepted candidates in the campaign. Candidates already stored in
the campaign are skipped. Press Ctrl-C to stop early and keep what was found.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

var enrichCmd = &cobra.Command{
	Use:   "enrich [campaign]",
	Short: "Research contact details for stored candidates",
	Long: `Research contact details for every stored candidate of a campaign.
Known fields are never overwritten. Press Ctrl-C to stop after the current
batch; progress is checkpointed.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrich,
}

func init() {
	scanCmd.Flags().StringVar(&scanPreset, "preset", "", "named filter preset (see 'presets')")
	scanCmd.Flags().StringSliceVar(&scanLanguages, "language", nil, "required language, repeatable")
	scanCmd.Flags().IntVar(&scanMinFollowers, "min-followers", 0, "minimum followers")
	scanCmd.Flags().IntVar(&scanThreshold, "threshold", 0, "minimum normalized score")
	scanCmd.Flags().IntVar(&scanTarget, "target", 10, "number of candidates to accept")
	scanCmd.Flags().IntVar(&scanPages, "pages", 0, "maximum search pages (default from config)")
	scanCmd.Flags().BoolVar(&scanEnrich, "enrich", false, "research contacts for accepted candidates")

	enrichCmd.Flags().IntVar(&enrichParallelism, "parallelism", 0, "candidates researched at once (default from config)")
	enrichCmd.Flags().IntVar(&enrichRetries, "retries", -1, "retries per candidate (default from config)")
	enrichCmd.Flags().BoolVar(&enrichAll, "all", false, "also research candidates that already have contact data")
}

func runScan(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	criteria, err := scanCriteria(cmd, e.cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := collector.NewGitHubSource(cmd.Context(), e.cfg.GitHubToken, collector.WithLogger(e.logger))
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	opts := e.cfg.ScanOptions()
	opts.TargetCount = scanTarget
	if scanPages > 0 {
		opts.MaxPages = scanPages
	}
	ch, wait := progressPrinter()
	opts.Events = ch

	campaign := campaignOf(args[0])
	res, err := scanner.New(src, e.store, scanner.WithLogger(e.logger)).Scan(ctx, criteria, campaign, opts)
	close(ch)
	wait()
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	stop()

	records := res.Candidates
	if scanEnrich && len(records) > 0 {
		engine, err := newEngine(e, src)
		if err != nil {
			return err
		}
		results, err := enrichRecords(cmd.Context(), e, engine, records, campaign, e.cfg.EnrichOptions())
		if err != nil {
			return err
		}
		records = updatedRecords(records, results)
	}

	if outputJSON {
		return printJSON(map[string]any{
			"run":        res.Run,
			"query":      res.Query,
			"pages":      res.Pages,
			"rejected":   res.Rejected,
			"skipped":    res.Skipped,
			"failed":     res.Failed,
			"candidates": records,
		})
	}

	fmt.Printf("\nQuery: %s\n", res.Query)
	fmt.Printf("Stopped: %s after %d page(s); accepted %d, rejected %d, skipped %d, failed %d\n\n",
		res.Run.StopReason, res.Pages, len(res.Candidates), res.Rejected, res.Skipped, res.Failed)
	renderCandidates(records)
	return nil
}

// scanCriteria starts from the preset, if any, and applies explicit flags on top
func scanCriteria(cmd *cobra.Command, cfg *config.Config) (domain.FilterCriteria, error) {
	var criteria domain.FilterCriteria
	if scanPreset != "" {
		presets, err := config.LoadPresets(cfg.PresetsFile)
		if err != nil {
			return criteria, fmt.Errorf("failed to load presets: %w", err)
		}
		if criteria, err = presets.Get(scanPreset); err != nil {
			return criteria, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("language") {
		criteria.Languages = scanLanguages
	}
	if flags.Changed("min-followers") {
		criteria.MinFollowers = scanMinFollowers
	}
	if flags.Changed("threshold") {
		criteria.ScoreThreshold = scanThreshold
	}
	return criteria, nil
}

func runEnrich(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	campaign := campaignOf(args[0])
	records, err := e.store.LoadCandidates(cmd.Context(), campaign)
	if err != nil {
		return fmt.Errorf("failed to load candidates: %w", err)
	}
	if len(records) == 0 {
		fmt.Printf("No candidates stored for campaign %s\n", campaign.ID)
		return nil
	}

	src, err := collector.NewGitHubSource(cmd.Context(), e.cfg.GitHubToken, collector.WithLogger(e.logger))
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}
	engine, err := newEngine(e, src)
	if err != nil {
		return err
	}

	opts := e.cfg.EnrichOptions()
	if enrichParallelism > 0 {
		opts.Parallelism = enrichParallelism
	}
	if enrichRetries >= 0 {
		opts.MaxRetries = enrichRetries
	}
	opts.SkipEnriched = !enrichAll

	results, err := enrichRecords(cmd.Context(), e, engine, records, campaign, opts)
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(results)
	}
	renderEnrichment(results)
	return nil
}

func newEngine(e *env, src collector.Source) (*contact.Engine, error) {
	engine, err := contact.NewEngine(src,
		contact.WithLogger(e.logger),
		contact.WithCacheTTL(e.cfg.ContactCacheTTL),
		contact.WithWebsiteBudget(e.cfg.WebsiteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact engine: %w", err)
	}
	return engine, nil
}

// enrichRecords runs an enrichment in the foreground. The first interrupt
// cancels cooperatively; a second one kills the process.
func enrichRecords(ctx context.Context, e *env, r enrich.Researcher, records []*domain.CandidateRecord, campaign domain.Campaign, opts enrich.Options) ([]*domain.EnrichmentResult, error) {
	ch, wait := progressPrinter()
	opts.Events = ch
	enricher := enrich.New(r, e.store, opts, enrich.WithLogger(e.logger))

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	finished := make(chan struct{})
	go func() {
		select {
		case <-sigCtx.Done():
			stop()
			fmt.Fprintln(os.Stderr, "\nCancelling after the current batch, press Ctrl-C again to quit")
			enricher.Cancel()
		case <-finished:
		}
	}()

	results, err := enricher.Enrich(ctx, records, campaign)
	close(finished)
	close(ch)
	wait()
	if err != nil {
		return nil, fmt.Errorf("enrichment failed: %w", err)
	}

	status := enricher.Status()
	fmt.Fprintf(os.Stderr, "Enrichment %s (%s): %d/%d succeeded, %d emails, %d contact URLs\n",
		status.State, status.StopReason, status.Progress.Succeeded, status.Progress.Total,
		status.Progress.EmailsFound, status.Progress.ContactURLsFound)
	return results, nil
}

// progressPrinter drains events to stderr until the channel is closed
func progressPrinter() (chan events.Event, func()) {
	ch := make(chan events.Event, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range ch {
			if line := describe(ev); line != "" && !outputJSON {
				fmt.Fprintln(os.Stderr, line)
			}
		}
	}()
	return ch, wg.Wait
}

func describe(ev events.Event) string {
	switch ev.Kind {
	case events.PageFetched:
		return fmt.Sprintf("page %d: %s", ev.Page, ev.Message)
	case events.CandidateAccepted:
		return fmt.Sprintf("  + %s (%s)", ev.Username, ev.Message)
	case events.CandidateRejected:
		return fmt.Sprintf("  - %s: %s", ev.Username, ev.Message)
	case events.RateLimited:
		return "rate limit reached: " + ev.Message
	case events.CandidateEnriched:
		return "  enriched " + ev.Username
	case events.CandidateFailed:
		return fmt.Sprintf("  failed %s: %s", ev.Username, ev.Message)
	case events.BatchCompleted:
		if p := ev.Progress; p != nil {
			return fmt.Sprintf("progress %d/%d (%.0f%%), eta %s", p.Processed, p.Total, p.PercentComplete, p.ETA.Round(time.Second))
		}
	case events.CheckpointSaved:
		return "checkpoint saved"
	}
	return ""
}

func updatedRecords(records []*domain.CandidateRecord, results []*domain.EnrichmentResult) []*domain.CandidateRecord {
	byName := make(map[string]*domain.CandidateRecord, len(results))
	for _, r := range results {
		if r.Success && r.Updated != nil {
			byName[strings.ToLower(r.Username)] = r.Updated
		}
	}
	out := make([]*domain.CandidateRecord, len(records))
	for i, rec := range records {
		out[i] = rec
		if u, ok := byName[strings.ToLower(rec.Username)]; ok {
			out[i] = u
		}
	}
	return out
}

func renderCandidates(records []*domain.CandidateRecord) {
	if len(records) == 0 {
		fmt.Println("No candidates.")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Username", "Score", "Email", "Contact URL", "Languages", "Stars", "App"})
	for _, r := range records {
		app := ""
		if r.Metrics.HasAppStoreLink {
			app = "yes"
		}
		table.Append([]string{
			r.Username,
			fmt.Sprintf("%d", r.Score.Normalized),
			r.Email,
			r.ContactURL,
			strings.Join(r.Metrics.Languages, ", "),
			fmt.Sprintf("%d", r.Metrics.TotalStars),
			app,
		})
	}
	table.Render()
}

func renderEnrichment(results []*domain.EnrichmentResult) {
	if len(results) == 0 {
		fmt.Println("Nothing to enrich.")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Username", "Result", "Updated", "Quality"})
	for _, r := range results {
		result, quality := "ok", ""
		if !r.Success {
			result = r.Error
		}
		if r.Contact != nil {
			quality = string(r.Contact.Quality)
		}
		table.Append([]string{r.Username, result, strings.Join(r.UpdatedFields, ", "), quality})
	}
	table.Render()
}
