package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tommynabo/TalentScope-sub000/internal/aggregator"
	"github.com/tommynabo/TalentScope-sub000/internal/config"
	"github.com/tommynabo/TalentScope-sub000/internal/domain"
)

var showCmd = &cobra.Command{
	Use:   "show [campaign]",
	Short: "Show stored candidates",
	Long:  `Display the stored candidates of a campaign, best score first.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var summaryCmd = &cobra.Command{
	Use:   "summary [campaign]",
	Short: "Show campaign summary",
	Long:  `Display contact coverage, quality tiers, score distribution and top languages of a campaign.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSummary,
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List filter presets",
	Args:  cobra.NoArgs,
	RunE:  runPresets,
}

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Manage stored candidates",
}

var candidatesDeleteCmd = &cobra.Command{
	Use:   "delete [campaign] [username]",
	Short: "Delete a candidate from a campaign",
	Args:  cobra.ExactArgs(2),
	RunE:  runDeleteCandidate,
}

func runShow(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	records, err := aggregator.NewAggregator(e.store).Candidates(cmd.Context(), campaignOf(args[0]))
	if err != nil {
		return fmt.Errorf("failed to load candidates: %w", err)
	}

	if outputJSON {
		return printJSON(records)
	}
	fmt.Printf("\nCandidates: %s (%d)\n\n", args[0], len(records))
	renderCandidates(records)
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	s, err := aggregator.NewAggregator(e.store).CampaignSummary(cmd.Context(), campaignOf(args[0]))
	if err != nil {
		return fmt.Errorf("failed to summarize campaign: %w", err)
	}

	if outputJSON {
		return printJSON(s)
	}

	fmt.Printf("\nCampaign Summary: %s\n\n", args[0])
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Candidates", fmt.Sprintf("%d", s.Total)})
	table.Append([]string{"With Email", fmt.Sprintf("%d", s.WithEmail)})
	table.Append([]string{"With Contact URL", fmt.Sprintf("%d", s.WithContactURL)})
	table.Append([]string{"Contact Coverage", fmt.Sprintf("%.1f%%", s.ContactCoverage)})
	table.Append([]string{"Researched", fmt.Sprintf("%d", s.Researched)})
	table.Append([]string{"App Shippers", fmt.Sprintf("%d", s.AppShippers)})
	table.Append([]string{"Average Score", fmt.Sprintf("%.1f", s.AverageScore)})
	table.Append([]string{"Median Score", fmt.Sprintf("%.1f", s.MedianScore)})
	table.Append([]string{"Score Range", fmt.Sprintf("%d - %d", s.MinScore, s.MaxScore)})
	for _, tier := range []domain.QualityTier{domain.QualityExcellent, domain.QualityGood, domain.QualityFair, domain.QualityPoor} {
		table.Append([]string{"Quality: " + string(tier), fmt.Sprintf("%d", s.QualityTiers[tier])})
	}
	table.Render()

	if len(s.ScoreBuckets) > 0 {
		fmt.Println()
		buckets := tablewriter.NewWriter(os.Stdout)
		buckets.SetHeader([]string{"Score", "Candidates"})
		for _, b := range s.ScoreBuckets {
			buckets.Append([]string{b.Label, fmt.Sprintf("%d", b.Count)})
		}
		buckets.Render()
	}

	if len(s.TopLanguages) > 0 {
		fmt.Println()
		langs := tablewriter.NewWriter(os.Stdout)
		langs.SetHeader([]string{"Language", "Candidates"})
		for _, l := range s.TopLanguages {
			langs.Append([]string{l.Language, fmt.Sprintf("%d", l.Count)})
		}
		langs.Render()
	}
	return nil
}

func runPresets(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	presets, err := config.LoadPresets(cfg.PresetsFile)
	if err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}

	list := presets.List()
	if outputJSON {
		return printJSON(list)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Description", "Threshold"})
	table.SetRowLine(false)
	for _, p := range list {
		table.Append([]string{p.Name, p.Description, fmt.Sprintf("%d", p.Criteria.Threshold())})
	}
	table.Render()
	return nil
}

func runDeleteCandidate(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.store.DeleteCandidate(cmd.Context(), campaignOf(args[0]), args[1]); err != nil {
		return fmt.Errorf("failed to delete candidate: %w", err)
	}
	fmt.Printf("Deleted %s from %s\n", args[1], args[0])
	return nil
}
