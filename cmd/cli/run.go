package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tommynabo/TalentScope-sub000/pkg/client"
)

var apiEndpoint string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Inspect and control runs on an API server",
	Long: `Inspect and control scans and enrichments running on a TalentScope API
server. The server address comes from --endpoint or API_ENDPOINT.`,
}

func init() {
	runCmd.PersistentFlags().StringVar(&apiEndpoint, "endpoint", "", "API server address (default from config)")

	for _, c := range []struct {
		use   string
		short string
		call  func(*client.Client, context.Context, string) (*client.RunStatus, error)
	}{
		{"status [id]", "Show a run and its progress", (*client.Client).GetRun},
		{"pause [id]", "Pause an active enrichment", (*client.Client).PauseRun},
		{"resume [id]", "Resume a paused enrichment", (*client.Client).ResumeRun},
		{"cancel [id]", "Cancel an active enrichment", (*client.Client).CancelRun},
	} {
		call := c.call
		runCmd.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				api, err := newClient()
				if err != nil {
					return err
				}
				status, err := call(api, cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return renderRun(status)
			},
		})
	}
}

func newClient() (*client.Client, error) {
	if apiEndpoint != "" {
		return client.NewClient(apiEndpoint), nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return client.NewClient(cfg.APIEndpoint), nil
}

func renderRun(s *client.RunStatus) error {
	if outputJSON {
		return printJSON(s)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	if r := s.Run; r != nil {
		table.Append([]string{"Run", r.ID})
		table.Append([]string{"Kind", string(r.Kind)})
		table.Append([]string{"Campaign", r.CampaignID})
		table.Append([]string{"Status", string(r.Status)})
		table.Append([]string{"Stop Reason", r.StopReason})
		table.Append([]string{"Processed", fmt.Sprintf("%d", r.Processed)})
		table.Append([]string{"Accepted", fmt.Sprintf("%d", r.Accepted)})
		table.Append([]string{"Started", r.StartedAt.Format(time.RFC3339)})
	}
	if st := s.Status; st != nil {
		p := st.Progress
		table.Append([]string{"State", string(st.State)})
		table.Append([]string{"Progress", fmt.Sprintf("%d/%d (%.0f%%)", p.Processed, p.Total, p.PercentComplete)})
		table.Append([]string{"Emails Found", fmt.Sprintf("%d", p.EmailsFound)})
		table.Append([]string{"Contact URLs Found", fmt.Sprintf("%d", p.ContactURLsFound)})
		table.Append([]string{"Current", p.Current})
		table.Append([]string{"ETA", p.ETA.Round(time.Second).String()})
	}
	table.Render()
	return nil
}
