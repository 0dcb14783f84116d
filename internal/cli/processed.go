package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zencamp/zencamp/internal/dedup"
)

type recordOutput struct {
	ID    string `json:"id" yaml:"id"`
	Date  string `json:"date" yaml:"date"`
	RunID string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}

func newProcessedCmd(a *app) *cobra.Command {
	var compact bool
	cmd := &cobra.Command{
		Use:   "processed",
		Short: "List the tickets already synchronized",
		Long: `List the tickets recorded in the dedup log.

Examples:
  # List processed tickets
  zencamp processed

  # Rewrite a JSON lines log without damaged or duplicate lines
  zencamp processed --compact`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := dedup.Open(a.cfg.Dedup.Backend, a.cfg.Dedup.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			if compact {
				js, ok := store.(*dedup.JSONLStore)
				if !ok {
					return fmt.Errorf("compaction applies to the %s backend only", dedup.BackendJSONL)
				}
				if err := js.Compact(); err != nil {
					return err
				}
			}

			recs := store.Records()
			out := make([]recordOutput, 0, len(recs))
			for _, r := range recs {
				out = append(out, recordOutput{ID: r.ID, Date: r.Date.Format(time.RFC3339), RunID: r.RunID})
			}
			if a.format() != outputText {
				return a.render(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			for _, r := range out {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Date, r.RunID)
			}
			okLabel.Fprintf(w, "%d tickets processed\n", len(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "Compact the JSON lines log before listing")
	return cmd
}
