package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zencamp/zencamp/internal/basecamp"
	"github.com/zencamp/zencamp/internal/dedup"
	"github.com/zencamp/zencamp/internal/syncer"
	"github.com/zencamp/zencamp/internal/zendesk"
)

func newSyncCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Create todos for new tickets",
		Long: `Create a Basecamp todo for every recent Zendesk ticket whose status and
group are configured and that has not been synchronized before.

Examples:
  # Synchronize
  zencamp sync

  # Resolve the target and list matching tickets without creating anything
  zencamp sync --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, a, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Do not create todos or record tickets")
	return cmd
}

func runSync(cmd *cobra.Command, a *app, dryRun bool) error {
	cfg := a.cfg
	opts := a.clientOptions()

	zd := zendesk.NewClient(zendesk.Config{
		Subdomain:   cfg.Zendesk.Subdomain,
		Username:    cfg.Zendesk.Username,
		Password:    cfg.Zendesk.Password,
		UseAPIToken: cfg.Zendesk.UseAPIToken,
	}, opts)
	bc := basecamp.NewClient(basecamp.Config{
		AccountID:   cfg.Basecamp.BasecampID,
		Username:    cfg.Basecamp.Username,
		Password:    cfg.Basecamp.Password,
		UseAPIToken: cfg.Basecamp.UseAPIToken,
	}, opts)

	store, err := dedup.Open(cfg.Dedup.Backend, cfg.Dedup.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	logger := log.With().Str("component", "syncer").Logger()
	driver := syncer.New(zd, bc, store, syncer.Options{
		Subdomain:     cfg.Zendesk.Subdomain,
		Project:       cfg.Basecamp.Project,
		TodoListName:  cfg.TodoListName,
		AssigneeID:    cfg.Basecamp.AutoAssignTo,
		Statuses:      cfg.Sync.Statuses,
		Groups:        cfg.Sync.Groups,
		Pages:         cfg.Sync.Pages,
		FetchAttempts: cfg.Sync.FetchAttempts,
		DryRun:        dryRun,
		Logger:        &logger,
	})

	summary, err := driver.Run(cmd.Context())
	if err != nil && !errors.Is(err, syncer.ErrIncomplete) {
		return err
	}
	if rerr := a.printSummary(cmd.OutOrStdout(), summary, dryRun); rerr != nil {
		return rerr
	}
	if err != nil {
		return ErrAlreadyHandled
	}
	return nil
}

type summaryOutput struct {
	RunID    string          `json:"run_id" yaml:"run_id"`
	Project  string          `json:"project" yaml:"project"`
	TodoList string          `json:"todo_list" yaml:"todo_list"`
	DryRun   bool            `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	Fetched  int             `json:"fetched" yaml:"fetched"`
	Matched  int             `json:"matched" yaml:"matched"`
	Skipped  int             `json:"skipped" yaml:"skipped"`
	Created  int             `json:"created" yaml:"created"`
	Failed   int             `json:"failed" yaml:"failed"`
	Failures []failureOutput `json:"failures,omitempty" yaml:"failures,omitempty"`
}

type failureOutput struct {
	TicketID int64  `json:"ticket_id" yaml:"ticket_id"`
	Error    string `json:"error" yaml:"error"`
}

func (a *app) printSummary(w io.Writer, s syncer.Summary, dryRun bool) error {
	out := summaryOutput{
		RunID:    s.RunID,
		Project:  s.Project,
		TodoList: s.TodoList,
		DryRun:   dryRun,
		Fetched:  s.Fetched,
		Matched:  s.Matched,
		Skipped:  s.Skipped,
		Created:  s.Created,
		Failed:   s.Failed,
	}
	for _, f := range s.Failures {
		out.Failures = append(out.Failures, failureOutput{TicketID: f.TicketID, Error: f.Err.Error()})
	}
	if a.format() != outputText {
		return a.render(w, out)
	}

	fmt.Fprintf(w, "Project %s, todo list %s\n", s.Project, s.TodoList)
	fmt.Fprintf(w, "Tickets: %d fetched, %d matched, %d already processed\n", s.Fetched, s.Matched, s.Skipped)
	switch {
	case dryRun:
		warnLabel.Fprintf(w, "Dry run: %d todos would be created\n", s.Matched-s.Skipped)
	case s.Failed > 0:
		for _, f := range s.Failures {
			errorLabel.Fprintf(w, "Ticket %d failed: %v\n", f.TicketID, f.Err)
		}
		errorLabel.Fprintf(w, "Created %d todos, %d tickets failed\n", s.Created, s.Failed)
	default:
		okLabel.Fprintf(w, "Created %d todos\n", s.Created)
	}
	return nil
}
