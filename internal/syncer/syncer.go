// Package syncer turns new helpdesk tickets into project-management todos.
// A run resolves the target project and todo list, lists recent tickets,
// keeps those whose status and group are configured, skips the ones already
// in the dedup log and creates a todo plus a comment for each remaining one.
package syncer

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zencamp/zencamp/internal/basecamp"
	"github.com/zencamp/zencamp/internal/common/logtrace"
	"github.com/zencamp/zencamp/internal/common/uuid"
	"github.com/zencamp/zencamp/internal/dedup"
	"github.com/zencamp/zencamp/internal/restclient"
	"github.com/zencamp/zencamp/internal/zendesk"
)

// maxParallelFetches bounds concurrent ticket page requests.
const maxParallelFetches = 4

// Options configures a Driver.
type Options struct {
	Subdomain     string                          // helpdesk host, used for ticket links
	Project       string                          // target project name
	TodoListName  func(time.Time) (string, error) // todo list name for the run time
	AssigneeID    int64                           // 0 leaves todos unassigned
	Statuses      []string                        // ticket statuses to sync; empty means all
	Groups        []string                        // group ids or names; empty means all
	Pages         int                             // recent ticket pages to read
	FetchAttempts uint                            // attempts per page on transport errors
	RetryDelay    time.Duration                   // initial delay between attempts
	DryRun        bool                            // resolve and filter, but create nothing
	Now           func() time.Time
	Logger        *zerolog.Logger
}

// Driver runs synchronizations. It is not safe for concurrent runs sharing
// one dedup store.
type Driver struct {
	zendesk  restclient.Invoker
	basecamp restclient.Invoker
	store    dedup.Store
	opts     Options
	logger   zerolog.Logger
}

// New creates a driver reading from zd and writing to bc.
func New(zd, bc restclient.Invoker, store dedup.Store, opts Options) *Driver {
	if opts.Pages < 1 {
		opts.Pages = 1
	}
	if opts.FetchAttempts < 1 {
		opts.FetchAttempts = 1
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TodoListName == nil {
		opts.TodoListName = func(time.Time) (string, error) { return "Zendesk", nil }
	}
	logger := log.With().Str("component", "syncer").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Driver{zendesk: zd, basecamp: bc, store: store, opts: opts, logger: logger}
}

// Failure describes a ticket that could not be synchronized.
type Failure struct {
	TicketID int64
	Err      error
}

// Summary reports what a run did.
type Summary struct {
	RunID    string
	Project  string
	TodoList string
	Fetched  int // distinct tickets listed
	Matched  int // tickets passing the status and group filters
	Skipped  int // matched tickets already in the dedup log
	Created  int // todos created
	Failed   int
	Failures []Failure
}

// Run performs one synchronization. Failures to prepare the target or to list
// tickets abort the run; failures on individual tickets are logged and
// counted, and reported together as ErrIncomplete once every ticket was tried.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	runID := uuid.New().String()
	ctx = logtrace.WithRunID(ctx, runID)
	logger := logtrace.Logger(ctx, d.logger)
	summary := Summary{RunID: runID}
	start := d.opts.Now()

	project, err := basecamp.FindProject(ctx, d.basecamp, d.opts.Project)
	if err != nil {
		return summary, ErrSetup.MsgErr(fmt.Sprintf("target project %q could not be resolved", d.opts.Project), err)
	}
	summary.Project = project.Name

	listName, err := d.opts.TodoListName(start)
	if err != nil {
		return summary, ErrSetup.MsgErr("todo list name could not be rendered", err)
	}

	var list basecamp.TodoList
	if d.opts.DryRun {
		list = basecamp.TodoList{Name: listName}
	} else {
		var created bool
		list, created, err = basecamp.EnsureTodoList(ctx, d.basecamp, project.ID, listName)
		if err != nil {
			return summary, ErrSetup.MsgErr(fmt.Sprintf("todo list %q could not be resolved", listName), err)
		}
		if created {
			logger.Info().Int64("todolist_id", list.ID).Str("todolist", list.Name).Msg("created todo list")
		}
	}
	summary.TodoList = list.Name

	groups, err := zendesk.ResolveGroups(ctx, d.zendesk, d.opts.Groups)
	if err != nil {
		return summary, ErrSetup.MsgErr("ticket groups could not be resolved", err)
	}

	tickets, err := d.fetch(ctx)
	if err != nil {
		return summary, ErrFetch.Err(err)
	}
	summary.Fetched = len(tickets)

	for _, t := range tickets {
		if !d.matches(t, groups) {
			continue
		}
		summary.Matched++

		if d.store.Contains(t.Key()) {
			summary.Skipped++
			continue
		}
		if d.opts.DryRun {
			logger.Info().Int64("ticket_id", t.ID).Str("subject", t.Subject).Msg("would create todo")
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := d.syncTicket(ctx, project.ID, list.ID, t); err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{TicketID: t.ID, Err: err})
			logger.Error().Err(err).Int64("ticket_id", t.ID).Msg("ticket not synchronized")
			continue
		}
		summary.Created++
	}

	logger.Info().
		Str("project", summary.Project).
		Str("todolist", summary.TodoList).
		Int("fetched", summary.Fetched).
		Int("matched", summary.Matched).
		Int("skipped", summary.Skipped).
		Int("created", summary.Created).
		Int("failed", summary.Failed).
		Dur("elapsed", d.opts.Now().Sub(start)).
		Msg("sync finished")

	if summary.Failed > 0 {
		return summary, ErrIncomplete.Msg(fmt.Sprintf("%d of %d tickets failed", summary.Failed, summary.Matched-summary.Skipped))
	}
	return summary, nil
}

// SyncBack would copy todo completion back to the helpdesk.
func (d *Driver) SyncBack(context.Context) error {
	return ErrNotImplemented
}

// fetch reads the configured number of recent ticket pages concurrently and
// returns the distinct tickets ordered by id.
func (d *Driver) fetch(ctx context.Context) ([]zendesk.Ticket, error) {
	pages := make([][]zendesk.Ticket, d.opts.Pages)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)
	for i := range pages {
		i := i
		page := i + 1
		if d.opts.Pages == 1 {
			page = 0
		}
		g.Go(func() error {
			var p zendesk.Page
			err := retry.Do(func() error {
				var err error
				p, err = zendesk.RecentTickets(gctx, d.zendesk, page)
				return err
			},
				retry.Context(gctx),
				retry.Attempts(d.opts.FetchAttempts),
				retry.Delay(d.opts.RetryDelay),
				retry.DelayType(retry.BackOffDelay),
				retry.LastErrorOnly(true),
				retry.RetryIf(func(err error) bool {
					return restclient.KindOf(err) == restclient.KindTransport
				}),
				retry.OnRetry(func(n uint, err error) {
					d.logger.Warn().Err(err).Int("page", page).Uint("attempt", n+1).Msg("retrying ticket fetch")
				}),
			)
			if err != nil {
				return err
			}
			pages[i] = p.Tickets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var tickets []zendesk.Ticket
	for _, p := range pages {
		for _, t := range p {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			tickets = append(tickets, t)
		}
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	return tickets, nil
}

func (d *Driver) matches(t zendesk.Ticket, groups []int64) bool {
	if len(d.opts.Statuses) > 0 && !slices.ContainsFunc(d.opts.Statuses, func(s string) bool {
		return strings.EqualFold(s, t.Status)
	}) {
		return false
	}
	if len(groups) > 0 && !slices.Contains(groups, t.GroupID) {
		return false
	}
	return true
}

// syncTicket creates the todo and its comment. The ticket is recorded as soon
// as the todo exists so a failed comment never leads to a duplicate todo.
func (d *Driver) syncTicket(ctx context.Context, projectID, listID int64, t zendesk.Ticket) error {
	todoID, err := basecamp.CreateTodo(ctx, d.basecamp, projectID, listID, basecamp.Todo{
		Content:    TodoContent(t),
		AssigneeID: d.opts.AssigneeID,
	})
	if err != nil {
		return fmt.Errorf("creating todo: %w", err)
	}

	rec := dedup.Record{ID: t.Key(), Date: d.opts.Now().UTC(), RunID: logtrace.RunIDFromContext(ctx)}
	if err := d.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("recording ticket after creating todo %d: %w", todoID, err)
	}

	if err := basecamp.CreateComment(ctx, d.basecamp, projectID, todoID, CommentContent(t, d.opts.Subdomain)); err != nil {
		return fmt.Errorf("commenting on todo %d: %w", todoID, err)
	}

	logger := logtrace.Logger(ctx, d.logger)
	logger.Info().Int64("ticket_id", t.ID).Int64("todo_id", todoID).Msg("created todo")
	return nil
}

// TodoContent is the todo title for a ticket.
func TodoContent(t zendesk.Ticket) string {
	return fmt.Sprintf("#%d %s", t.ID, t.Subject)
}

// CommentContent is the first comment of a ticket's todo: the ticket
// description followed by a link back to the ticket.
func CommentContent(t zendesk.Ticket, subdomain string) string {
	var b strings.Builder
	if desc := strings.TrimSpace(t.Description); desc != "" {
		b.WriteString(desc)
		b.WriteString("\n\n")
	}
	b.WriteString("Zendesk ticket: ")
	b.WriteString(t.AgentURL(subdomain))
	return b.String()
}
