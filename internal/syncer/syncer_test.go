package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/zencamp/zencamp/internal/basecamp"
	"github.com/zencamp/zencamp/internal/dedup"
	"github.com/zencamp/zencamp/internal/restclient"
	"github.com/zencamp/zencamp/internal/zendesk"
)

type call struct {
	name string
	args restclient.Args
}

// fakeService answers Invoke calls with handle and records them.
type fakeService struct {
	mu     sync.Mutex
	calls  []call
	handle func(name string, args restclient.Args) (restclient.Result, error)
}

func (f *fakeService) Invoke(_ context.Context, name string, args restclient.Args) (restclient.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args})
	f.mu.Unlock()
	return f.handle(name, args)
}

func (f *fakeService) named(name string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func jsonResult(body string) restclient.Result {
	return restclient.Result{Kind: restclient.ResultJSON, Raw: []byte(body)}
}

func locationResult(u string) restclient.Result {
	return restclient.Result{Kind: restclient.ResultLocation, Location: u}
}

const recentTickets = `{"tickets": [
	{"id": 3, "subject": "Printer on fire", "description": "Smoke everywhere", "status": "open", "group_id": 1},
	{"id": 1, "subject": "Password reset", "description": "", "status": "New", "group_id": 1},
	{"id": 2, "subject": "Old issue", "status": "solved", "group_id": 1},
	{"id": 4, "subject": "Invoice copy", "status": "open", "group_id": 2}
], "next_page": null, "count": 4}`

func newZendesk() *fakeService {
	return &fakeService{handle: func(name string, _ restclient.Args) (restclient.Result, error) {
		switch name {
		case "recent_tickets":
			return jsonResult(recentTickets), nil
		case "list_groups":
			return jsonResult(`{"groups": [{"id": 1, "name": "Support"}, {"id": 2, "name": "Billing"}]}`), nil
		}
		return restclient.Result{}, fmt.Errorf("unexpected operation %s", name)
	}}
}

// newBasecamp fakes an account with one "Support" project and no todo lists.
// Todo ids are 100 + the ticket id parsed back from the todo content.
func newBasecamp(failTodo func(content string) bool) *fakeService {
	return &fakeService{handle: func(name string, args restclient.Args) (restclient.Result, error) {
		switch name {
		case "list_projects":
			return jsonResult(`[{"id": 10, "name": "Support"}]`), nil
		case "list_todolists":
			return jsonResult(`[]`), nil
		case "create_todolist":
			return locationResult("https://basecamp.com/999/api/v1/projects/10/todolists/20.json"), nil
		case "create_todo":
			content := gjson.GetBytes(dataOf(args), "content").String()
			if failTodo != nil && failTodo(content) {
				return restclient.Result{}, &restclient.Error{Kind: restclient.KindAPI, StatusCode: 422, Body: "invalid"}
			}
			var id int64
			fmt.Sscanf(content, "#%d", &id)
			return jsonResult(fmt.Sprintf(`{"id": %d}`, 100+id)), nil
		case "create_comment":
			return locationResult("https://basecamp.com/999/api/v1/projects/10/comments/1.json"), nil
		}
		return restclient.Result{}, fmt.Errorf("unexpected operation %s", name)
	}}
}

func dataOf(args restclient.Args) []byte {
	raw, _ := args[restclient.DataArg].(json.RawMessage)
	return raw
}

func openStore(t *testing.T) dedup.Store {
	t.Helper()
	store, err := dedup.Open(dedup.BackendJSONL, filepath.Join(t.TempDir(), "processed.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testOptions() Options {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	return Options{
		Subdomain:  "acme.zendesk.com",
		Project:    "support",
		AssigneeID: 7,
		Statuses:   []string{"new", "open"},
		Groups:     []string{"Support"},
		RetryDelay: time.Millisecond,
		Now:        func() time.Time { return now },
		TodoListName: func(t time.Time) (string, error) {
			return t.Format("Tickets 2006-01"), nil
		},
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	zd, bc := newZendesk(), newBasecamp(nil)
	store := openStore(t)
	require.NoError(t, store.Append(ctx, dedup.Record{ID: "3", Date: time.Now()}))

	d := New(zd, bc, store, testOptions())
	summary, err := d.Run(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, "Support", summary.Project)
	assert.Equal(t, "Tickets 2026-10", summary.TodoList)
	assert.Equal(t, 4, summary.Fetched)
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Created)
	assert.Zero(t, summary.Failed)

	lists := bc.named("create_todolist")
	require.Len(t, lists, 1)
	assert.Equal(t, "Tickets 2026-10", gjson.GetBytes(dataOf(lists[0].args), "name").String())

	todos := bc.named("create_todo")
	require.Len(t, todos, 1)
	assert.Equal(t, int64(10), todos[0].args["project_id"])
	assert.Equal(t, int64(20), todos[0].args["todolist_id"])
	body := dataOf(todos[0].args)
	assert.Equal(t, "#1 Password reset", gjson.GetBytes(body, "content").String())
	assert.Equal(t, int64(7), gjson.GetBytes(body, "assignee.id").Int())

	comments := bc.named("create_comment")
	require.Len(t, comments, 1)
	assert.Equal(t, int64(101), comments[0].args["todo_id"])
	assert.Equal(t, "Zendesk ticket: https://acme.zendesk.com/tickets/1",
		gjson.GetBytes(dataOf(comments[0].args), "content").String())

	require.True(t, store.Contains("1"))
	recs := store.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, summary.RunID, recs[1].RunID)

	// A second run finds everything already processed.
	summary, err = d.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, summary.Created)
	assert.Len(t, bc.named("create_todo"), 1)
}

func TestRunWithoutFilters(t *testing.T) {
	zd, bc := newZendesk(), newBasecamp(nil)
	opts := testOptions()
	opts.Statuses = nil
	opts.Groups = nil

	summary, err := New(zd, bc, openStore(t), opts).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Matched)
	assert.Equal(t, 4, summary.Created)
	assert.Empty(t, zd.named("list_groups"))

	var order []string
	for _, c := range bc.named("create_todo") {
		order = append(order, gjson.GetBytes(dataOf(c.args), "content").String())
	}
	assert.Equal(t, []string{"#1 Password reset", "#2 Old issue", "#3 Printer on fire", "#4 Invoice copy"}, order)
}

func TestRunDryRun(t *testing.T) {
	zd, bc := newZendesk(), newBasecamp(nil)
	store := openStore(t)
	opts := testOptions()
	opts.DryRun = true

	summary, err := New(zd, bc, store, opts).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Matched)
	assert.Zero(t, summary.Created)
	assert.Empty(t, bc.named("create_todolist"))
	assert.Empty(t, bc.named("create_todo"))
	assert.Zero(t, store.Len())
}

func TestRunProjectNotFound(t *testing.T) {
	zd, bc := newZendesk(), newBasecamp(nil)
	opts := testOptions()
	opts.Project = "Marketing"

	_, err := New(zd, bc, openStore(t), opts).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSetup)
	assert.ErrorIs(t, err, basecamp.ErrProjectNotFound)
	assert.Empty(t, zd.calls)
}

func TestRunUnknownGroup(t *testing.T) {
	zd, bc := newZendesk(), newBasecamp(nil)
	opts := testOptions()
	opts.Groups = []string{"Sales"}

	_, err := New(zd, bc, openStore(t), opts).Run(context.Background())
	assert.ErrorIs(t, err, ErrSetup)
	assert.ErrorIs(t, err, zendesk.ErrGroupNotFound)
	assert.Empty(t, zd.named("recent_tickets"))
}

func TestRunTicketFailure(t *testing.T) {
	zd := newZendesk()
	bc := newBasecamp(func(content string) bool { return content == "#1 Password reset" })
	store := openStore(t)
	opts := testOptions()
	opts.Groups = nil

	summary, err := New(zd, bc, store, opts).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Created)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, int64(1), summary.Failures[0].TicketID)
	assert.ErrorIs(t, summary.Failures[0].Err, restclient.ErrAPI)

	assert.False(t, store.Contains("1"))
	assert.True(t, store.Contains("3"))
	assert.True(t, store.Contains("4"))
}

func TestRunCommentFailure(t *testing.T) {
	ctx := context.Background()
	zd, bc := newZendesk(), newBasecamp(nil)
	next := bc.handle
	bc.handle = func(name string, args restclient.Args) (restclient.Result, error) {
		if name == "create_comment" {
			return restclient.Result{}, &restclient.Error{Kind: restclient.KindTransport, Err: errors.New("connection reset")}
		}
		return next(name, args)
	}
	store := openStore(t)
	opts := testOptions()
	opts.Groups = nil
	d := New(zd, bc, store, opts)

	summary, err := d.Run(ctx)
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Zero(t, summary.Created)
	assert.Equal(t, 3, summary.Failed)
	for _, f := range summary.Failures {
		assert.ErrorIs(t, f.Err, restclient.ErrTransport)
	}
	for _, id := range []string{"1", "3", "4"} {
		assert.True(t, store.Contains(id), "ticket %s not recorded", id)
	}
	assert.Len(t, bc.named("create_todo"), 3)

	// the todos exist, so the next run must not create them again
	summary, err = d.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Skipped)
	assert.Zero(t, summary.Failed)
	assert.Len(t, bc.named("create_todo"), 3)
	assert.Len(t, bc.named("create_comment"), 3)
}

func TestFetchRetriesTransportErrors(t *testing.T) {
	var attempts int
	zd := &fakeService{handle: func(string, restclient.Args) (restclient.Result, error) {
		attempts++
		if attempts < 3 {
			return restclient.Result{}, &restclient.Error{Kind: restclient.KindTransport, Err: errors.New("connection reset")}
		}
		return jsonResult(recentTickets), nil
	}}
	opts := testOptions()
	opts.FetchAttempts = 3

	tickets, err := New(zd, newBasecamp(nil), openStore(t), opts).fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, tickets, 4)
	assert.Equal(t, 3, attempts)

	attempts = 0
	opts.FetchAttempts = 2
	_, err = New(zd, newBasecamp(nil), openStore(t), opts).fetch(context.Background())
	assert.ErrorIs(t, err, restclient.ErrTransport)
	assert.Equal(t, 2, attempts)
}

func TestFetchDoesNotRetryAuthentication(t *testing.T) {
	var attempts int
	zd := &fakeService{handle: func(string, restclient.Args) (restclient.Result, error) {
		attempts++
		return restclient.Result{}, &restclient.Error{Kind: restclient.KindAuthentication, StatusCode: 401}
	}}
	opts := testOptions()
	opts.Groups = nil
	opts.FetchAttempts = 5

	_, err := New(zd, newBasecamp(nil), openStore(t), opts).Run(context.Background())
	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, restclient.ErrAuthentication)
	assert.Equal(t, 1, attempts)
}

func TestFetchPages(t *testing.T) {
	zd := &fakeService{handle: func(_ string, args restclient.Args) (restclient.Result, error) {
		switch args["page"] {
		case 1:
			return jsonResult(`{"tickets": [{"id": 5}, {"id": 2}]}`), nil
		case 2:
			return jsonResult(`{"tickets": [{"id": 2}, {"id": 9}]}`), nil
		case 3:
			return jsonResult(`{"tickets": []}`), nil
		}
		return restclient.Result{}, fmt.Errorf("unexpected page %v", args["page"])
	}}
	opts := testOptions()
	opts.Pages = 3

	tickets, err := New(zd, newBasecamp(nil), openStore(t), opts).fetch(context.Background())
	require.NoError(t, err)
	var ids []int64
	for _, tk := range tickets {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []int64{2, 5, 9}, ids)

	var pages []any
	for _, c := range zd.named("recent_tickets") {
		pages = append(pages, c.args["page"])
	}
	assert.ElementsMatch(t, []any{1, 2, 3}, pages)
}

func TestSyncBack(t *testing.T) {
	d := New(newZendesk(), newBasecamp(nil), openStore(t), testOptions())
	assert.ErrorIs(t, d.SyncBack(context.Background()), ErrNotImplemented)
}

func TestCommentContent(t *testing.T) {
	tk := zendesk.Ticket{ID: 35436, Subject: "Printer on fire", Description: "  Smoke everywhere\n"}
	assert.Equal(t, "#35436 Printer on fire", TodoContent(tk))
	assert.Equal(t, "Smoke everywhere\n\nZendesk ticket: https://acme.zendesk.com/tickets/35436",
		CommentContent(tk, "acme.zendesk.com"))
}
