package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zencamp/zencamp/internal/restclient"
)

func init() {
	color.NoColor = true
}

// fakeAPI serves both services: helpdesk paths at the root and the
// project-management account under /999.
type fakeAPI struct {
	mu       sync.Mutex
	todos    []string
	projects string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method + " " + r.URL.Path {
	case "GET /api/v2/tickets/recent.json":
		w.Write([]byte(`{"tickets": [
			{"id": 35436, "subject": "Printer on fire", "description": "Smoke", "status": "open", "group_id": 1},
			{"id": 35437, "subject": "Solved already", "status": "solved", "group_id": 1}
		]}`))
	case "GET /tickets/35436.json":
		w.Write([]byte(`{"ticket": {"id": 35436, "subject": "Printer on fire"}}`))
	case "GET /999/api/v1/projects.json":
		w.Write([]byte(f.projects))
	case "GET /999/api/v1/projects/10/todolists.json":
		w.Write([]byte(`[{"id": 20, "name": "Support"}]`))
	case "POST /999/api/v1/projects/10/todolists/20/todos.json":
		f.todos = append(f.todos, r.URL.Path)
		w.Header().Set("Location", "https://basecamp.com/999/api/v1/projects/10/todos/30.json")
		w.WriteHeader(http.StatusCreated)
	case "POST /999/api/v1/projects/10/todos/30/comments.json":
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 40}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"error": "no route for %s %s"}`, r.Method, r.URL.Path)
	}
}

func setup(t *testing.T) (*fakeAPI, []string) {
	t.Helper()
	api := &fakeAPI{projects: `[{"id": 10, "name": "Support"}]`}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "zencamp.toml")
	content := fmt.Sprintf(`
format_version = "0.1.0"

[zendesk]
subdomain = "%s"
username = "agent@example.com"
password = "secret"

[basecamp]
basecamp_id = "%s/999"
username = "pm@example.com"
password = "secret"
project = "Support"
todo_list = "Support"

[dedup]
path = "processed.jsonl"

[log]
level = "error"
`, srv.URL, srv.URL)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	return api, []string{"--config", cfgPath, "--env-file", filepath.Join(dir, "missing.env")}
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := run("version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "zencamp "+Version+"\n", out)

	code, out, _ = run("version", "-j")
	assert.Equal(t, 0, code)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, restclient.Version, v["client_version"])
}

func TestOperationsCommand(t *testing.T) {
	code, out, _ := run("operations", "zendesk")
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out, "NAME"))
	assert.Contains(t, out, "/api/v2/tickets/recent.json")

	code, out, _ = run("operations", "basecamp", "-o", "yaml")
	require.Equal(t, 0, code)
	var ops []operationOutput
	require.NoError(t, yaml.Unmarshal([]byte(out), &ops))
	require.Len(t, ops, 11)
	assert.Equal(t, "create_comment", ops[0].Name)

	code, _, errOut := run("operations", "jira")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, `unknown service "jira"`)

	code, _, errOut = run("operations", "zendesk", "-o", "xml")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, `unknown output format "xml"`)
}

func TestSyncCommand(t *testing.T) {
	api, global := setup(t)

	code, out, errOut := run(global...)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Project Support, todo list Support")
	assert.Contains(t, out, "Created 1 todos")
	assert.Len(t, api.todos, 1)

	code, out, _ = run(append(global, "sync", "-j")...)
	require.Equal(t, 0, code)
	var summary summaryOutput
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Created)
	assert.Len(t, api.todos, 1)

	code, out, _ = run(append(global, "processed", "-j")...)
	require.Equal(t, 0, code)
	var recs []recordOutput
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "35436", recs[0].ID)
	assert.NotEmpty(t, recs[0].RunID)

	code, out, _ = run(append(global, "processed", "--compact")...)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "1 tickets processed")
}

func TestSyncDryRun(t *testing.T) {
	api, global := setup(t)

	code, out, _ := run(append(global, "sync", "--dry-run")...)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Dry run: 1 todos would be created")
	assert.Empty(t, api.todos)
}

func TestSyncProjectNotFound(t *testing.T) {
	api, global := setup(t)
	api.projects = `[{"id": 11, "name": "Website"}]`

	code, _, errOut := run(append(global, "sync")...)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, `target project "Support" could not be resolved`)
	assert.Contains(t, errOut, `project "Support" not found`)
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestErrorOutput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), []string{"operations", "jira", "-j"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	var v map[string]string
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &v))
	assert.Contains(t, v["error"], `unknown service "jira"`)
	assert.Empty(t, stderr.String())

	stderr.Reset()
	code = Execute(context.Background(), []string{"operations", "jira", "-o", "yaml"}, brokenWriter{}, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), `Error: unknown service "jira"`)
}

func TestMissingConfig(t *testing.T) {
	code, _, errOut := run("--config", filepath.Join(t.TempDir(), "nope.toml"), "sync")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "nope.toml not found")
}

func TestCallCommand(t *testing.T) {
	_, global := setup(t)

	code, out, errOut := run(append(global, "call", "zendesk", "show_ticket", "ticket_id=35436")...)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `"subject": "Printer on fire"`)

	code, out, _ = run(append(global, "call", "basecamp", "create_todo", "project_id=10", "todolist_id=20",
		"--data", `{"content": "x"}`)...)
	require.Equal(t, 0, code)
	assert.Equal(t, "Created https://basecamp.com/999/api/v1/projects/10/todos/30.json\n", out)

	code, out, _ = run(append(global, "call", "zendesk", "show_ticket", "ticket_id=35436", "-o", "yaml")...)
	require.Equal(t, 0, code)
	var res map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &res))
	assert.Contains(t, res, "value")

	code, _, errOut = run(append(global, "call", "zendesk", "recent_tickets", "sort=asc")...)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "sort")

	code, _, errOut = run(append(global, "call", "zendesk", "show_ticket", "ticket_id=1")...)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "404")

	code, _, errOut = run(append(global, "call", "zendesk", "show_ticket", "--data", "{")...)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not valid JSON")
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{"ticket_id=1", "query=a=b"}, `{"x": 1}`)
	require.NoError(t, err)
	assert.Equal(t, "1", args["ticket_id"])
	assert.Equal(t, "a=b", args["query"])
	assert.Equal(t, rawJSON(`{"x": 1}`), args[restclient.DataArg])

	_, err = parseArgs([]string{"novalue"}, "")
	assert.Error(t, err)

	_, err = parseArgs([]string{"data={}"}, "")
	assert.Error(t, err)
}
