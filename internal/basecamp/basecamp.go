// Package basecamp describes the project-management API and implements the
// project, todo list, todo and comment calls the sync driver makes.
package basecamp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/zencamp/zencamp/internal/common/apperrors"
	"github.com/zencamp/zencamp/internal/restclient"
)

var (
	// ErrBasecamp is the base error for project-management lookups.
	ErrBasecamp apperrors.Error = apperrors.New("basecamp error")

	// ErrProjectNotFound is returned when no project has the configured name.
	ErrProjectNotFound apperrors.Error = ErrBasecamp.New("project not found")

	// ErrDecode is returned when a response does not have the expected shape.
	ErrDecode apperrors.Error = ErrBasecamp.New("unable to decode response")

	// ErrNoIdentifier is returned when a create call yields no resource id.
	ErrNoIdentifier apperrors.Error = ErrBasecamp.New("created resource has no identifier")
)

// UserAgent identifies the integration, as the API requires a contact address.
const UserAgent = "zencamp " + restclient.Version + " (support@propdata.net)"

// Config identifies a project-management account.
type Config struct {
	AccountID   string // numeric account id, or a full base URL
	Username    string
	Password    string
	UseAPIToken bool
}

// BaseURL returns the API root for accountID. Values that already carry a
// scheme are used as is.
func BaseURL(accountID string) string {
	if strings.Contains(accountID, "://") {
		return strings.TrimRight(accountID, "/")
	}
	return "https://basecamp.com/" + accountID
}

// NewClient returns a client for the account in cfg. Credentials in cfg
// override those in opts, and the integration User-Agent is used unless opts
// sets one.
func NewClient(cfg Config, opts restclient.Options) *restclient.Client {
	opts.Username = cfg.Username
	opts.Password = cfg.Password
	opts.UseAPIToken = cfg.UseAPIToken
	if opts.UserAgent == "" {
		opts.UserAgent = UserAgent
	}
	return restclient.New(BaseURL(cfg.AccountID), Operations, opts)
}

// Project is a project-management project.
type Project struct {
	ID          int64  `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Archived    bool   `mapstructure:"archived"`
	URL         string `mapstructure:"url"`
}

// TodoList is a named list of todos inside a project.
type TodoList struct {
	ID   int64  `mapstructure:"id"`
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// Person is an account member that todos can be assigned to.
type Person struct {
	ID           int64  `mapstructure:"id"`
	Name         string `mapstructure:"name"`
	EmailAddress string `mapstructure:"email_address"`
}

// ListProjects returns the active projects of the account.
func ListProjects(ctx context.Context, inv restclient.Invoker) ([]Project, error) {
	res, err := inv.Invoke(ctx, "list_projects", nil)
	if err != nil {
		return nil, err
	}
	var projects []Project
	if err := decodeArray(res, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// FindProject returns the project called name, ignoring case.
func FindProject(ctx context.Context, inv restclient.Invoker, name string) (Project, error) {
	projects, err := ListProjects(ctx, inv)
	if err != nil {
		return Project{}, err
	}
	for _, p := range projects {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return Project{}, ErrProjectNotFound.Msg(fmt.Sprintf("project %q not found", name))
}

// ListTodoLists returns the active todo lists of a project.
func ListTodoLists(ctx context.Context, inv restclient.Invoker, projectID int64) ([]TodoList, error) {
	res, err := inv.Invoke(ctx, "list_todolists", restclient.Args{"project_id": projectID})
	if err != nil {
		return nil, err
	}
	var lists []TodoList
	if err := decodeArray(res, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

// EnsureTodoList returns the todo list called name in the project, creating
// it when missing. created reports whether a list was created.
func EnsureTodoList(ctx context.Context, inv restclient.Invoker, projectID int64, name string) (list TodoList, created bool, err error) {
	lists, err := ListTodoLists(ctx, inv, projectID)
	if err != nil {
		return TodoList{}, false, err
	}
	for _, l := range lists {
		if strings.EqualFold(l.Name, name) {
			return l, false, nil
		}
	}

	body, err := sjson.SetBytes([]byte(`{}`), "name", name)
	if err != nil {
		return TodoList{}, false, err
	}
	res, err := inv.Invoke(ctx, "create_todolist", restclient.Args{
		"project_id":       projectID,
		restclient.DataArg: json.RawMessage(body),
	})
	if err != nil {
		return TodoList{}, false, err
	}
	id, err := CreatedID(res)
	if err != nil {
		return TodoList{}, false, err
	}
	return TodoList{ID: id, Name: name, URL: res.Location}, true, nil
}

// Todo is the payload of a new todo.
type Todo struct {
	Content    string
	AssigneeID int64 // 0 leaves the todo unassigned
}

// CreateTodo adds a todo to a list and returns its id.
func CreateTodo(ctx context.Context, inv restclient.Invoker, projectID, listID int64, todo Todo) (int64, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "content", todo.Content)
	if err != nil {
		return 0, err
	}
	if todo.AssigneeID != 0 {
		if body, err = sjson.SetBytes(body, "assignee.id", todo.AssigneeID); err != nil {
			return 0, err
		}
		if body, err = sjson.SetBytes(body, "assignee.type", "Person"); err != nil {
			return 0, err
		}
	}

	res, err := inv.Invoke(ctx, "create_todo", restclient.Args{
		"project_id":       projectID,
		"todolist_id":      listID,
		restclient.DataArg: json.RawMessage(body),
	})
	if err != nil {
		return 0, err
	}
	return CreatedID(res)
}

// CreateComment adds a comment to a todo.
func CreateComment(ctx context.Context, inv restclient.Invoker, projectID, todoID int64, content string) error {
	body, err := sjson.SetBytes([]byte(`{}`), "content", content)
	if err != nil {
		return err
	}
	_, err = inv.Invoke(ctx, "create_comment", restclient.Args{
		"project_id":       projectID,
		"todo_id":          todoID,
		restclient.DataArg: json.RawMessage(body),
	})
	return err
}

// CreatedID extracts the id of a created resource, from the Location URL
// when the API answered with one, otherwise from the body's id field.
func CreatedID(res restclient.Result) (int64, error) {
	var idStr string
	switch res.Kind {
	case restclient.ResultLocation:
		idStr = restclient.IDFromURL(res.Location)
	case restclient.ResultJSON:
		idStr = res.JSON().Get("id").String()
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrNoIdentifier.Msg(fmt.Sprintf("no identifier in %q", res.String()))
	}
	return id, nil
}

func decodeArray(res restclient.Result, out any) error {
	arr := res.JSON()
	if res.Kind != restclient.ResultJSON || !arr.IsArray() {
		return ErrDecode.Msg(fmt.Sprintf("expected a JSON array, got %q", res.String()))
	}
	return decode(arr, out)
}

func decode(v gjson.Result, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return ErrDecode.Err(err)
	}
	if err := dec.Decode(v.Value()); err != nil {
		return ErrDecode.Err(err)
	}
	return nil
}
