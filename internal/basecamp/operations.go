package basecamp

import (
	"net/http"

	"github.com/zencamp/zencamp/internal/restclient"
)

// Operations is the project-management API as exposed to
// restclient.Client.Invoke.
var Operations = restclient.NewTable("basecamp",
	// Projects
	restclient.Operation{Name: "list_projects", Method: http.MethodGet, Path: "/api/v1/projects.json", Status: http.StatusOK},
	restclient.Operation{Name: "show_project", Method: http.MethodGet, Path: "/api/v1/projects/{{project_id}}.json", Status: http.StatusOK},

	// Todo lists
	restclient.Operation{Name: "list_todolists", Method: http.MethodGet, Path: "/api/v1/projects/{{project_id}}/todolists.json", Status: http.StatusOK},
	restclient.Operation{Name: "show_todolist", Method: http.MethodGet, Path: "/api/v1/projects/{{project_id}}/todolists/{{todolist_id}}.json", Status: http.StatusOK},
	restclient.Operation{Name: "create_todolist", Method: http.MethodPost, Path: "/api/v1/projects/{{project_id}}/todolists.json", Status: http.StatusCreated},

	// Todos
	restclient.Operation{Name: "show_todo", Method: http.MethodGet, Path: "/api/v1/projects/{{project_id}}/todos/{{todo_id}}.json", Status: http.StatusOK},
	restclient.Operation{Name: "create_todo", Method: http.MethodPost, Path: "/api/v1/projects/{{project_id}}/todolists/{{todolist_id}}/todos.json", Status: http.StatusCreated},
	restclient.Operation{Name: "update_todo", Method: http.MethodPut, Path: "/api/v1/projects/{{project_id}}/todos/{{todo_id}}.json", Status: http.StatusOK},

	// Comments
	restclient.Operation{Name: "create_comment", Method: http.MethodPost, Path: "/api/v1/projects/{{project_id}}/todos/{{todo_id}}/comments.json", Status: http.StatusCreated},

	// People
	restclient.Operation{Name: "list_people", Method: http.MethodGet, Path: "/api/v1/people.json", Status: http.StatusOK},
	restclient.Operation{Name: "show_person", Method: http.MethodGet, Path: "/api/v1/people/{{person_id}}.json", Status: http.StatusOK},
)
