package zendesk

import (
	"net/http"

	"github.com/zencamp/zencamp/internal/restclient"
)

// Operations is the helpdesk API as exposed to restclient.Client.Invoke.
var Operations = restclient.NewTable("zendesk",
	// Organizations
	restclient.Operation{Name: "list_organizations", Method: http.MethodGet, Path: "/organizations.json", Status: http.StatusOK},
	restclient.Operation{Name: "show_organization", Method: http.MethodGet, Path: "/organizations/{{organization_id}}.json", Status: http.StatusOK},
	restclient.Operation{Name: "create_organization", Method: http.MethodPost, Path: "/organizations.json", Status: http.StatusCreated},
	restclient.Operation{Name: "update_organization", Method: http.MethodPut, Path: "/organizations/{{organization_id}}.json", Status: http.StatusOK},
	restclient.Operation{Name: "delete_organization", Method: http.MethodDelete, Path: "/organizations/{{organization_id}}.json", Status: http.StatusOK},

	// Groups
	restclient.Operation{Name: "list_groups", Method: http.MethodGet, Path: "/groups.json", Status: http.StatusOK},
	restclient.Operation{Name: "show_group", Method: http.MethodGet, Path: "/groups/{{group_id}}.json", Status: http.StatusOK},
	restclient.Operation{Name: "create_group", Method: http.MethodPost, Path: "/groups.json", Status: http.StatusCreated},
	restclient.Operation{Name: "update_group", Method: http.MethodPut, Path: "/groups/{{group_id}}.json", Status: http.StatusOK},
	restclient.Operation{Name: "delete_group", Method: http.MethodDelete, Path: "/groups/{{group_id}}.json", Status: http.StatusOK},

	// Tickets
	restclient.Operation{Name: "recent_tickets", Method: http.MethodGet, Path: "/api/v2/tickets/recent.json", Status: http.StatusOK, Params: []string{"page"}},
	restclient.Operation{Name: "list_tickets", Method: http.MethodGet, Path: "/rules/{{view_id}}.json", Status: http.StatusOK, Params: []string{"page"}},
	restclient.Operation{Name: "show_ticket", Method: http.MethodGet, Path: "/tickets/{{ticket_id}}.json", Status: http.StatusOK},
	restclient.Operation{Name: "create_ticket", Method: http.MethodPost, Path: "/tickets.json", Status: http.StatusCreated},
	restclient.Operation{Name: "update_ticket", Method: http.MethodPut, Path: "/tickets/{{ticket_id}}.json", Status: http.StatusOK},
	restclient.Operation{Name: "comment_ticket", Method: http.MethodPut, Path: "/tickets/{{ticket_id}}.json", Status: http.StatusOK},
	restclient.Operation{Name: "delete_ticket", Method: http.MethodDelete, Path: "/tickets/{{ticket_id}}.json", Status: http.StatusOK},

	// Attachments
	restclient.Operation{Name: "create_attachment", Method: http.MethodPost, Path: "/uploads.json", Status: http.StatusCreated, Params: []string{"filename", "token"}},

	// Users
	restclient.Operation{Name: "list_users", Method: http.MethodGet, Path: "/users.json", Status: http.StatusOK, Params: []string{"page"}},
	restclient.Operation{Name: "search_users", Method: http.MethodGet, Path: "/users.json", Status: http.StatusOK, Params: []string{"query", "role", "page"}},
	restclient.Operation{Name: "show_user", Method: http.MethodGet, Path: "/users/{{user_id}}.json", Status: http.StatusOK},
	restclient.Operation{Name: "create_user", Method: http.MethodPost, Path: "/users.json", Status: http.StatusOK},
	restclient.Operation{Name: "update_user", Method: http.MethodPut, Path: "/users/{{user_id}}.json", Status: http.StatusOK},
	restclient.Operation{Name: "delete_user", Method: http.MethodDelete, Path: "/users/{{user_id}}.json", Status: http.StatusOK},
	restclient.Operation{Name: "list_user_identities", Method: http.MethodGet, Path: "/users/{{user_id}}/user_identities.json", Status: http.StatusOK},
	restclient.Operation{Name: "add_user_email", Method: http.MethodPost, Path: "/users/{{user_id}}/user_identities.json", Status: http.StatusCreated},
	restclient.Operation{Name: "add_twitter_handle", Method: http.MethodPost, Path: "/users/{{user_id}}/user_identities.json", Status: http.StatusCreated},
	restclient.Operation{Name: "make_identity_primary", Method: http.MethodPost, Path: "/users/{{user_id}}/user_identities/{{identity_id}}/make_primary", Status: http.StatusOK},
	restclient.Operation{Name: "delete_identity", Method: http.MethodDelete, Path: "/users/{{user_id}}/user_identities/{{identity_id}}", Status: http.StatusOK},

	// Tags
	restclient.Operation{Name: "list_tags", Method: http.MethodGet, Path: "/tags.json", Status: http.StatusOK},
	restclient.Operation{Name: "list_assets", Method: http.MethodGet, Path: "/tags/{{tag_id}}.json", Status: http.StatusOK, Params: []string{"asset_type", "page"}},

	// Ticket fields
	restclient.Operation{Name: "list_ticket_fields", Method: http.MethodGet, Path: "/ticket_fields.json", Status: http.StatusOK},

	// Macros
	restclient.Operation{Name: "list_macros", Method: http.MethodGet, Path: "/macros.json", Status: http.StatusOK},
	restclient.Operation{Name: "evaluate_macro", Method: http.MethodPost, Path: "/macros/{{macro_id}}/apply.json", Status: http.StatusCreated, Params: []string{"ticket_id"}},

	// Search
	restclient.Operation{Name: "search", Method: http.MethodGet, Path: "/search.json", Status: http.StatusOK, Params: []string{"query", "page"}},
)
