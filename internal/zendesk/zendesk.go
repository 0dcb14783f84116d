// Package zendesk describes the helpdesk API and decodes the tickets the
// sync driver reads from it.
package zendesk

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"

	"github.com/zencamp/zencamp/internal/common/apperrors"
	"github.com/zencamp/zencamp/internal/restclient"
)

var (
	// ErrZendesk is the base error for helpdesk lookups.
	ErrZendesk apperrors.Error = apperrors.New("zendesk error")

	// ErrDecode is returned when a response does not have the expected shape.
	ErrDecode apperrors.Error = ErrZendesk.New("unable to decode response")

	// ErrGroupNotFound is returned when a group name matches no group.
	ErrGroupNotFound apperrors.Error = ErrZendesk.New("group not found")
)

// Config identifies a helpdesk account.
type Config struct {
	Subdomain   string // host name, e.g. acme.zendesk.com, or a full base URL
	Username    string
	Password    string
	UseAPIToken bool
}

// BaseURL returns the API root for subdomain. Values that already carry a
// scheme are used as is.
func BaseURL(subdomain string) string {
	if strings.Contains(subdomain, "://") {
		return strings.TrimRight(subdomain, "/")
	}
	return "https://" + subdomain
}

// NewClient returns a client for the helpdesk account in cfg. Credentials in
// cfg override those in opts.
func NewClient(cfg Config, opts restclient.Options) *restclient.Client {
	opts.Username = cfg.Username
	opts.Password = cfg.Password
	opts.UseAPIToken = cfg.UseAPIToken
	return restclient.New(BaseURL(cfg.Subdomain), Operations, opts)
}

// Ticket is the subset of a helpdesk ticket the sync driver uses.
type Ticket struct {
	ID          int64    `mapstructure:"id"`
	URL         string   `mapstructure:"url"`
	Subject     string   `mapstructure:"subject"`
	Description string   `mapstructure:"description"`
	Status      string   `mapstructure:"status"`
	Priority    string   `mapstructure:"priority"`
	GroupID     int64    `mapstructure:"group_id"`
	RequesterID int64    `mapstructure:"requester_id"`
	AssigneeID  int64    `mapstructure:"assignee_id"`
	Tags        []string `mapstructure:"tags"`
	CreatedAt   string   `mapstructure:"created_at"`
}

// Key returns the ticket identifier as recorded in the dedup log.
func (t Ticket) Key() string {
	return strconv.FormatInt(t.ID, 10)
}

// AgentURL returns the agent-facing link to the ticket.
func (t Ticket) AgentURL(subdomain string) string {
	return fmt.Sprintf("%s/tickets/%d", BaseURL(subdomain), t.ID)
}

// Group is a helpdesk agent group.
type Group struct {
	ID   int64  `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

// Page is one page of a paginated ticket listing.
type Page struct {
	Tickets  []Ticket
	NextPage string
	Count    int64
}

// RecentTickets fetches one page of recently viewed tickets. page <= 0 omits
// the page parameter.
func RecentTickets(ctx context.Context, inv restclient.Invoker, page int) (Page, error) {
	args := restclient.Args{}
	if page > 0 {
		args["page"] = page
	}
	res, err := inv.Invoke(ctx, "recent_tickets", args)
	if err != nil {
		return Page{}, err
	}
	return DecodeTicketPage(res)
}

// DecodeTicketPage decodes a ticket listing response.
func DecodeTicketPage(res restclient.Result) (Page, error) {
	if res.Kind != restclient.ResultJSON {
		return Page{}, ErrDecode.Msg("ticket listing has no body")
	}
	body := res.JSON()
	tickets := body.Get("tickets")
	if !tickets.IsArray() {
		return Page{}, ErrDecode.Msg("ticket listing has no tickets array")
	}

	var page Page
	if err := decode(tickets, &page.Tickets); err != nil {
		return Page{}, err
	}
	page.NextPage = body.Get("next_page").String()
	page.Count = body.Get("count").Int()
	return page, nil
}

// ListGroups returns all agent groups.
func ListGroups(ctx context.Context, inv restclient.Invoker) ([]Group, error) {
	res, err := inv.Invoke(ctx, "list_groups", nil)
	if err != nil {
		return nil, err
	}
	groups := res.JSON().Get("groups")
	if !groups.IsArray() {
		return nil, ErrDecode.Msg("group listing has no groups array")
	}
	var out []Group
	if err := decode(groups, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveGroups maps group references to ids. Numeric references are ids;
// any other reference is looked up by name, which needs one list_groups call.
func ResolveGroups(ctx context.Context, inv restclient.Invoker, refs []string) ([]int64, error) {
	ids := make([]int64, 0, len(refs))
	var names []string
	for _, ref := range refs {
		if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
			ids = append(ids, id)
			continue
		}
		names = append(names, ref)
	}
	if len(names) == 0 {
		return ids, nil
	}

	groups, err := ListGroups(ctx, inv)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]int64, len(groups))
	for _, g := range groups {
		byName[strings.ToLower(g.Name)] = g.ID
	}
	for _, name := range names {
		id, ok := byName[strings.ToLower(name)]
		if !ok {
			return nil, ErrGroupNotFound.Msg(fmt.Sprintf("group %q not found", name))
		}
		ids = append(ids, id)
	}
	return ids, nil
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
