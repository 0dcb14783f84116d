package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zencamp/zencamp/internal/basecamp"
	"github.com/zencamp/zencamp/internal/restclient"
	"github.com/zencamp/zencamp/internal/zendesk"
)

var tables = map[string]restclient.Table{
	"zendesk":  zendesk.Operations,
	"basecamp": basecamp.Operations,
}

func lookupTable(service string) (restclient.Table, error) {
	t, ok := tables[strings.ToLower(service)]
	if !ok {
		return restclient.Table{}, fmt.Errorf("unknown service %q, expected zendesk or basecamp", service)
	}
	return t, nil
}

func newCallCmd(a *app) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "call <zendesk|basecamp> <operation> [key=value ...]",
		Short: "Invoke a single API operation",
		Long: `Invoke one operation of the Zendesk or Basecamp API and print the result.
Arguments fill the path placeholders first; the rest become query parameters
and must be allowed by the operation.

Examples:
  # Recent tickets, second page
  zencamp call zendesk recent_tickets page=2

  # Create a todo list
  zencamp call basecamp create_todolist project_id=605816632 --data '{"name": "Support"}'`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, a, args[0], args[1], args[2:], data)
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	return cmd
}

func runCall(cmd *cobra.Command, a *app, service, operation string, kv []string, data string) error {
	if _, err := lookupTable(service); err != nil {
		return err
	}
	args, err := parseArgs(kv, data)
	if err != nil {
		return err
	}

	var client *restclient.Client
	cfg := a.cfg
	switch strings.ToLower(service) {
	case "zendesk":
		client = zendesk.NewClient(zendesk.Config{
			Subdomain:   cfg.Zendesk.Subdomain,
			Username:    cfg.Zendesk.Username,
			Password:    cfg.Zendesk.Password,
			UseAPIToken: cfg.Zendesk.UseAPIToken,
		}, a.clientOptions())
	case "basecamp":
		client = basecamp.NewClient(basecamp.Config{
			AccountID:   cfg.Basecamp.BasecampID,
			Username:    cfg.Basecamp.Username,
			Password:    cfg.Basecamp.Password,
			UseAPIToken: cfg.Basecamp.UseAPIToken,
		}, a.clientOptions())
	}

	res, err := client.Invoke(cmd.Context(), operation, args)
	if err != nil {
		return err
	}
	return a.printResult(cmd.OutOrStdout(), res)
}

// parseArgs turns key=value pairs and an optional JSON body into call args.
func parseArgs(kv []string, data string) (restclient.Args, error) {
	args := restclient.Args{}
	for _, pair := range kv {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q, expected key=value", pair)
		}
		if key == restclient.DataArg {
			return nil, fmt.Errorf("use --data to pass a request body")
		}
		args[key] = value
	}
	if data != "" {
		if !json.Valid([]byte(data)) {
			return nil, fmt.Errorf("--data is not valid JSON")
		}
		args[restclient.DataArg] = rawJSON(data)
	}
	return args, nil
}

// rawJSON is a body that is already encoded.
type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) {
	return r, nil
}

type resultOutput struct {
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	Status   string `json:"status,omitempty" yaml:"status,omitempty"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
}

func (a *app) printResult(w io.Writer, res restclient.Result) error {
	if a.format() != outputText {
		return a.render(w, resultOutput{Location: res.Location, Status: res.Status, Value: res.Value})
	}
	switch res.Kind {
	case restclient.ResultJSON:
		out, err := json.MarshalIndent(res.Value, "", "  ")
		if err != nil {
			return fmt.Errorf("formatting response: %w", err)
		}
		fmt.Fprintln(w, string(out))
	case restclient.ResultLocation:
		okLabel.Fprintf(w, "Created ")
		fmt.Fprintln(w, res.Location)
	default:
		okLabel.Fprintln(w, res.Status)
	}
	return nil
}

type operationOutput struct {
	Name   string   `json:"name" yaml:"name"`
	Method string   `json:"method" yaml:"method"`
	Path   string   `json:"path" yaml:"path"`
	Status int      `json:"status" yaml:"status"`
	Params []string `json:"params,omitempty" yaml:"params,omitempty"`
}

func newOperationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "operations <zendesk|basecamp>",
		Short:       "List the operations a service supports",
		Annotations: map[string]string{"config": "none"},
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := lookupTable(args[0])
			if err != nil {
				return err
			}
			var ops []operationOutput
			for _, name := range table.Names() {
				op, _ := table.Lookup(name)
				params := append([]string(nil), op.Params...)
				sort.Strings(params)
				ops = append(ops, operationOutput{
					Name:   op.Name,
					Method: op.Method,
					Path:   op.Path,
					Status: op.Status,
					Params: params,
				})
			}
			if a.format() != outputText {
				return a.render(cmd.OutOrStdout(), ops)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tMETHOD\tPATH\tSTATUS\tPARAMS")
			for _, op := range ops {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", op.Name, op.Method, op.Path, op.Status, strings.Join(op.Params, ","))
			}
			return tw.Flush()
		},
	}
}
