// Package cli implements the zencamp command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zencamp/zencamp/internal/common/apperrors"
	"github.com/zencamp/zencamp/internal/common/logtrace"
	"github.com/zencamp/zencamp/internal/config"
	"github.com/zencamp/zencamp/internal/restclient"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Version is the zencamp release.
var Version = "v0.1.0"

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// ErrAlreadyHandled is returned by commands that have reported their own
// failure and only need a non-zero exit code.
var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var warnLabel = color.New(color.FgYellow)
var errorLabel = color.New(color.FgRed)

// app holds the global flags and the configuration loaded for a command.
type app struct {
	configFile string
	envFile    string
	jsonOutput bool
	output     string
	logLevel   string

	cfg *config.Config
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "zencamp [command] [flags]",
		Short: "zencamp - turns new Zendesk tickets into Basecamp todos",
		Long: `zencamp reads recent Zendesk tickets and creates a Basecamp todo, with a
comment linking back to the ticket, for every ticket it has not seen before.

Examples:
  # Synchronize using ./zencamp.toml
  zencamp

  # Show what would be created
  zencamp sync --dry-run

  # Call a single API operation
  zencamp call zendesk show_ticket id=35436

  # List the operations a service supports
  zencamp operations basecamp`,
		PersistentPreRunE: a.preRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, a, false)
		},
	}

	root.SilenceErrors = true
	root.SilenceUsage = true

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", config.DefaultConfigFile, "Path to the configuration file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Path to a .env file with credential overrides")
	root.PersistentFlags().BoolVarP(&a.jsonOutput, "json", "j", false, "Output in JSON format")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", outputText, "Output format: text, json or yaml")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(newVersionCmd(a))
	root.AddCommand(newSyncCmd(a))
	root.AddCommand(newCallCmd(a))
	root.AddCommand(newOperationsCmd(a))
	root.AddCommand(newProcessedCmd(a))
	return root
}

// Execute runs the command line in args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, ErrAlreadyHandled) {
		return 1
	}
	switch a.format() {
	case outputJSON, outputYAML:
		if a.render(stdout, map[string]string{"error": errorText(err)}) == nil {
			return 1
		}
	}
	errorLabel.Fprintf(stderr, "Error: %s\n", errorText(err))
	return 1
}

// preRun loads the configuration for commands that talk to the services.
func (a *app) preRun(cmd *cobra.Command, _ []string) error {
	switch a.output {
	case outputText, outputJSON, outputYAML:
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}
	if cmd.Annotations["config"] == "none" {
		return nil
	}

	cfg, err := config.LoadConfig(a.configFile, a.envFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s not found", a.configFile)
		}
		return err
	}
	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	logtrace.InitLogger(level, cfg.Log.Console)
	a.cfg = cfg
	return nil
}

func (a *app) format() string {
	if a.jsonOutput {
		return outputJSON
	}
	return a.output
}

// render writes v as indented JSON or as YAML, following the output flags.
func (a *app) render(w io.Writer, v any) error {
	if a.format() == outputYAML {
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("formatting YAML output: %w", err)
		}
		_, err = w.Write(out)
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting JSON output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// clientOptions are the transport settings shared by both services.
func (a *app) clientOptions() restclient.Options {
	return restclient.Options{
		Timeout:            a.cfg.Timeout(),
		InsecureSkipVerify: a.cfg.HTTP.InsecureSkipVerify,
	}
}

// errorText includes the causes of application errors.
func errorText(err error) string {
	if ae, ok := err.(apperrors.Error); ok {
		return ae.ErrorAll()
	}
	return err.Error()
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version number of zencamp",
		Annotations: map[string]string{"config": "none"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.format() != outputText {
				return a.render(cmd.OutOrStdout(), map[string]string{
					"version":        Version,
					"client_version": restclient.Version,
					"config_format":  config.ConfigFormatVersion,
				})
			}
			cmd.Printf("zencamp %s\n", Version)
			return nil
		},
	}
}
