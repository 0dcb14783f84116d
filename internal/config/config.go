// Package config loads the zencamp configuration file. The file is TOML;
// credentials may also come from the environment or from a .env file so
// they need not be stored next to the rest of the settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/zencamp/zencamp/internal/common/apperrors"
)

// ConfigFormatVersion is the current version of the configuration file format.
const ConfigFormatVersion = "0.1.0"

// supportedFormats accepts any 0.1.x configuration file.
const supportedFormats = "~0.1"

// DefaultConfigFile is read when no file is given on the command line.
const DefaultConfigFile = "zencamp.toml"

var (
	// ErrConfig is the base error for configuration problems.
	ErrConfig apperrors.Error = apperrors.New("configuration error")

	// ErrInvalidConfig is returned when validation fails.
	ErrInvalidConfig apperrors.Error = ErrConfig.New("invalid configuration")
)

// ZendeskConfig holds the helpdesk account settings.
type ZendeskConfig struct {
	Subdomain   string `toml:"subdomain" validate:"required"` // e.g. acme.zendesk.com
	Username    string `toml:"username" validate:"required"`
	Password    string `toml:"password" validate:"required"` // password or API token
	UseAPIToken bool   `toml:"use_api_token"`
}

// BasecampConfig holds the project-management account settings and where
// todos are created.
type BasecampConfig struct {
	BasecampID   string `toml:"basecamp_id" validate:"required"`
	Username     string `toml:"username" validate:"required"`
	Password     string `toml:"password" validate:"required"`
	UseAPIToken  bool   `toml:"use_api_token"`
	Project      string `toml:"project" validate:"required"`   // project name
	TodoList     string `toml:"todo_list" validate:"required"` // todo list name template
	AutoAssignTo int64  `toml:"auto_assign_to" validate:"gte=0"`
}

// SyncConfig selects which tickets are synchronized.
type SyncConfig struct {
	Statuses      []string `toml:"statuses" validate:"dive,required"`
	Groups        []string `toml:"groups" validate:"dive,required"` // group ids or names; empty means all
	Pages         int      `toml:"pages" validate:"gte=1,lte=100"`
	FetchAttempts uint     `toml:"fetch_attempts" validate:"gte=1,lte=10"`
}

// DedupConfig selects where processed tickets are recorded.
type DedupConfig struct {
	Backend string `toml:"backend" validate:"oneof=jsonl sqlite"`
	Path    string `toml:"path" validate:"required"`
}

// HTTPConfig tunes the transport shared by both clients.
type HTTPConfig struct {
	Timeout            string `toml:"timeout"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level   string `toml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Console bool   `toml:"console"`
}

// Config holds all configuration parameters.
type Config struct {
	FormatVersion string `toml:"format_version" validate:"required"`

	Zendesk  ZendeskConfig  `toml:"zendesk"`
	Basecamp BasecampConfig `toml:"basecamp"`
	Sync     SyncConfig     `toml:"sync"`
	Dedup    DedupConfig    `toml:"dedup"`
	HTTP     HTTPConfig     `toml:"http"`
	Log      LogConfig      `toml:"log"`

	timeout time.Duration
	todo    *template.Template
}

// Default returns a configuration with every optional setting filled in.
func Default() *Config {
	return &Config{
		FormatVersion: ConfigFormatVersion,
		Sync: SyncConfig{
			Statuses:      []string{"new", "open"},
			Pages:         1,
			FetchAttempts: 3,
		},
		Dedup: DedupConfig{
			Backend: "jsonl",
			Path:    "processed.jsonl",
		},
		HTTP: HTTPConfig{Timeout: "30s"},
		Log:  LogConfig{Level: "info"},
	}
}

// LoadConfig reads filename on top of Default, loads envFile (when it exists)
// into the environment, applies ZENCAMP_* environment overrides and validates
// the result. A relative dedup path is resolved against the directory of
// filename.
func LoadConfig(filename, envFile string) (*Config, error) {
	if filename == "" {
		return nil, ErrConfig.Msg("config filename is required")
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, ErrConfig.MsgErr("error reading config file", err)
	}

	cfg := Default()
	if _, err := toml.Decode(string(content), cfg); err != nil {
		return nil, ErrConfig.MsgErr("error parsing config file", err)
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, ErrConfig.MsgErr("error loading env file", err)
		}
	}
	applyEnv(cfg)

	if cfg.Dedup.Path != "" && !filepath.IsAbs(cfg.Dedup.Path) {
		cfg.Dedup.Path = filepath.Join(filepath.Dir(filename), cfg.Dedup.Path)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOverrides maps environment variables to the settings they replace.
var envOverrides = []struct {
	name string
	set  func(c *Config, v string)
}{
	{"ZENCAMP_ZENDESK_SUBDOMAIN", func(c *Config, v string) { c.Zendesk.Subdomain = v }},
	{"ZENCAMP_ZENDESK_USERNAME", func(c *Config, v string) { c.Zendesk.Username = v }},
	{"ZENCAMP_ZENDESK_PASSWORD", func(c *Config, v string) { c.Zendesk.Password = v }},
	{"ZENCAMP_BASECAMP_ID", func(c *Config, v string) { c.Basecamp.BasecampID = v }},
	{"ZENCAMP_BASECAMP_USERNAME", func(c *Config, v string) { c.Basecamp.Username = v }},
	{"ZENCAMP_BASECAMP_PASSWORD", func(c *Config, v string) { c.Basecamp.Password = v }},
	{"ZENCAMP_LOG_LEVEL", func(c *Config, v string) { c.Log.Level = v }},
}

func applyEnv(cfg *Config) {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.name); ok && v != "" {
			o.set(cfg, v)
		}
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateConfig checks that all required values are present and well formed,
// and prepares the derived timeout and todo list template.
func ValidateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, describe(e))
			}
			return ErrInvalidConfig.Msg(strings.Join(msgs, "; "))
		}
		return ErrInvalidConfig.Err(err)
	}

	v, err := semver.NewVersion(cfg.FormatVersion)
	if err != nil {
		return ErrInvalidConfig.MsgErr(fmt.Sprintf("invalid format_version %q", cfg.FormatVersion), err)
	}
	constraint, _ := semver.NewConstraint(supportedFormats)
	if !constraint.Check(v) {
		return ErrInvalidConfig.Msg(fmt.Sprintf("unsupported config file format version: %s", cfg.FormatVersion))
	}

	cfg.timeout = 0
	if cfg.HTTP.Timeout != "" {
		d, err := time.ParseDuration(cfg.HTTP.Timeout)
		if err != nil || d < 0 {
			return ErrInvalidConfig.Msg(fmt.Sprintf("invalid http.timeout %q", cfg.HTTP.Timeout))
		}
		cfg.timeout = d
	}

	tmpl, err := template.New("todo_list").Option("missingkey=error").Parse(cfg.Basecamp.TodoList)
	if err != nil {
		return ErrInvalidConfig.MsgErr("invalid basecamp.todo_list template", err)
	}
	cfg.todo = tmpl
	if _, err := cfg.TodoListName(time.Now()); err != nil {
		return ErrInvalidConfig.MsgErr("invalid basecamp.todo_list template", err)
	}
	return nil
}

func describe(e validator.FieldError) string {
	field := e.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, e.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s must be %s %s", field, map[string]string{"gte": ">=", "lte": "<="}[e.Tag()], e.Param())
	}
	return fmt.Sprintf("%s failed %q validation", field, e.Tag())
}

// Timeout returns the parsed http.timeout; zero means the client default.
func (c *Config) Timeout() time.Duration {
	return c.timeout
}

// TodoListName renders the basecamp.todo_list template for t. The template
// sees .Year, .Month and .Day (zero padded), .Week (ISO week, zero padded)
// and .MonthName.
func (c *Config) TodoListName(t time.Time) (string, error) {
	if c.todo == nil {
		return c.Basecamp.TodoList, nil
	}
	year, week := t.ISOWeek()
	data := map[string]string{
		"Year":      strconv.Itoa(t.Year()),
		"Month":     fmt.Sprintf("%02d", int(t.Month())),
		"MonthName": t.Month().String(),
		"Day":       fmt.Sprintf("%02d", t.Day()),
		"Week":      fmt.Sprintf("%02d", week),
		"WeekYear":  strconv.Itoa(year),
	}
	var b strings.Builder
	if err := c.todo.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
