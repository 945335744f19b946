package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/portal-client/internal/constants"
	"github.com/fivetwenty-io/portal-client/pkg/logging"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
	"github.com/fivetwenty-io/portal-client/pkg/portalclient"
)

// Output formats.
const (
	OutputFormatTable = "table"
	OutputFormatJSON  = "json"
	OutputFormatYAML  = "yaml"

	defaultJSONIndent = 2
	redactedToken     = "[REDACTED]"
	cliUserAgent      = "portal-cli/" + constants.ClientVersion
)

var outputFormats = []string{OutputFormatTable, OutputFormatJSON, OutputFormatYAML}

// Static errors for err113 compliance.
var (
	ErrNoPortal            = errors.New("no portal selected: use --url or 'portal login URL'")
	ErrPortalNotConfigured = errors.New("portal is not configured")
	ErrUnknownConfigKey    = errors.New("unknown configuration key")
	ErrInvalidOutputFormat = errors.New("invalid output format")
	ErrInvalidExpiration   = errors.New("expiration must be a non-negative number of minutes")
	ErrUsernameRequired    = errors.New("username is required")
	ErrOperationFailed     = errors.New("the portal reported failure")
	ErrInvalidProperty     = errors.New("property must be key=value")
)

// newPortalClient builds the client used by every command.
var newPortalClient = func(ctx context.Context, config *portal.Config, persister portal.SessionPersister) (portal.Client, error) {
	return portalclient.NewWithPersister(ctx, config, persister)
}

func outputFormat() string {
	output := strings.ToLower(viper.GetString("output"))
	if output == "" {
		return OutputFormatTable
	}

	return output
}

func newLogger() portal.Logger {
	level := "warn"
	if viper.GetBool("verbose") {
		level = "debug"
	}

	return logging.NewConsole(os.Stderr, level, viper.GetString("log_format") == OutputFormatJSON)
}

// baseConfig returns the client configuration for portalURL with the stored
// session of that portal, if any. PORTAL_PASSWORD, when set, allows the
// stored token to be renewed.
func baseConfig(stored *Config, portalURL string) *portal.Config {
	config := &portal.Config{
		URL:         portalURL,
		Logger:      newLogger(),
		Debug:       viper.GetBool("verbose"),
		UserAgent:   cliUserAgent,
		HTTPTimeout: constants.DefaultHTTPTimeout,
		RetryMax:    constants.DefaultRetryMax,
	}

	portalConfig := stored.Lookup(portalURL)
	if portalConfig == nil {
		return config
	}

	config.Referer = portalConfig.Referer
	config.Expiration = portalConfig.Expiration

	if portalConfig.Token != "" {
		state := &portal.SessionState{
			Username:   portalConfig.Username,
			Token:      portalConfig.Token,
			Expiration: portalConfig.Expiration,
			Password:   viper.GetString("password"),
		}

		if portalConfig.ExpiresAt != nil {
			state.ExpiresAt = *portalConfig.ExpiresAt
		}

		config.Session = state
	}

	return config
}

// CreateClient builds a client for the portal given by --url or the current
// portal, adopting its stored session.
func CreateClient(ctx context.Context) (portal.Client, error) {
	store, err := defaultStore()
	if err != nil {
		return nil, err
	}

	stored, err := store.Load()
	if err != nil {
		return nil, err
	}

	portalURL := viper.GetString("url")
	if portalURL == "" {
		portalURL = stored.CurrentPortal
	}

	if portalURL == "" {
		return nil, ErrNoPortal
	}

	client, err := newPortalClient(ctx, baseConfig(stored, portalURL), store)
	if err != nil {
		if portal.IsInvalidToken(err) || errors.Is(err, portal.ErrNoCredentials) {
			return nil, fmt.Errorf("session expired, run 'portal login': %w", err)
		}

		return nil, fmt.Errorf("failed to connect to portal: %w", err)
	}

	return client, nil
}

// StandardJSONRenderer writes data as indented JSON.
func StandardJSONRenderer[T any](out io.Writer, data T) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", strings.Repeat(" ", defaultJSONIndent))

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to JSON: %w", err)
	}

	return nil
}

// StandardYAMLRenderer writes data as YAML.
func StandardYAMLRenderer[T any](out io.Writer, data T) error {
	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(defaultJSONIndent)

	err := encoder.Encode(plain(data))
	if err != nil {
		return fmt.Errorf("encoding data to YAML: %w", err)
	}

	return encoder.Close()
}

// plain replaces json.Number values so that YAML shows numbers unquoted.
func plain(value interface{}) interface{} {
	switch typed := value.(type) {
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return n
		}

		if f, err := typed.Float64(); err == nil {
			return f
		}

		return typed.String()
	case portal.Object:
		return plain(map[string]interface{}(typed))
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for key, item := range typed {
			out[key] = plain(item)
		}

		return out
	case []portal.Object:
		out := make([]interface{}, len(typed))
		for i, item := range typed {
			out[i] = plain(item)
		}

		return out
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, item := range typed {
			out[i] = plain(item)
		}

		return out
	default:
		return value
	}
}

// renderObjects writes objects in the selected format. Tables show columns
// in order; empty is printed instead of an empty table.
func renderObjects(out io.Writer, objects []portal.Object, columns []string, empty string) error {
	switch outputFormat() {
	case OutputFormatJSON:
		return StandardJSONRenderer(out, objects)
	case OutputFormatYAML:
		return StandardYAMLRenderer(out, objects)
	}

	if len(objects) == 0 {
		_, _ = fmt.Fprintln(out, empty)

		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header(columnHeaders(columns)...)

	for _, object := range objects {
		row := make([]interface{}, len(columns))
		for i, column := range columns {
			row[i] = displayValue(object[column])
		}

		_ = table.Append(row...)
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	_, _ = fmt.Fprintf(out, "\n%d result(s)\n", len(objects))

	return nil
}

// renderObject writes a single object. Tables show the given keys, or every
// key when none are given.
func renderObject(out io.Writer, object portal.Object, keys ...string) error {
	switch outputFormat() {
	case OutputFormatJSON:
		return StandardJSONRenderer(out, object)
	case OutputFormatYAML:
		return StandardYAMLRenderer(out, object)
	}

	if len(keys) == 0 {
		keys = object.Keys()
	}

	table := tablewriter.NewWriter(out)
	table.Header("Property", "Value")

	for _, key := range keys {
		if !object.Has(key) {
			continue
		}

		_ = table.Append(key, displayValue(object[key]))
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// renderResult reports the outcome of a boolean operation.
func renderResult(out io.Writer, ok bool, message string) error {
	switch outputFormat() {
	case OutputFormatJSON:
		return StandardJSONRenderer(out, map[string]bool{"success": ok})
	case OutputFormatYAML:
		return StandardYAMLRenderer(out, map[string]bool{"success": ok})
	}

	if !ok {
		return fmt.Errorf("%s: %w", message, ErrOperationFailed)
	}

	_, _ = fmt.Fprintln(out, message)

	return nil
}

func columnHeaders(columns []string) []interface{} {
	caser := cases.Title(language.English)

	headers := make([]interface{}, len(columns))
	for i, column := range columns {
		headers[i] = caser.String(column)
	}

	return headers
}

func displayValue(value interface{}) string {
	switch typed := value.(type) {
	case nil:
		return "-"
	case map[string]interface{}, portal.Object:
		data, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}

		return string(data)
	case []interface{}:
		parts := make([]string, len(typed))
		for i, item := range typed {
			parts[i] = displayValue(item)
		}

		return strings.Join(parts, ", ")
	default:
		return portal.Stringify(typed)
	}
}

// searchFlags are shared by the search commands.
type searchFlags struct {
	maxResults int
	scope      string
	sortField  string
	sortOrder  string
	fields     []string
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.maxResults, "max", portal.DefaultMaxResults, "maximum number of results")
	cmd.Flags().StringVar(&f.scope, "scope", portal.SearchScopeDefault, "search scope (default, org, public)")
	cmd.Flags().StringVar(&f.sortField, "sort-field", "", "field to sort by")
	cmd.Flags().StringVar(&f.sortOrder, "sort-order", "", "sort order (asc, desc)")
	cmd.Flags().StringSliceVar(&f.fields, "fields", nil, "only return these fields")
}

func (f *searchFlags) options() *portal.SearchOptions {
	return &portal.SearchOptions{
		MaxResults: f.maxResults,
		Scope:      f.scope,
		SortField:  f.sortField,
		SortOrder:  f.sortOrder,
		Fields:     f.fields,
	}
}

func queryArg(args []string) string {
	return strings.Join(args, " ")
}
