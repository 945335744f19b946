package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/portal-client/pkg/portalclient"
)

// Config represents the CLI configuration.
type Config struct {
	// Portals are keyed by their normalized URL.
	Portals       map[string]*PortalConfig `json:"portals,omitempty"        yaml:"portals,omitempty"`
	CurrentPortal string                   `json:"current_portal,omitempty" yaml:"current_portal,omitempty"`

	// Global settings
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

// PortalConfig represents the stored session of a single portal. Passwords
// are never stored.
type PortalConfig struct {
	URL        string     `json:"url"                   yaml:"url"`
	Username   string     `json:"username,omitempty"    yaml:"username,omitempty"`
	Token      string     `json:"token,omitempty"       yaml:"token,omitempty"`
	Expiration int        `json:"expiration,omitempty"  yaml:"expiration,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"  yaml:"expires_at,omitempty"`
	Referer    string     `json:"referer,omitempty"     yaml:"referer,omitempty"`
	LastLogin  *time.Time `json:"last_login,omitempty"  yaml:"last_login,omitempty"`
}

// Portal returns the entry for url, creating it when missing.
func (c *Config) Portal(url string) *PortalConfig {
	key := portalclient.SessionKey(url)

	if c.Portals == nil {
		c.Portals = make(map[string]*PortalConfig)
	}

	portalConfig, exists := c.Portals[key]
	if !exists {
		portalConfig = &PortalConfig{URL: key}
		c.Portals[key] = portalConfig
	}

	return portalConfig
}

// Lookup returns the entry for url or nil.
func (c *Config) Lookup(url string) *PortalConfig {
	return c.Portals[portalclient.SessionKey(url)]
}

// ConfigPath returns the config file given by --config or PORTAL_CONFIG,
// else $HOME/.portal/config.yml.
func ConfigPath() (string, error) {
	if path := viper.GetString("config"); path != "" {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".portal", "config.yml"), nil
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage portal CLI configuration including stored portals and settings",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current CLI configuration with tokens redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := defaultStore()
			if err != nil {
				return err
			}

			config, err := store.Load()
			if err != nil {
				return err
			}

			redacted := redactConfig(config)

			out := cmd.OutOrStdout()

			switch outputFormat() {
			case OutputFormatJSON:
				return StandardJSONRenderer(out, redacted)
			case OutputFormatYAML:
				return StandardYAMLRenderer(out, redacted)
			default:
				return displayConfigTable(out, redacted)
			}
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	var portalFlag string

	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

Global keys: output, current_portal.
Portal keys (with --portal): username, referer, expiration.`,
		Args: cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := defaultStore()
			if err != nil {
				return err
			}

			return store.Update(func(config *Config) error {
				if portalFlag != "" {
					return setPortalConfigValue(config.Portal(portalFlag), args[0], args[1])
				}

				return setGlobalConfigValue(config, args[0], args[1])
			})
		},
	}

	cmd.Flags().StringVar(&portalFlag, "portal", "", "portal URL the key belongs to")

	return cmd
}

func newConfigUnsetCommand() *cobra.Command {
	var portalFlag string

	cmd := &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Long:  "Remove a configuration value, or a stored portal with --portal and KEY \"portal\"",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := defaultStore()
			if err != nil {
				return err
			}

			return store.Update(func(config *Config) error {
				if portalFlag != "" {
					return unsetPortalConfigValue(config, portalFlag, args[0])
				}

				return setGlobalConfigValue(config, args[0], "")
			})
		},
	}

	cmd.Flags().StringVar(&portalFlag, "portal", "", "portal URL the key belongs to")

	return cmd
}

func setGlobalConfigValue(config *Config, key, value string) error {
	switch key {
	case "output":
		if value != "" && !slices.Contains(outputFormats, value) {
			return fmt.Errorf("%w: %s", ErrInvalidOutputFormat, value)
		}

		config.Output = value
	case "current_portal":
		if value == "" {
			config.CurrentPortal = ""

			return nil
		}

		config.CurrentPortal = config.Portal(value).URL
	default:
		return fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
	}

	return nil
}

func setPortalConfigValue(portalConfig *PortalConfig, key, value string) error {
	switch key {
	case "username":
		portalConfig.Username = value
	case "referer":
		portalConfig.Referer = value
	case "expiration":
		if value == "" {
			portalConfig.Expiration = 0

			return nil
		}

		minutes, err := strconv.Atoi(value)
		if err != nil || minutes < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidExpiration, value)
		}

		portalConfig.Expiration = minutes
	default:
		return fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
	}

	return nil
}

func unsetPortalConfigValue(config *Config, url, key string) error {
	if config.Lookup(url) == nil {
		return fmt.Errorf("%w: %s", ErrPortalNotConfigured, url)
	}

	if key != "portal" {
		return setPortalConfigValue(config.Lookup(url), key, "")
	}

	key = portalclient.SessionKey(url)
	delete(config.Portals, key)

	if config.CurrentPortal == key {
		config.CurrentPortal = ""
	}

	return nil
}

func redactConfig(config *Config) *Config {
	redacted := &Config{
		CurrentPortal: config.CurrentPortal,
		Output:        config.Output,
		Portals:       make(map[string]*PortalConfig, len(config.Portals)),
	}

	for key, portalConfig := range config.Portals {
		copied := *portalConfig
		if copied.Token != "" {
			copied.Token = redactedToken
		}

		redacted.Portals[key] = &copied
	}

	return redacted
}

func displayConfigTable(out io.Writer, config *Config) error {
	table := tablewriter.NewWriter(out)
	table.Header("Property", "Value")

	_ = table.Append("Output", formatConfigValue(config.Output))
	_ = table.Append("Current Portal", formatConfigValue(config.CurrentPortal))

	_, _ = io.WriteString(out, "Global Configuration:\n")

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	if len(config.Portals) == 0 {
		_, _ = io.WriteString(out, "\nNo portals configured. Use 'portal login URL' to add one.\n")

		return nil
	}

	_, _ = io.WriteString(out, "\nConfigured Portals:\n")

	portalTable := tablewriter.NewWriter(out)
	portalTable.Header("URL", "Username", "Token", "Expires", "Referer", "Current")

	keys := make([]string, 0, len(config.Portals))
	for key := range config.Portals {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		portalConfig := config.Portals[key]

		expires := "-"
		if portalConfig.ExpiresAt != nil {
			expires = portalConfig.ExpiresAt.Format(time.RFC3339)
		}

		_ = portalTable.Append(
			key,
			formatConfigValue(portalConfig.Username),
			formatConfigValue(portalConfig.Token),
			expires,
			formatConfigValue(portalConfig.Referer),
			formatCurrentIndicator(key == config.CurrentPortal),
		)
	}

	err = portalTable.Render()
	if err != nil {
		return fmt.Errorf("failed to render portal config table: %w", err)
	}

	return nil
}

func formatConfigValue(value string) string {
	if value == "" {
		return "-"
	}

	return value
}

func formatCurrentIndicator(isCurrent bool) string {
	if isCurrent {
		return "*"
	}

	return ""
}
