package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/fivetwenty-io/portal-client/pkg/portalclient"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		username   string
		password   string
		referer    string
		expiration int
	)

	cmd := &cobra.Command{
		Use:   "login [URL]",
		Short: "Login to a portal",
		Long: `Generate a token for a portal and store it in the configuration.

The password is read from --password, PORTAL_PASSWORD or a prompt and is
never stored. The portal becomes the current portal.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, args, username, password, referer, expiration)
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username for authentication")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password for authentication")
	cmd.Flags().StringVar(&referer, "referer", "", "referer the token is bound to (default is the local host name)")
	cmd.Flags().IntVar(&expiration, "expiration", 0, "token lifetime in minutes (default 60)")

	return cmd
}

func runLogin(cmd *cobra.Command, args []string, username, password, referer string, expiration int) error {
	store, err := defaultStore()
	if err != nil {
		return err
	}

	stored, err := store.Load()
	if err != nil {
		return err
	}

	reader := bufio.NewReader(cmd.InOrStdin())

	portalURL := viper.GetString("url")
	if len(args) > 0 {
		portalURL = args[0]
	}

	if portalURL == "" {
		portalURL = stored.CurrentPortal
	}

	if portalURL == "" {
		portalURL = prompt(cmd, reader, "Portal URL: ")
	}

	if portalURL == "" {
		return ErrNoPortal
	}

	if username == "" {
		if previous := stored.Lookup(portalURL); previous != nil {
			username = previous.Username
		}
	}

	if username == "" {
		username = prompt(cmd, reader, "Username: ")
	}

	if username == "" {
		return ErrUsernameRequired
	}

	if password == "" {
		password = viper.GetString("password")
	}

	if password == "" {
		password, err = readPassword(cmd, reader)
		if err != nil {
			return err
		}
	}

	config := baseConfig(stored, portalURL)
	config.Session = nil
	config.Username = username
	config.Password = password

	if referer != "" {
		config.Referer = referer
	}

	if expiration > 0 {
		config.Expiration = expiration
	}

	ctx := context.Background()

	client, err := newPortalClient(ctx, config, store)
	if err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}

	key := portalclient.SessionKey(portalURL)

	err = store.Update(func(updated *Config) error {
		portalConfig := updated.Portal(key)
		portalConfig.Referer = config.Referer
		portalConfig.Expiration = config.Expiration
		updated.CurrentPortal = key

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Successfully logged in to %s as %s\n", key, username)

	version, err := client.Version(ctx, false)
	if err == nil {
		_, _ = fmt.Fprintf(out, "Portal version: %s\n", version)
	}

	if properties, err := client.Properties(ctx, false); err == nil && client.IsOrg() {
		_, _ = fmt.Fprintf(out, "Organization: %s\n", properties.GetString("name"))
	}

	return nil
}

func prompt(cmd *cobra.Command, reader *bufio.Reader, label string) string {
	_, _ = io.WriteString(cmd.OutOrStdout(), label)

	value, _ := reader.ReadString('\n')

	return strings.TrimSpace(value)
}

// readPassword reads without echo from a terminal, else a line from reader.
func readPassword(cmd *cobra.Command, reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec
	if cmd.InOrStdin() != os.Stdin || !term.IsTerminal(fd) {
		return prompt(cmd, reader, "Password: "), nil
	}

	_, _ = io.WriteString(cmd.OutOrStdout(), "Password: ")

	bytePassword, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	return string(bytePassword), nil
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout from a portal",
		Long:  "Forget the stored token of the current portal, or of the portal given by --url",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := defaultStore()
			if err != nil {
				return err
			}

			stored, err := store.Load()
			if err != nil {
				return err
			}

			portalURL := viper.GetString("url")
			if portalURL == "" {
				portalURL = stored.CurrentPortal
			}

			if portalURL == "" {
				return ErrNoPortal
			}

			err = store.ClearSession(portalURL)
			if err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Successfully logged out")

			return nil
		},
	}
}
