package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

// NewInfoCommand creates the info command.
func NewInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Display portal information",
		Long:  "Display the version, capabilities and main properties of the portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			properties, err := client.Properties(ctx, false)
			if err != nil {
				return fmt.Errorf("failed to get portal properties: %w", err)
			}

			version, err := client.Version(ctx, false)
			if err != nil {
				return fmt.Errorf("failed to get portal version: %w", err)
			}

			out := cmd.OutOrStdout()

			switch outputFormat() {
			case OutputFormatJSON, OutputFormatYAML:
				info := portal.Object{
					"version":      version,
					"multitenant":  client.IsMultitenant(),
					"online":       client.IsArcGISOnline(),
					"organization": client.IsOrg(),
					"subscription": client.IsSubscription(),
					"allSSL":       client.IsAllSSL(),
					"loggedIn":     client.IsLoggedIn(),
					"properties":   properties,
				}

				if outputFormat() == OutputFormatJSON {
					return StandardJSONRenderer(out, info)
				}

				return StandardYAMLRenderer(out, info)
			}

			table := tablewriter.NewWriter(out)
			table.Header("Property", "Value")

			_ = table.Append("Name", displayValue(properties["name"]))
			_ = table.Append("Portal Name", displayValue(properties["portalName"]))
			_ = table.Append("Version", version)
			_ = table.Append("Mode", displayValue(properties["portalMode"]))
			_ = table.Append("Organization", strconv.FormatBool(client.IsOrg()))
			_ = table.Append("Subscription", strconv.FormatBool(client.IsSubscription()))
			_ = table.Append("All SSL", strconv.FormatBool(client.IsAllSSL()))

			if user := client.LoggedInUser(); user != nil {
				_ = table.Append("User", user.GetString("username"))
				_ = table.Append("Role", displayValue(user["role"]))
			}

			err = table.Render()
			if err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}
