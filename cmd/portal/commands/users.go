package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

var userColumns = []string{"username", "fullName", "role", "access"}

// NewUsersCommand creates the users command group.
func NewUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage users",
		Long:    "Search, update and delete portal users",
	}

	cmd.AddCommand(newUsersSearchCommand())
	cmd.AddCommand(newUsersGetCommand())
	cmd.AddCommand(newUsersOrgCommand())
	cmd.AddCommand(newUsersInvitationsCommand())
	cmd.AddCommand(newUsersUpdateCommand())
	cmd.AddCommand(newUsersRoleCommand())
	cmd.AddCommand(newUsersReassignCommand())
	cmd.AddCommand(newUsersDeleteCommand())

	return cmd
}

func newUsersSearchCommand() *cobra.Command {
	flags := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search users",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			users, err := client.Users().Search(ctx, queryArg(args), flags.options())
			if err != nil {
				return fmt.Errorf("failed to search users: %w", err)
			}

			return renderObjects(cmd.OutOrStdout(), users, userColumns, "No users found")
		},
	}

	flags.register(cmd)

	return cmd
}

func newUsersGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [USERNAME]",
		Short: "Get a user profile",
		Long:  "Get the profile of USERNAME, or of the logged-in user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			username := client.Session().Username
			if len(args) > 0 {
				username = args[0]
			}

			if username == "" {
				return ErrUsernameRequired
			}

			user, err := client.Users().Get(ctx, username)
			if err != nil {
				return fmt.Errorf("failed to get user: %w", err)
			}

			return renderObject(cmd.OutOrStdout(), user,
				"username", "fullName", "email", "role", "access", "orgId", "tags", "created", "modified")
		},
	}
}

func newUsersOrgCommand() *cobra.Command {
	var maxUsers int

	cmd := &cobra.Command{
		Use:   "org",
		Short: "List the users of the organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			users, err := client.Users().ListOrg(ctx, maxUsers)
			if err != nil {
				return fmt.Errorf("failed to list organization users: %w", err)
			}

			return renderObjects(cmd.OutOrStdout(), users, userColumns, "No users found")
		},
	}

	cmd.Flags().IntVar(&maxUsers, "max", portal.DefaultMaxResults, "maximum number of users")

	return cmd
}

func newUsersInvitationsCommand() *cobra.Command {
	var maxInvitations int

	cmd := &cobra.Command{
		Use:   "invitations",
		Short: "List pending invitations of the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			invitations, err := client.Users().ListInvitations(ctx, maxInvitations)
			if err != nil {
				return fmt.Errorf("failed to list invitations: %w", err)
			}

			return renderObjects(cmd.OutOrStdout(), invitations,
				[]string{"id", "groupId", "role", "fromUsername"}, "No invitations found")
		},
	}

	cmd.Flags().IntVar(&maxInvitations, "max", portal.DefaultMaxResults, "maximum number of invitations")

	return cmd
}

func newUsersUpdateCommand() *cobra.Command {
	request := &portal.UserUpdateRequest{}

	cmd := &cobra.Command{
		Use:   "update USERNAME",
		Short: "Update a user profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			ok, err := client.Users().Update(ctx, args[0], request)
			if err != nil {
				return fmt.Errorf("failed to update user: %w", err)
			}

			return renderResult(cmd.OutOrStdout(), ok, "User updated")
		},
	}

	cmd.Flags().StringVar(&request.FullName, "full-name", "", "new full name")
	cmd.Flags().StringVar(&request.Email, "email", "", "new email address")
	cmd.Flags().StringVar(&request.Description, "description", "", "new description")
	cmd.Flags().StringSliceVar(&request.Tags, "tags", nil, "new tags")
	cmd.Flags().StringVar(&request.Access, "access", "", "profile access (private, org, public)")
	cmd.Flags().StringVar(&request.Culture, "culture", "", "culture code, e.g. en-us")
	cmd.Flags().StringVar(&request.Region, "region", "", "region code")
	cmd.Flags().StringVar(&request.Thumbnail, "thumbnail", "", "path or URL of the profile image")

	return cmd
}

func newUsersRoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "role USERNAME ROLE",
		Short: "Change the organization role of a user",
		Long:  "Change the role of a user to org_user, org_publisher, org_admin or a custom role id",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			ok, err := client.Users().UpdateRole(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to update role: %w", err)
			}

			return renderResult(cmd.OutOrStdout(), ok, "Role updated")
		},
	}
}

func newUsersReassignCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reassign USERNAME TARGET_USERNAME",
		Short: "Transfer all items and groups of a user",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			ok, err := client.Users().Reassign(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to reassign user content: %w", err)
			}

			return renderResult(cmd.OutOrStdout(), ok, "Content reassigned")
		},
	}
}

func newUsersDeleteCommand() *cobra.Command {
	opts := &portal.UserDeleteOptions{}

	cmd := &cobra.Command{
		Use:   "delete USERNAME",
		Short: "Delete a user",
		Long: `Delete a user. With --cascade the user's items and groups are deleted
first, or transferred when --reassign-to is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			ok, err := client.Users().Delete(ctx, args[0], opts)
			if err != nil {
				return fmt.Errorf("failed to delete user: %w", err)
			}

			return renderResult(cmd.OutOrStdout(), ok, "User deleted")
		},
	}

	cmd.Flags().BoolVar(&opts.Cascade, "cascade", false, "delete or transfer the user's content first")
	cmd.Flags().StringVar(&opts.ReassignTo, "reassign-to", "", "new owner of the user's content")

	return cmd
}
