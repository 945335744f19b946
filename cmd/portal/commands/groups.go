package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/portal-client/internal/constants"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

var groupColumns = []string{"id", "title", "owner", "access"}

// NewGroupsCommand creates the groups command group.
func NewGroupsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "groups",
		Aliases: []string{"group"},
		Short:   "Manage groups",
		Long:    "Search, create, update and delete portal groups and their members",
	}

	cmd.AddCommand(newGroupsSearchCommand())
	cmd.AddCommand(newGroupsGetCommand())
	cmd.AddCommand(newGroupsCreateCommand())
	cmd.AddCommand(newGroupsUpdateCommand())
	cmd.AddCommand(newGroupsDeleteCommand())
	cmd.AddCommand(newGroupsMembersCommand())
	cmd.AddCommand(newGroupsAddUsersCommand())
	cmd.AddCommand(newGroupsRemoveUsersCommand())
	cmd.AddCommand(newGroupsInviteCommand())
	cmd.AddCommand(newGroupsReassignCommand())
	cmd.AddCommand(newGroupsThumbnailCommand())

	return cmd
}

func newGroupsSearchCommand() *cobra.Command {
	flags := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search groups",
		Long:  "Search groups with the portal query syntax, e.g. 'owner:jdoe'",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			groups, err := client.Groups().Search(ctx, queryArg(args), flags.options())
			if err != nil {
				return fmt.Errorf("failed to search groups: %w", err)
			}

			return renderObjects(cmd.OutOrStdout(), groups, groupColumns, "No groups found")
		},
	}

	flags.register(cmd)

	return cmd
}

func newGroupsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get GROUP_ID",
		Short: "Get group details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			group, err := client.Groups().Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get group: %w", err)
			}

			return renderObject(cmd.OutOrStdout(), group,
				"id", "title", "owner", "access", "snippet", "tags", "isInvitationOnly", "isViewOnly", "created", "modified")
		},
	}
}

func newGroupsCreateCommand() *cobra.Command {
	request := &portal.GroupCreateRequest{}

	cmd := &cobra.Command{
		Use:   "create TITLE",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			request.Title = args[0]

			groupID, err := client.Groups().Create(ctx, request)
			if err != nil {
				return fmt.Errorf("failed to create group: %w", err)
			}

			return renderObject(cmd.OutOrStdout(), portal.Object{"id": groupID, "title": request.Title})
		},
	}

	cmd.Flags().StringSliceVar(&request.Tags, "tags", nil, "group tags")
	cmd.Flags().StringVar(&request.Description, "description", "", "group description")
	cmd.Flags().StringVar(&request.Snippet, "snippet", "", "short summary")
	cmd.Flags().StringVar(&request.Access, "access", portal.DefaultGroupAccess, "access (private, org, public)")
	cmd.Flags().BoolVar(&request.IsInvitationOnly, "invitation-only", false, "users can only join by invitation")
	cmd.Flags().BoolVar(&request.IsViewOnly, "view-only", false, "members cannot share content to the group")
	cmd.Flags().StringVar(&request.Thumbnail, "thumbnail", "", "path or URL of the group image")

	return cmd
}

func newGroupsUpdateCommand() *cobra.Command {
	var (
		request        portal.GroupUpdateRequest
		invitationOnly bool
		viewOnly       bool
	)

	cmd := &cobra.Command{
		Use:   "update GROUP_ID",
		Short: "Update a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("invitation-only") {
				request.IsInvitationOnly = &invitationOnly
			}

			if cmd.Flags().Changed("view-only") {
				request.IsViewOnly = &viewOnly
			}

			ok, err := client.Groups().Update(ctx, args[0], &request)
			if err != nil {
				return fmt.Errorf("failed to update group: %w", err)
			}

			return renderResult(cmd.OutOrStdout(), ok, "Group updated")
		},
	}

	cmd.Flags().StringVar(&request.Title, "title", "", "new title")
	cmd.Flags().StringSliceVar(&request.Tags, "tags", nil, "new tags")
	cmd.Flags().StringVar(&request.Description, "description", "", "new description")
	cmd.Flags().StringVar(&request.Snippet, "snippet", "", "new summary")
	cmd.Flags().StringVar(&request.Access, "access", "", "new access (private, org, public)")
	cmd.Flags().BoolVar(&invitationOnly, "invitation-only", false, "users can only join by invitation")
	cmd.Flags().BoolVar(&viewOnly, "view-only", false, "members cannot share content to the group")
	cmd.Flags().StringVar(&request.Thumbnail, "thumbnail", "", "path or URL of the group image")

	return cmd
}

func newGroupsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete GROUP_ID",
		Short: "Delete a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			ok, err := client.Groups().Delete(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to delete group: %w", err)
			}

			return renderResult(cmd.OutOrStdout(), ok, "Group deleted")
		},
	}
}

func newGroupsMembersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "members GROUP_ID",
		Short: "List group members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			members, err := client.Groups().Members(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get group members: %w", err)
			}

			if outputFormat() != OutputFormatTable {
				return renderObject(cmd.OutOrStdout(), members)
			}

			rows := memberRows(members)

			return renderObjects(cmd.OutOrStdout(), rows, []string{"username", "role"}, "No members found")
		},
	}
}

// memberRows flattens owner, admins and users into one row per member.
func memberRows(members portal.Object) []portal.Object {
	var rows []portal.Object

	if owner := members.GetString("owner"); owner != "" {
		rows = append(rows, portal.Object{"username": owner, "role": "owner"})
	}

	for _, admin := range members.GetStrings("admins") {
		if admin == members.GetString("owner") {
			continue
		}

		rows = append(rows, portal.Object{"username": admin, "role": "admin"})
	}

	for _, user := range members.GetStrings("users") {
		rows = append(rows, portal.Object{"username": user, "role": "member"})
	}

	return rows
}

func newGroupsAddUsersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add-users GROUP_ID USERNAME...",
		Short: "Add users to a group",
		Args:  cobra.MinimumNArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			result, err := client.Groups().AddUsers(ctx, args[0], args[1:])
			if err != nil {
				return fmt.Errorf("failed to add users: %w", err)
			}

			return renderNotAdded(cmd, result, "Users added")
		},
	}
}

func newGroupsRemoveUsersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-users GROUP_ID USERNAME...",
		Short: "Remove users from a group",
		Args:  cobra.MinimumNArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			result, err := client.Groups().RemoveUsers(ctx, args[0], args[1:])
			if err != nil {
				return fmt.Errorf("failed to remove users: %w", err)
			}

			return renderNotAdded(cmd, result, "Users removed")
		},
	}
}

// renderNotAdded reports the users the portal could not add or remove.
func renderNotAdded(cmd *cobra.Command, result portal.Object, message string) error {
	out := cmd.OutOrStdout()

	if outputFormat() != OutputFormatTable {
		return renderObject(out, result)
	}

	var failed []string
	for _, key := range []string{"notAdded", "notRemoved"} {
		failed = append(failed, result.GetStrings(key)...)
	}

	if len(failed) > 0 {
		_, _ = fmt.Fprintf(out, "Not processed: %s\n", displayValue(toInterfaces(failed)))

		return nil
	}

	_, _ = fmt.Fprintln(out, message)

	return nil
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, value := range values {
		out[i] = value
	}

	return out
}

func newGroupsInviteCommand() *cobra.Command {
	opts := &portal.GroupInviteOptions{}

	cmd := &cobra.Command{
		Use:   "invite GROUP_ID USERNAME...",
		Short: "Invite users to a group",
		Args:  cobra.MinimumNArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			ok, err := client.Groups().Invite(ctx, args[0], args[1:], opts)
			if err != nil {
				return fmt.Errorf("failed to invite users: %w", err)
			}

			return renderResult(cmd.OutOrStdout(), ok, "Users invited")
		},
	}

	cmd.Flags().StringVar(&opts.Role, "role", portal.DefaultInviteRole, "role (group_member, group_admin)")
	cmd.Flags().IntVar(&opts.Expiration, "expiration", portal.DefaultInviteExpiration, "invitation lifetime in minutes")

	return cmd
}

func newGroupsReassignCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reassign GROUP_ID NEW_OWNER",
		Short: "Transfer group ownership",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			ok, err := client.Groups().Reassign(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to reassign group: %w", err)
			}

			return renderResult(cmd.OutOrStdout(), ok, "Group reassigned")
		},
	}
}

func newGroupsThumbnailCommand() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "thumbnail GROUP_ID",
		Short: "Download the group image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			data, err := client.Groups().Thumbnail(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get group thumbnail: %w", err)
			}

			if outputFile == "" {
				_, err = cmd.OutOrStdout().Write(data)

				return err
			}

			err = os.WriteFile(outputFile, data, constants.ConfigFilePerm)
			if err != nil {
				return fmt.Errorf("failed to write thumbnail: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved %d bytes to %s\n", len(data), outputFile)

			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "file", "f", "", "write the image to this file instead of stdout")

	return cmd
}
