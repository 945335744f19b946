package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

// NewFoldersCommand creates the folders command group.
func NewFoldersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "folders",
		Aliases: []string{"folder"},
		Short:   "Manage content folders",
		Long:    "List, create and delete the content folders of a user",
	}

	cmd.PersistentFlags().String("owner", "", "folder owner (default is the logged-in user)")

	cmd.AddCommand(newFoldersListCommand())
	cmd.AddCommand(newFoldersCreateCommand())
	cmd.AddCommand(newFoldersDeleteCommand())

	return cmd
}

// folderOwner returns --owner, else the user of the stored session.
func folderOwner(cmd *cobra.Command, client portal.Client) (string, error) {
	owner, _ := cmd.Flags().GetString("owner")
	if owner == "" {
		owner = client.Session().Username
	}

	if owner == "" {
		return "", ErrUsernameRequired
	}

	return owner, nil
}

func newFoldersListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			owner, err := folderOwner(cmd, client)
			if err != nil {
				return err
			}

			folders, err := client.Folders().List(ctx, owner)
			if err != nil {
				return fmt.Errorf("failed to list folders: %w", err)
			}

			return renderObjects(cmd.OutOrStdout(), folders, []string{"id", "title", "username"}, "No folders found")
		},
	}
}

func newFoldersCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create TITLE",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			owner, err := folderOwner(cmd, client)
			if err != nil {
				return err
			}

			folder, err := client.Folders().Create(ctx, owner, args[0])
			if err != nil {
				return fmt.Errorf("failed to create folder: %w", err)
			}

			return renderObject(cmd.OutOrStdout(), folder, "id", "title", "username")
		},
	}
}

func newFoldersDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete FOLDER",
		Short: "Delete a folder",
		Long:  "Delete a folder given by id or title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			owner, err := folderOwner(cmd, client)
			if err != nil {
				return err
			}

			folderID, err := client.Folders().ID(ctx, owner, args[0])
			if errors.Is(err, portal.ErrFolderNotFound) {
				folderID, err = args[0], nil
			}

			if err != nil {
				return fmt.Errorf("failed to resolve folder: %w", err)
			}

			ok, err := client.Folders().Delete(ctx, owner, folderID)
			if err != nil {
				return fmt.Errorf("failed to delete folder: %w", err)
			}

			return renderResult(cmd.OutOrStdout(), ok, "Folder deleted")
		},
	}
}
