package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

var itemColumns = []string{"id", "title", "type", "owner", "access"}

// NewItemsCommand creates the items command group.
func NewItemsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"item", "content"},
		Short:   "Manage content items",
		Long:    "Search, add, transfer and delete portal items",
	}

	cmd.AddCommand(newItemsSearchCommand())
	cmd.AddCommand(newItemsGetCommand())
	cmd.AddCommand(newItemsDataCommand())
	cmd.AddCommand(newItemsAddCommand())
	cmd.AddCommand(newItemsReassignCommand())
	cmd.AddCommand(newItemsDeleteCommand())

	return cmd
}

func newItemsSearchCommand() *cobra.Command {
	var bbox string

	flags := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search items",
		Long:  "Search items with the portal query syntax, e.g. 'type:\"Web Map\" owner:jdoe'",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			opts := flags.options()
			opts.BBox = bbox

			items, err := client.Items().Search(ctx, queryArg(args), opts)
			if err != nil {
				return fmt.Errorf("failed to search items: %w", err)
			}

			return renderObjects(cmd.OutOrStdout(), items, itemColumns, "No items found")
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&bbox, "bbox", "", "extent filter xmin,ymin,xmax,ymax")

	return cmd
}

func newItemsGetCommand() *cobra.Command {
	var (
		owner   string
		folder  string
		sharing bool
	)

	cmd := &cobra.Command{
		Use:   "get ITEM_ID",
		Short: "Get item details",
		Long:  "Get an item. With --sharing the item is read through its owner's content and shows sharing and folder.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if !sharing {
				item, err := client.Items().Get(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to get item: %w", err)
				}

				return renderObject(out, item, "id", "title", "type", "owner", "access", "url", "tags", "created", "modified")
			}

			userItem, err := client.Items().UserItem(ctx, args[0], owner, folder)
			if err != nil {
				return fmt.Errorf("failed to get item: %w", err)
			}

			if outputFormat() != OutputFormatTable {
				return renderObject(out, portal.Object{
					"item":     userItem.Item,
					"sharing":  userItem.Sharing,
					"folderId": userItem.FolderID,
				})
			}

			summary := userItem.Item.Project("id", "title", "type", "owner")
			summary["folderId"] = userItem.FolderID
			summary["access"] = userItem.Sharing["access"]
			summary["groups"] = userItem.Sharing["groups"]

			return renderObject(out, summary, "id", "title", "type", "owner", "folderId", "access", "groups")
		},
	}

	cmd.Flags().BoolVar(&sharing, "sharing", false, "include sharing and folder information")
	cmd.Flags().StringVar(&owner, "owner", "", "item owner when known")
	cmd.Flags().StringVar(&folder, "folder", "", "folder id when known")

	return cmd
}

func newItemsDataCommand() *cobra.Command {
	var destination string

	cmd := &cobra.Command{
		Use:   "data ITEM_ID",
		Short: "Download the data file of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			if destination == "" {
				destination = args[0]
			}

			path, err := client.Items().Data(ctx, args[0], destination)
			if err != nil {
				return fmt.Errorf("failed to download item data: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved item data to %s\n", path)

			return nil
		},
	}

	cmd.Flags().StringVarP(&destination, "file", "f", "", "destination file (default is the item id)")

	return cmd
}

func newItemsAddCommand() *cobra.Command {
	var (
		title      string
		itemType   string
		tags       []string
		properties []string
	)

	request := &portal.ItemCreateRequest{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item",
		Long: `Add an item from a local file or URL.

Additional item properties are given as --property key=value.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			props, err := parseProperties(properties)
			if err != nil {
				return err
			}

			props["title"] = title
			props["type"] = itemType

			if len(tags) > 0 {
				props["tags"] = strings.Join(tags, ",")
			}

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			request.Properties = props

			itemID, err := client.Items().Add(ctx, request)
			if err != nil {
				return fmt.Errorf("failed to add item: %w", err)
			}

			return renderObject(cmd.OutOrStdout(), portal.Object{"id": itemID, "title": title})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "item title")
	cmd.Flags().StringVar(&itemType, "type", "", "item type, e.g. 'Web Map' or 'Shapefile'")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "item tags")
	cmd.Flags().StringArrayVar(&properties, "property", nil, "additional property as key=value")
	cmd.Flags().StringVar(&request.Data, "data", "", "path or URL of the item data")
	cmd.Flags().StringVar(&request.Thumbnail, "thumbnail", "", "path or URL of the thumbnail")
	cmd.Flags().StringVar(&request.Metadata, "metadata", "", "path or URL of the metadata document")
	cmd.Flags().StringVar(&request.Owner, "owner", "", "item owner (default is the logged-in user)")
	cmd.Flags().StringVar(&request.Folder, "folder", "", "target folder id")

	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func parseProperties(values []string) (portal.Object, error) {
	props := portal.Object{}

	for _, value := range values {
		key, property, found := strings.Cut(value, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidProperty, value)
		}

		props[key] = property
	}

	return props, nil
}

func newItemsReassignCommand() *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "reassign ITEM_ID NEW_OWNER",
		Short: "Transfer an item to another user",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			result, err := client.Items().Reassign(ctx, args[0], args[1], folder)
			if err != nil {
				return fmt.Errorf("failed to reassign item: %w", err)
			}

			return renderObject(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "target folder name of the new owner")

	return cmd
}

func newItemsDeleteCommand() *cobra.Command {
	opts := &portal.ItemDeleteOptions{}

	cmd := &cobra.Command{
		Use:   "delete ITEM_ID...",
		Short: "Delete items",
		Long:  "Delete one item, or several items of one owner in a single request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := CreateClient(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if len(args) == 1 {
				ok, err := client.Items().Delete(ctx, args[0], opts)
				if err != nil {
					return fmt.Errorf("failed to delete item: %w", err)
				}

				return renderResult(out, ok, "Item deleted")
			}

			results, err := client.Items().DeleteMany(ctx, opts.Owner, args)
			if err != nil {
				return fmt.Errorf("failed to delete items: %w", err)
			}

			return renderObjects(out, results, []string{"itemId", "success"}, "No items deleted")
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "item owner (default is the logged-in user)")
	cmd.Flags().StringVar(&opts.Folder, "folder", "", "folder id holding the item")

	return cmd
}
