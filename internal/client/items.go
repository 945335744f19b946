package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/portal-client/internal/constants"
	"github.com/fivetwenty-io/portal-client/internal/http"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

// ItemsClient implements portal.ItemsClient.
type ItemsClient struct {
	httpClient *http.Client
	state      portalState
	folders    *FoldersClient
	hints      *portal.LocationHints
}

// NewItemsClient creates a new items client. hints remembers where items
// were last found by UserItem.
func NewItemsClient(httpClient *http.Client, state portalState, folders *FoldersClient, hints *portal.LocationHints) *ItemsClient {
	if hints == nil {
		hints = portal.NewLocationHints(nil, 0)
	}

	return &ItemsClient{
		httpClient: httpClient,
		state:      state,
		folders:    folders,
		hints:      hints,
	}
}

// Add implements portal.ItemsClient.Add.
func (c *ItemsClient) Add(ctx context.Context, request *portal.ItemCreateRequest) (string, error) {
	if request == nil {
		request = &portal.ItemCreateRequest{}
	}

	owner, err := c.owner(request.Owner)
	if err != nil {
		return "", fmt.Errorf("adding item: %w", err)
	}

	var uploads []portal.Upload

	if request.Data != "" {
		uploads = append(uploads, portal.Upload{Field: "file", Source: request.Data})
	}

	if request.Metadata != "" {
		uploads = append(uploads, portal.Upload{Field: "metadata", Source: request.Metadata, FileName: portal.MetadataFileName})
	}

	uploads = append(uploads, thumbnailUploads(request.Thumbnail)...)

	form := portal.NewForm().Merge(request.Properties)

	body, err := postObject(ctx, c.httpClient, resourcePath(constants.ContentUsersPath, owner, request.Folder, "addItem"), form, uploads, nil)
	if err != nil {
		return "", fmt.Errorf("adding item: %w", err)
	}

	if !body.GetBool("success") {
		return "", fmt.Errorf("adding item: %w: success is false", portal.ErrUnexpectedResponse)
	}

	return body.GetString("id"), nil
}

// Get implements portal.ItemsClient.Get.
func (c *ItemsClient) Get(ctx context.Context, itemID string) (portal.Object, error) {
	item, err := postObject(ctx, c.httpClient, resourcePath(constants.ContentItemsPath, itemID), portal.NewForm(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	return item, nil
}

// Data implements portal.ItemsClient.Data. The item's data file is written
// to destination.
func (c *ItemsClient) Data(ctx context.Context, itemID, destination string) (string, error) {
	path, err := c.httpClient.Download(ctx, resourcePath(constants.ContentItemsPath, itemID, "data"), destination, nil)
	if err != nil {
		return "", fmt.Errorf("downloading item data: %w", err)
	}

	return path, nil
}

// UserItem implements portal.ItemsClient.UserItem.
//
// The item is looked up under its owner's content: first at the location
// remembered from an earlier lookup, then in folderID when given, then in
// the root folder and finally in each of the owner's folders. The location
// that answers is remembered. An owner is resolved from the item when
// empty.
func (c *ItemsClient) UserItem(ctx context.Context, itemID, owner, folderID string) (*portal.UserItem, error) {
	if path, ok := c.hints.Lookup(ctx, itemID); ok {
		userItem, err := c.tryUserItem(ctx, itemID, path)
		if err != nil || userItem != nil {
			return userItem, err
		}

		_ = c.hints.Forget(ctx, itemID)
	}

	if owner == "" {
		item, err := c.Get(ctx, itemID)
		if err != nil {
			if portal.IsApplicationError(err) {
				return nil, fmt.Errorf("%w: %s", portal.ErrItemNotFound, itemID)
			}

			return nil, err
		}

		owner = item.GetString("owner")
	}

	if folderID != "" {
		userItem, err := c.tryUserItem(ctx, itemID, userItemPath(owner, folderID, itemID))
		if err != nil || userItem != nil {
			return userItem, err
		}
	}

	userItem, err := c.tryUserItem(ctx, itemID, userItemPath(owner, "", itemID))
	if err != nil || userItem != nil {
		return userItem, err
	}

	folders, err := c.folders.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("getting user item: %w", err)
	}

	for _, folder := range folders {
		id := folder.GetString("id")
		if id == "" || id == folderID {
			continue
		}

		userItem, err := c.tryUserItem(ctx, itemID, userItemPath(owner, id, itemID))
		if err != nil || userItem != nil {
			return userItem, err
		}
	}

	return nil, fmt.Errorf("%w: %s", portal.ErrItemNotFound, itemID)
}

// tryUserItem reads the item at path. An application error means the item
// is not there and yields a nil item without error.
func (c *ItemsClient) tryUserItem(ctx context.Context, itemID, path string) (*portal.UserItem, error) {
	body, err := postObject(ctx, c.httpClient, path, portal.NewForm(), nil, nil)
	if err != nil {
		if portal.IsApplicationError(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting user item: %w", err)
	}

	_ = c.hints.Remember(ctx, itemID, path)

	return &portal.UserItem{
		Item:     body.GetObject("item"),
		Sharing:  body.GetObject("sharing"),
		FolderID: folderFromPath(path),
	}, nil
}

// Delete implements portal.ItemsClient.Delete.
func (c *ItemsClient) Delete(ctx context.Context, itemID string, opts *portal.ItemDeleteOptions) (bool, error) {
	if opts == nil {
		opts = &portal.ItemDeleteOptions{}
	}

	owner, err := c.owner(opts.Owner)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}

	ok, err := postSuccess(ctx, c.httpClient, userItemPath(owner, opts.Folder, itemID)+"/delete", portal.NewForm(), nil, nil)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}

	if ok {
		_ = c.hints.Forget(ctx, itemID)
	}

	return ok, nil
}

// DeleteMany implements portal.ItemsClient.DeleteMany. Each result carries
// "itemId" and "success".
func (c *ItemsClient) DeleteMany(ctx context.Context, owner string, itemIDs []string) ([]portal.Object, error) {
	owner, err := c.owner(owner)
	if err != nil {
		return nil, fmt.Errorf("deleting items: %w", err)
	}

	form := portal.NewForm().Set("items", strings.Join(itemIDs, ","))

	body, err := postObject(ctx, c.httpClient, resourcePath(constants.ContentUsersPath, owner, "deleteItems"), form, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("deleting items: %w", err)
	}

	for _, itemID := range itemIDs {
		_ = c.hints.Forget(ctx, itemID)
	}

	return body.GetObjects(portal.ResultsKey), nil
}

// Reassign implements portal.ItemsClient.Reassign. The item is located with
// UserItem; an empty targetFolder means the target's root folder.
func (c *ItemsClient) Reassign(ctx context.Context, itemID, targetOwner, targetFolder string) (portal.Object, error) {
	userItem, err := c.UserItem(ctx, itemID, "", "")
	if err != nil {
		return nil, fmt.Errorf("reassigning item: %w", err)
	}

	form := portal.NewForm().
		Set("targetUsername", targetOwner).
		Set("targetFoldername", valueOr(targetFolder, "/"))

	path := userItemPath(userItem.Item.GetString("owner"), userItem.FolderID, itemID) + "/reassign"

	resp, err := postObject(ctx, c.httpClient, path, form, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("reassigning item: %w", err)
	}

	_ = c.hints.Forget(ctx, itemID)

	return resp, nil
}

// Search implements portal.ItemsClient.Search.
func (c *ItemsClient) Search(ctx context.Context, query string, opts *portal.SearchOptions) ([]portal.Object, error) {
	if opts == nil {
		opts = &portal.SearchOptions{}
	}

	form, err := searchForm(c.state, query, opts, "title")
	if err != nil {
		return nil, fmt.Errorf("searching items: %w", err)
	}

	form.Set("bbox", opts.BBox)

	items, err := runSearch(ctx, c.httpClient, &searchRequest{
		path:       constants.SearchPath,
		key:        portal.ResultsKey,
		form:       form,
		maxResults: opts.MaxResults,
		fields:     opts.Fields,
	})
	if err != nil {
		return nil, fmt.Errorf("searching items: %w", err)
	}

	return items, nil
}

// owner returns owner, or the logged-in user when owner is empty.
func (c *ItemsClient) owner(owner string) (string, error) {
	if owner != "" {
		return owner, nil
	}

	if name := c.state.loggedInUsername(); name != "" {
		return name, nil
	}

	return "", fmt.Errorf("%w: an owner is required", portal.ErrNotLoggedIn)
}

// userItemPath is content/users/<owner>[/<folder>]/items/<id>.
func userItemPath(owner, folderID, itemID string) string {
	return resourcePath(constants.ContentUsersPath, owner, folderID, "items", itemID)
}

// folderFromPath returns the folder segment of a user item path, or "" for
// the root folder.
func folderFromPath(path string) string {
	rest := strings.TrimPrefix(path, constants.ContentUsersPath+"/")

	segments := strings.Split(rest, "/")
	if len(segments) < 2 || segments[1] == "items" {
		return ""
	}

	return segments[1]
}
