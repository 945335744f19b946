package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/portal-client/internal/constants"
	"github.com/fivetwenty-io/portal-client/internal/http"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

// FoldersClient implements portal.FoldersClient.
type FoldersClient struct {
	httpClient *http.Client
}

// NewFoldersClient creates a new folders client.
func NewFoldersClient(httpClient *http.Client) *FoldersClient {
	return &FoldersClient{
		httpClient: httpClient,
	}
}

// List implements portal.FoldersClient.List.
func (c *FoldersClient) List(ctx context.Context, owner string) ([]portal.Object, error) {
	content, err := postObject(ctx, c.httpClient, resourcePath(constants.ContentUsersPath, owner), portal.NewForm(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	return content.GetObjects("folders"), nil
}

// Create implements portal.FoldersClient.Create.
func (c *FoldersClient) Create(ctx context.Context, owner, title string) (portal.Object, error) {
	form := portal.NewForm().Set("title", title)

	resp, err := postObject(ctx, c.httpClient, resourcePath(constants.ContentUsersPath, owner, "createFolder"), form, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating folder: %w", err)
	}

	if !resp.GetBool("success") {
		return nil, fmt.Errorf("creating folder: %w: success is false", portal.ErrUnexpectedResponse)
	}

	return resp.GetObject("folder"), nil
}

// Delete implements portal.FoldersClient.Delete.
func (c *FoldersClient) Delete(ctx context.Context, owner, folderID string) (bool, error) {
	ok, err := postSuccess(ctx, c.httpClient, resourcePath(constants.ContentUsersPath, owner, folderID, "delete"), portal.NewForm(), nil, nil)
	if err != nil {
		return false, fmt.Errorf("deleting folder: %w", err)
	}

	return ok, nil
}

// ID implements portal.FoldersClient.ID. Titles are compared without
// regard to case.
func (c *FoldersClient) ID(ctx context.Context, owner, name string) (string, error) {
	folders, err := c.List(ctx, owner)
	if err != nil {
		return "", err
	}

	for _, folder := range folders {
		if strings.EqualFold(folder.GetString("title"), name) {
			return folder.GetString("id"), nil
		}
	}

	return "", fmt.Errorf("%w: %s", portal.ErrFolderNotFound, name)
}
