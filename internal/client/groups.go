package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/portal-client/internal/constants"
	"github.com/fivetwenty-io/portal-client/internal/http"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

// GroupsClient implements portal.GroupsClient.
type GroupsClient struct {
	httpClient *http.Client
	state      portalState
}

// NewGroupsClient creates a new groups client.
func NewGroupsClient(httpClient *http.Client, state portalState) *GroupsClient {
	return &GroupsClient{
		httpClient: httpClient,
		state:      state,
	}
}

// Create implements portal.GroupsClient.Create.
func (c *GroupsClient) Create(ctx context.Context, request *portal.GroupCreateRequest) (string, error) {
	if request == nil || request.Title == "" {
		return "", fmt.Errorf("creating group: %w: title", portal.ErrRequiredField)
	}

	group := portal.Object{
		"title":            request.Title,
		"tags":             request.Tags,
		"access":           valueOr(request.Access, portal.DefaultGroupAccess),
		"sortField":        valueOr(request.SortField, portal.DefaultGroupSortField),
		"sortOrder":        valueOr(request.SortOrder, portal.DefaultGroupSortOrder),
		"isInvitationOnly": request.IsInvitationOnly,
		"isViewOnly":       request.IsViewOnly,
	}

	if request.Description != "" {
		group["description"] = request.Description
	}

	if request.Snippet != "" {
		group["snippet"] = request.Snippet
	}

	return c.CreateFromObject(ctx, group, request.Thumbnail)
}

// CreateFromObject implements portal.GroupsClient.CreateFromObject.
func (c *GroupsClient) CreateFromObject(ctx context.Context, group portal.Object, thumbnail string) (string, error) {
	form := portal.NewForm().Merge(group)

	body, err := postObject(ctx, c.httpClient, constants.CreateGroupPath, form, thumbnailUploads(thumbnail), nil)
	if err != nil {
		return "", fmt.Errorf("creating group: %w", err)
	}

	if !body.GetBool("success") {
		return "", fmt.Errorf("creating group: %w: success is false", portal.ErrUnexpectedResponse)
	}

	return body.GetObject("group").GetString("id"), nil
}

// Get implements portal.GroupsClient.Get.
func (c *GroupsClient) Get(ctx context.Context, groupID string) (portal.Object, error) {
	group, err := postObject(ctx, c.httpClient, resourcePath(constants.CommunityGroupsPath, groupID), portal.NewForm(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting group: %w", err)
	}

	return group, nil
}

// Thumbnail implements portal.GroupsClient.Thumbnail. A group without a
// thumbnail yields nil bytes and no error.
func (c *GroupsClient) Thumbnail(ctx context.Context, groupID string) ([]byte, error) {
	group, err := c.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}

	fileName := group.GetString("thumbnail")
	if fileName == "" {
		return nil, nil
	}

	resp, err := c.httpClient.Get(ctx, resourcePath(constants.CommunityGroupsPath, groupID, "info", fileName), &http.RequestOptions{Raw: true})
	if err != nil {
		return nil, fmt.Errorf("getting group thumbnail: %w", err)
	}

	return resp.Raw, nil
}

// Members implements portal.GroupsClient.Members.
func (c *GroupsClient) Members(ctx context.Context, groupID string) (portal.Object, error) {
	members, err := postObject(ctx, c.httpClient, resourcePath(constants.CommunityGroupsPath, groupID, "users"), portal.NewForm(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting group members: %w", err)
	}

	return members, nil
}

// Update implements portal.GroupsClient.Update.
func (c *GroupsClient) Update(ctx context.Context, groupID string, request *portal.GroupUpdateRequest) (bool, error) {
	if request == nil {
		request = &portal.GroupUpdateRequest{}
	}

	form := portal.NewForm().
		SetOptional("title", request.Title).
		SetOptional("tags", request.Tags).
		SetOptional("description", request.Description).
		SetOptional("snippet", request.Snippet).
		SetOptional("access", request.Access).
		SetOptional("sortField", request.SortField).
		SetOptional("sortOrder", request.SortOrder)

	if request.IsInvitationOnly != nil {
		form.Set("isInvitationOnly", *request.IsInvitationOnly)
	}

	if request.IsViewOnly != nil {
		form.Set("isViewOnly", *request.IsViewOnly)
	}

	ok, err := postSuccess(ctx, c.httpClient, resourcePath(constants.CommunityGroupsPath, groupID, "update"), form, thumbnailUploads(request.Thumbnail), nil)
	if err != nil {
		return false, fmt.Errorf("updating group: %w", err)
	}

	return ok, nil
}

// Delete implements portal.GroupsClient.Delete.
func (c *GroupsClient) Delete(ctx context.Context, groupID string) (bool, error) {
	ok, err := postSuccess(ctx, c.httpClient, resourcePath(constants.CommunityGroupsPath, groupID, "delete"), portal.NewForm(), nil, nil)
	if err != nil {
		return false, fmt.Errorf("deleting group: %w", err)
	}

	return ok, nil
}

// AddUsers implements portal.GroupsClient.AddUsers. The response lists the
// users that were not added under "notAdded".
func (c *GroupsClient) AddUsers(ctx context.Context, groupID string, usernames []string) (portal.Object, error) {
	if c.state.isPre21() {
		return nil, fmt.Errorf("adding group users: %w", portal.ErrPreV21Unsupported)
	}

	form := portal.NewForm().Set("users", strings.Join(usernames, ","))

	resp, err := postObject(ctx, c.httpClient, resourcePath(constants.CommunityGroupsPath, groupID, "addUsers"), form, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("adding group users: %w", err)
	}

	return resp, nil
}

// RemoveUsers implements portal.GroupsClient.RemoveUsers. The response
// lists the users that were not removed under "notRemoved".
func (c *GroupsClient) RemoveUsers(ctx context.Context, groupID string, usernames []string) (portal.Object, error) {
	form := portal.NewForm().Set("users", strings.Join(usernames, ","))

	resp, err := postObject(ctx, c.httpClient, resourcePath(constants.CommunityGroupsPath, groupID, "removeUsers"), form, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("removing group users: %w", err)
	}

	return resp, nil
}

// Invite implements portal.GroupsClient.Invite.
func (c *GroupsClient) Invite(ctx context.Context, groupID string, usernames []string, opts *portal.GroupInviteOptions) (bool, error) {
	if opts == nil {
		opts = &portal.GroupInviteOptions{}
	}

	expiration := opts.Expiration
	if expiration <= 0 {
		expiration = portal.DefaultInviteExpiration
	}

	form := portal.NewForm().
		Set("users", strings.Join(usernames, ",")).
		Set("role", valueOr(opts.Role, portal.DefaultInviteRole)).
		Set("expiration", expiration)

	ok, err := postSuccess(ctx, c.httpClient, resourcePath(constants.CommunityGroupsPath, groupID, "invite"), form, nil, nil)
	if err != nil {
		return false, fmt.Errorf("inviting group users: %w", err)
	}

	return ok, nil
}

// Leave implements portal.GroupsClient.Leave.
func (c *GroupsClient) Leave(ctx context.Context, groupID string) (bool, error) {
	ok, err := postSuccess(ctx, c.httpClient, resourcePath(constants.CommunityGroupsPath, groupID, "leave"), portal.NewForm(), nil, nil)
	if err != nil {
		return false, fmt.Errorf("leaving group: %w", err)
	}

	return ok, nil
}

// Reassign implements portal.GroupsClient.Reassign.
func (c *GroupsClient) Reassign(ctx context.Context, groupID, targetOwner string) (bool, error) {
	form := portal.NewForm().Set("targetUsername", targetOwner)

	ok, err := postSuccess(ctx, c.httpClient, resourcePath(constants.CommunityGroupsPath, groupID, "reassign"), form, nil, nil)
	if err != nil {
		return false, fmt.Errorf("reassigning group: %w", err)
	}

	return ok, nil
}

// Search implements portal.GroupsClient.Search.
func (c *GroupsClient) Search(ctx context.Context, query string, opts *portal.SearchOptions) ([]portal.Object, error) {
	if opts == nil {
		opts = &portal.SearchOptions{}
	}

	form, err := searchForm(c.state, query, opts, "title")
	if err != nil {
		return nil, fmt.Errorf("searching groups: %w", err)
	}

	groups, err := runSearch(ctx, c.httpClient, &searchRequest{
		path:       constants.CommunityGroupsPath,
		key:        portal.ResultsKey,
		form:       form,
		maxResults: opts.MaxResults,
		fields:     opts.Fields,
	})
	if err != nil {
		return nil, fmt.Errorf("searching groups: %w", err)
	}

	return groups, nil
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}
