package client

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/portal-client/internal/constants"
	"github.com/fivetwenty-io/portal-client/internal/http"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

// UsersClient implements portal.UsersClient.
type UsersClient struct {
	httpClient *http.Client
	state      portalState
	groups     *GroupsClient
	items      *ItemsClient
}

// NewUsersClient creates a new users client. groups and items are used to
// hand over a user's content on a cascading delete.
func NewUsersClient(httpClient *http.Client, state portalState, groups *GroupsClient, items *ItemsClient) *UsersClient {
	return &UsersClient{
		httpClient: httpClient,
		state:      state,
		groups:     groups,
		items:      items,
	}
}

// Get implements portal.UsersClient.Get.
func (c *UsersClient) Get(ctx context.Context, username string) (portal.Object, error) {
	user, err := postObject(ctx, c.httpClient, resourcePath(constants.CommunityUsersPath, username), portal.NewForm(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	return user, nil
}

// Update implements portal.UsersClient.Update.
func (c *UsersClient) Update(ctx context.Context, username string, request *portal.UserUpdateRequest) (bool, error) {
	if request == nil {
		request = &portal.UserUpdateRequest{}
	}

	form := portal.NewForm().
		SetOptional("access", request.Access).
		SetOptional("preferredView", request.PreferredView).
		SetOptional("description", request.Description).
		SetOptional("tags", request.Tags).
		SetOptional("fullname", request.FullName).
		SetOptional("email", request.Email).
		SetOptional("culture", request.Culture).
		SetOptional("region", request.Region)

	path := resourcePath(constants.CommunityUsersPath, username, "update")

	ok, err := postSuccess(ctx, c.httpClient, path, form, thumbnailUploads(request.Thumbnail), &http.RequestOptions{TLS: true})
	if err != nil {
		return false, fmt.Errorf("updating user: %w", err)
	}

	return ok, nil
}

// UpdateRole implements portal.UsersClient.UpdateRole.
func (c *UsersClient) UpdateRole(ctx context.Context, username, role string) (bool, error) {
	form := portal.NewForm().Set("user", username).Set("role", role)

	ok, err := postSuccess(ctx, c.httpClient, constants.UpdateUserRolePath, form, nil, &http.RequestOptions{TLS: true})
	if err != nil {
		return false, fmt.Errorf("updating user role: %w", err)
	}

	return ok, nil
}

// Delete implements portal.UsersClient.Delete.
//
// With Cascade, the user's items and groups are first reassigned to
// ReassignTo, or deleted when it is empty; at most DefaultCascadeMaxItems
// items are handled. Without Cascade, a non-empty ReassignTo reassigns the
// user's content in one call before the delete.
func (c *UsersClient) Delete(ctx context.Context, username string, opts *portal.UserDeleteOptions) (bool, error) {
	if opts == nil {
		opts = &portal.UserDeleteOptions{}
	}

	switch {
	case opts.Cascade:
		err := c.handOverContent(ctx, username, opts.ReassignTo)
		if err != nil {
			return false, fmt.Errorf("deleting user: %w", err)
		}
	case opts.ReassignTo != "":
		_, err := c.Reassign(ctx, username, opts.ReassignTo)
		if err != nil {
			return false, fmt.Errorf("deleting user: %w", err)
		}
	}

	ok, err := postSuccess(ctx, c.httpClient, resourcePath(constants.CommunityUsersPath, username, "delete"), portal.NewForm(), nil, nil)
	if err != nil {
		return false, fmt.Errorf("deleting user: %w", err)
	}

	return ok, nil
}

// handOverContent reassigns or deletes every item and group owned by
// username.
func (c *UsersClient) handOverContent(ctx context.Context, username, reassignTo string) error {
	ownedBy := "owner:" + username

	items, err := c.items.Search(ctx, ownedBy, &portal.SearchOptions{
		MaxResults: portal.DefaultCascadeMaxItems,
		Fields:     []string{"id"},
	})
	if err != nil {
		return err
	}

	if reassignTo != "" {
		for _, item := range items {
			_, err = c.items.Reassign(ctx, item.GetString("id"), reassignTo, "")
			if err != nil {
				return err
			}
		}
	} else if len(items) > 0 {
		ids := make([]string, len(items))
		for i, item := range items {
			ids[i] = item.GetString("id")
		}

		_, err = c.items.DeleteMany(ctx, username, ids)
		if err != nil {
			return err
		}
	}

	groups, err := c.groups.Search(ctx, ownedBy, &portal.SearchOptions{Fields: []string{"id"}})
	if err != nil {
		return err
	}

	for _, group := range groups {
		if reassignTo != "" {
			_, err = c.groups.Reassign(ctx, group.GetString("id"), reassignTo)
		} else {
			_, err = c.groups.Delete(ctx, group.GetString("id"))
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// Reassign implements portal.UsersClient.Reassign. Items move to the target
// user into folders named <user>_<folder>.
func (c *UsersClient) Reassign(ctx context.Context, username, targetUsername string) (bool, error) {
	form := portal.NewForm().Set("targetUsername", targetUsername)

	ok, err := postSuccess(ctx, c.httpClient, resourcePath(constants.CommunityUsersPath, username, "reassign"), form, nil, nil)
	if err != nil {
		return false, fmt.Errorf("reassigning user: %w", err)
	}

	return ok, nil
}

// Reset implements portal.UsersClient.Reset. It only applies to built-in
// accounts.
func (c *UsersClient) Reset(ctx context.Context, username string, request *portal.UserResetRequest) (bool, error) {
	if request == nil || request.Password == "" {
		return false, fmt.Errorf("resetting user: %w: password", portal.ErrRequiredField)
	}

	form := portal.NewForm().
		Set("password", request.Password).
		SetOptional("newPassword", request.NewPassword).
		SetOptional("newSecurityQuestionIdx", request.NewSecurityQuestion).
		SetOptional("newSecurityAnswer", request.NewSecurityAnswer)

	path := resourcePath(constants.CommunityUsersPath, username, "reset")

	ok, err := postSuccess(ctx, c.httpClient, path, form, nil, &http.RequestOptions{TLS: true})
	if err != nil {
		return false, fmt.Errorf("resetting user: %w", err)
	}

	return ok, nil
}

// Signup implements portal.UsersClient.Signup. It is rejected before any
// request on the multitenant public service.
func (c *UsersClient) Signup(ctx context.Context, request *portal.SignupRequest) (bool, error) {
	if c.state.IsArcGISOnline() {
		return false, portal.NewError(portal.KindPrecondition, "signup", portal.ErrSignupNotSupported)
	}

	if request == nil {
		request = &portal.SignupRequest{}
	}

	form := portal.NewForm().
		Set("username", request.Username).
		Set("password", request.Password).
		Set("fullname", request.FullName).
		Set("email", request.Email)

	ok, err := postSuccess(ctx, c.httpClient, constants.SignupPath, form, nil, &http.RequestOptions{TLS: true})
	if err != nil {
		return false, fmt.Errorf("signing up: %w", err)
	}

	return ok, nil
}

// Search implements portal.UsersClient.Search.
func (c *UsersClient) Search(ctx context.Context, query string, opts *portal.SearchOptions) ([]portal.Object, error) {
	if opts == nil {
		opts = &portal.SearchOptions{}
	}

	form, err := searchForm(c.state, query, opts, "username")
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}

	users, err := runSearch(ctx, c.httpClient, &searchRequest{
		path:       constants.CommunityUsersPath,
		key:        portal.ResultsKey,
		form:       form,
		maxResults: opts.MaxResults,
		fields:     opts.Fields,
	})
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}

	return users, nil
}

// ListOrg implements portal.UsersClient.ListOrg.
func (c *UsersClient) ListOrg(ctx context.Context, maxUsers int) ([]portal.Object, error) {
	users, err := runSearch(ctx, c.httpClient, &searchRequest{
		path:       constants.OrgUsersPath,
		key:        portal.UsersKey,
		maxResults: maxUsers,
	})
	if err != nil {
		return nil, fmt.Errorf("listing organization users: %w", err)
	}

	return users, nil
}

// ListInvitations implements portal.UsersClient.ListInvitations.
func (c *UsersClient) ListInvitations(ctx context.Context, maxInvitations int) ([]portal.Object, error) {
	invitations, err := runSearch(ctx, c.httpClient, &searchRequest{
		path:       constants.InvitationsPath,
		key:        portal.InvitationsKey,
		maxResults: maxInvitations,
	})
	if err != nil {
		return nil, fmt.Errorf("listing invitations: %w", err)
	}

	return invitations, nil
}
