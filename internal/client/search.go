package client

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/portal-client/internal/constants"
	"github.com/fivetwenty-io/portal-client/internal/http"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

// searchRequest describes one paged listing endpoint.
type searchRequest struct {
	path       string
	key        string
	form       portal.Form
	maxResults int
	fields     []string
}

// scopedQuery restricts query to the organization unless the scope asks for
// public content or the portal is not an organization.
func scopedQuery(state portalState, query, scope string) (string, error) {
	switch scope {
	case portal.SearchScopePublic:
		return query, nil
	case "", portal.SearchScopeDefault, portal.SearchScopeOrg:
	default:
		return "", fmt.Errorf("%w: %q (use public, org or default)", portal.ErrUnknownScope, scope)
	}

	accountID := state.accountID()

	switch {
	case accountID == "":
		return query, nil
	case query == "":
		return "accountid:" + accountID, nil
	default:
		return query + " accountid:" + accountID, nil
	}
}

// searchForm builds the shared query, sort and scope fields of a search.
func searchForm(state portalState, query string, opts *portal.SearchOptions, sortField string) (portal.Form, error) {
	if opts == nil {
		opts = &portal.SearchOptions{}
	}

	scoped, err := scopedQuery(state, query, opts.Scope)
	if err != nil {
		return nil, err
	}

	if opts.SortField != "" {
		sortField = opts.SortField
	}

	sortOrder := constants.SortOrderAsc
	if opts.SortOrder != "" {
		sortOrder = opts.SortOrder
	}

	return portal.NewForm().
		Set("q", scoped).
		Set("sortField", sortField).
		Set("sortOrder", sortOrder), nil
}

func maxResultsOrDefault(maxResults int) int {
	if maxResults <= 0 {
		return portal.DefaultMaxResults
	}

	return maxResults
}

// pageFunc fetches pages of request through httpClient.
func pageFunc(httpClient *http.Client, request *searchRequest) portal.PageFunc[portal.Object] {
	return func(ctx context.Context, start, num int) (*portal.Page[portal.Object], error) {
		form := request.form.Clone()
		if form == nil {
			form = portal.NewForm()
		}

		form.Set("start", start).Set("num", num)

		resp, err := httpClient.Post(ctx, request.path, form, nil, nil)
		if err != nil {
			return nil, err
		}

		return portal.DecodePage(resp.Object(), request.key)
	}
}

// runSearch aggregates every page of request and projects the results.
func runSearch(ctx context.Context, httpClient *http.Client, request *searchRequest) ([]portal.Object, error) {
	results, err := portal.Aggregate(ctx, pageFunc(httpClient, request), maxResultsOrDefault(request.maxResults))
	if err != nil {
		return nil, err
	}

	return project(results, request.fields), nil
}

// project keeps only the named keys of each result. No fields means the
// results are returned as they are.
func project(results []portal.Object, fields []string) []portal.Object {
	if len(fields) == 0 {
		return results
	}

	projected := make([]portal.Object, len(results))
	for i, result := range results {
		projected[i] = result.Project(fields...)
	}

	return projected
}
