package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/portal-client/internal/http"
	"github.com/fivetwenty-io/portal-client/pkg/portal"
)

// portalState is what the resource clients read from their Client.
type portalState interface {
	IsOrg() bool
	IsArcGISOnline() bool
	accountID() string
	isPre21() bool
	loggedInUsername() string
}

// resourcePath joins escaped segments under base.
func resourcePath(base string, segments ...string) string {
	var builder strings.Builder

	builder.WriteString(base)

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		builder.WriteString("/")
		builder.WriteString(url.PathEscape(segment))
	}

	return builder.String()
}

// postObject posts form and returns the response document.
func postObject(ctx context.Context, httpClient *http.Client, path string, form portal.Form, uploads []portal.Upload, opts *http.RequestOptions) (portal.Object, error) {
	resp, err := httpClient.Post(ctx, path, form, uploads, opts)
	if err != nil {
		return nil, err
	}

	body := resp.Object()
	if body == nil {
		return nil, fmt.Errorf("%w: %s returned no JSON object", portal.ErrUnexpectedResponse, path)
	}

	return body, nil
}

// postSuccess posts form and reports the "success" flag of the response.
func postSuccess(ctx context.Context, httpClient *http.Client, path string, form portal.Form, uploads []portal.Upload, opts *http.RequestOptions) (bool, error) {
	body, err := postObject(ctx, httpClient, path, form, uploads, opts)
	if err != nil {
		return false, err
	}

	return body.GetBool("success"), nil
}

func thumbnailUploads(thumbnail string) []portal.Upload {
	if thumbnail == "" {
		return nil
	}

	return []portal.Upload{{Field: "thumbnail", Source: thumbnail}}
}
