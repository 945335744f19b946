// Package portal provides types, interfaces, and helpers for working with a
// portal's sharing REST API (groups, users, items, folders and search).
//
// # Overview
//
// The portal package defines the resource client interfaces (GroupsClient,
// UsersClient, ItemsClient, FoldersClient), the request option structs, and
// the building blocks shared by the implementation: the Object response type,
// the Form request body, paging helpers, errors and caches. A concrete client
// is created with the portalclient package:
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/portal-client/pkg/portal"
//	  "github.com/fivetwenty-io/portal-client/pkg/portalclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := portalclient.New(ctx, &portal.Config{
//	    URL:      "https://www.example.com/arcgis",
//	    Username: "admin",
//	    Password: "secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  groups, err := cli.Groups().Search(ctx, "owner:admin", &portal.SearchOptions{MaxResults: 50})
//	  if err != nil { log.Fatal(err) }
//	  _ = groups
//	}
//
// # Responses
//
// Responses are not mapped onto Go structs. They are returned as Object, a
// map with typed accessors:
//
//	user, _ := cli.Users().Get(ctx, "jdoe")
//	fmt.Println(user.GetString("fullName"), user.GetInt("created"))
//
// # Tokens
//
// Requests carry the session token as a "token" parameter. When the portal
// answers with error code 498 the client logs in again with the stored
// credentials and repeats the request once. A second 498 fails with
// ErrInvalidToken.
//
// # Errors
//
// Every failure has an ErrorKind. An error object inside an otherwise valid
// response is an *APIError of KindApplication: the call produced no result
// but the connection is fine. IsFatal distinguishes it from transport
// failures, invalid tokens, unparseable POST responses and local
// precondition violations.
//
// # Paging
//
// List endpoints return pages of at most MaxPageSize results. Aggregate and
// PaginationIterator follow the nextStart marker until the requested number
// of results has been reported. The last page is never trimmed.
//
// # Concurrency
//
// A client is not safe for concurrent use. The token is replaced without
// synchronization when it expires.
package portal
