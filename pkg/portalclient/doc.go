// Package portalclient provides the primary entry point for constructing a
// portal client that implements the portal.Client interface.
//
// It layers configuration validation, the session, the HTTP transport and
// the initial portal probe on top of the interfaces and types defined in the
// portal package. Most applications import portalclient to build a client and
// then use the returned portal.Client to reach the resource clients Groups(),
// Users(), Items() and Folders().
//
// Quick start
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
//
//	  cli, err := portalclient.New(ctx, &portal.Config{
//	    URL:      "https://www.example.com/arcgis",
//	    Username: "user",
//	    Password: "pass",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  groups, err := cli.Groups().Search(ctx, "owner:user", &portal.SearchOptions{MaxResults: 50})
//	  if err != nil { log.Fatal(err) }
//	  _ = groups
//	}
//
// # Sessions
//
// A token that expires mid-call (error code 498) is renewed once with the
// stored credentials and the call is re-issued. Client.Session exports the
// session; NewWithSession or Config.Session adopts it in another process.
// NewWithPersister saves the session on every login and renewal.
//
// # Errors
//
// Application errors reported by the portal are recoverable and satisfy
// portal.IsApplicationError. Transport failures, unparseable responses and a
// token rejected after renewal are fatal; see portal.KindOf.
//
// # Helpers
//
// NewAnonymous, NewWithPassword and NewWithSession wrap New with the
// appropriate configuration.
package portalclient
