// Package avesclient is a Go client for the aveslog bird-sighting API.
//
// The package centers on the credential lifecycle: acquiring an access
// token, caching it across restarts, renewing it before expiry, and
// broadcasting invalidation to every consumer the moment the session dies.
// The protected resource wrappers in the birding subpackage and the
// registration and password-reset flows all hang off the same [Client].
//
// A Client is assembled through the [Builder]:
//
//	store, _ := session.NewFileStore(path)
//	client, err := avesclient.New().
//		WithConfig(cfg).
//		WithStore(store).
//		Build(ctx)
//
// Token access goes through [Client.GetAccessToken], which returns the
// cached token while it is fresh and otherwise performs exactly one
// renewal no matter how many goroutines ask concurrently. A downstream
// 401 is reported back through [Client.Unauthenticate], which clears
// durable storage and notifies subscribers before it returns.
package avesclient
