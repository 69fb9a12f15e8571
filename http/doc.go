// Package http provides the HTTP surface of tarchan.
//
// The router exposes exactly two request shapes, both redirect-only:
//
//	GET|HEAD /channel/<name><ext>     302 to a presigned URL for the channel's
//	                                  latest permanent object, with a
//	                                  Link: <...>; rel="immutable" header
//	                                  naming the canonical permanent URL
//	GET|HEAD /permanent/<key><ext>    302 to a presigned URL for that exact
//	                                  object, with far-future immutable
//	                                  cache directives
//
// Every other path is a 404. In particular the catalog and channel config
// objects (channels.json, <name>.json) are never routable: channel names
// may not end in ".json" and the permanent route rejects the whole
// ".json" namespace.
//
// Handlers never touch object bytes; content delivery is entirely the
// object store's job. The service's resource footprint is therefore
// independent of archive size.
//
// # Authentication
//
// AuthMiddleware enforces bearer-token authentication when given a
// verifier; pass nil for public access:
//
//	verifier := tarchan.NewTokenVerifier(publicKey)
//	router.Use(http.AuthMiddleware(verifier))
//
// The token travels as the password of an HTTP Basic challenge. Rejected
// requests get a 401 before the registry or store is consulted.
package http
