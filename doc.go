// Package tarchan serves versioned content archives ("channels") from
// S3-compatible object storage using the lockable-tarball HTTP protocol.
//
// A channel is a named, mutable pointer to the current permanent version of
// an archive. The service resolves channel names to presigned, short-lived
// redirect URLs and advertises the permanently cacheable location through a
// Link header with rel="immutable". Archive bytes are always delivered by
// the object store itself; the service never proxies or buffers them.
//
// # Key Components
//
//   - Registry: in-memory snapshot cache of the channel catalog, refreshed
//     on a timer from the bucket without blocking request handling
//   - ObjectStore: interface over the storage backend (see the s3 package)
//   - TokenVerifier: stateless RSA bearer-token verification
//   - Publisher: append-only publish path with write-once permanent objects
//
// # Bucket Layout
//
// The bucket uses a flat namespace:
//
//	channels.json   {"channels": ["rel", ...]}
//	<name>.json     {"latest": "v1", "file_extension": ".tar.xz", "previous": []}
//	<key><ext>      immutable archive objects, e.g. v1.tar.xz
//
// Permanent objects are created with a storage-level conditional write and
// are never overwritten. Channel config objects are only rewritten after
// the object they point at is durably present.
//
// See the http package for the request router and the cmd directory for
// the server and publish binaries.
package tarchan
