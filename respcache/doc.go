// Package respcache caches tenant-scoped read responses on top of a
// [cache.Store] and removes them again when a write touches their collection.
//
// Keys have the form <prefix>:<tenant>:<path>. Invalidation deletes every key
// under <prefix>:<tenant>:<collection>, so a collection path such as
// /api/devices clears the list and every item beneath it for that tenant only.
//
// # Consistency
//
// Invalidate runs on the write path before the write is acknowledged. A read
// that missed before the write and stores its result after the invalidation
// can put pre-write data back in the cache; that entry lives at most one TTL.
// Callers needing a tighter bound must not cache the resource.
//
// # What this package must NOT do
//
//   - Return store errors from ReadThrough. Cache failures degrade to compute.
//   - Cache non-2xx responses.
package respcache
