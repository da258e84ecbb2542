// Package cache provides the key/value store behind the response cache.
//
// Two implementations satisfy [Store]: [RedisStore] for shared deployments and
// [MemoryStore] for tests and single-process setups. Both interpret
// DeleteMatching patterns with Redis glob semantics ([Match]).
package cache
