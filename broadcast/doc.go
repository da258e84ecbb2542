// Package broadcast fans tenant events out to live connections.
//
// [Registry] holds at most one [Channel] per user. Publish snapshots the
// tenant's channels under a read lock and sends outside it; a channel that is
// closed or full is skipped and the rest still receive the event.
//
// [RedisRelay] extends one Registry across processes over Redis pub/sub.
package broadcast
