// Package memkv is a sharded, concurrency-safe in-memory key/value store with
// optional per-key TTL.
//
//   - Shards are plain maps under RW mutexes (256 by default), keyed by FNV-1a.
//   - SetNX is an atomic check-and-record, the primitive duplicate
//     suppression needs.
//   - Keys with a TTL are expired lazily on read and by a background sweeper;
//     keys stored with ttl 0 never expire.
//   - Metrics are kept in atomics.
package memkv
