// Package store aggregates runtime statistics per query stats key.
//
// The store is split into a fixed power-of-two number of shards selected by
// the hash of a key's encoding. Each shard owns an LRU list under its own
// mutex; each entry carries its own mutex so concurrent updates of different
// keys never contend beyond the shard lookup. When a shard is full the least
// recently used entry that is not being updated is evicted.
package store
