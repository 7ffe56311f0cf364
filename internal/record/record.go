// Package record defines the wire-level unit the rest of the broker moves
// around: an immutable, keyed (topic, partition) tuple, plus the
// deterministic key->partition hash producers and routers share.
package record

import "hash/fnv"

// Record is an immutable tuple produced by a caller and, once appended to a
// Partition Log, addressable by a monotonic Offset.
type Record struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int32
	Timestamp int64 // producer wall clock at enqueue, UnixNano
	Offset    int64 // assigned by the Partition Log on append; zero until then
}

// PartitionFor hashes key with FNV-1a and reduces it mod partitionCount.
// The hash is stable across processes for a given key, which is the
// guarantee producers in different processes need to agree on routing.
func PartitionFor(key []byte, partitionCount int32) int32 {
	if partitionCount <= 0 {
		return 0
	}
	h := fnv.New32a()
	h.Write(key)
	return int32(h.Sum32() % uint32(partitionCount))
}
