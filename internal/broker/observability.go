package broker

import (
	"fmt"
	"sync"
)

// consumeObserver is the adapted form of the teacher's OffsetManager: it no
// longer gates reads (the Consume path is stateless per design spec §4.B —
// "the broker does not track where a consumer is"), it only records the
// last offset a group was seen reading from, for observability. CommitOffset
// RPCs go through internal/coordination instead, which is the durable path.
type consumeObserver struct {
	mu      sync.RWMutex
	lastSeen map[string]int64 // key: "group-topic-partition" -> last observed start_offset
}

func newConsumeObserver() *consumeObserver {
	return &consumeObserver{lastSeen: make(map[string]int64)}
}

func (o *consumeObserver) Record(groupID, topic string, partition int32, offset int64) {
	key := fmt.Sprintf("%s-%s-%d", groupID, topic, partition)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastSeen[key] = offset
}

func (o *consumeObserver) LastSeen(groupID, topic string, partition int32) (int64, bool) {
	key := fmt.Sprintf("%s-%s-%d", groupID, topic, partition)
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.lastSeen[key]
	return v, ok
}
