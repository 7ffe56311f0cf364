// Package consumergroup implements the Consumer Group (design spec §4.G):
// membership, partition ownership, and client-local offset tracking layered
// over a single shared Consumer per member.
package consumergroup

import (
	"context"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"example.com/deps/internal/mqerr"
	"example.com/deps/internal/record"
)

// PartitionClaim is one (topic, partition, initial_offset) a member
// requests ownership of in AddConsumer.
type PartitionClaim struct {
	Topic         string
	Partition     int32
	InitialOffset int64
}

// Fetcher is the subset of *consumer.Consumer a Group depends on.
type Fetcher interface {
	Consume(ctx context.Context, topic string, partition int32, offset int64, max int) ([]record.Record, error)
}

// OffsetCommitter is the subset of *coordination.Client used to persist
// offset advances. Optional: nil disables persistence and the group
// tracks offsets purely client-locally, per design spec §4.G.
type OffsetCommitter interface {
	SetConsumerOffset(groupID, topic string, partition int32, offset int64) error
}

type topicPartitionKey struct {
	topic     string
	partition int32
}

type member struct {
	consumerID string
	consumer   Fetcher
	nextOffset map[topicPartitionKey]int64
}

// Group holds membership, ownership, and per-partition next-offset state
// for one consumer group.
type Group struct {
	groupID    string
	newFetcher func(groupID string) Fetcher
	committer  OffsetCommitter
	logger     log.Logger

	mu        sync.Mutex
	members   map[string]*member
	ownership map[topicPartitionKey]string
}

// New builds a Group. newFetcher constructs a Fetcher (normally
// consumer.New, which already satisfies Fetcher) for a freshly added
// member; committer may be nil to disable offset persistence.
func New(groupID string, newFetcher func(groupID string) Fetcher, committer OffsetCommitter, logger log.Logger) *Group {
	return &Group{
		groupID:    groupID,
		newFetcher: newFetcher,
		committer:  committer,
		logger:     logger,
		members:    make(map[string]*member),
		ownership:  make(map[topicPartitionKey]string),
	}
}

// AddConsumer registers consumerID as a member owning claims. It rejects a
// duplicate consumer_id or any already-owned (topic, partition).
func (g *Group) AddConsumer(consumerID string, claims []PartitionClaim) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.members[consumerID]; exists {
		return false, mqerr.New(mqerr.Conflict, "consumer_id already a member: "+consumerID)
	}
	for _, c := range claims {
		key := topicPartitionKey{c.Topic, c.Partition}
		if owner, owned := g.ownership[key]; owned {
			return false, mqerr.New(mqerr.Conflict, "partition already owned by "+owner)
		}
	}

	m := &member{
		consumerID: consumerID,
		consumer:   g.newFetcher(g.groupID),
		nextOffset: make(map[topicPartitionKey]int64, len(claims)),
	}
	for _, c := range claims {
		key := topicPartitionKey{c.Topic, c.Partition}
		g.ownership[key] = consumerID
		m.nextOffset[key] = c.InitialOffset
	}
	g.members[consumerID] = m
	return true, nil
}

// RemoveConsumer releases every partition consumerID owned.
func (g *Group) RemoveConsumer(consumerID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.members[consumerID]
	if !ok {
		return false, mqerr.New(mqerr.NotFound, "not a member: "+consumerID)
	}
	for key := range m.nextOffset {
		delete(g.ownership, key)
	}
	delete(g.members, consumerID)
	return true, nil
}

// Consume fetches up to max records from (topic, partition) through the
// owning member's Consumer, advancing next_offset by the number returned.
func (g *Group) Consume(ctx context.Context, topic string, partition int32, max int) ([]record.Record, error) {
	key := topicPartitionKey{topic, partition}

	g.mu.Lock()
	ownerID, owned := g.ownership[key]
	if !owned {
		g.mu.Unlock()
		level.Error(g.logger).Log("msg", "consume on unowned partition", "topic", topic, "partition", partition)
		return nil, mqerr.New(mqerr.NotFound, "no owner for partition")
	}
	m := g.members[ownerID]
	offset := m.nextOffset[key]
	g.mu.Unlock()

	recs, err := m.consumer.Consume(ctx, topic, partition, offset, max)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	m.nextOffset[key] = offset + int64(len(recs))
	newOffset := m.nextOffset[key]
	g.mu.Unlock()

	if g.committer != nil && len(recs) > 0 {
		if err := g.committer.SetConsumerOffset(g.groupID, topic, partition, newOffset); err != nil {
			level.Warn(g.logger).Log("msg", "best-effort offset commit failed", "topic", topic, "partition", partition, "err", err)
		}
	}

	return recs, nil
}
