// Package partitionlog implements the broker-side Partition Log contract
// (design spec §4.A): an ordered, offset-addressable record log for one
// (topic, partition), with dense monotonic offsets assigned under exclusive
// access and prefix-contiguous, truncating reads.
package partitionlog

import (
	"sync"
	"time"

	"example.com/deps/internal/mqerr"
	"example.com/deps/internal/record"
)

// Log is the append/read contract for one (topic, partition). It keeps an
// in-memory mirror of every appended record so reads never touch the
// backend; the backend exists purely for durability, matching the spec's
// "design is agnostic to backend" language in §4.A.
type Log struct {
	mu      sync.Mutex
	topic   string
	part    int32
	backend Backend
	records []record.Record
	next    int64
}

// New wires a fresh Log for (topic, partition) over backend.
func New(topic string, partition int32, backend Backend) *Log {
	return &Log{topic: topic, part: partition, backend: backend}
}

// Recover wires a Log over backend and replays any bytes already written to
// it, rebuilding the in-memory mirror and next-offset counter. Used when a
// broker restarts and reopens a partition's on-disk log.
func Recover(topic string, partition int32, backend Backend) (*Log, error) {
	l := New(topic, partition, backend)

	const chunk = 1 << 20
	var byteOffset int64
	for {
		data, err := backend.Read(byteOffset, chunk)
		if err != nil {
			return nil, mqerr.Wrap(mqerr.Backend, err, "partition log recover")
		}
		if len(data) == 0 {
			break
		}
		keys, values, topics, partitions, timestamps, offsets := unframeRecords(data)
		var consumed int64
		for i := range keys {
			consumed += int64(4 + len(keys[i]) + 4 + len(values[i]) + 4 + len(topics[i]) + 4 + 8 + 8)
			l.records = append(l.records, record.Record{
				Key:       keys[i],
				Value:     values[i],
				Topic:     topics[i],
				Partition: partitions[i],
				Timestamp: timestamps[i],
				Offset:    offsets[i],
			})
			if offsets[i]+1 > l.next {
				l.next = offsets[i] + 1
			}
		}
		if len(data) < chunk || consumed == 0 {
			break
		}
		byteOffset += consumed
	}
	return l, nil
}

// Topic and Partition identify the log.
func (l *Log) Topic() string     { return l.topic }
func (l *Log) Partition() int32  { return l.part }

// Append assigns the next offset and durably enqueues rec, returning the
// assigned offset. rec.Topic/Partition/Offset are overwritten to match.
func (l *Log) Append(rec record.Record) (int64, error) {
	offsets, err := l.AppendBatch([]record.Record{rec})
	if err != nil {
		return 0, err
	}
	return offsets[0], nil
}

// AppendBatch assigns a contiguous block of offsets to recs and writes them
// as a single backend append. Either all records are durably appended and
// visible to readers, or none are and next is left untouched.
func (l *Log) AppendBatch(recs []record.Record) ([]int64, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	start := l.next
	offsets := make([]int64, len(recs))
	buf := make([]byte, 0, 256*len(recs))
	stamped := make([]record.Record, len(recs))
	for i, r := range recs {
		offset := start + int64(i)
		ts := r.Timestamp
		if ts == 0 {
			ts = time.Now().UnixNano()
		}
		stamped[i] = record.Record{
			Key:       r.Key,
			Value:     r.Value,
			Topic:     l.topic,
			Partition: l.part,
			Timestamp: ts,
			Offset:    offset,
		}
		buf = append(buf, frameRecord(r.Key, r.Value, l.topic, l.part, ts, offset)...)
		offsets[i] = offset
	}

	if _, err := l.backend.Append(buf); err != nil {
		// The counter (l.next) is untouched: a partial append_batch must
		// not leave it advanced.
		return nil, mqerr.Wrap(mqerr.Backend, err, "partition log append")
	}

	l.records = append(l.records, stamped...)
	l.next += int64(len(recs))
	return offsets, nil
}

// Read returns at most maxCount records starting at startOffset. If the log
// has fewer than startOffset+maxCount offsets, the result is silently
// truncated; if startOffset is at or past the tail, the result is empty.
func (l *Log) Read(startOffset int64, maxCount int) ([]record.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if maxCount <= 0 || startOffset < 0 || startOffset >= int64(len(l.records)) {
		return []record.Record{}, nil
	}

	end := startOffset + int64(maxCount)
	if end > int64(len(l.records)) {
		end = int64(len(l.records))
	}

	out := make([]record.Record, end-startOffset)
	copy(out, l.records[startOffset:end])
	return out, nil
}

// Len returns the number of records currently in the log (== next offset).
func (l *Log) Len() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.next
}

// Close releases the backend.
func (l *Log) Close() error {
	return l.backend.Close()
}
