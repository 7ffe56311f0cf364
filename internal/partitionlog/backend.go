package partitionlog

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

// Backend is the append-only store a Log writes serialized record bytes to.
// The design spec treats the durability backend as pluggable (local
// key-prefix store, external ledger service); Backend is the seam.
type Backend interface {
	// Append writes data and returns the byte offset it was written at.
	Append(data []byte) (int64, error)
	// Read returns up to maxBytes starting at byteOffset. Short reads at EOF
	// are not an error.
	Read(byteOffset int64, maxBytes int) ([]byte, error)
	Close() error
}

// FileBackend is a local, append-only file-backed Backend. It is the
// concrete backend this module ships; it is deliberately the only
// implementation of Backend wired in by default, matching the teacher's
// original LogStorage, adapted to the Backend seam above.
type FileBackend struct {
	file   *os.File
	offset int64
}

// NewFileBackend opens (creating if needed) the log file at path.
func NewFileBackend(path string) (*FileBackend, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open log file %q", path)
	}
	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat log file %q", path)
	}
	return &FileBackend{file: file, offset: info.Size()}, nil
}

func (b *FileBackend) Append(data []byte) (int64, error) {
	n, err := b.file.Write(data)
	if err != nil {
		return 0, errors.Wrap(err, "write log file")
	}
	start := b.offset
	b.offset += int64(n)
	return start, nil
}

func (b *FileBackend) Read(byteOffset int64, maxBytes int) ([]byte, error) {
	if byteOffset >= b.offset {
		return nil, nil
	}
	if _, err := b.file.Seek(byteOffset, 0); err != nil {
		return nil, errors.Wrap(err, "seek log file")
	}
	buf := make([]byte, maxBytes)
	n, err := b.file.Read(buf)
	if n == 0 {
		return nil, nil
	}
	if err != nil && err.Error() != "EOF" {
		return nil, errors.Wrap(err, "read log file")
	}
	return buf[:n], nil
}

func (b *FileBackend) Close() error {
	return b.file.Close()
}

// frameRecord serializes a single record body: [keyLen(4)][key][valueLen(4)]
// [value][topicLen(4)][topic][partition(4)][timestamp(8)][offset(8)].
// This is an internal detail of FileBackend; readers never see it, since
// partitionlog.Log deserializes before returning record.Record values.
func frameRecord(key, value []byte, topic string, partition int32, timestamp, offset int64) []byte {
	topicBytes := []byte(topic)
	size := 4 + len(key) + 4 + len(value) + 4 + len(topicBytes) + 4 + 8 + 8
	buf := make([]byte, size)
	off := 0
	binary.BigEndian.PutUint32(buf[off:], uint32(len(key)))
	off += 4
	copy(buf[off:], key)
	off += len(key)
	binary.BigEndian.PutUint32(buf[off:], uint32(len(value)))
	off += 4
	copy(buf[off:], value)
	off += len(value)
	binary.BigEndian.PutUint32(buf[off:], uint32(len(topicBytes)))
	off += 4
	copy(buf[off:], topicBytes)
	off += len(topicBytes)
	binary.BigEndian.PutUint32(buf[off:], uint32(partition))
	off += 4
	binary.BigEndian.PutUint64(buf[off:], uint64(timestamp))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(offset))
	return buf
}

// unframeRecords decodes as many complete frames as are present in data and
// stops at the first incomplete one. The trailing partial bytes are not
// returned; a caller reading in chunks advances by the size of the frames
// decoded so that a frame split across chunks is read again whole.
func unframeRecords(data []byte) (keys [][]byte, values [][]byte, topics []string, partitions []int32, timestamps []int64, offsets []int64) {
	for len(data) >= 4 {
		pos := 0
		keyLen := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		if len(data) < pos+keyLen+4 {
			break
		}
		key := data[pos : pos+keyLen]
		pos += keyLen
		valLen := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		if len(data) < pos+valLen+4 {
			break
		}
		value := data[pos : pos+valLen]
		pos += valLen
		topicLen := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		if len(data) < pos+topicLen+4+8+8 {
			break
		}
		topic := string(data[pos : pos+topicLen])
		pos += topicLen
		partition := int32(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		timestamp := int64(binary.BigEndian.Uint64(data[pos:]))
		pos += 8
		offset := int64(binary.BigEndian.Uint64(data[pos:]))
		pos += 8

		keys = append(keys, key)
		values = append(values, value)
		topics = append(topics, topic)
		partitions = append(partitions, partition)
		timestamps = append(timestamps, timestamp)
		offsets = append(offsets, offset)

		data = data[pos:]
	}
	return
}
