package partitionlog

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/deps/internal/mqerr"
	"example.com/deps/internal/record"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "partition-*.log")
	require.NoError(t, err)
	backend, err := NewFileBackend(f.Name())
	require.NoError(t, err)
	return New("orders", 0, backend)
}

func TestAppendAssignsDenseOffsets(t *testing.T) {
	log := newTestLog(t)

	o0, err := log.Append(record.Record{Key: []byte("a"), Value: []byte("1")})
	require.NoError(t, err)
	o1, err := log.Append(record.Record{Key: []byte("a"), Value: []byte("2")})
	require.NoError(t, err)

	require.Equal(t, int64(0), o0)
	require.Equal(t, int64(1), o1)
}

func TestReadReturnsPrefixContiguous(t *testing.T) {
	log := newTestLog(t)
	for i := 0; i < 5; i++ {
		_, err := log.Append(record.Record{Key: []byte("k"), Value: []byte{byte(i)}})
		require.NoError(t, err)
	}

	recs, err := log.Read(0, 100)
	require.NoError(t, err)
	require.Len(t, recs, 5)
	for i, r := range recs {
		require.Equal(t, int64(i), r.Offset)
	}
}

func TestReadPastTailIsEmptyNotError(t *testing.T) {
	log := newTestLog(t)
	_, err := log.Append(record.Record{Key: []byte("k"), Value: []byte("v")})
	require.NoError(t, err)

	recs, err := log.Read(1, 10)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestReadZeroMaxIsEmpty(t *testing.T) {
	log := newTestLog(t)
	_, err := log.Append(record.Record{Key: []byte("k"), Value: []byte("v")})
	require.NoError(t, err)

	recs, err := log.Read(0, 0)
	require.NoError(t, err)
	require.Empty(t, recs)
}

// failingBackend always rejects Append, to exercise AppendBatch's
// all-or-nothing guarantee.
type failingBackend struct{ Backend }

func (failingBackend) Append([]byte) (int64, error) {
	return 0, os.ErrClosed
}

func TestAppendBatchDoesNotAdvanceCounterOnFailure(t *testing.T) {
	log := newTestLog(t)
	_, err := log.Append(record.Record{Key: []byte("a"), Value: []byte("1")})
	require.NoError(t, err)

	log.backend = failingBackend{Backend: log.backend}

	_, err = log.AppendBatch([]record.Record{{Key: []byte("b"), Value: []byte("2")}})
	require.Error(t, err)
	require.True(t, mqerr.Is(err, mqerr.Backend))
	require.Equal(t, int64(1), log.Len())
}

func TestRecoverRebuildsFromBackend(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "partition-*.log")
	require.NoError(t, err)
	backend, err := NewFileBackend(f.Name())
	require.NoError(t, err)

	log := New("orders", 0, backend)
	for i := 0; i < 3; i++ {
		_, err := log.Append(record.Record{Key: []byte("k"), Value: []byte{byte(i)}})
		require.NoError(t, err)
	}

	reopened, err := NewFileBackend(f.Name())
	require.NoError(t, err)
	recovered, err := Recover("orders", 0, reopened)
	require.NoError(t, err)

	require.Equal(t, int64(3), recovered.Len())
	recs, err := recovered.Read(0, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
}
