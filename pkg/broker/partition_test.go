package broker

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPartition(t *testing.T, dir string) *Partition {
	t.Helper()

	p, err := NewPartition(dir, "test-topic", 0, false, log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPartitionAppendRead(t *testing.T) {
	p := newTestPartition(t, t.TempDir())

	tests := []struct {
		key   string
		value []byte
	}{
		{"cust_1", []byte(`{"amount": 100}`)},
		{"", []byte("no key")},
		{"empty-value", []byte{}},
		{"cust_2", []byte("another")},
	}

	for i, tc := range tests {
		offset, err := p.Append(tc.key, tc.value)
		require.NoError(t, err)
		assert.Equal(t, int64(i), offset)
	}

	records, err := p.Read(0, 100)
	require.NoError(t, err)
	require.Len(t, records, len(tests))

	for i, rec := range records {
		assert.Equal(t, int64(i), rec.Offset)
		assert.Equal(t, tests[i].key, rec.Key)
		assert.Equal(t, tests[i].value, rec.Value)
	}
}

func TestPartitionReadWindow(t *testing.T) {
	p := newTestPartition(t, t.TempDir())

	for i := 0; i < 5; i++ {
		offset, err := p.Append("a", []byte(fmt.Sprintf("v%d", i)))
		require.NoError(t, err)
		assert.Equal(t, int64(i), offset)
	}

	// a fetch from the middle returns only the tail
	records, err := p.Read(2, 100)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, int64(i+2), rec.Offset)
	}

	// maxRecords caps the batch
	records, err = p.Read(0, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// reads outside [0, nextOffset) are empty
	records, err = p.Read(5, 10)
	require.NoError(t, err)
	assert.Len(t, records, 0)

	records, err = p.Read(-1, 10)
	require.NoError(t, err)
	assert.Len(t, records, 0)
}

func TestPartitionRecovery(t *testing.T) {
	dir := t.TempDir()

	p := newTestPartition(t, dir)
	for i := 0; i < 3; i++ {
		_, err := p.Append(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i)))
		require.NoError(t, err)
	}
	require.NoError(t, p.Close())

	// reopen with the same dir: index and next offset are rebuilt
	p2 := newTestPartition(t, dir)
	assert.Equal(t, int64(3), p2.NextOffset())

	offset, err := p2.Append("key-3", []byte("value-3"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), offset)

	records, err := p2.Read(0, 10)
	require.NoError(t, err)
	require.Len(t, records, 4)
	for i, rec := range records {
		assert.Equal(t, int64(i), rec.Offset)
		assert.Equal(t, fmt.Sprintf("key-%d", i), rec.Key)
		assert.Equal(t, []byte(fmt.Sprintf("value-%d", i)), rec.Value)
	}
}

// Truncate the log at every possible byte position and confirm recovery
// always yields exactly the fully written records.
func TestPartitionCrashRecovery(t *testing.T) {
	dir := t.TempDir()

	p := newTestPartition(t, dir)
	var boundaries []int64
	for i := 0; i < 3; i++ {
		_, err := p.Append(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i)))
		require.NoError(t, err)
		boundaries = append(boundaries, p.size)
	}
	require.NoError(t, p.Close())

	logPath := filepath.Join(dir, "test-topic-0", logFileName)
	full, err := os.ReadFile(logPath)
	require.NoError(t, err)

	for cut := 0; cut <= len(full); cut++ {
		cutDir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(cutDir, "test-topic-0"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(cutDir, "test-topic-0", logFileName), full[:cut], 0o644))

		expected := 0
		for _, b := range boundaries {
			if int64(cut) >= b {
				expected++
			}
		}

		rec, err := NewPartition(cutDir, "test-topic", 0, false, log.NewNopLogger())
		require.NoError(t, err, "cut at byte %d", cut)
		assert.Equal(t, int64(expected), rec.NextOffset(), "cut at byte %d", cut)

		records, err := rec.Read(0, 10)
		require.NoError(t, err)
		assert.Len(t, records, expected, "cut at byte %d", cut)

		// the torn tail must never resurface: appending continues the
		// dense offset sequence and the log stays readable end to end
		offset, err := rec.Append("after-crash", []byte("x"))
		require.NoError(t, err)
		assert.Equal(t, int64(expected), offset)

		records, err = rec.Read(0, 10)
		require.NoError(t, err)
		require.Len(t, records, expected+1)
		assert.Equal(t, "after-crash", records[expected].Key)

		require.NoError(t, rec.Close())
	}
}

func TestPartitionConcurrentAppends(t *testing.T) {
	p := newTestPartition(t, t.TempDir())

	const (
		goroutines = 8
		perWorker  = 50
	)

	var (
		wg      sync.WaitGroup
		mtx     sync.Mutex
		offsets = make(map[int64]struct{})
	)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				offset, err := p.Append(fmt.Sprintf("w%d", g), []byte("payload"))
				assert.NoError(t, err)

				mtx.Lock()
				offsets[offset] = struct{}{}
				mtx.Unlock()
			}
		}(g)
	}
	wg.Wait()

	// offsets are dense and unique
	assert.Len(t, offsets, goroutines*perWorker)
	assert.Equal(t, int64(goroutines*perWorker), p.NextOffset())

	records, err := p.Read(0, goroutines*perWorker+10)
	require.NoError(t, err)
	require.Len(t, records, goroutines*perWorker)
	for i, rec := range records {
		assert.Equal(t, int64(i), rec.Offset)
	}
}

func BenchmarkPartitionAppend(b *testing.B) {
	dir := b.TempDir()
	p, err := NewPartition(dir, "bench", 0, false, log.NewNopLogger())
	if err != nil {
		b.Fatal(err)
	}
	defer p.Close()

	value := []byte(`{"customer_id": "cust_0042", "amount": 1250, "txn_type": "debit"}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Append("cust_0042", value); err != nil {
			b.Fatal(err)
		}
	}
}
