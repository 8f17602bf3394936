package broker

import (
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()

	b, err := New(Config{LogDir: t.TempDir()}, log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestCreateTopicIdempotent(t *testing.T) {
	b := newTestBroker(t)

	require.NoError(t, b.CreateTopic("transactions", 3))
	topic := b.GetTopic("transactions")
	require.NotNil(t, topic)
	assert.Len(t, topic.Partitions, 3)

	// second create with a different count is a no-op
	require.NoError(t, b.CreateTopic("transactions", 7))
	assert.Len(t, b.GetTopic("transactions").Partitions, 3)
}

func TestCreateTopicRejectsZeroPartitions(t *testing.T) {
	b := newTestBroker(t)
	assert.Error(t, b.CreateTopic("bad", 0))
}

func TestJoinGroupAssignment(t *testing.T) {
	b := newTestBroker(t)
	require.NoError(t, b.CreateTopic("transactions", 3))

	assert.Equal(t, int32(0), b.JoinGroup("g", "c1", "transactions"))
	assert.Equal(t, int32(1), b.JoinGroup("g", "c2", "transactions"))
	assert.Equal(t, int32(2), b.JoinGroup("g", "c3", "transactions"))

	// all partitions taken
	assert.Equal(t, int32(-1), b.JoinGroup("g", "c4", "transactions"))

	// unknown topic
	assert.Equal(t, int32(-1), b.JoinGroup("g", "c5", "nope"))
}

func TestJoinGroupRejoinKeepsAssignment(t *testing.T) {
	b := newTestBroker(t)
	require.NoError(t, b.CreateTopic("transactions", 3))

	require.Equal(t, int32(0), b.JoinGroup("g", "c1", "transactions"))
	require.Equal(t, int32(1), b.JoinGroup("g", "c2", "transactions"))

	// a reconnecting consumer gets its old partition back, not a new one
	assert.Equal(t, int32(0), b.JoinGroup("g", "c1", "transactions"))
	assert.Equal(t, int32(2), b.JoinGroup("g", "c3", "transactions"))
}

func TestJoinGroupIndependentGroups(t *testing.T) {
	b := newTestBroker(t)
	require.NoError(t, b.CreateTopic("transactions", 2))

	assert.Equal(t, int32(0), b.JoinGroup("g1", "c1", "transactions"))
	assert.Equal(t, int32(1), b.JoinGroup("g1", "c2", "transactions"))

	// a second group sees all partitions free
	assert.Equal(t, int32(0), b.JoinGroup("g2", "c1", "transactions"))
}

func TestPartitionForIsStable(t *testing.T) {
	for _, key := range []string{"", "a", "cust_0001", "cust_0002", "some-longer-key"} {
		expected := int32(xxhash.Sum64String(key) % 4)
		for i := 0; i < 10; i++ {
			assert.Equal(t, expected, partitionFor(key, 4))
		}
	}
}
