package broker

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// unassignedPartition is the sentinel returned by JoinGroup when no partition
// can be handed out.
const unassignedPartition = -1

// Topic is a named, fixed set of partitions.
type Topic struct {
	Name       string
	Partitions []*Partition
}

// Broker owns the topic registry, consumer group assignments and the
// partition logs.  Topic creation and group membership changes are guarded by
// a single broker-level mutex; partitions are never removed once created.
type Broker struct {
	cfg    Config
	logger log.Logger

	mtx    sync.Mutex
	topics map[string]*Topic
	groups map[string]map[string]int32
}

func New(cfg Config, logger log.Logger) (*Broker, error) {
	b := &Broker{
		cfg:    cfg,
		logger: logger,
		topics: make(map[string]*Topic),
		groups: make(map[string]map[string]int32),
	}

	for name, numPartitions := range cfg.Topics {
		if err := b.CreateTopic(name, numPartitions); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// CreateTopic constructs a topic with the given partition count.  Creating an
// existing topic is a no-op regardless of the requested count.
func (b *Broker) CreateTopic(name string, numPartitions int) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if _, ok := b.topics[name]; ok {
		return nil
	}
	if numPartitions <= 0 {
		return errors.Errorf("topic %s requires at least one partition", name)
	}

	partitions := make([]*Partition, 0, numPartitions)
	for i := 0; i < numPartitions; i++ {
		p, err := NewPartition(b.cfg.LogDir, name, i, b.cfg.FsyncOnAppend, b.logger)
		if err != nil {
			return err
		}
		partitions = append(partitions, p)
	}

	b.topics[name] = &Topic{
		Name:       name,
		Partitions: partitions,
	}

	level.Info(b.logger).Log("msg", "topic created", "topic", name, "partitions", numPartitions)
	return nil
}

// GetTopic returns the topic or nil.  The returned partition slice is stable:
// partitions are never removed, so callers may use it without the broker lock.
func (b *Broker) GetTopic(name string) *Topic {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.topics[name]
}

// JoinGroup assigns the consumer the lowest free partition of the topic
// within its group.  A consumer id that already holds an assignment gets the
// same partition back.  Returns -1 when the topic is unknown or every
// partition is taken.
func (b *Broker) JoinGroup(group, consumerID, topic string) int32 {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	t, ok := b.topics[topic]
	if !ok {
		return unassignedPartition
	}

	members, ok := b.groups[group]
	if !ok {
		members = make(map[string]int32)
		b.groups[group] = members
	}

	if p, ok := members[consumerID]; ok {
		return p
	}

	assigned := make(map[int32]struct{}, len(members))
	for _, p := range members {
		assigned[p] = struct{}{}
	}

	for i := int32(0); i < int32(len(t.Partitions)); i++ {
		if _, taken := assigned[i]; !taken {
			members[consumerID] = i
			level.Info(b.logger).Log("msg", "consumer joined group", "group", group, "consumer", consumerID, "topic", topic, "partition", i)
			return i
		}
	}

	return unassignedPartition
}

// partitionFor selects the partition for a key.  xxhash is stable across
// processes, so a key keeps routing to the same partition after restarts.
func partitionFor(key string, numPartitions int) int32 {
	return int32(xxhash.Sum64String(key) % uint64(numPartitions))
}

// Close closes every partition log.
func (b *Broker) Close() error {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	var firstErr error
	for _, t := range b.topics {
		for _, p := range t.Partitions {
			if err := p.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
