package client

import (
	"context"
	"time"

	"github.com/grafana/dskit/backoff"
	"github.com/pkg/errors"

	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/protocol"
)

// ErrNoAssignment is returned by Fetch before a successful JoinGroup.
var ErrNoAssignment = errors.New("consumer has no partition assignment, join a group first")

// ErrGroupFull is returned by JoinGroup when every partition in the topic is
// already assigned within the group.
var ErrGroupFull = errors.New("all partitions in the group are assigned")

// Consumer fetches records from its assigned partition over one TCP
// connection.  Offsets are tracked client-side: currentOffset starts at 0 and
// advances past the last fetched record.
type Consumer struct {
	conn *conn

	assignedPartition int32
	assigned          bool
	currentOffset     int64
}

func NewConsumer(addr, clientID string) (*Consumer, error) {
	c, err := dial(addr, clientID)
	if err != nil {
		return nil, err
	}
	return &Consumer{conn: c}, nil
}

// JoinGroup registers this consumer (by its client id) in the group and
// records the partition the broker assigned.
func (c *Consumer) JoinGroup(group, topic string) (int32, error) {
	req := protocol.JoinGroupRequest{
		Group:      group,
		ConsumerID: c.conn.clientID,
		Topic:      topic,
	}

	var resp protocol.JoinGroupResponse
	if err := c.conn.roundTrip(protocol.APIJoinGroup, &req, &resp); err != nil {
		return -1, err
	}
	if err := resp.Err.Err(); err != nil {
		return -1, err
	}
	if resp.Partition < 0 {
		return -1, ErrGroupFull
	}

	c.assignedPartition = resp.Partition
	c.assigned = true
	return resp.Partition, nil
}

// AssignedPartition returns the partition from the last successful JoinGroup.
func (c *Consumer) AssignedPartition() (int32, bool) {
	return c.assignedPartition, c.assigned
}

// Fetch returns up to maxRecords records from the assigned partition and
// advances the consumer's offset past the last one.
func (c *Consumer) Fetch(topic string, maxRecords int32) ([]protocol.Record, error) {
	if !c.assigned {
		return nil, ErrNoAssignment
	}

	req := protocol.FetchRequest{
		Topic:      topic,
		Partition:  c.assignedPartition,
		Offset:     c.currentOffset,
		MaxRecords: maxRecords,
	}

	var resp protocol.FetchResponse
	if err := c.conn.roundTrip(protocol.APIFetch, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err.Err(); err != nil {
		return nil, err
	}

	if n := len(resp.Records); n > 0 {
		c.currentOffset = resp.Records[n-1].Offset + 1
	}
	return resp.Records, nil
}

// Poll fetches in a loop, invoking handler for each batch of records.  Empty
// fetches back off up to maxBackoff; any records reset the backoff.  Poll
// returns when ctx is cancelled or a fetch or handler fails.
func (c *Consumer) Poll(ctx context.Context, topic string, maxRecords int32, maxBackoff time.Duration, handler func([]protocol.Record) error) error {
	boff := backoff.New(ctx, backoff.Config{
		MinBackoff: 100 * time.Millisecond,
		MaxBackoff: maxBackoff,
	})

	for ctx.Err() == nil {
		records, err := c.Fetch(topic, maxRecords)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			boff.Wait()
			continue
		}
		boff.Reset()

		if err := handler(records); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (c *Consumer) Close() error {
	return c.conn.close()
}
