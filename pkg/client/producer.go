package client

import (
	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/protocol"
)

// Producer sends records to the broker over one TCP connection.
type Producer struct {
	conn *conn
}

func NewProducer(addr, clientID string) (*Producer, error) {
	c, err := dial(addr, clientID)
	if err != nil {
		return nil, err
	}
	return &Producer{conn: c}, nil
}

// CreateTopic asks the broker to create a topic.  Creating an existing topic
// is a no-op on the broker side.
func (p *Producer) CreateTopic(topic string, numPartitions int32) error {
	req := protocol.CreateTopicRequest{
		Topic:         topic,
		NumPartitions: numPartitions,
	}

	var resp protocol.CreateTopicResponse
	if err := p.conn.roundTrip(protocol.APICreateTopic, &req, &resp); err != nil {
		return err
	}
	return resp.Err.Err()
}

// Send produces one record and returns the partition and offset the broker
// assigned it.
func (p *Producer) Send(topic, key string, value []byte) (partition int32, offset int64, err error) {
	req := protocol.ProduceRequest{
		Topic: topic,
		Key:   key,
		Value: value,
	}

	var resp protocol.ProduceResponse
	if err := p.conn.roundTrip(protocol.APIProduce, &req, &resp); err != nil {
		return 0, 0, err
	}
	if err := resp.Err.Err(); err != nil {
		return 0, 0, err
	}
	return resp.Partition, resp.Offset, nil
}

func (p *Producer) Close() error {
	return p.conn.close()
}
