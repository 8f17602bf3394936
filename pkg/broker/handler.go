package broker

import (
	"github.com/go-kit/log/level"

	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/protocol"
)

// handleRequest parses one framed request and returns the framed response
// body ([correlation_id: i32][api-specific body]).  Protocol errors are
// reported in the response error code; only malformed requests return an
// error, which terminates the connection.
func (b *Broker) handleRequest(data []byte) ([]byte, error) {
	dec := protocol.NewDecoder(data)

	var header protocol.RequestHeader
	if err := header.Decode(dec); err != nil {
		return nil, err
	}

	var body []byte
	var err error
	switch header.APIKey {
	case protocol.APIProduce:
		metricRequests.WithLabelValues("produce").Inc()
		body, err = b.handleProduce(dec)
	case protocol.APIFetch:
		metricRequests.WithLabelValues("fetch").Inc()
		body, err = b.handleFetch(dec)
	case protocol.APIJoinGroup:
		metricRequests.WithLabelValues("join_group").Inc()
		body, err = b.handleJoinGroup(dec)
	case protocol.APICreateTopic:
		metricRequests.WithLabelValues("create_topic").Inc()
		body, err = b.handleCreateTopic(dec)
	default:
		metricRequests.WithLabelValues("unknown").Inc()
		enc := protocol.NewEncoder()
		enc.PutInt16(int16(protocol.ErrUnknownAPI))
		body = enc.Bytes()
	}
	if err != nil {
		return nil, err
	}

	resp := protocol.NewEncoder()
	resp.PutInt32(header.CorrelationID)
	return append(resp.Bytes(), body...), nil
}

func (b *Broker) handleProduce(dec *protocol.Decoder) ([]byte, error) {
	var req protocol.ProduceRequest
	if err := req.Decode(dec); err != nil {
		return nil, err
	}

	resp := protocol.ProduceResponse{}

	t := b.GetTopic(req.Topic)
	if t == nil {
		resp.Err = protocol.ErrUnknownTopic
		return encodeResponse(&resp), nil
	}

	partition := partitionFor(req.Key, len(t.Partitions))
	offset, err := t.Partitions[partition].Append(req.Key, req.Value)
	if err != nil {
		level.Error(b.logger).Log("msg", "append failed", "topic", req.Topic, "partition", partition, "err", err)
		resp.Err = protocol.ErrStorage
		return encodeResponse(&resp), nil
	}

	resp.Partition = partition
	resp.Offset = offset
	return encodeResponse(&resp), nil
}

func (b *Broker) handleFetch(dec *protocol.Decoder) ([]byte, error) {
	var req protocol.FetchRequest
	if err := req.Decode(dec); err != nil {
		return nil, err
	}

	resp := protocol.FetchResponse{}

	t := b.GetTopic(req.Topic)
	if t == nil {
		resp.Err = protocol.ErrUnknownTopic
		return encodeResponse(&resp), nil
	}
	if req.Partition < 0 || int(req.Partition) >= len(t.Partitions) {
		resp.Err = protocol.ErrUnknownPartition
		return encodeResponse(&resp), nil
	}

	records, err := t.Partitions[req.Partition].Read(req.Offset, int(req.MaxRecords))
	if err != nil {
		level.Error(b.logger).Log("msg", "read failed", "topic", req.Topic, "partition", req.Partition, "err", err)
		resp.Err = protocol.ErrStorage
		return encodeResponse(&resp), nil
	}

	metricFetchRecords.Add(float64(len(records)))
	resp.Records = records
	return encodeResponse(&resp), nil
}

func (b *Broker) handleJoinGroup(dec *protocol.Decoder) ([]byte, error) {
	var req protocol.JoinGroupRequest
	if err := req.Decode(dec); err != nil {
		return nil, err
	}

	resp := protocol.JoinGroupResponse{Partition: unassignedPartition}

	if b.GetTopic(req.Topic) == nil {
		resp.Err = protocol.ErrUnknownTopic
		return encodeResponse(&resp), nil
	}

	// -1 with no error means the group has no free partition left
	resp.Partition = b.JoinGroup(req.Group, req.ConsumerID, req.Topic)
	return encodeResponse(&resp), nil
}

func (b *Broker) handleCreateTopic(dec *protocol.Decoder) ([]byte, error) {
	var req protocol.CreateTopicRequest
	if err := req.Decode(dec); err != nil {
		return nil, err
	}

	resp := protocol.CreateTopicResponse{}
	if err := b.CreateTopic(req.Topic, int(req.NumPartitions)); err != nil {
		level.Error(b.logger).Log("msg", "create topic failed", "topic", req.Topic, "err", err)
		resp.Err = protocol.ErrStorage
	}
	return encodeResponse(&resp), nil
}

type encodable interface {
	Encode(*protocol.Encoder)
}

func encodeResponse(r encodable) []byte {
	enc := protocol.NewEncoder()
	r.Encode(enc)
	return enc.Bytes()
}
