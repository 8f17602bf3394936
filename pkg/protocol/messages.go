package protocol

import "github.com/pkg/errors"

// API keys identify the request type in the header.
const (
	APIProduce     int16 = 0
	APIFetch       int16 = 1
	APIJoinGroup   int16 = 2
	APICreateTopic int16 = 3
)

// ErrorCode is the numeric error carried in every response body.
type ErrorCode int16

const (
	ErrNone             ErrorCode = 0
	ErrUnknownTopic     ErrorCode = 1
	ErrUnknownPartition ErrorCode = 2
	ErrNoGroup          ErrorCode = 3
	ErrStorage          ErrorCode = 4
	ErrUnknownAPI       ErrorCode = 99
)

func (e ErrorCode) String() string {
	switch e {
	case ErrNone:
		return "NONE"
	case ErrUnknownTopic:
		return "UNKNOWN_TOPIC"
	case ErrUnknownPartition:
		return "UNKNOWN_PARTITION"
	case ErrNoGroup:
		return "NO_GROUP"
	case ErrStorage:
		return "STORAGE"
	case ErrUnknownAPI:
		return "UNKNOWN_API"
	default:
		return "UNKNOWN"
	}
}

// Err converts a wire error code into a Go error, nil for ErrNone.
func (e ErrorCode) Err() error {
	if e == ErrNone {
		return nil
	}
	return errors.Errorf("broker error %d (%s)", int16(e), e)
}

// RequestHeader opens every request:
// [api_key: i16][api_version: i16][correlation_id: i32][client_id: string]
type RequestHeader struct {
	APIKey        int16
	APIVersion    int16
	CorrelationID int32
	ClientID      string
}

func (h *RequestHeader) Encode(e *Encoder) {
	e.PutInt16(h.APIKey)
	e.PutInt16(h.APIVersion)
	e.PutInt32(h.CorrelationID)
	e.PutString(h.ClientID)
}

func (h *RequestHeader) Decode(d *Decoder) error {
	var err error
	if h.APIKey, err = d.Int16(); err != nil {
		return err
	}
	if h.APIVersion, err = d.Int16(); err != nil {
		return err
	}
	if h.CorrelationID, err = d.Int32(); err != nil {
		return err
	}
	h.ClientID, err = d.String()
	return err
}

// Record is one (offset, key, value) triple as carried in fetch responses.
type Record struct {
	Offset int64
	Key    string
	Value  []byte
}

type ProduceRequest struct {
	Topic string
	Key   string
	Value []byte
}

func (r *ProduceRequest) Encode(e *Encoder) {
	e.PutString(r.Topic)
	e.PutString(r.Key)
	e.PutBytes(r.Value)
}

func (r *ProduceRequest) Decode(d *Decoder) error {
	var err error
	if r.Topic, err = d.String(); err != nil {
		return err
	}
	if r.Key, err = d.String(); err != nil {
		return err
	}
	r.Value, err = d.Bytes()
	return err
}

type ProduceResponse struct {
	Err       ErrorCode
	Partition int32
	Offset    int64
}

func (r *ProduceResponse) Encode(e *Encoder) {
	e.PutInt16(int16(r.Err))
	e.PutInt32(r.Partition)
	e.PutInt64(r.Offset)
}

func (r *ProduceResponse) Decode(d *Decoder) error {
	code, err := d.Int16()
	if err != nil {
		return err
	}
	r.Err = ErrorCode(code)
	if r.Partition, err = d.Int32(); err != nil {
		return err
	}
	r.Offset, err = d.Int64()
	return err
}

type FetchRequest struct {
	Topic      string
	Partition  int32
	Offset     int64
	MaxRecords int32
}

func (r *FetchRequest) Encode(e *Encoder) {
	e.PutString(r.Topic)
	e.PutInt32(r.Partition)
	e.PutInt64(r.Offset)
	e.PutInt32(r.MaxRecords)
}

func (r *FetchRequest) Decode(d *Decoder) error {
	var err error
	if r.Topic, err = d.String(); err != nil {
		return err
	}
	if r.Partition, err = d.Int32(); err != nil {
		return err
	}
	if r.Offset, err = d.Int64(); err != nil {
		return err
	}
	r.MaxRecords, err = d.Int32()
	return err
}

type FetchResponse struct {
	Err     ErrorCode
	Records []Record
}

func (r *FetchResponse) Encode(e *Encoder) {
	e.PutInt16(int16(r.Err))
	e.PutInt32(int32(len(r.Records)))
	for _, rec := range r.Records {
		e.PutInt64(rec.Offset)
		e.PutString(rec.Key)
		e.PutBytes(rec.Value)
	}
}

func (r *FetchResponse) Decode(d *Decoder) error {
	code, err := d.Int16()
	if err != nil {
		return err
	}
	r.Err = ErrorCode(code)

	n, err := d.Int32()
	if err != nil {
		return err
	}
	if n < 0 {
		return ErrInvalidLength
	}

	r.Records = make([]Record, 0, n)
	for i := int32(0); i < n; i++ {
		var rec Record
		if rec.Offset, err = d.Int64(); err != nil {
			return err
		}
		if rec.Key, err = d.String(); err != nil {
			return err
		}
		if rec.Value, err = d.Bytes(); err != nil {
			return err
		}
		r.Records = append(r.Records, rec)
	}
	return nil
}

type JoinGroupRequest struct {
	Group      string
	ConsumerID string
	Topic      string
}

func (r *JoinGroupRequest) Encode(e *Encoder) {
	e.PutString(r.Group)
	e.PutString(r.ConsumerID)
	e.PutString(r.Topic)
}

func (r *JoinGroupRequest) Decode(d *Decoder) error {
	var err error
	if r.Group, err = d.String(); err != nil {
		return err
	}
	if r.ConsumerID, err = d.String(); err != nil {
		return err
	}
	r.Topic, err = d.String()
	return err
}

type JoinGroupResponse struct {
	Err       ErrorCode
	Partition int32
}

func (r *JoinGroupResponse) Encode(e *Encoder) {
	e.PutInt16(int16(r.Err))
	e.PutInt32(r.Partition)
}

func (r *JoinGroupResponse) Decode(d *Decoder) error {
	code, err := d.Int16()
	if err != nil {
		return err
	}
	r.Err = ErrorCode(code)
	r.Partition, err = d.Int32()
	return err
}

type CreateTopicRequest struct {
	Topic         string
	NumPartitions int32
}

func (r *CreateTopicRequest) Encode(e *Encoder) {
	e.PutString(r.Topic)
	e.PutInt32(r.NumPartitions)
}

func (r *CreateTopicRequest) Decode(d *Decoder) error {
	var err error
	if r.Topic, err = d.String(); err != nil {
		return err
	}
	r.NumPartitions, err = d.Int32()
	return err
}

type CreateTopicResponse struct {
	Err ErrorCode
}

func (r *CreateTopicResponse) Encode(e *Encoder) {
	e.PutInt16(int16(r.Err))
}

func (r *CreateTopicResponse) Decode(d *Decoder) error {
	code, err := d.Int16()
	if err != nil {
		return err
	}
	r.Err = ErrorCode(code)
	return nil
}
