// Package client implements synchronous producer and consumer clients for the
// broker's framed binary protocol.  Each client owns a single TCP connection
// and issues one request at a time.
package client

import (
	"net"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/protocol"
)

const apiVersion = 1

// conn is the shared request/response plumbing under Producer and Consumer.
type conn struct {
	clientID string

	mtx           sync.Mutex
	sock          net.Conn
	correlationID atomic.Int32
}

func dial(addr, clientID string) (*conn, error) {
	sock, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing broker %s", addr)
	}

	return &conn{
		clientID: clientID,
		sock:     sock,
	}, nil
}

type encodable interface {
	Encode(*protocol.Encoder)
}

type decodable interface {
	Decode(*protocol.Decoder) error
}

// roundTrip frames and sends one request and decodes the response body into
// resp after checking the echoed correlation id.
func (c *conn) roundTrip(apiKey int16, req encodable, resp decodable) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	header := protocol.RequestHeader{
		APIKey:        apiKey,
		APIVersion:    apiVersion,
		CorrelationID: c.correlationID.Inc(),
		ClientID:      c.clientID,
	}

	enc := protocol.NewEncoder()
	header.Encode(enc)
	req.Encode(enc)

	if err := protocol.WriteFrame(c.sock, enc.Bytes()); err != nil {
		return errors.Wrap(err, "writing request")
	}

	payload, err := protocol.ReadFrame(c.sock)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}

	dec := protocol.NewDecoder(payload)
	echoed, err := dec.Int32()
	if err != nil {
		return errors.Wrap(err, "decoding correlation id")
	}
	if echoed != header.CorrelationID {
		return errors.Errorf("correlation id mismatch: sent %d, received %d", header.CorrelationID, echoed)
	}

	return resp.Decode(dec)
}

func (c *conn) close() error {
	return c.sock.Close()
}
