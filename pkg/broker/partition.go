package broker

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/protocol"
)

const (
	logFileName = "log.bin"

	sizePrefixLen = 4
)

// Partition is an append-only log file plus an in-memory offset index.
//
// Each record on disk is framed as
//
//	[record_size: u32][offset: i64][key: string][value: bytes]
//
// where record_size counts everything after itself.  Offsets are dense and
// zero-based, so the index is a plain slice: index[offset] is the file
// position of that record's size prefix.
type Partition struct {
	topic string
	id    int

	mtx        sync.RWMutex
	appendFile *os.File
	logPath    string
	size       int64
	index      []int64
	fsync      bool

	logger log.Logger
}

// NewPartition opens (or creates) the partition directory and log file and
// replays the log to rebuild the offset index.
func NewPartition(logDir, topic string, id int, fsync bool, logger log.Logger) (*Partition, error) {
	dir := filepath.Join(logDir, fmt.Sprintf("%s-%d", topic, id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating partition dir")
	}

	p := &Partition{
		topic:   topic,
		id:      id,
		logPath: filepath.Join(dir, logFileName),
		fsync:   fsync,
		logger:  logger,
	}

	if err := p.recover(); err != nil {
		return nil, errors.Wrapf(err, "recovering partition %s-%d", topic, id)
	}

	f, err := os.OpenFile(p.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "opening log for append")
	}
	p.appendFile = f

	return p, nil
}

// recover walks the log from position 0 rebuilding the index.  A torn trailing
// record from a crash is truncated away so it is never re-read.
func (p *Partition) recover() error {
	f, err := os.Open(p.logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	var (
		pos      int64
		validEnd int64
		prefix   [sizePrefixLen]byte
	)

	for {
		if _, err := io.ReadFull(f, prefix[:]); err != nil {
			// fewer than 4 bytes remain, including a clean EOF
			break
		}

		recordSize := binary.BigEndian.Uint32(prefix[:])
		payload := make([]byte, recordSize)
		if _, err := io.ReadFull(f, payload); err != nil {
			// torn write at the tail
			break
		}

		offset, err := protocol.NewDecoder(payload).Int64()
		if err != nil {
			return errors.Wrap(err, "parsing record offset")
		}

		if offset != int64(len(p.index)) {
			return errors.Errorf("non-dense offset %d at position %d, expected %d", offset, pos, len(p.index))
		}

		p.index = append(p.index, pos)
		pos += sizePrefixLen + int64(recordSize)
		validEnd = pos
	}

	p.size = validEnd

	// drop trailing torn bytes so later appends stay contiguous with the
	// last fully written record
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() > validEnd {
		if err := os.Truncate(p.logPath, validEnd); err != nil {
			return errors.Wrap(err, "truncating torn tail")
		}
	}

	if len(p.index) > 0 {
		level.Info(p.logger).Log("msg", "recovered partition", "topic", p.topic, "partition", p.id, "records", len(p.index))
	}

	return nil
}

// NextOffset returns the offset the next append will be assigned.
func (p *Partition) NextOffset() int64 {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return int64(len(p.index))
}

// Append writes one record and returns its assigned offset.  The index and
// next offset are only advanced after the write succeeds.
func (p *Partition) Append(key string, value []byte) (int64, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	offset := int64(len(p.index))

	enc := protocol.NewEncoder()
	enc.PutInt64(offset)
	enc.PutString(key)
	enc.PutBytes(value)
	payload := enc.Bytes()

	buf := make([]byte, 0, sizePrefixLen+len(payload))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)

	pos := p.size
	n, err := p.appendFile.Write(buf)
	if err != nil {
		metricAppendFailures.WithLabelValues(p.topic).Inc()
		return 0, errors.Wrap(err, "appending record")
	}
	if p.fsync {
		if err := p.appendFile.Sync(); err != nil {
			metricAppendFailures.WithLabelValues(p.topic).Inc()
			return 0, errors.Wrap(err, "syncing log")
		}
	}

	p.index = append(p.index, pos)
	p.size += int64(n)

	metricRecordsAppended.WithLabelValues(p.topic).Inc()
	metricBytesAppended.WithLabelValues(p.topic).Add(float64(n))

	return offset, nil
}

// Read returns up to maxRecords records starting at startOffset.  A start
// offset outside [0, nextOffset) returns an empty slice.
func (p *Partition) Read(startOffset int64, maxRecords int) ([]protocol.Record, error) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	if startOffset < 0 || startOffset >= int64(len(p.index)) {
		return nil, nil
	}

	f, err := os.Open(p.logPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening log for read")
	}
	defer f.Close()

	if _, err := f.Seek(p.index[startOffset], io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seeking log")
	}

	var (
		records []protocol.Record
		prefix  [sizePrefixLen]byte
	)

	for len(records) < maxRecords {
		if _, err := io.ReadFull(f, prefix[:]); err != nil {
			break
		}

		recordSize := binary.BigEndian.Uint32(prefix[:])
		payload := make([]byte, recordSize)
		if _, err := io.ReadFull(f, payload); err != nil {
			break
		}

		dec := protocol.NewDecoder(payload)
		var rec protocol.Record
		if rec.Offset, err = dec.Int64(); err != nil {
			return nil, errors.Wrap(err, "parsing record offset")
		}
		if rec.Key, err = dec.String(); err != nil {
			return nil, errors.Wrap(err, "parsing record key")
		}
		if rec.Value, err = dec.Bytes(); err != nil {
			return nil, errors.Wrap(err, "parsing record value")
		}

		records = append(records, rec)
	}

	return records, nil
}

func (p *Partition) Close() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.appendFile == nil {
		return nil
	}
	err := p.appendFile.Close()
	p.appendFile = nil
	return err
}
