package pipeline

import (
	"context"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"

	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/client"
	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/fraud"
	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/protocol"
)

// Scorer consumes the transactions topic and scores each transaction through
// the fraud engine.  The engine updates the feature store after scoring, so
// every transaction is judged on the customer's history up to but excluding
// itself.
type Scorer struct {
	services.Service

	cfg        Config
	topic      string
	group      string
	consumerID string

	engine   *fraud.Engine
	consumer *client.Consumer
	logger   log.Logger
}

func NewScorer(cfg Config, topic, group, consumerID string, engine *fraud.Engine, logger log.Logger) *Scorer {
	s := &Scorer{
		cfg:        cfg,
		topic:      topic,
		group:      group,
		consumerID: consumerID,
		engine:     engine,
		logger:     logger,
	}
	s.Service = services.NewBasicService(s.starting, s.running, s.stopping)
	return s
}

func (s *Scorer) starting(_ context.Context) error {
	c, err := client.NewConsumer(s.cfg.BrokerAddr, s.consumerID)
	if err != nil {
		return err
	}

	partition, err := c.JoinGroup(s.group, s.topic)
	if err != nil {
		_ = c.Close()
		return errors.Wrapf(err, "joining group %s for topic %s", s.group, s.topic)
	}

	level.Info(s.logger).Log("msg", "scorer assigned", "topic", s.topic, "group", s.group, "partition", partition)
	s.consumer = c
	return nil
}

func (s *Scorer) running(ctx context.Context) error {
	err := s.consumer.Poll(ctx, s.topic, int32(s.cfg.FetchSize), s.cfg.PollInterval, func(records []protocol.Record) error {
		for _, rec := range records {
			metricRecordsConsumed.WithLabelValues(s.topic).Inc()

			txn, ok := decodeEvent(s.topic, rec.Value)
			if !ok {
				level.Warn(s.logger).Log("msg", "dropping undecodable transaction", "offset", rec.Offset)
				continue
			}

			decision, fired, _ := s.engine.Process(txn)
			if decision == fraud.DecisionBlock {
				level.Info(s.logger).Log(
					"msg", "transaction blocked",
					"customer", txn["customer_id"],
					"offset", rec.Offset,
					"rules", strings.Join(fired, ","),
				)
			}
		}
		return nil
	})

	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Scorer) stopping(_ error) error {
	if s.consumer != nil {
		return s.consumer.Close()
	}
	return nil
}
