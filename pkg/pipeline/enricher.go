package pipeline

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"

	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/client"
	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/fraud"
	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/protocol"
)

// Enricher consumes one non-transaction event stream (account openings, card
// issues, ...) and applies each event to the feature store, tagged with the
// stream's source so the schema routes it to the right features.
type Enricher struct {
	services.Service

	cfg        Config
	topic      string
	group      string
	source     string
	consumerID string

	engine   *fraud.Engine
	consumer *client.Consumer
	logger   log.Logger
}

func NewEnricher(cfg Config, topic, group, source, consumerID string, engine *fraud.Engine, logger log.Logger) *Enricher {
	e := &Enricher{
		cfg:        cfg,
		topic:      topic,
		group:      group,
		source:     source,
		consumerID: consumerID,
		engine:     engine,
		logger:     logger,
	}
	e.Service = services.NewBasicService(e.starting, e.running, e.stopping)
	return e
}

func (e *Enricher) starting(_ context.Context) error {
	c, err := client.NewConsumer(e.cfg.BrokerAddr, e.consumerID)
	if err != nil {
		return err
	}

	partition, err := c.JoinGroup(e.group, e.topic)
	if err != nil {
		_ = c.Close()
		return errors.Wrapf(err, "joining group %s for topic %s", e.group, e.topic)
	}

	level.Info(e.logger).Log("msg", "enricher assigned", "topic", e.topic, "group", e.group, "partition", partition)
	e.consumer = c
	return nil
}

func (e *Enricher) running(ctx context.Context) error {
	err := e.consumer.Poll(ctx, e.topic, int32(e.cfg.FetchSize), e.cfg.PollInterval, func(records []protocol.Record) error {
		for _, rec := range records {
			metricRecordsConsumed.WithLabelValues(e.topic).Inc()

			event, ok := decodeEvent(e.topic, rec.Value)
			if !ok {
				level.Warn(e.logger).Log("msg", "dropping undecodable event", "topic", e.topic, "offset", rec.Offset)
				continue
			}

			event["_source"] = e.source
			e.engine.Update(event)
		}
		return nil
	})

	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (e *Enricher) stopping(_ error) error {
	if e.consumer != nil {
		return e.consumer.Close()
	}
	return nil
}
