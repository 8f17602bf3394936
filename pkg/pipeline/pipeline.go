// Package pipeline runs the consumers that feed the fraud engine: enrichers
// apply non-transaction event streams to the feature store, the scorer
// consumes transactions and produces decisions.
package pipeline

import (
	"flag"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	metricRecordsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pipeline",
		Name:      "records_consumed_total",
		Help:      "Total records consumed per topic.",
	}, []string{"topic"})
	metricDecodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pipeline",
		Name:      "decode_failures_total",
		Help:      "Total records dropped because the payload failed to decode.",
	}, []string{"topic"})
)

type Config struct {
	BrokerAddr   string        `yaml:"broker_addr"`
	FetchSize    int           `yaml:"fetch_size"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.BrokerAddr, "pipeline.broker-addr", "localhost:9092", "Address of the broker.")
	f.IntVar(&cfg.FetchSize, "pipeline.fetch-size", 50, "Maximum records per fetch.")
	f.DurationVar(&cfg.PollInterval, "pipeline.poll-interval", time.Second, "Longest pause between fetches on an idle partition.")
}

// decodeEvent unmarshals a record payload into an attribute map.
func decodeEvent(topic string, payload []byte) (map[string]interface{}, bool) {
	event := make(map[string]interface{})
	if err := json.Unmarshal(payload, &event); err != nil {
		metricDecodeFailures.WithLabelValues(topic).Inc()
		return nil, false
	}
	return event, true
}
