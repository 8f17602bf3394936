package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/grafana/dskit/services"
	"github.com/stretchr/testify/require"

	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/broker"
	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/client"
	"github.com/Wa-lead/kafka-realtime-fraud-engine/pkg/fraud"
)

func startBroker(t *testing.T) *broker.Server {
	t.Helper()

	srv, err := broker.NewServer(broker.Config{
		Host:   "127.0.0.1",
		Port:   0,
		LogDir: t.TempDir(),
		Topics: map[string]int{
			"transactions":    2,
			"account-opening": 1,
		},
	}, log.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, services.StartAndAwaitRunning(context.Background(), srv))
	t.Cleanup(func() {
		_ = services.StopAndAwaitTerminated(context.Background(), srv)
	})
	return srv
}

func testEngine(t *testing.T) *fraud.Engine {
	t.Helper()

	engine, err := fraud.NewEngine(&fraud.Config{
		Features: []fraud.FeatureConfig{
			{Name: "count_txn_1h", Kind: fraud.KindCount, Window: 3600, BucketSize: 600, Source: fraud.SourceTransaction},
			{Name: "account_age_days", Kind: fraud.KindLatest, Field: "account_age_days", Source: "account-opening", Default: 9999},
		},
		Rules: []fraud.RuleConfig{
			{Name: "high_velocity", Conditions: []fraud.Condition{
				{Source: fraud.SourceFeatures, Field: "count_txn_1h", Op: fraud.OpGe, Value: 3},
				{Source: fraud.SourceEvent, Field: "amount", Op: fraud.OpGt, Value: 10000},
			}},
		},
	}, log.NewNopLogger())
	require.NoError(t, err)
	return engine
}

func pipelineConfig(addr string) Config {
	return Config{
		BrokerAddr:   addr,
		FetchSize:    50,
		PollInterval: 100 * time.Millisecond,
	}
}

func TestScorerProcessesTransactions(t *testing.T) {
	srv := startBroker(t)
	engine := testEngine(t)

	producer, err := client.NewProducer(srv.Addr(), "test-producer")
	require.NoError(t, err)
	defer producer.Close()

	// all events share one key so a single scorer's partition sees them all
	ts := time.Now().Unix()
	for i := 0; i < 4; i++ {
		payload, err := json.Marshal(map[string]interface{}{
			"customer_id": "cust_1",
			"timestamp":   ts,
			"amount":      100,
			"txn_type":    "debit",
		})
		require.NoError(t, err)
		_, _, err = producer.Send("transactions", "cust_1", payload)
		require.NoError(t, err)
	}

	// one scorer per partition so the producer's partition is covered
	for _, id := range []string{"scorer-a", "scorer-b"} {
		scorer := NewScorer(pipelineConfig(srv.Addr()), "transactions", "fraud-engine", id, engine, log.NewNopLogger())
		require.NoError(t, services.StartAndAwaitRunning(context.Background(), scorer))
		t.Cleanup(func() {
			_ = services.StopAndAwaitTerminated(context.Background(), scorer)
		})
	}

	require.Eventually(t, func() bool {
		count, _ := engine.Features().Read("cust_1", ts)["count_txn_1h"].(int64)
		return count == 4
	}, 5*time.Second, 20*time.Millisecond, "scorer never processed all transactions")
}

func TestEnricherAppliesSourceTag(t *testing.T) {
	srv := startBroker(t)
	engine := testEngine(t)

	producer, err := client.NewProducer(srv.Addr(), "test-producer")
	require.NoError(t, err)
	defer producer.Close()

	payload, err := json.Marshal(map[string]interface{}{
		"customer_id":      "cust_7",
		"timestamp":        time.Now().Unix(),
		"account_age_days": 12,
	})
	require.NoError(t, err)
	_, _, err = producer.Send("account-opening", "cust_7", payload)
	require.NoError(t, err)

	enricher := NewEnricher(pipelineConfig(srv.Addr()), "account-opening", "account-enrichment", "account-opening", "enricher-a", engine, log.NewNopLogger())
	require.NoError(t, services.StartAndAwaitRunning(context.Background(), enricher))
	t.Cleanup(func() {
		_ = services.StopAndAwaitTerminated(context.Background(), enricher)
	})

	require.Eventually(t, func() bool {
		age, _ := engine.Features().Read("cust_7", time.Now().Unix())["account_age_days"].(float64)
		return age == 12
	}, 5*time.Second, 20*time.Millisecond, "enricher never applied the account event")
}

func TestEnricherDropsUndecodablePayloads(t *testing.T) {
	srv := startBroker(t)
	engine := testEngine(t)

	producer, err := client.NewProducer(srv.Addr(), "test-producer")
	require.NoError(t, err)
	defer producer.Close()

	_, _, err = producer.Send("account-opening", "cust_8", []byte("not json"))
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]interface{}{
		"customer_id":      "cust_8",
		"timestamp":        time.Now().Unix(),
		"account_age_days": 30,
	})
	require.NoError(t, err)
	_, _, err = producer.Send("account-opening", "cust_8", payload)
	require.NoError(t, err)

	enricher := NewEnricher(pipelineConfig(srv.Addr()), "account-opening", "account-enrichment", "account-opening", "enricher-b", engine, log.NewNopLogger())
	require.NoError(t, services.StartAndAwaitRunning(context.Background(), enricher))
	t.Cleanup(func() {
		_ = services.StopAndAwaitTerminated(context.Background(), enricher)
	})

	// the bad record is skipped, the good one still lands
	require.Eventually(t, func() bool {
		age, _ := engine.Features().Read("cust_8", time.Now().Unix())["account_age_days"].(float64)
		return age == 30
	}, 5*time.Second, 20*time.Millisecond)
}
