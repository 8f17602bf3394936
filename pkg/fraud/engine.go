package fraud

import (
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTransactionsScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraud",
		Name:      "transactions_scored_total",
		Help:      "Total transactions scored by decision.",
	}, []string{"decision"})
	metricRulesFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraud",
		Name:      "rules_fired_total",
		Help:      "Total rule firings by rule name.",
	}, []string{"rule"})
	metricEventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraud",
		Name:      "events_applied_total",
		Help:      "Total events applied to the feature store by source.",
	}, []string{"source"})
)

// Decision is the outcome of scoring one transaction.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionBlock   Decision = "BLOCK"
)

// Engine scores transactions: it reads the customer's feature snapshot,
// evaluates the rule set, then folds the transaction into the store.  The
// snapshot a transaction is scored against reflects prior events only.
type Engine struct {
	store  *FeatureStore
	rules  *RuleEngine
	logger log.Logger
}

func NewEngine(cfg *Config, logger log.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		store:  NewFeatureStore(cfg.Features),
		rules:  NewRuleEngine(cfg.Rules),
		logger: logger,
	}, nil
}

// Process scores one transaction and then updates the feature store with it.
func (e *Engine) Process(txn map[string]interface{}) (Decision, []string, map[string]interface{}) {
	customerID, _ := txn["customer_id"].(string)
	ts, _ := asInt64(txn["timestamp"])

	features := e.store.Read(customerID, ts)
	fired := e.rules.Evaluate(txn, features)

	decision := DecisionApprove
	if len(fired) > 0 {
		decision = DecisionBlock
	}

	metricTransactionsScored.WithLabelValues(string(decision)).Inc()
	for _, rule := range fired {
		metricRulesFired.WithLabelValues(rule).Inc()
	}

	e.Update(txn)

	return decision, fired, features
}

// Update folds any event (transaction, account opening, card issue, ...)
// into the feature store.  Events without a _source tag count as
// transactions.
func (e *Engine) Update(event map[string]interface{}) {
	source := SourceTransaction
	if src, ok := event["_source"].(string); ok {
		source = src
	}
	metricEventsApplied.WithLabelValues(source).Inc()

	e.store.Update(event)
}

// Features exposes the engine's store for direct reads.
func (e *Engine) Features() *FeatureStore {
	return e.store
}
