package fraud

// DefaultConfig is the stock retail-banking feature schema and rule set used
// when no engine config file is provided.
func DefaultConfig() *Config {
	return &Config{
		Features: []FeatureConfig{
			{Name: "sum_txn_1h", Kind: KindSum, Field: "amount", Window: 3600, BucketSize: 600, Source: SourceTransaction},
			{Name: "count_txn_1h", Kind: KindCount, Window: 3600, BucketSize: 600, Source: SourceTransaction},
			{Name: "sum_txn_24h", Kind: KindSum, Field: "amount", Window: 86400, BucketSize: 3600, Source: SourceTransaction},
			{Name: "count_txn_24h", Kind: KindCount, Window: 86400, BucketSize: 3600, Source: SourceTransaction},
			{Name: "unique_ben_24h", Kind: KindUnique, Field: "beneficiary", Window: 86400, BucketSize: 3600, Source: SourceTransaction},
			{Name: "count_credit_24h", Kind: KindCount, Window: 86400, BucketSize: 3600, Source: SourceTransaction,
				Filter: map[string]interface{}{"txn_type": "credit"}},
			{Name: "count_cashout_1h", Kind: KindCount, Window: 3600, BucketSize: 600, Source: SourceTransaction,
				Filter: map[string]interface{}{"txn_type": "cashout"}},

			{Name: "account_age_days", Kind: KindLatest, Field: "account_age_days", Source: "account-opening", Default: 9999},
			{Name: "account_type", Kind: KindLatest, Field: "account_type", Source: "account-opening", Default: "unknown"},
			{Name: "nationality", Kind: KindLatest, Field: "nationality", Source: "account-opening", Default: "unknown"},

			{Name: "has_credit_card", Kind: KindLatest, Field: "has_credit_card", Source: "card-issue", Default: 0},
			{Name: "card_type", Kind: KindLatest, Field: "card_type", Source: "card-issue", Default: "none"},
			{Name: "credit_limit", Kind: KindLatest, Field: "credit_limit", Source: "card-issue", Default: 0},
		},
		Rules: []RuleConfig{
			{Name: "high_velocity_high_amount", Conditions: []Condition{
				{Source: SourceFeatures, Field: "count_txn_1h", Op: OpGe, Value: 3},
				{Source: SourceFeatures, Field: "sum_txn_1h", Op: OpGt, Value: 20000},
			}},
			{Name: "suspicious_first_credit", Conditions: []Condition{
				{Source: SourceFeatures, Field: "count_credit_24h", Op: OpEq, Value: 0},
				{Source: SourceEvent, Field: "txn_type", Op: OpEq, Value: "credit"},
				{Source: SourceEvent, Field: "amount", Op: OpGt, Value: 10000},
			}},
			{Name: "many_beneficiaries", Conditions: []Condition{
				{Source: SourceFeatures, Field: "unique_ben_24h", Op: OpGe, Value: 5},
			}},
			{Name: "rapid_cashout", Conditions: []Condition{
				{Source: SourceFeatures, Field: "count_cashout_1h", Op: OpGe, Value: 2},
				{Source: SourceEvent, Field: "txn_type", Op: OpEq, Value: "cashout"},
				{Source: SourceEvent, Field: "amount", Op: OpGt, Value: 5000},
			}},
			{Name: "single_large_txn", Conditions: []Condition{
				{Source: SourceEvent, Field: "amount", Op: OpGt, Value: 30000},
			}},
			{Name: "new_account_large_txn", Conditions: []Condition{
				{Source: SourceFeatures, Field: "account_age_days", Op: OpLt, Value: 30},
				{Source: SourceEvent, Field: "amount", Op: OpGt, Value: 10000},
			}},
			{Name: "no_card_large_cashout", Conditions: []Condition{
				{Source: SourceFeatures, Field: "has_credit_card", Op: OpEq, Value: 0},
				{Source: SourceEvent, Field: "txn_type", Op: OpEq, Value: "cashout"},
				{Source: SourceEvent, Field: "amount", Op: OpGt, Value: 8000},
			}},
		},
	}
}
