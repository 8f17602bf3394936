package fraud

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SourceTransaction is the default event stream a feature aggregates over.
const SourceTransaction = "transaction"

// FeatureKind is the closed set of feature aggregation types.
type FeatureKind int

const (
	KindSum FeatureKind = iota
	KindCount
	KindUnique
	KindLatest
)

func (k FeatureKind) String() string {
	switch k {
	case KindSum:
		return "sum"
	case KindCount:
		return "count"
	case KindUnique:
		return "unique"
	case KindLatest:
		return "latest"
	default:
		return "unknown"
	}
}

func (k *FeatureKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	switch s {
	case "sum":
		*k = KindSum
	case "count":
		*k = KindCount
	case "unique":
		*k = KindUnique
	case "latest":
		*k = KindLatest
	default:
		return errors.Errorf("unknown feature type %q", s)
	}
	return nil
}

// bucketed reports whether the kind aggregates into time buckets.
func (k FeatureKind) bucketed() bool {
	return k != KindLatest
}

// FeatureConfig describes one derived feature.  Sum, count and unique
// aggregate into time buckets of BucketSize seconds over a Window; latest
// stores the most recent value of Field.
type FeatureConfig struct {
	Name       string                 `yaml:"name"`
	Kind       FeatureKind            `yaml:"type"`
	Source     string                 `yaml:"source"`
	Field      string                 `yaml:"field"`
	Window     int64                  `yaml:"window"`
	BucketSize int64                  `yaml:"bucket_size"`
	Filter     map[string]interface{} `yaml:"filter"`
	Default    interface{}            `yaml:"default"`
}

func (c *FeatureConfig) Validate() error {
	if c.Name == "" {
		return errors.New("feature name is required")
	}
	if c.Source == "" {
		c.Source = SourceTransaction
	}

	if c.Kind.bucketed() {
		if c.Window <= 0 {
			return errors.Errorf("feature %s: window must be positive", c.Name)
		}
		if c.BucketSize <= 0 {
			return errors.Errorf("feature %s: bucket_size must be positive", c.Name)
		}
	}

	switch c.Kind {
	case KindSum, KindUnique, KindLatest:
		if c.Field == "" {
			return errors.Errorf("feature %s: %s requires a field", c.Name, c.Kind)
		}
	case KindCount:
		// count ignores the field
	}

	return nil
}

// defaultValue is what a read returns when the customer has no state for the
// feature.
func (c *FeatureConfig) defaultValue() interface{} {
	if c.Default != nil {
		return c.Default
	}
	return 0
}

// ConditionSource selects where a condition reads its operand from.
type ConditionSource int

const (
	SourceFeatures ConditionSource = iota
	SourceEvent
)

func (s ConditionSource) String() string {
	if s == SourceFeatures {
		return "features"
	}
	return "transaction"
}

func (s *ConditionSource) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	switch str {
	case "features":
		*s = SourceFeatures
	case "transaction", "event":
		*s = SourceEvent
	default:
		return errors.Errorf("unknown condition source %q", str)
	}
	return nil
}

// Op is the closed set of comparison operators.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		return "?"
	}
}

func (o *Op) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	switch s {
	case "==":
		*o = OpEq
	case "!=":
		*o = OpNe
	case "<":
		*o = OpLt
	case "<=":
		*o = OpLe
	case ">":
		*o = OpGt
	case ">=":
		*o = OpGe
	default:
		return errors.Errorf("unknown operator %q", s)
	}
	return nil
}

// Condition is one typed comparison within a rule.
type Condition struct {
	Source ConditionSource `yaml:"source"`
	Field  string          `yaml:"field"`
	Op     Op              `yaml:"op"`
	Value  interface{}     `yaml:"value"`
}

// RuleConfig is an ordered conjunction of conditions.  A rule fires when
// every condition holds.
type RuleConfig struct {
	Name       string      `yaml:"name"`
	Conditions []Condition `yaml:"conditions"`
}

func (r *RuleConfig) Validate() error {
	if r.Name == "" {
		return errors.New("rule name is required")
	}
	if len(r.Conditions) == 0 {
		return errors.Errorf("rule %s: at least one condition is required", r.Name)
	}
	for _, c := range r.Conditions {
		if c.Field == "" {
			return errors.Errorf("rule %s: condition field is required", r.Name)
		}
	}
	return nil
}

// Config is the full engine configuration: the feature schema plus the rule
// set.  Rules are a list so their declared order is the evaluation order.
type Config struct {
	Features []FeatureConfig `yaml:"features"`
	Rules    []RuleConfig    `yaml:"rules"`
}

func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Features))
	for i := range c.Features {
		if err := c.Features[i].Validate(); err != nil {
			return err
		}
		if _, ok := seen[c.Features[i].Name]; ok {
			return errors.Errorf("duplicate feature %s", c.Features[i].Name)
		}
		seen[c.Features[i].Name] = struct{}{}
	}

	for i := range c.Rules {
		if err := c.Rules[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// LoadConfig reads and validates a yaml engine configuration.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading engine config")
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing engine config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
