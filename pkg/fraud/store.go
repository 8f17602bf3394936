package fraud

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// numShards splits customers across independently locked shards so updates
// for different customers can proceed in parallel.  A single customer's
// profile always lives on one shard, which keeps update/read consistent per
// customer.
const numShards = 16

// featureState is the per-customer state of one feature: a scalar for latest
// features, numeric buckets for sum/count, value sets for unique.
type featureState struct {
	latest    interface{}
	hasLatest bool

	nums map[int64]float64
	sets map[int64]map[interface{}]struct{}
}

type profile map[string]*featureState

type shard struct {
	mtx      sync.Mutex
	profiles map[string]profile
}

// FeatureStore maintains per-customer aggregates derived from event streams
// according to a static feature schema.  Profiles are created lazily on first
// update; expired buckets are evicted lazily during reads.
type FeatureStore struct {
	features []FeatureConfig
	shards   [numShards]*shard
}

func NewFeatureStore(features []FeatureConfig) *FeatureStore {
	s := &FeatureStore{
		features: features,
	}
	for i := range s.shards {
		s.shards[i] = &shard{
			profiles: make(map[string]profile),
		}
	}
	return s
}

func (s *FeatureStore) shardFor(customerID string) *shard {
	return s.shards[xxhash.Sum64String(customerID)%numShards]
}

// Update applies one event to every feature whose source and filter match.
// Events carry customer_id, timestamp (seconds), a _source tag and arbitrary
// attributes; missing attributes make the individual feature a no-op.
func (s *FeatureStore) Update(event map[string]interface{}) {
	customerID, ok := event["customer_id"].(string)
	if !ok || customerID == "" {
		return
	}

	source := SourceTransaction
	if src, ok := event["_source"].(string); ok {
		source = src
	}

	sh := s.shardFor(customerID)
	sh.mtx.Lock()
	defer sh.mtx.Unlock()

	prof, ok := sh.profiles[customerID]
	if !ok {
		prof = make(profile)
		sh.profiles[customerID] = prof
	}

	for i := range s.features {
		cfg := &s.features[i]

		if cfg.Source != source {
			continue
		}
		if !filterMatches(cfg.Filter, event) {
			continue
		}

		if cfg.Kind == KindLatest {
			if v, ok := event[cfg.Field]; ok {
				st := prof.state(cfg.Name)
				st.latest = v
				st.hasLatest = true
			}
			continue
		}

		ts, ok := asInt64(event["timestamp"])
		if !ok {
			continue
		}
		bucketKey := (ts / cfg.BucketSize) * cfg.BucketSize

		switch cfg.Kind {
		case KindSum:
			v, ok := asFloat(event[cfg.Field])
			if !ok {
				continue
			}
			st := prof.state(cfg.Name)
			if st.nums == nil {
				st.nums = make(map[int64]float64)
			}
			st.nums[bucketKey] += v
		case KindCount:
			st := prof.state(cfg.Name)
			if st.nums == nil {
				st.nums = make(map[int64]float64)
			}
			st.nums[bucketKey]++
		case KindUnique:
			v, ok := event[cfg.Field]
			if !ok || !hashable(v) {
				continue
			}
			st := prof.state(cfg.Name)
			if st.sets == nil {
				st.sets = make(map[int64]map[interface{}]struct{})
			}
			set, ok := st.sets[bucketKey]
			if !ok {
				set = make(map[interface{}]struct{})
				st.sets[bucketKey] = set
			}
			set[v] = struct{}{}
		}
	}
}

// Read returns the value of every configured feature for the customer as of
// currentTime.  Buckets whose key is strictly below currentTime-window are
// evicted as a side effect.
func (s *FeatureStore) Read(customerID string, currentTime int64) map[string]interface{} {
	result := make(map[string]interface{}, len(s.features))

	sh := s.shardFor(customerID)
	sh.mtx.Lock()
	defer sh.mtx.Unlock()

	prof, ok := sh.profiles[customerID]
	if !ok {
		for i := range s.features {
			result[s.features[i].Name] = s.features[i].defaultValue()
		}
		return result
	}

	for i := range s.features {
		cfg := &s.features[i]

		st, ok := prof[cfg.Name]
		if !ok {
			result[cfg.Name] = cfg.defaultValue()
			continue
		}

		if cfg.Kind == KindLatest {
			if st.hasLatest {
				result[cfg.Name] = st.latest
			} else {
				result[cfg.Name] = cfg.defaultValue()
			}
			continue
		}

		cutoff := currentTime - cfg.Window

		switch cfg.Kind {
		case KindSum, KindCount:
			var total float64
			for key, v := range st.nums {
				if key < cutoff {
					delete(st.nums, key)
					continue
				}
				total += v
			}
			if cfg.Kind == KindCount {
				result[cfg.Name] = int64(total)
			} else {
				result[cfg.Name] = total
			}
		case KindUnique:
			union := make(map[interface{}]struct{})
			for key, set := range st.sets {
				if key < cutoff {
					delete(st.sets, key)
					continue
				}
				for v := range set {
					union[v] = struct{}{}
				}
			}
			result[cfg.Name] = len(union)
		}
	}

	return result
}

func (p profile) state(name string) *featureState {
	st, ok := p[name]
	if !ok {
		st = &featureState{}
		p[name] = st
	}
	return st
}

// filterMatches requires every filter attribute to be present on the event
// with an equal value.
func filterMatches(filter map[string]interface{}, event map[string]interface{}) bool {
	for key, want := range filter {
		got, ok := event[key]
		if !ok || !equalValues(got, want) {
			return false
		}
	}
	return true
}
