package fraud

// Event attributes arrive as dynamic values: JSON decoding yields float64,
// string and bool, while yaml rule values and Go callers contribute int and
// int64.  Comparisons therefore coerce numeric pairs to float64 and only
// order operands of the same shape; anything else is a comparison failure,
// never a panic.

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// equalValues compares across numeric types numerically and everything else
// by strict equality of like types.
func equalValues(a, b interface{}) bool {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return false
	}
}

// compareValues orders two values, returning <0, 0 or >0.  The second return
// is false when the pair has no natural ordering.
func compareValues(a, b interface{}) (int, bool) {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	as, ok := a.(string)
	if !ok {
		return 0, false
	}
	bs, ok := b.(string)
	if !ok {
		return 0, false
	}
	switch {
	case as < bs:
		return -1, true
	case as > bs:
		return 1, true
	default:
		return 0, true
	}
}

// hashable reports whether a value can be stored in a set.  Dynamic values
// decoded from JSON can be maps or slices, which cannot be map keys.
func hashable(v interface{}) bool {
	switch v.(type) {
	case string, bool, int, int32, int64, float32, float64, nil:
		return true
	default:
		return false
	}
}
