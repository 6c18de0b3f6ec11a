package plan

import (
	"reflect"
	"time"

	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
)

// Diff returns the fields of desired whose value differs from existing.
// Fields only present in existing (store bookkeeping, manual notes) are left alone.
func Diff(desired, existing map[string]any) map[string]any {
	delta := make(map[string]any)
	for k, want := range desired {
		if !Equal(want, existing[k]) {
			delta[k] = want
		}
	}
	return delta
}

// Equal compares field values the way they survive a store round trip:
// all numeric types compare as float64 and nil equals a missing field.
func Equal(a, b any) bool {
	a, b = canonicalValue(a), canonicalValue(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}

func canonicalValue(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.Format(entity.DateLayout)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.Format(entity.DateLayout)
	default:
		return v
	}
}
