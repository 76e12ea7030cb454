package stimulus

import (
	"fmt"
	"math"
	"strconv"
)

// Numbers arrive as int from YAML, int64 from TOML and float64 from JSON.

func floatParam(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidParams, key, v)
	}
}

func intParam(params map[string]any, key string, def int) (int, error) {
	f, err := floatParam(params, key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%w: %s must be a whole number, got %v", ErrInvalidParams, key, f)
	}
	return int(f), nil
}

func stringParam(params map[string]any, key, def string) (string, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidParams, key, v)
	}
	return s, nil
}

// uint64Param reads an exact unsigned integer such as a random seed. Floats
// at or above 2^53 are rejected since they may already have been rounded; a
// decimal string is accepted so values read back from stored results can be
// used as is.
func uint64Param(params map[string]any, key string) (uint64, bool, error) {
	v, ok := params[key]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case uint64:
		return n, true, nil
	case uint:
		return uint64(n), true, nil
	case int:
		if n >= 0 {
			return uint64(n), true, nil
		}
	case int64:
		if n >= 0 {
			return uint64(n), true, nil
		}
	case float64:
		if n >= 0 && n < 1<<53 && n == math.Trunc(n) {
			return uint64(n), true, nil
		}
		return 0, true, fmt.Errorf("%w: %s must be an exact integer, got %v", ErrInvalidParams, key, n)
	case string:
		u, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return 0, true, fmt.Errorf("%w: %s: %v", ErrInvalidParams, key, err)
		}
		return u, true, nil
	default:
		return 0, true, fmt.Errorf("%w: %s must be an integer, got %T", ErrInvalidParams, key, v)
	}
	return 0, true, fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalidParams, key, v)
}
