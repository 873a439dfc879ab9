package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/PeerDB-io/gcp-inventory/model"
)

// timestamps are normalized to microsecond precision by a round trip through this layout
const microsLayout = "2006-01-02 15:04:05.000000"

var errUnsupported = errors.New("unsupported value")

type coercer struct {
	convert func(v any) (any, error)
	// value used for null when the field declares no default
	null any
}

var registry = map[model.SemanticType]coercer{
	model.SemanticInteger:     {convert: toInt64, null: int64(0)},
	model.SemanticFloat:       {convert: toFloat64},
	model.SemanticBoolean:     {convert: toBool, null: false},
	model.SemanticString:      {convert: toString},
	model.SemanticEpochMillis: {convert: fromEpochMillis},
	model.SemanticISO8601:     {convert: fromISO8601},
	model.SemanticDate:        {convert: toDate},
	model.SemanticListString:  {convert: toListString},
	model.SemanticDuration:    {convert: fromDuration},
	model.SemanticJSON:        {convert: toJSON},
}

// coerce converts v to the field's semantic type. Null becomes the field's
// default when declared, the type's null value otherwise.
func coerce(field model.Field, v any) (any, error) {
	c, ok := registry[field.Semantic()]
	if !ok {
		return nil, fmt.Errorf("no coercion for type %s", field.Type)
	}
	if v == nil {
		if field.Default == nil {
			return c.null, nil
		}
		v = field.Default
	}
	return c.convert(v)
}

func toInt64(v any) (any, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		return integralFloat(n)
	case json.Number:
		return parseInt(n.String())
	case string:
		return parseInt(n)
	}
	return nil, fmt.Errorf("%w %T for integer", errUnsupported, v)
}

func parseInt(s string) (any, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return integralFloat(f)
}

func integralFloat(f float64) (any, error) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return nil, fmt.Errorf("%v is not an int64", f)
	}
	return int64(f), nil
}

func toFloat64(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q", n)
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w %T for float", errUnsupported, v)
}

func toBool(v any) (any, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return nil, fmt.Errorf("invalid boolean %q", b)
		}
		return parsed, nil
	}
	return nil, fmt.Errorf("%w %T for boolean", errUnsupported, v)
}

func toString(v any) (any, error) {
	return renderString(v)
}

func fromEpochMillis(v any) (any, error) {
	if ts, ok := v.(time.Time); ok {
		return ts.UTC(), nil
	}
	ms, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	return time.UnixMilli(ms.(int64)).UTC(), nil
}

func fromISO8601(v any) (any, error) {
	var ts time.Time
	switch t := v.(type) {
	case time.Time:
		ts = t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t))
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q", t)
		}
		ts = parsed
	default:
		return nil, fmt.Errorf("%w %T for timestamp", errUnsupported, v)
	}

	// truncation to microseconds, matching what BigQuery stores
	return time.ParseInLocation(microsLayout, ts.UTC().Format(microsLayout), time.UTC)
}

func toDate(v any) (any, error) {
	switch d := v.(type) {
	case civil.Date:
		return d, nil
	case time.Time:
		return civil.DateOf(d.UTC()), nil
	case string:
		parsed, err := civil.ParseDate(strings.TrimSpace(d))
		if err != nil {
			return nil, fmt.Errorf("invalid date %q", d)
		}
		return parsed, nil
	}
	return nil, fmt.Errorf("%w %T for date", errUnsupported, v)
}

// toListString renders a sub-list as text. The literal "nan" maps to null,
// which is what downstream consumers of the inventory tables expect for
// tables without the sub-list.
func toListString(v any) (any, error) {
	s, err := renderString(v)
	if err != nil || s == nil {
		return s, err
	}
	if s.(string) == "nan" {
		return nil, nil
	}
	return s, nil
}

func fromDuration(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return toFloat64(v)
	}
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64); err == nil {
		return f, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, fmt.Errorf("invalid duration %q", s)
	}
	return d.Seconds(), nil
}

func toJSON(v any) (any, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return renderJSON(v)
}
