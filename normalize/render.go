package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	jsoniter "github.com/json-iterator/go"

	"github.com/PeerDB-io/gcp-inventory/model"
)

var compactJSON = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
}.Froze()

// renderString turns a cell into text. Lists of scalars use the bracketed,
// single-quoted notation the inventory tables have always stored
// (['a', 'b']); lists holding objects and objects themselves become JSON.
func renderString(v any) (any, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case string:
		return s, nil
	case []any:
		if model.IsScalarList(s) {
			return renderScalarList(s), nil
		}
		return renderJSON(s)
	case map[string]any:
		return renderJSON(s)
	case time.Time:
		return s.UTC().Format(microsLayout), nil
	case civil.Date:
		return s.String(), nil
	default:
		return renderScalar(s), nil
	}
}

func renderJSON(v any) (any, error) {
	raw, err := compactJSON.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to render %T as json: %w", v, err)
	}
	return string(raw), nil
}

func renderScalarList(items []any) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		if s, ok := item.(string); ok {
			sb.WriteByte('\'')
			sb.WriteString(strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s))
			sb.WriteByte('\'')
		} else {
			sb.WriteString(renderScalar(item))
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

func renderScalar(v any) string {
	switch s := v.(type) {
	case nil:
		return "None"
	case bool:
		if s {
			return "True"
		}
		return "False"
	case json.Number:
		return s.String()
	case float64:
		text := strconv.FormatFloat(s, 'f', -1, 64)
		if !strings.ContainsAny(text, ".eE") {
			text += ".0"
		}
		return text
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	default:
		return fmt.Sprint(s)
	}
}
