package meal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const maxHealthScore = 100

var leadingNumber = regexp.MustCompile(`^[-+]?\d+(?:\.\d+)?`)

// ParseRecord decodes the model's reply into a canonical AnalysisRecord.
// The reply must hold exactly one JSON value: an object, or an array whose
// first element is used. Markdown code fences around the payload are ignored;
// any other text before or after it fails the parse. Missing or malformed
// fields fall back to their zero defaults instead of failing the record.
func ParseRecord(content string) (AnalysisRecord, error) {
	body := stripCodeFence(content)
	if body == "" {
		return AnalysisRecord{}, errors.New("empty analysis payload")
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return AnalysisRecord{}, fmt.Errorf("decode analysis payload: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return AnalysisRecord{}, errors.New("trailing data after analysis payload")
	}

	if list, ok := raw.([]any); ok {
		if len(list) == 0 {
			return AnalysisRecord{}, errors.New("analysis payload is an empty array")
		}
		raw = list[0]
	}
	fields, ok := raw.(map[string]any)
	if !ok {
		return AnalysisRecord{}, fmt.Errorf("analysis payload is not an object: %s", kindOf(raw))
	}
	return RecordFromFields(fields), nil
}

// RecordFromFields coerces loosely typed JSON fields into a record.
func RecordFromFields(fields map[string]any) AnalysisRecord {
	rec := AnalysisRecord{
		IsFood:        coerceBool(fields["is_food"], true),
		Name:          coerceString(fields["name"]),
		HealthScore:   coerceInt(fields["health_score"]),
		Calories:      coerceInt(fields["calories"]),
		Protein:       coerceInt(fields["protein"]),
		Carbs:         coerceInt(fields["carbs"]),
		Fats:          coerceInt(fields["fats"]),
		Ingredients:   coerceList(fields["ingredients"]),
		HealthSummary: coerceString(fields["health_summary"]),
		ShortReport:   coerceString(fields["short_report"]),
	}
	return rec.Canonical()
}

// UnmarshalJSON applies the record coercion rules so entries written by older
// clients (string ingredients, quoted numbers) still load.
func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return err
	}
	e.AnalysisRecord = RecordFromFields(fields)
	e.Timestamp = coerceString(fields["timestamp"])
	return nil
}

func coerceInt(v any) int {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return boundInt(float64(n))
		}
		if f, err := t.Float64(); err == nil {
			return boundInt(f)
		}
	case float64:
		return boundInt(t)
	case int:
		return t
	case string:
		m := leadingNumber.FindString(strings.TrimSpace(t))
		if m == "" {
			return 0
		}
		if f, err := strconv.ParseFloat(m, 64); err == nil {
			return boundInt(f)
		}
	}
	return 0
}

func boundInt(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	f = math.Round(f)
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < math.MinInt32 {
		return math.MinInt32
	}
	return int(f)
}

func coerceBool(v any, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes":
			return true
		case "false", "no":
			return false
		}
	}
	return def
}

func coerceString(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func coerceList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			switch it := item.(type) {
			case string:
				out = append(out, it)
			case json.Number:
				out = append(out, it.String())
			case bool:
				out = append(out, strconv.FormatBool(it))
			case map[string]any:
				if name, ok := it["name"].(string); ok {
					out = append(out, name)
				}
			}
		}
	case []string:
		out = append(out, t...)
	case string:
		out = append(out, strings.FieldsFunc(t, func(r rune) bool {
			return r == ',' || r == ';' || r == '\n'
		})...)
	}
	// trimming and blank removal happen in Canonical
	return out
}

func stripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
