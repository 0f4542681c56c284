package synthesis

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"interview-insights-go/internal/types"
)

const (
	audioHeading = "Audio Analysis:"
	videoHeading = "Video Analysis:"
)

// FormatAudio renders audio metrics for the analysis prompt; unusable metrics give "".
func FormatAudio(m types.Metrics) string { return formatBlock(audioHeading, m) }

// FormatVideo renders video metrics for the analysis prompt; unusable metrics give "".
func FormatVideo(m types.Metrics) string { return formatBlock(videoHeading, m) }

// Label turns a metric key like "speaking_rate" into "Speaking Rate".
func Label(key string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(key, "_", " "))
}

func formatBlock(heading string, m types.Metrics) string {
	if !m.Usable() {
		return ""
	}
	var b strings.Builder
	b.WriteString(heading)
	b.WriteByte('\n')
	for _, key := range sortedKeys(m) {
		value := m[key]
		if nested, ok := stringMap(value); ok {
			fmt.Fprintf(&b, "- %s:\n", Label(key))
			for _, k := range sortedKeys(nested) {
				fmt.Fprintf(&b, "  - %s: %v\n", k, nested[k])
			}
			continue
		}
		fmt.Fprintf(&b, "- %s: %v\n", Label(key), value)
	}
	return b.String()
}

// stringMap flattens any map keyed by strings (emotion counts, distributions) into map[string]any.
func stringMap(v any) (map[string]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
