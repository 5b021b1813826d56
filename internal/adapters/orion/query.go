package orion

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// EncodeQuery serializes params in bracket notation: arrays as k[0]=a&k[1]=b,
// nested maps as k[sub]=v. Keys are sorted at every level so the same params
// always produce the same string. Nil values are skipped.
func EncodeQuery(params map[string]any) string {
	var pairs []string
	for _, k := range sortedKeys(params) {
		pairs = appendPairs(pairs, k, params[k])
	}
	return strings.Join(pairs, "&")
}

func appendPairs(pairs []string, key string, v any) []string {
	switch t := v.(type) {
	case nil:
		return pairs
	case map[string]any:
		for _, k := range sortedKeys(t) {
			pairs = appendPairs(pairs, key+"["+k+"]", t[k])
		}
		return pairs
	case []any:
		for i, it := range t {
			pairs = appendPairs(pairs, key+"["+strconv.Itoa(i)+"]", it)
		}
		return pairs
	case []string:
		for i, it := range t {
			pairs = appendPairs(pairs, key+"["+strconv.Itoa(i)+"]", it)
		}
		return pairs
	case []int:
		for i, it := range t {
			pairs = appendPairs(pairs, key+"["+strconv.Itoa(i)+"]", it)
		}
		return pairs
	default:
		return append(pairs, escape(key)+"="+escape(scalar(t)))
	}
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
