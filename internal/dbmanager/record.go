package dbmanager

import "sort"

// Record is one row as a column-to-value mapping. Key order is
// irrelevant.
type Record map[string]any

// sortedKeys returns the record's column names in a stable order so
// generated SQL is deterministic.
func sortedKeys(rec Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalizeRecord converts driver []byte values to strings so scanned
// rows compare naturally.
func normalizeRecord(rec Record) Record {
	for k, v := range rec {
		if b, ok := v.([]byte); ok {
			rec[k] = string(b)
		}
	}
	return rec
}
