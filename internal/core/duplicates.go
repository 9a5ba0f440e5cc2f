package core

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// NormalizeKey returns the comparison form of a record key: trimmed and
// lowercased.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// KeySet holds normalized keys that already exist downstream. A nil KeySet is
// empty.
type KeySet map[string]struct{}

// NewKeySet builds a set from keys, normalizing each. Empty keys are dropped.
func NewKeySet(keys ...string) KeySet {
	ks := make(KeySet, len(keys))
	for _, k := range keys {
		ks.Add(k)
	}
	return ks
}

// Add inserts the normalized form of key.
func (ks KeySet) Add(key string) {
	if k := NormalizeKey(key); k != "" {
		ks[k] = struct{}{}
	}
}

// Has reports whether the normalized form of key is in the set.
func (ks KeySet) Has(key string) bool {
	_, ok := ks[NormalizeKey(key)]
	return ok
}

// Len returns the number of keys.
func (ks KeySet) Len() int { return len(ks) }

// Merge adds every key of other.
func (ks KeySet) Merge(other KeySet) {
	for k := range other {
		ks[k] = struct{}{}
	}
}

// ReadKeySet reads one key per line. Blank lines and lines starting with
// '#' are skipped.
func ReadKeySet(r io.Reader) (KeySet, error) {
	ks := NewKeySet()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ks.Add(line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read keys: %w", err)
	}
	return ks, nil
}

// Duplicate describes why a record was rejected as a duplicate.
type Duplicate struct {
	Key      string
	FirstRow int  // Source row of the first occurrence in the file, 0 for existing keys
	Existing bool // Key is already present downstream
}

func (d Duplicate) message() string {
	if d.Existing {
		return fmt.Sprintf("%q already exists", d.Key)
	}
	return fmt.Sprintf("%q duplicates row %d", d.Key, d.FirstRow)
}

// MarkDuplicates returns the indexes of records whose key collides with an
// existing key or with an earlier record in the file. The first occurrence of
// an in-file key is kept whatever else is wrong with it. Records without a key
// are never duplicates.
func MarkDuplicates(records []CandidateRecord, keyColumn string, existing KeySet) map[int]Duplicate {
	dups := make(map[int]Duplicate)
	seen := make(map[string]int, len(records))

	for i, rec := range records {
		f, _ := rec.Field(keyColumn)
		key := NormalizeKey(f.Raw)
		if key == "" {
			continue
		}

		if existing.Has(key) {
			dups[i] = Duplicate{Key: key, Existing: true}
			continue
		}
		if first, ok := seen[key]; ok {
			dups[i] = Duplicate{Key: key, FirstRow: first}
			continue
		}
		seen[key] = rec.SourceRow
	}
	return dups
}
