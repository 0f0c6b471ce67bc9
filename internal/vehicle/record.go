package vehicle

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Entry is one named value of a record.
type Entry struct {
	Name  string
	Value Value
}

// Record is a flat, ordered vehicle description. Each request owns its record;
// records are not safe for concurrent mutation.
type Record struct {
	entries []Entry
	index   map[string]int
}

// NewRecord returns a record holding every schema field, in order, at its sentinel.
func (s *Schema) NewRecord() *Record {
	r := &Record{
		entries: make([]Entry, len(s.fields)),
		index:   make(map[string]int, len(s.fields)),
	}
	for i, f := range s.fields {
		r.entries[i] = Entry{Name: f.Name}
		r.index[f.Name] = i
	}
	return r
}

// RecordOf builds a record from explicit entries, keeping their order as given.
// It is how callers hand over a record whose layout they control; CheckRecord
// decides whether that layout is usable.
func RecordOf(entries ...Entry) *Record {
	r := &Record{
		entries: make([]Entry, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	copy(r.entries, entries)
	for i, e := range entries {
		if _, dup := r.index[e.Name]; !dup {
			r.index[e.Name] = i
		}
	}
	return r
}

// Entries returns a copy of the record's entries in order.
func (r *Record) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of entries.
func (r *Record) Len() int { return len(r.entries) }

// Get returns the value stored under name.
func (r *Record) Get(name string) (Value, bool) {
	i, ok := r.index[name]
	if !ok {
		return Value{}, false
	}
	return r.entries[i].Value, true
}

// Set replaces the value of an existing field.
func (r *Record) Set(name string, v Value) error {
	i, ok := r.index[name]
	if !ok {
		return &SchemaMismatchError{Field: name, Reason: "unknown field"}
	}
	r.entries[i].Value = v
	return nil
}

// SetText sets a categorical field.
func (r *Record) SetText(name, s string) error {
	return r.Set(name, Text(s))
}

// SetNumber sets a numeric field.
func (r *Record) SetNumber(name string, f float64) error {
	return r.Set(name, Number(f))
}

// SetFlag sets an option flag.
func (r *Record) SetFlag(name string, f FlagState) error {
	return r.Set(name, FlagValue(f))
}

// CheckRecord verifies that r carries exactly the schema's fields in schema order.
func (s *Schema) CheckRecord(r *Record) error {
	if r == nil {
		return &SchemaMismatchError{Reason: "nil record"}
	}
	if len(r.entries) != len(s.fields) {
		for _, e := range r.entries {
			if _, ok := s.index[e.Name]; !ok {
				return &SchemaMismatchError{Field: e.Name, Reason: "unknown field"}
			}
		}
		for _, f := range s.fields {
			if _, ok := r.index[f.Name]; !ok {
				return &SchemaMismatchError{Field: f.Name, Reason: "missing field"}
			}
		}
		return &SchemaMismatchError{Reason: fmt.Sprintf("expected %d fields, got %d", len(s.fields), len(r.entries))}
	}
	for i, e := range r.entries {
		if e.Name != s.fields[i].Name {
			if _, ok := s.index[e.Name]; !ok {
				return &SchemaMismatchError{Field: e.Name, Reason: "unknown field"}
			}
			return &SchemaMismatchError{
				Field:  e.Name,
				Reason: fmt.Sprintf("at position %d, expected %q", i, s.fields[i].Name),
			}
		}
	}
	return nil
}

// RecordFromMap builds a record from loosely typed input such as decoded JSON or
// CLI assignments. Keys missing from m stay at their sentinel; unknown keys and
// values of the wrong shape are schema mismatches.
func (s *Schema) RecordFromMap(m map[string]any) (*Record, error) {
	r := s.NewRecord()

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		f, ok := s.Lookup(k)
		if !ok {
			return nil, &SchemaMismatchError{Field: k, Reason: "unknown field"}
		}
		v, err := coerce(f, m[k])
		if err != nil {
			return nil, &SchemaMismatchError{Field: k, Reason: err.Error()}
		}
		r.entries[r.index[k]].Value = v
	}
	return r, nil
}

func coerce(f Field, raw any) (Value, error) {
	if raw == nil {
		return Value{}, nil
	}
	switch f.Role {
	case Categorical:
		switch x := raw.(type) {
		case string:
			return Text(x), nil
		case json.Number:
			return Text(x.String()), nil
		default:
			return Value{}, fmt.Errorf("expected text, got %T", raw)
		}
	case Numeric:
		n, err := toFloat(raw)
		if err != nil {
			return Value{}, err
		}
		return Number(n), nil
	case Flag:
		switch x := raw.(type) {
		case bool:
			if x {
				return FlagValue(FlagPresent), nil
			}
			return FlagValue(FlagAbsent), nil
		case string:
			st, err := ParseFlag(x)
			if err != nil {
				return Value{}, err
			}
			return FlagValue(st), nil
		default:
			n, err := toFloat(raw)
			if err != nil {
				return Value{}, err
			}
			switch n {
			case 0:
				return FlagValue(FlagAbsent), nil
			case 1:
				return FlagValue(FlagPresent), nil
			default:
				return Value{}, fmt.Errorf("flag must be 0 or 1, got %v", n)
			}
		}
	}
	return Value{}, fmt.Errorf("unsupported role %s", f.Role)
}

func toFloat(raw any) (float64, error) {
	switch x := raw.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		s := strings.TrimSpace(strings.Replace(x, ",", ".", 1))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
}
