package document

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind discriminates the two result variants
type Kind string

const (
	KindFields  Kind = "fields"
	KindTabular Kind = "tabular"
)

// Result is either *Fields or *Tabular. The set is closed; switch on the
// concrete type to consume it.
type Result interface {
	Kind() Kind
	Len() int
	isResult()
}

// Fields is an insertion-ordered string map
type Fields struct {
	keys   []string
	values map[string]string
}

// NewFields creates an empty field map
func NewFields() *Fields {
	return &Fields{values: make(map[string]string)}
}

func (f *Fields) Kind() Kind { return KindFields }
func (f *Fields) isResult()  {}

// Len returns the number of fields
func (f *Fields) Len() int { return len(f.keys) }

// Set stores a value. Overwriting keeps the original position.
func (f *Fields) Set(key, value string) {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Get returns the value for key
func (f *Fields) Get(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Has reports whether key is present
func (f *Fields) Has(key string) bool {
	_, ok := f.values[key]
	return ok
}

// Delete removes key, preserving the order of the rest
func (f *Fields) Delete(key string) {
	if _, ok := f.values[key]; !ok {
		return
	}
	delete(f.values, key)
	for i, k := range f.keys {
		if k == key {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order
func (f *Fields) Keys() []string {
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Values returns the values in insertion order
func (f *Fields) Values() []string {
	out := make([]string, 0, len(f.keys))
	for _, k := range f.keys {
		out = append(out, f.values[k])
	}
	return out
}

// Range calls fn for every pair in order until fn returns false
func (f *Fields) Range(fn func(key, value string) bool) {
	for _, k := range f.keys {
		if !fn(k, f.values[k]) {
			return
		}
	}
}

// DropEmpty removes every key whose value is empty
func (f *Fields) DropEmpty() {
	kept := f.keys[:0]
	for _, k := range f.keys {
		if f.values[k] == "" {
			delete(f.values, k)
			continue
		}
		kept = append(kept, k)
	}
	f.keys = kept
}

// MarshalJSON writes the fields as an object in insertion order
func (f *Fields) MarshalJSON() ([]byte, error) {
	return marshalOrdered(f.keys, f.values)
}

// UnmarshalJSON reads an object, keeping the document order
func (f *Fields) UnmarshalJSON(data []byte) error {
	keys, values, err := unmarshalOrdered(data)
	if err != nil {
		return err
	}
	f.keys, f.values = keys, values
	return nil
}

// Row is one record of a tabular result, keyed by column name
type Row map[string]string

// Tabular is a table with a fixed, ordered column schema
type Tabular struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewTabular creates an empty table for the given schema
func NewTabular(columns ...string) *Tabular {
	return &Tabular{Columns: columns, Rows: []Row{}}
}

func (t *Tabular) Kind() Kind { return KindTabular }
func (t *Tabular) isResult()  {}

// Len returns the number of rows
func (t *Tabular) Len() int { return len(t.Rows) }

// Append adds a row built from positional values. Missing values are
// left empty; extra values are an error because they would not fit the schema.
func (t *Tabular) Append(values ...string) error {
	if len(values) > len(t.Columns) {
		return fmt.Errorf("row has %d values, schema has %d columns", len(values), len(t.Columns))
	}
	row := make(Row, len(t.Columns))
	for i, col := range t.Columns {
		if i < len(values) {
			row[col] = values[i]
		} else {
			row[col] = ""
		}
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Records returns the rows as positional slices in schema order
func (t *Tabular) Records() [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			rec[i] = row[col]
		}
		out = append(out, rec)
	}
	return out
}

// MarshalJSON keeps every row in schema order
func (t *Tabular) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	cols, err := json.Marshal(t.Columns)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"columns":`)
	buf.Write(cols)
	buf.WriteString(`,"rows":[`)
	for i, row := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := marshalOrdered(t.Columns, row)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteString(`]}`)
	return buf.Bytes(), nil
}

// MarshalJSON adds the result and its kind to the envelope
func (e *Extraction) MarshalJSON() ([]byte, error) {
	type plain Extraction
	out := struct {
		*plain
		Kind   Kind   `json:"kind,omitempty"`
		Result Result `json:"result"`
	}{plain: (*plain)(e), Result: e.Result}
	if e.Result != nil {
		out.Kind = e.Result.Kind()
	}
	return json.Marshal(out)
}

func marshalOrdered(keys []string, values map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func unmarshalOrdered(data []byte) ([]string, map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("fields must be a JSON object")
	}
	var keys []string
	values := make(map[string]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected key token %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", key, err)
		}
		if _, seen := values[key]; !seen {
			keys = append(keys, key)
		}
		values[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}
