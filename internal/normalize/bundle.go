package normalize

// Bundle is an ordered label → table mapping derived from one response, such
// as the per-category tables of a team's statistics.
type Bundle struct {
	labels []string
	tables map[string]*Table
}

// NewBundle returns an empty bundle.
func NewBundle() *Bundle {
	return &Bundle{tables: make(map[string]*Table)}
}

// Single wraps one table in a bundle under the empty label.
func Single(t *Table) *Bundle {
	b := NewBundle()
	b.Set("", t)
	return b
}

// Set adds or replaces the table for label. New labels keep insertion order.
func (b *Bundle) Set(label string, t *Table) {
	if _, ok := b.tables[label]; !ok {
		b.labels = append(b.labels, label)
	}
	b.tables[label] = t
}

// Get returns the table for label.
func (b *Bundle) Get(label string) (*Table, bool) {
	t, ok := b.tables[label]
	return t, ok
}

// Labels returns the labels in insertion order.
func (b *Bundle) Labels() []string {
	out := make([]string, len(b.labels))
	copy(out, b.labels)
	return out
}

// Len returns the number of tables.
func (b *Bundle) Len() int { return len(b.labels) }

// Each calls fn for every table in label order, stopping at the first error.
func (b *Bundle) Each(fn func(label string, t *Table) error) error {
	for _, l := range b.labels {
		if err := fn(l, b.tables[l]); err != nil {
			return err
		}
	}
	return nil
}

// SetConstant stamps col = v onto every table in the bundle.
func (b *Bundle) SetConstant(col string, v Value) {
	for _, l := range b.labels {
		b.tables[l].SetConstant(col, v)
	}
}

// MarshalJSON encodes the bundle as an object of label → row arrays, in
// label order.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	fields := make([]Field, 0, len(b.labels))
	for _, l := range b.labels {
		fields = append(fields, Field{Key: l, Value: b.tables[l].Records()})
	}
	return Object(fields...).MarshalJSON()
}
