package attrs

import (
	"fmt"
	"sort"
	"sync"
)

// Dictionary maps tags to values. Per-slice tags additionally hold one value
// per slice; a slice without its own value falls back to the series-level
// value of the same tag.
//
// A Dictionary is safe for concurrent use.
type Dictionary struct {
	mu     sync.RWMutex
	values map[Tag]Value
	slices map[Tag][]Value
	n      int
}

// New returns an empty dictionary.
func New() *Dictionary {
	return &Dictionary{
		values: make(map[Tag]Value),
		slices: make(map[Tag][]Value),
	}
}

// Get returns the series-level value of t.
func (d *Dictionary) Get(t Tag) (Value, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[t]
	return v, ok
}

// IsSet reports whether t has a series-level value.
func (d *Dictionary) IsSet(t Tag) bool {
	_, ok := d.Get(t)
	return ok
}

// Set stores the series-level value of t. String values longer than the
// tag's limit are truncated. Setting an unset Value removes the tag.
func (d *Dictionary) Set(t Tag, v Value) error {
	if !v.IsSet() {
		d.Unset(t)
		return nil
	}
	v, err := conform(t, v)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[t] = v
	return nil
}

// Unset removes the series-level value of t.
func (d *Dictionary) Unset(t Tag) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.values, t)
}

// SliceCount returns the number of slices per-slice values are tracked for.
func (d *Dictionary) SliceCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.n
}

// SetSliceCount sizes every per-slice sequence to n entries. Existing entries
// beyond n are dropped, new entries are unset.
func (d *Dictionary) SetSliceCount(n int) {
	if n < 0 {
		n = 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.n = n
	for t, seq := range d.slices {
		d.slices[t] = resize(seq, n)
	}
}

// SetSlice stores the value of a per-slice tag for slice i.
func (d *Dictionary) SetSlice(t Tag, i int, v Value) error {
	if !t.Valid() {
		return ErrUnknownTag
	}
	if !t.PerSlice() {
		return fmt.Errorf("%w: %s", ErrNotPerSlice, t)
	}
	if v.IsSet() {
		var err error
		if v, err = conform(t, v); err != nil {
			return err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= d.n {
		return fmt.Errorf("%w: %s[%d] with %d slices", ErrSliceIndex, t, i, d.n)
	}
	seq, ok := d.slices[t]
	if !ok {
		seq = make([]Value, d.n)
		d.slices[t] = seq
	}
	seq[i] = v
	return nil
}

// GetSlice returns the value of t for slice i, falling back to the
// series-level value when the slice has none of its own.
func (d *Dictionary) GetSlice(t Tag, i int) (Value, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if seq, ok := d.slices[t]; ok && i >= 0 && i < len(seq) && seq[i].IsSet() {
		return seq[i], true
	}
	v, ok := d.values[t]
	return v, ok
}

// SetAllSlices stores v as the value of a per-slice tag for every slice.
func (d *Dictionary) SetAllSlices(t Tag, v Value) error {
	if !t.Valid() {
		return ErrUnknownTag
	}
	if !t.PerSlice() {
		return fmt.Errorf("%w: %s", ErrNotPerSlice, t)
	}
	v, err := conform(t, v)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	seq := make([]Value, d.n)
	for i := range seq {
		seq[i] = v
	}
	d.slices[t] = seq
	return nil
}

// Finalize materializes series-level fallbacks into every per-slice sequence
// and checks that each sequence holds exactly one value per slice.
func (d *Dictionary) Finalize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range sortedTags(d.slices) {
		seq := d.slices[t]
		if len(seq) != d.n {
			return fmt.Errorf("%w: %s has %d values for %d slices", ErrIncompleteSlices, t, len(seq), d.n)
		}
		fallback, hasFallback := d.values[t]
		for i := range seq {
			if seq[i].IsSet() {
				continue
			}
			if !hasFallback {
				return fmt.Errorf("%w: %s missing for slice %d", ErrIncompleteSlices, t, i)
			}
			seq[i] = fallback
		}
	}
	return nil
}

// Tags returns the tags with a series-level value, in enumeration order.
func (d *Dictionary) Tags() []Tag {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedTags(d.values)
}

// Clone returns a deep copy of d.
func (d *Dictionary) Clone() *Dictionary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c := New()
	c.n = d.n
	for t, v := range d.values {
		c.values[t] = v
	}
	for t, seq := range d.slices {
		c.slices[t] = append([]Value(nil), seq...)
	}
	return c
}

// Merge overlays every value set in o onto d.
func (d *Dictionary) Merge(o *Dictionary) {
	if o == nil || o == d {
		return
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	for t, v := range o.values {
		d.values[t] = v
	}
	if o.n > d.n {
		d.n = o.n
		for t, seq := range d.slices {
			d.slices[t] = resize(seq, d.n)
		}
	}
	for t, seq := range o.slices {
		dst := resize(d.slices[t], d.n)
		for i, v := range seq {
			if v.IsSet() && i < len(dst) {
				dst[i] = v
			}
		}
		d.slices[t] = dst
	}
}

// Instance flattens the attributes of slice i: series-level values overlaid
// with the slice's own values.
func (d *Dictionary) Instance(i int) Instance {
	d.mu.RLock()
	defer d.mu.RUnlock()
	inst := make(Instance, len(d.values)+len(d.slices))
	for t, v := range d.values {
		inst[t] = v
	}
	for t, seq := range d.slices {
		if i >= 0 && i < len(seq) && seq[i].IsSet() {
			inst[t] = seq[i]
		}
	}
	return inst
}

func resize(seq []Value, n int) []Value {
	if len(seq) >= n {
		return seq[:n:n]
	}
	out := make([]Value, n)
	copy(out, seq)
	return out
}

func sortedTags[V any](m map[Tag]V) []Tag {
	tags := make([]Tag, 0, len(m))
	for t := range m {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Instance is the flattened attribute set of one output instance.
type Instance map[Tag]Value

// Get returns the value of t.
func (in Instance) Get(t Tag) (Value, bool) {
	v, ok := in[t]
	return v, ok && v.IsSet()
}

// Set stores v for t after checking its kind.
func (in Instance) Set(t Tag, v Value) error {
	v, err := conform(t, v)
	if err != nil {
		return err
	}
	in[t] = v
	return nil
}

// Tags returns the set tags in enumeration order.
func (in Instance) Tags() []Tag {
	tags := sortedTags(in)
	out := tags[:0]
	for _, t := range tags {
		if in[t].IsSet() {
			out = append(out, t)
		}
	}
	return out
}
