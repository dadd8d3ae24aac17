package od

import "canopenslave/internal/omap"

// Dictionary is the immutable, sorted Address->Entry map known at build
// time. Its size and contents never change after New returns.
type Dictionary struct {
	entries *omap.Map[Address, Entry]
}

// New builds a Dictionary from a flat entry list, typically produced by a
// generated or hand-written OD definition. Entries may be given in any
// order; New sorts them once.
func New(entries []Entry) *Dictionary {
	b := omap.NewBuilder[Address, Entry](len(entries), Less)
	for _, e := range entries {
		b.Insert(e.Address, e)
	}
	return &Dictionary{entries: b.Build()}
}

// Lookup returns the entry at addr, if any.
func (d *Dictionary) Lookup(addr Address) (Entry, bool) {
	return d.entries.Lookup(addr)
}

// Len returns the number of declared entries.
func (d *Dictionary) Len() int { return d.entries.Len() }

// Each visits every entry in address order.
func (d *Dictionary) Each(fn func(Entry)) {
	d.entries.Each(func(_ Address, e Entry) { fn(e) })
}

// ReadableCount returns the number of entries with IsReadable() true,
// sizing the handler registry's read-handler table.
func (d *Dictionary) ReadableCount() int {
	n := 0
	d.Each(func(e Entry) {
		if e.IsReadable() {
			n++
		}
	})
	return n
}

// WritableCount returns the number of entries with IsWritable() true,
// sizing the handler registry's write-handler table.
func (d *Dictionary) WritableCount() int {
	n := 0
	d.Each(func(e Entry) {
		if e.IsWritable() {
			n++
		}
	})
	return n
}
