package eprime

// Frame is one nested block of an E-Prime log: a leveled key/value map with
// a link to the enclosing block. Level 1 is the innermost nesting; the
// outermost observed level carries the highest number.
type Frame struct {
	Level  int
	Parent *Frame

	keys   []string
	values map[string]string
}

func newFrame(parent *Frame) *Frame {
	return &Frame{Parent: parent, values: make(map[string]string)}
}

// Set inserts or updates a key, preserving first-insertion order.
func (f *Frame) Set(key, value string) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Get returns the value for key and whether it is present.
func (f *Frame) Get(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Keys returns the frame's keys in insertion order.
func (f *Frame) Keys() []string {
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// rename moves a key to a new name, keeping its position in the key order.
// A no-op when the key is absent or the new name is already taken.
func (f *Frame) rename(from, to string) {
	v, ok := f.values[from]
	if !ok {
		return
	}
	if _, taken := f.values[to]; taken {
		return
	}
	for i, k := range f.keys {
		if k == from {
			f.keys[i] = to
			break
		}
	}
	delete(f.values, from)
	f.values[to] = v
}

// flatten walks from f up through its parent chain and merges every
// ancestor's keys into one ordered row. The innermost value wins on a name
// collision; the leaf's own keys come first in the returned key order.
func (f *Frame) flatten() (map[string]string, []string) {
	row := make(map[string]string)
	var order []string
	for cur := f; cur != nil; cur = cur.Parent {
		for _, k := range cur.keys {
			if _, ok := row[k]; ok {
				continue
			}
			row[k] = cur.values[k]
			order = append(order, k)
		}
	}
	return row, order
}
