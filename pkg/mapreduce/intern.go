package mapreduce

import "strings"

// noToken is the id of the missing second token of a unigram.
const noToken uint32 = 0

// Interner stores each distinct token once and hands out small ids, so the
// count table holds fixed-size keys instead of duplicated strings.
type Interner struct {
	ids  map[string]uint32
	strs []string
}

// NewInterner creates an empty intern table.
func NewInterner() *Interner {
	in := &Interner{}
	in.Reset()
	return in
}

// Intern returns the id for s, adding it if needed. added reports whether s
// was new.
func (in *Interner) Intern(s string) (id uint32, added bool) {
	if id, ok := in.ids[s]; ok {
		return id, false
	}
	s = strings.Clone(s)
	id = uint32(len(in.strs))
	in.strs = append(in.strs, s)
	in.ids[s] = id
	return id, true
}

// Lookup returns the string for an id handed out since the last Reset.
func (in *Interner) Lookup(id uint32) string {
	return in.strs[id]
}

// Len returns the number of interned strings.
func (in *Interner) Len() int {
	return len(in.strs) - 1
}

// Reset drops every string. Ids handed out before are no longer valid.
func (in *Interner) Reset() {
	in.ids = make(map[string]uint32)
	in.strs = []string{""}
}
