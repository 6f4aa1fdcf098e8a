package llir

import "github.com/leanclr/leanclr/internal/vm"

// ResolvedEntry is one metadata pointer interned into a method's side
// table: an instruction encodes a small index into this slice rather than
// carrying the pointer inline per the resolved-data interning rule.
type ResolvedEntry struct {
	Kind   ResolvedKind
	Class  *vm.Class
	Method *vm.Method
	Field  *vm.Field
	Str    string
}

// Pool interns metadata pointers and interned strings for one method,
// deduplicating by identity (classes/methods/fields) or value (strings).
type Pool struct {
	entries  []ResolvedEntry
	classIdx map[*vm.Class]int32
	methIdx  map[*vm.Method]int32
	fieldIdx map[*vm.Field]int32
	strIdx   map[string]int32
}

func newPool() *Pool {
	return &Pool{
		classIdx: map[*vm.Class]int32{},
		methIdx:  map[*vm.Method]int32{},
		fieldIdx: map[*vm.Field]int32{},
		strIdx:   map[string]int32{},
	}
}

func (p *Pool) Entries() []ResolvedEntry { return p.entries }

func (p *Pool) Class(c *vm.Class) int32 {
	if c == nil {
		return -1
	}
	if i, ok := p.classIdx[c]; ok {
		return i
	}
	i := int32(len(p.entries))
	p.entries = append(p.entries, ResolvedEntry{Kind: ResClass, Class: c})
	p.classIdx[c] = i
	return i
}

func (p *Pool) Method(m *vm.Method) int32 {
	if m == nil {
		return -1
	}
	if i, ok := p.methIdx[m]; ok {
		return i
	}
	i := int32(len(p.entries))
	p.entries = append(p.entries, ResolvedEntry{Kind: ResMethod, Method: m})
	p.methIdx[m] = i
	return i
}

func (p *Pool) Field(f *vm.Field) int32 {
	if f == nil {
		return -1
	}
	if i, ok := p.fieldIdx[f]; ok {
		return i
	}
	i := int32(len(p.entries))
	p.entries = append(p.entries, ResolvedEntry{Kind: ResField, Field: f})
	p.fieldIdx[f] = i
	return i
}

func (p *Pool) String(s string) int32 {
	if i, ok := p.strIdx[s]; ok {
		return i
	}
	i := int32(len(p.entries))
	p.entries = append(p.entries, ResolvedEntry{Kind: ResString, Str: s})
	p.strIdx[s] = i
	return i
}
