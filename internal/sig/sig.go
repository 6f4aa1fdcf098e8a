// Package sig implements the metadata cache: canonicalization and interning
// of type signatures, generic instances, generic classes and generic
// methods, so that identity comparison suffices for structural equality in
// hot dispatch paths.
package sig

import (
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Kind is the element kind of a TypeSig.
type Kind int

const (
	Void Kind = iota
	I1
	U1
	I2
	U2
	I4
	U4
	I8
	U8
	I
	U
	R4
	R8
	Char
	Boolean
	String
	Object
	ValueType
	Class
	Ptr
	SZArray
	Array
	Var
	MVar
	GenericInstKind
	TypedByRef
	FnPtr
)

// TypeID identifies a TypeDef row by owning image and token; used as the
// base-type-def id referenced by GenericClass/GenericMethod and by Var/MVar
// resolution against the owning class's generic container.
type TypeID struct {
	ImageID uint32
	Token   uint32
}

// TypeSig is an immutable, canonicalized description of a type. Two
// canonical TypeSigs are structurally equal if and only if they are
// pointer-equal (spec invariant: identity is the equality operation
// everywhere canonical signatures are compared).
type TypeSig struct {
	Kind Kind

	// Class/ValueType: the underlying type definition.
	Def TypeID

	// Ptr/SZArray/Array element, Var/MVar reduce target after inflation.
	Elem *TypeSig

	// Array: rank only; per-dimension sizes and lower bounds are not recorded.
	Rank int

	// Var/MVar: zero-based parameter position.
	ParamIndex int

	// GenericInst: the generic class this signature was derived from.
	Inst *GenericClass

	// ByRef marks a managed pointer / by-ref parameter.
	ByRef bool

	// AttrBits carries field/parameter attribute bits (custom modifiers
	// etc.) that, when non-zero, make the node non-canonicalizable: it is
	// allocated fresh and never pooled.
	AttrBits uint32

	canonical bool
}

// IsCanonical reports whether sig is a pool representative.
func (s *TypeSig) IsCanonical() bool { return s != nil && s.canonical }

func (s *TypeSig) String() string {
	if s == nil {
		return "<nil>"
	}
	prefix := ""
	if s.ByRef {
		prefix = "&"
	}
	switch s.Kind {
	case Class, ValueType:
		return fmt.Sprintf("%s%v", prefix, s.Def)
	case Ptr:
		return fmt.Sprintf("%s%s*", prefix, s.Elem)
	case SZArray:
		return fmt.Sprintf("%s%s[]", prefix, s.Elem)
	case Array:
		return fmt.Sprintf("%s%s[%d]", prefix, s.Elem, s.Rank)
	case Var:
		return fmt.Sprintf("%s!%d", prefix, s.ParamIndex)
	case MVar:
		return fmt.Sprintf("%s!!%d", prefix, s.ParamIndex)
	case GenericInstKind:
		return fmt.Sprintf("%s%v", prefix, s.Inst)
	default:
		return fmt.Sprintf("%s%s", prefix, kindName(s.Kind))
	}
}

func kindName(k Kind) string {
	names := [...]string{"void", "i1", "u1", "i2", "u2", "i4", "u4", "i8", "u8",
		"i", "u", "r4", "r8", "char", "bool", "string", "object", "valuetype",
		"class", "ptr", "szarray", "array", "var", "mvar", "geninst",
		"typedbyref", "fnptr"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// GenericInst is an ordered, interned sequence of canonical argument
// TypeSigs.
type GenericInst struct {
	Args []*TypeSig
	key  string
}

func (g *GenericInst) String() string {
	parts := make([]string, len(g.Args))
	for i, a := range g.Args {
		parts[i] = a.String()
	}
	return "<" + strings.Join(parts, ",") + ">"
}

// GenericClass is the pair (base-type-def id, class-GenericInst). It
// lazily caches its by-val and by-ref TypeSig views.
type GenericClass struct {
	Base TypeID
	Inst *GenericInst

	mu    sync.Mutex
	byVal *TypeSig
	byRef *TypeSig
}

func (g *GenericClass) String() string { return fmt.Sprintf("%v%v", g.Base, g.Inst) }

// ByVal returns the canonical by-value GenericInst-kind TypeSig for this
// generic class, building it on first use.
func (g *GenericClass) ByVal() *TypeSig {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.byVal == nil {
		g.byVal = &TypeSig{Kind: GenericInstKind, Inst: g, canonical: true}
	}
	return g.byVal
}

// ByRef returns the canonical by-reference view.
func (g *GenericClass) ByRef() *TypeSig {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.byRef == nil {
		g.byRef = &TypeSig{Kind: GenericInstKind, Inst: g, ByRef: true, canonical: true}
	}
	return g.byRef
}

// GenericMethod is the triple (base-method id, class-inst, method-inst).
type GenericMethod struct {
	Base       TypeID
	ClassInst  *GenericInst
	MethodInst *GenericInst
}

func (g *GenericMethod) String() string {
	return fmt.Sprintf("%v%v%v", g.Base, g.ClassInst, g.MethodInst)
}

// Cache owns every interning table for one loaded program. One Cache is
// shared across all images loaded into the same process, matching the
// spec's "no entry is ever removed" lifetime for TypeSig/GenericInst/
// GenericClass/GenericMethod.
type Cache struct {
	mu sync.RWMutex

	primitives [FnPtr + 1]*TypeSig
	varPool    map[TypeID][]*TypeSig
	mvarPool   map[TypeID][]*TypeSig
	ptrPool    map[*TypeSig]*TypeSig
	szarrPool  map[*TypeSig]*TypeSig
	arrPool    map[arrKey]*TypeSig
	classPool  map[TypeID]*TypeSig
	vtPool     map[TypeID]*TypeSig

	instCache *lru.Cache[string, *GenericInst]
	gcCache   *lru.Cache[string, *GenericClass]
	gmCache   *lru.Cache[string, *GenericMethod]
}

type arrKey struct {
	elem *TypeSig
	rank int
}

// NewCache builds an empty metadata cache. size bounds the LRU interning
// tables for GenericInst/GenericClass/GenericMethod; 0 selects a generous
// default suitable for a single process's lifetime.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = 4096
	}
	instCache, _ := lru.New[string, *GenericInst](size)
	gcCache, _ := lru.New[string, *GenericClass](size)
	gmCache, _ := lru.New[string, *GenericMethod](size)

	c := &Cache{
		varPool:   make(map[TypeID][]*TypeSig),
		mvarPool:  make(map[TypeID][]*TypeSig),
		ptrPool:   make(map[*TypeSig]*TypeSig),
		szarrPool: make(map[*TypeSig]*TypeSig),
		arrPool:   make(map[arrKey]*TypeSig),
		classPool: make(map[TypeID]*TypeSig),
		vtPool:    make(map[TypeID]*TypeSig),
		instCache: instCache,
		gcCache:   gcCache,
		gmCache:   gmCache,
	}
	for k := Void; k <= FnPtr; k++ {
		switch k {
		case Class, ValueType, Ptr, SZArray, Array, Var, MVar, GenericInstKind:
			// structural kinds, not primitive singletons
			continue
		}
		c.primitives[k] = &TypeSig{Kind: k, canonical: true}
	}
	return c
}

// GetPooledTypeSig returns the unique pool representative for a
// canonicalizable primitive signature. Non-canonical signatures (carrying
// attribute bits) must be built fresh by the caller instead.
func (c *Cache) GetPooledTypeSig(k Kind) *TypeSig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.primitives[k]
}

// GetPooledVar returns the canonical Var(owner, index) signature, held in a
// per-owning-class array indexed by parameter position.
func (c *Cache) GetPooledVar(owner TypeID, index int) *TypeSig {
	c.mu.Lock()
	defer c.mu.Unlock()
	arr := c.varPool[owner]
	for len(arr) <= index {
		arr = append(arr, nil)
	}
	if arr[index] == nil {
		arr[index] = &TypeSig{Kind: Var, Def: owner, ParamIndex: index, canonical: true}
	}
	c.varPool[owner] = arr
	return arr[index]
}

// GetPooledMVar returns the canonical MVar(owner, index) signature.
func (c *Cache) GetPooledMVar(owner TypeID, index int) *TypeSig {
	c.mu.Lock()
	defer c.mu.Unlock()
	arr := c.mvarPool[owner]
	for len(arr) <= index {
		arr = append(arr, nil)
	}
	if arr[index] == nil {
		arr[index] = &TypeSig{Kind: MVar, Def: owner, ParamIndex: index, canonical: true}
	}
	c.mvarPool[owner] = arr
	return arr[index]
}

// GetPooledClass returns the canonical Class/ValueType TypeSig for a
// type-def id. valueType selects the ValueType kind over Class.
func (c *Cache) GetPooledClass(id TypeID, valueType bool) *TypeSig {
	c.mu.Lock()
	defer c.mu.Unlock()
	pool := c.classPool
	if valueType {
		pool = c.vtPool
	}
	if s, ok := pool[id]; ok {
		return s
	}
	kind := Class
	if valueType {
		kind = ValueType
	}
	s := &TypeSig{Kind: kind, Def: id, canonical: true}
	pool[id] = s
	return s
}

// GetPooledPtr returns the canonical pointer-to-elem signature.
func (c *Cache) GetPooledPtr(elem *TypeSig) *TypeSig {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.ptrPool[elem]; ok {
		return s
	}
	s := &TypeSig{Kind: Ptr, Elem: elem, canonical: true}
	c.ptrPool[elem] = s
	return s
}

// GetPooledSZArray returns the canonical single-dimension zero-based array
// of elem.
func (c *Cache) GetPooledSZArray(elem *TypeSig) *TypeSig {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.szarrPool[elem]; ok {
		return s
	}
	s := &TypeSig{Kind: SZArray, Elem: elem, canonical: true}
	c.szarrPool[elem] = s
	return s
}

// GetPooledArray returns the canonical multi-rank array of elem.
func (c *Cache) GetPooledArray(elem *TypeSig, rank int) *TypeSig {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := arrKey{elem, rank}
	if s, ok := c.arrPool[key]; ok {
		return s
	}
	s := &TypeSig{Kind: Array, Elem: elem, Rank: rank, canonical: true}
	c.arrPool[key] = s
	return s
}

// GetPooledGenericInst hash-conses an argument vector over structural
// equality of its (already-canonical) element types.
func (c *Cache) GetPooledGenericInst(args []*TypeSig) *GenericInst {
	key := instKey(args)
	if g, ok := c.instCache.Get(key); ok {
		return g
	}
	g := &GenericInst{Args: append([]*TypeSig(nil), args...), key: key}
	c.instCache.Add(key, g)
	return g
}

// GetPooledGenericClass hash-conses a (base-type-def, class-inst) pair.
func (c *Cache) GetPooledGenericClass(base TypeID, inst *GenericInst) *GenericClass {
	key := fmt.Sprintf("%v:%s", base, inst.key)
	if g, ok := c.gcCache.Get(key); ok {
		return g
	}
	g := &GenericClass{Base: base, Inst: inst}
	c.gcCache.Add(key, g)
	return g
}

// GetPooledGenericMethod hash-conses a (base-method, class-inst,
// method-inst) triple.
func (c *Cache) GetPooledGenericMethod(base TypeID, classInst, methodInst *GenericInst) *GenericMethod {
	ck, mk := "", ""
	if classInst != nil {
		ck = classInst.key
	}
	if methodInst != nil {
		mk = methodInst.key
	}
	key := fmt.Sprintf("%v:%s:%s", base, ck, mk)
	if g, ok := c.gmCache.Get(key); ok {
		return g
	}
	g := &GenericMethod{Base: base, ClassInst: classInst, MethodInst: methodInst}
	c.gmCache.Add(key, g)
	return g
}

func instKey(args []*TypeSig) string {
	var b strings.Builder
	for _, a := range args {
		fmt.Fprintf(&b, "%p;", a)
	}
	return b.String()
}
