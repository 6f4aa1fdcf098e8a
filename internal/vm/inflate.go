package vm

import (
	"github.com/leanclr/leanclr/internal/rterror"
	"github.com/leanclr/leanclr/internal/sig"
)

// GenericContext substitutes type parameters: Var(i) resolves against
// ClassInst, MVar(i) against MethodInst.
type GenericContext struct {
	ClassInst  *sig.GenericInst
	MethodInst *sig.GenericInst
}

// InflateTypeSig substitutes type parameters through ctx.
func InflateTypeSig(cache *sig.Cache, s *sig.TypeSig, ctx GenericContext) (*sig.TypeSig, error) {
	if s == nil {
		return nil, nil
	}
	switch s.Kind {
	case sig.Var:
		if ctx.ClassInst == nil || s.ParamIndex >= len(ctx.ClassInst.Args) {
			return nil, rterror.New(rterror.ExecutionEngine,
				"Var(%d) inflation with no matching class generic instance", s.ParamIndex)
		}
		return withByRef(ctx.ClassInst.Args[s.ParamIndex], s), nil

	case sig.MVar:
		if ctx.MethodInst == nil {
			return s, nil // preserved as-is outside a generic method context
		}
		if s.ParamIndex >= len(ctx.MethodInst.Args) {
			return nil, rterror.New(rterror.ExecutionEngine,
				"MVar(%d) inflation out of range of method generic instance", s.ParamIndex)
		}
		return withByRef(ctx.MethodInst.Args[s.ParamIndex], s), nil

	case sig.GenericInstKind:
		gc := s.Inst
		newArgs := make([]*sig.TypeSig, len(gc.Inst.Args))
		changed := false
		for i, a := range gc.Inst.Args {
			inflated, err := InflateTypeSig(cache, a, ctx)
			if err != nil {
				return nil, err
			}
			newArgs[i] = inflated
			if inflated != a {
				changed = true
			}
		}
		if !changed {
			return s, nil
		}
		newInst := cache.GetPooledGenericInst(newArgs)
		newGC := cache.GetPooledGenericClass(gc.Base, newInst)
		if s.ByRef {
			return newGC.ByRef(), nil
		}
		return newGC.ByVal(), nil

	case sig.SZArray:
		elem, err := InflateTypeSig(cache, s.Elem, ctx)
		if err != nil {
			return nil, err
		}
		if elem == s.Elem {
			return s, nil
		}
		return withByRef(cache.GetPooledSZArray(elem), s), nil

	case sig.Array:
		elem, err := InflateTypeSig(cache, s.Elem, ctx)
		if err != nil {
			return nil, err
		}
		if elem == s.Elem {
			return s, nil
		}
		return withByRef(cache.GetPooledArray(elem, s.Rank), s), nil

	case sig.Ptr:
		elem, err := InflateTypeSig(cache, s.Elem, ctx)
		if err != nil {
			return nil, err
		}
		if elem == s.Elem {
			return s, nil
		}
		return withByRef(cache.GetPooledPtr(elem), s), nil

	default:
		return s, nil
	}
}

// withByRef preserves the by-ref/attribute bits of the host signature
// (the node being substituted), since inflation must carry the original
// site's by-ref flag, not the substituted argument's.
func withByRef(result *sig.TypeSig, host *sig.TypeSig) *sig.TypeSig {
	if host.ByRef == result.ByRef && host.AttrBits == 0 {
		return result
	}
	// A per-field attribute bit or a differing by-ref flag makes this
	// non-canonicalizable; a fresh, non-pooled node is produced.
	clone := *result
	clone.ByRef = host.ByRef
	clone.AttrBits = host.AttrBits
	return &clone
}

// InflateClassResolver is the subset of Loader InflateClass needs:
// fetching the open generic-definition Class for a base-type-def id and
// materializing a stub Class for a new GenericClass instantiation.
type InflateClassResolver interface {
	OpenDefinitionClass(base sig.TypeID) (*Class, error)
	ClassFromTypeSig(s *sig.TypeSig) (*Class, error)
}

// InflateClass materializes an inflated class from its open generic
// definition, substituting every type reference and preserving method
// slots and field indices per the closing paragraph.
func InflateClass(cache *sig.Cache, r InflateClassResolver, gc *sig.GenericClass) (*Class, error) {
	def, err := r.OpenDefinitionClass(gc.Base)
	if err != nil {
		return nil, rterror.Wrap(rterror.TypeLoad, err, "resolving open generic definition for %v", gc)
	}

	ctx := GenericContext{ClassInst: gc.Inst}

	inflated := &Class{
		Image: def.Image, Token: def.Token,
		Namespace: def.Namespace, Name: def.Name,
		ByVal: gc.ByVal(), ByRef: gc.ByRef(),
		IsInterfaceFlag: def.IsInterfaceFlag, IsAbstract: def.IsAbstract, IsSealed: def.IsSealed,
		IsValueTypeFlag: def.IsValueTypeFlag, ExplicitLayout: def.ExplicitLayout,
		IsEnum: def.IsEnum, Family: def.Family,
		GenericInst: gc,
	}
	inflated.ElementCls = inflated
	inflated.CastCls = inflated

	if def.Parent != nil {
		parentSig, err := InflateTypeSig(cache, def.Parent.ByVal, ctx)
		if err != nil {
			return nil, err
		}
		parentClass, err := r.ClassFromTypeSig(parentSig)
		if err != nil {
			return nil, rterror.Wrap(rterror.TypeLoad, err, "resolving inflated parent of %v", gc)
		}
		inflated.Parent = parentClass
	}

	// Fields and methods preserve per-index correspondence with the open
	// definition ( invariant): same count, inflated types.
	inflated.Fields = make([]*Field, len(def.Fields))
	for i, f := range def.Fields {
		ft, err := InflateTypeSig(cache, f.Type, ctx)
		if err != nil {
			return nil, err
		}
		nf := *f
		nf.Type = ft
		inflated.Fields[i] = &nf
	}

	inflated.Methods = make([]*Method, len(def.Methods))
	for i, m := range def.Methods {
		nm, err := inflateMethodShallow(cache, m, inflated, ctx)
		if err != nil {
			return nil, err
		}
		inflated.Methods[i] = nm
	}

	// Slot numbers are identical between a generic definition and any
	// instantiation: the vtable is replayed with inflated methods.
	inflated.VTable = make([]VirtualInvokeData, len(def.VTable))
	for i, v := range def.VTable {
		inflated.VTable[i] = VirtualInvokeData{
			Decl: findInflatedCounterpart(def.Methods, inflated.Methods, v.Decl),
			Impl: findInflatedCounterpart(def.Methods, inflated.Methods, v.Impl),
		}
	}
	inflated.InterfaceVTableOffset = append([]InterfaceOffset(nil), def.InterfaceVTableOffset...)

	return inflated, nil
}

func findInflatedCounterpart(open, inflated []*Method, target *Method) *Method {
	for i, m := range open {
		if m == target {
			return inflated[i]
		}
	}
	return target
}

func inflateMethodShallow(cache *sig.Cache, m *Method, owner *Class, ctx GenericContext) (*Method, error) {
	rt, err := InflateTypeSig(cache, m.ReturnType, ctx)
	if err != nil {
		return nil, err
	}
	params := make([]*sig.TypeSig, len(m.ParamTypes))
	for i, p := range m.ParamTypes {
		pt, err := InflateTypeSig(cache, p, ctx)
		if err != nil {
			return nil, err
		}
		params[i] = pt
	}
	nm := *m
	nm.Owner = owner
	nm.ReturnType = rt
	nm.ParamTypes = params
	nm.ArgDescriptors = buildArgDescriptors(params, m.IsStatic)
	nm.GenericInst = cache.GetPooledGenericMethod(sig.TypeID{ImageID: m.Owner.Image, Token: m.Token}, ctx.ClassInst, nil)
	return &nm, nil
}

// InflateMethod rebuilds class-inst and method-inst as needed for a
// (possibly open) method under ctx and returns its inflated counterpart.
func InflateMethod(cache *sig.Cache, r InflateClassResolver, m *Method, ctx GenericContext) (*Method, error) {
	if ctx.ClassInst == nil && ctx.MethodInst == nil {
		return m, nil
	}
	if ctx.ClassInst != nil && m.Owner.GenericContainer != nil && !m.Owner.IsGenericDef {
		// already inflated; re-inflating a closed method over itself is a no-op
		return m, nil
	}
	owner := m.Owner
	if ctx.ClassInst != nil {
		base := sig.TypeID{ImageID: owner.Image, Token: owner.Token}
		gc := cache.GetPooledGenericClass(base, ctx.ClassInst)
		inflatedOwner, err := InflateClass(cache, r, gc)
		if err != nil {
			return nil, err
		}
		owner = inflatedOwner
	}
	for _, cand := range owner.Methods {
		if cand.Name == m.Name && cand.SignatureEquals(m) {
			return cand, nil
		}
	}
	return inflateMethodShallow(cache, m, owner, ctx)
}
