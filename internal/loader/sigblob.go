package loader

import (
	"github.com/leanclr/leanclr/internal/image"
	"github.com/leanclr/leanclr/internal/rterror"
	"github.com/leanclr/leanclr/internal/sig"
)

// ECMA-335 §II.23.1.16 element-type codes this decoder recognizes. Custom
// modifiers (CMOD_REQD/CMOD_OPT) and the PINNED marker are skipped rather
// than retained, a SENTINEL before a method parameter is stepped over, and
// function pointers are rejected with NotImplemented.
const (
	elementEnd       = 0x00
	elementVoid      = 0x01
	elementBoolean   = 0x02
	elementChar      = 0x03
	elementI1        = 0x04
	elementU1        = 0x05
	elementI2        = 0x06
	elementU2        = 0x07
	elementI4        = 0x08
	elementU4        = 0x09
	elementI8        = 0x0a
	elementU8        = 0x0b
	elementR4        = 0x0c
	elementR8        = 0x0d
	elementString    = 0x0e
	elementPtr       = 0x0f
	elementByRef     = 0x10
	elementValueType = 0x11
	elementClass     = 0x12
	elementVar       = 0x13
	elementArray     = 0x14
	elementGenInst   = 0x15
	elementTypedRef  = 0x16
	elementI         = 0x18
	elementU         = 0x19
	elementFnPtr     = 0x1b
	elementObject    = 0x1c
	elementSZArray   = 0x1d
	elementMVar      = 0x1e
	elementCModReqd  = 0x1f
	elementCModOpt   = 0x20
	elementPinned    = 0x45
	elementSentinel  = 0x41
)

const (
	callConvGeneric = 0x10
)

// sigReader walks a metadata blob's bytes left to right, decoding the
// compressed integers and coded tokens ECMA-335 §II.23.2 describes.
type sigReader struct {
	b   []byte
	pos int
}

func (r *sigReader) done() bool { return r.pos >= len(r.b) }

func (r *sigReader) byte() (byte, error) {
	if r.pos >= len(r.b) {
		return 0, rterror.New(rterror.BadImageFormat, "signature blob truncated")
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

// compressedUint decodes one ECMA-335 §II.23.2 compressed unsigned integer.
func (r *sigReader) compressedUint() (uint32, error) {
	if r.pos >= len(r.b) {
		return 0, rterror.New(rterror.BadImageFormat, "signature blob truncated reading compressed int")
	}
	first := r.b[r.pos]
	switch {
	case first&0x80 == 0:
		r.pos++
		return uint32(first), nil
	case first&0xc0 == 0x80:
		if r.pos+2 > len(r.b) {
			return 0, rterror.New(rterror.BadImageFormat, "signature blob truncated reading 2-byte compressed int")
		}
		v := (uint32(first&0x3f) << 8) | uint32(r.b[r.pos+1])
		r.pos += 2
		return v, nil
	case first&0xe0 == 0xc0:
		if r.pos+4 > len(r.b) {
			return 0, rterror.New(rterror.BadImageFormat, "signature blob truncated reading 4-byte compressed int")
		}
		v := (uint32(first&0x1f) << 24) | (uint32(r.b[r.pos+1]) << 16) | (uint32(r.b[r.pos+2]) << 8) | uint32(r.b[r.pos+3])
		r.pos += 4
		return v, nil
	default:
		return 0, rterror.New(rterror.BadImageFormat, "invalid compressed integer prefix 0x%x", first)
	}
}

// typeDefOrRefOrSpec decodes a coded TypeDefOrRefOrSpec token, as embedded
// in CLASS/VALUETYPE signature elements: a compressed uint whose low 2 bits
// select the table (0=TypeDef, 1=TypeRef, 2=TypeSpec) and whose remaining
// bits are the 1-based row index.
func (r *sigReader) typeDefOrRefOrSpec() (table int, row uint32, err error) {
	v, err := r.compressedUint()
	if err != nil {
		return 0, 0, err
	}
	tag := v & 0x3
	row = v >> 2
	switch tag {
	case 0:
		return image.TypeDef, row, nil
	case 1:
		return image.TypeRef, row, nil
	case 2:
		return image.TypeSpec, row, nil
	default:
		return 0, 0, rterror.New(rterror.BadImageFormat, "invalid TypeDefOrRefOrSpec tag %d", tag)
	}
}

// decodeType decodes one ECMA-335 Type production into a *sig.TypeSig,
// resolving CLASS/VALUETYPE element types through resolve.
func (r *sigReader) decodeType(cache *sig.Cache, resolve func(table int, row uint32) (*sig.TypeSig, error)) (*sig.TypeSig, error) {
	for {
		b, err := r.byte()
		if err != nil {
			return nil, err
		}
		switch b {
		case elementCModReqd, elementCModOpt:
			if _, _, err := r.typeDefOrRefOrSpec(); err != nil {
				return nil, err
			}
			continue // custom modifiers precede the real type; skip and retry
		case elementPinned:
			continue // pinned applies to a local variable's type, not the type itself

		case elementVoid:
			return cache.GetPooledTypeSig(sig.Void), nil
		case elementBoolean:
			return cache.GetPooledTypeSig(sig.Boolean), nil
		case elementChar:
			return cache.GetPooledTypeSig(sig.Char), nil
		case elementI1:
			return cache.GetPooledTypeSig(sig.I1), nil
		case elementU1:
			return cache.GetPooledTypeSig(sig.U1), nil
		case elementI2:
			return cache.GetPooledTypeSig(sig.I2), nil
		case elementU2:
			return cache.GetPooledTypeSig(sig.U2), nil
		case elementI4:
			return cache.GetPooledTypeSig(sig.I4), nil
		case elementU4:
			return cache.GetPooledTypeSig(sig.U4), nil
		case elementI8:
			return cache.GetPooledTypeSig(sig.I8), nil
		case elementU8:
			return cache.GetPooledTypeSig(sig.U8), nil
		case elementR4:
			return cache.GetPooledTypeSig(sig.R4), nil
		case elementR8:
			return cache.GetPooledTypeSig(sig.R8), nil
		case elementI:
			return cache.GetPooledTypeSig(sig.I), nil
		case elementU:
			return cache.GetPooledTypeSig(sig.U), nil
		case elementString:
			return cache.GetPooledTypeSig(sig.String), nil
		case elementObject:
			return cache.GetPooledTypeSig(sig.Object), nil
		case elementTypedRef:
			return cache.GetPooledTypeSig(sig.TypedByRef), nil

		case elementByRef:
			elem, err := r.decodeType(cache, resolve)
			if err != nil {
				return nil, err
			}
			clone := *elem
			clone.ByRef = true
			return &clone, nil

		case elementPtr:
			elem, err := r.decodeType(cache, resolve)
			if err != nil {
				return nil, err
			}
			return cache.GetPooledPtr(elem), nil

		case elementSZArray:
			elem, err := r.decodeType(cache, resolve)
			if err != nil {
				return nil, err
			}
			return cache.GetPooledSZArray(elem), nil

		case elementArray:
			elem, err := r.decodeType(cache, resolve)
			if err != nil {
				return nil, err
			}
			rank, err := r.compressedUint()
			if err != nil {
				return nil, err
			}
			if err := r.skipArrayShape(); err != nil {
				return nil, err
			}
			return cache.GetPooledArray(elem, int(rank)), nil

		case elementValueType, elementClass:
			table, row, err := r.typeDefOrRefOrSpec()
			if err != nil {
				return nil, err
			}
			return resolve(table, row)

		case elementVar:
			idx, err := r.compressedUint()
			if err != nil {
				return nil, err
			}
			return &sig.TypeSig{Kind: sig.Var, ParamIndex: int(idx)}, nil
		case elementMVar:
			idx, err := r.compressedUint()
			if err != nil {
				return nil, err
			}
			return &sig.TypeSig{Kind: sig.MVar, ParamIndex: int(idx)}, nil

		case elementGenInst:
			return r.decodeGenericInst(cache, resolve)

		case elementFnPtr:
			return nil, rterror.New(rterror.NotImplemented, "function-pointer signatures are not supported")

		default:
			return nil, rterror.New(rterror.BadImageFormat, "unrecognized element type 0x%x", b)
		}
	}
}

// skipArrayShape consumes an ArrayShape production (sizes and
// lower-bounds) whose values this loader does not yet surface on
// sig.TypeSig (per-dimension bounds beyond rank).
func (r *sigReader) skipArrayShape() error {
	numSizes, err := r.compressedUint()
	if err != nil {
		return err
	}
	for i := uint32(0); i < numSizes; i++ {
		if _, err := r.compressedUint(); err != nil {
			return err
		}
	}
	numLoBounds, err := r.compressedUint()
	if err != nil {
		return err
	}
	for i := uint32(0); i < numLoBounds; i++ {
		if _, err := r.compressedUint(); err != nil {
			return err
		}
	}
	return nil
}

func (r *sigReader) decodeGenericInst(cache *sig.Cache, resolve func(table int, row uint32) (*sig.TypeSig, error)) (*sig.TypeSig, error) {
	kind, err := r.byte()
	if err != nil {
		return nil, err
	}
	if kind != elementValueType && kind != elementClass {
		return nil, rterror.New(rterror.BadImageFormat, "generic instantiation of non-class/valuetype kind 0x%x", kind)
	}
	table, row, err := r.typeDefOrRefOrSpec()
	if err != nil {
		return nil, err
	}
	base, err := resolve(table, row)
	if err != nil {
		return nil, err
	}
	argCount, err := r.compressedUint()
	if err != nil {
		return nil, err
	}
	args := make([]*sig.TypeSig, argCount)
	for i := range args {
		a, err := r.decodeType(cache, resolve)
		if err != nil {
			return nil, err
		}
		args[i] = a
	}
	inst := cache.GetPooledGenericInst(args)
	gc := cache.GetPooledGenericClass(sig.TypeID{ImageID: 0, Token: baseToken(base)}, inst)
	return gc.ByVal(), nil
}

// baseToken recovers the defining TypeDef token from a resolved base
// TypeSig, used only to key the generic-class cache; ImageID is left 0
// since this loader operates over a single image at a time.
func baseToken(base *sig.TypeSig) uint32 {
	if base == nil {
		return 0
	}
	return base.Def.Token
}

// decodeFieldSignature decodes a FieldSig blob (FIELD CustomMod* Type).
func decodeFieldSignature(cache *sig.Cache, blob []byte, resolve func(table int, row uint32) (*sig.TypeSig, error)) (*sig.TypeSig, error) {
	r := &sigReader{b: blob}
	tag, err := r.byte()
	if err != nil {
		return nil, err
	}
	if tag != 0x06 {
		return nil, rterror.New(rterror.BadImageFormat, "expected FIELD signature tag, got 0x%x", tag)
	}
	return r.decodeType(cache, resolve)
}

// methodSignature is a decoded MethodDefSig: return type and parameter
// types, plus the calling-convention's generic-parameter count (0 for a
// non-generic method).
type methodSignature struct {
	GenericParamCount int
	ReturnType        *sig.TypeSig
	ParamTypes        []*sig.TypeSig
}

// decodeMethodSignature decodes a MethodDefSig blob.
func decodeMethodSignature(cache *sig.Cache, blob []byte, resolve func(table int, row uint32) (*sig.TypeSig, error)) (*methodSignature, error) {
	r := &sigReader{b: blob}
	conv, err := r.byte()
	if err != nil {
		return nil, err
	}
	ms := &methodSignature{}
	if conv&callConvGeneric != 0 {
		gc, err := r.compressedUint()
		if err != nil {
			return nil, err
		}
		ms.GenericParamCount = int(gc)
	}
	paramCount, err := r.compressedUint()
	if err != nil {
		return nil, err
	}
	ret, err := r.decodeType(cache, resolve)
	if err != nil {
		return nil, err
	}
	if ret.Kind != sig.Void {
		// a nil ReturnType is this codebase's "void" convention (see
		// vm.MethodDecl.ReturnType and interp.Invoke); a concrete Void
		// TypeSig is never handed further down the pipeline.
		ms.ReturnType = ret
	}
	ms.ParamTypes = make([]*sig.TypeSig, 0, paramCount)
	for i := uint32(0); i < paramCount; i++ {
		if !r.done() && r.b[r.pos] == elementSentinel {
			r.pos++ // vararg marker: remaining params are the call-site's variable tail
		}
		pt, err := r.decodeType(cache, resolve)
		if err != nil {
			return nil, err
		}
		ms.ParamTypes = append(ms.ParamTypes, pt)
	}
	return ms, nil
}
