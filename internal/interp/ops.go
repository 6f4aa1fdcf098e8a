package interp

import (
	"math"

	"github.com/leanclr/leanclr/internal/llir"
	"github.com/leanclr/leanclr/internal/rterror"
)

func binopI4(op llir.Op, l, r int32) (int32, error) {
	switch op {
	case llir.OpAddI4, llir.OpAddOvfI4:
		return l + r, nil
	case llir.OpSubI4:
		return l - r, nil
	case llir.OpMulI4:
		return l * r, nil
	case llir.OpDivI4:
		if r == 0 {
			return 0, rterror.Wrap(rterror.DivideByZero, rterror.ErrDivideByZero, "integer division by zero")
		}
		return l / r, nil
	case llir.OpRemI4:
		if r == 0 {
			return 0, rterror.Wrap(rterror.DivideByZero, rterror.ErrDivideByZero, "integer remainder by zero")
		}
		return l % r, nil
	case llir.OpAndI4:
		return l & r, nil
	case llir.OpOrI4:
		return l | r, nil
	case llir.OpXorI4:
		return l ^ r, nil
	case llir.OpShlI4:
		return l << uint(r&31), nil
	case llir.OpShrI4:
		return l >> uint(r&31), nil
	default:
		return 0, rterror.New(rterror.ExecutionEngine, "binopI4: unexpected opcode %v", op)
	}
}

func binopI8(op llir.Op, l, r int64) (int64, error) {
	switch op {
	case llir.OpAddI8, llir.OpAddOvfI8:
		return l + r, nil
	case llir.OpSubI8:
		return l - r, nil
	case llir.OpMulI8:
		return l * r, nil
	case llir.OpDivI8:
		if r == 0 {
			return 0, rterror.Wrap(rterror.DivideByZero, rterror.ErrDivideByZero, "integer division by zero")
		}
		return l / r, nil
	case llir.OpRemI8:
		if r == 0 {
			return 0, rterror.Wrap(rterror.DivideByZero, rterror.ErrDivideByZero, "integer remainder by zero")
		}
		return l % r, nil
	case llir.OpAndI8:
		return l & r, nil
	case llir.OpOrI8:
		return l | r, nil
	case llir.OpXorI8:
		return l ^ r, nil
	case llir.OpShlI8:
		return l << uint(r&63), nil
	case llir.OpShrI8:
		return l >> uint(r&63), nil
	default:
		return 0, rterror.New(rterror.ExecutionEngine, "binopI8: unexpected opcode %v", op)
	}
}

func binopR4(op llir.Op, l, r float32) float32 {
	switch op {
	case llir.OpAddR4:
		return l + r
	case llir.OpSubR4:
		return l - r
	case llir.OpMulR4:
		return l * r
	case llir.OpDivR4:
		return l / r
	default: // OpRemR4
		return float32(int64(l) % int64(r))
	}
}

func binopR8(op llir.Op, l, r float64) float64 {
	switch op {
	case llir.OpAddR8:
		return l + r
	case llir.OpSubR8:
		return l - r
	case llir.OpMulR8:
		return l * r
	case llir.OpDivR8:
		return l / r
	default: // OpRemR8
		return float64(int64(l) % int64(r))
	}
}

// compare evaluates Ceq/Clt/Cgt against the two popped operands, reading
// whichever representation both sides actually carry.
func compare(op llir.Op, l, r Slot) int32 {
	var cmp int
	switch {
	case l.Kind == KindR4 || r.Kind == KindR4 || l.Kind == KindR8 || r.Kind == KindR8:
		lf, rf := toF64(l), toF64(r)
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	case l.Kind == KindRef || r.Kind == KindRef:
		if l.Ref == r.Ref {
			cmp = 0
		} else {
			cmp = 1
		}
	default:
		li, ri := toI64(l), toI64(r)
		switch {
		case li < ri:
			cmp = -1
		case li > ri:
			cmp = 1
		}
	}
	switch op {
	case llir.OpCeq:
		if cmp == 0 {
			return 1
		}
	case llir.OpClt:
		if cmp < 0 {
			return 1
		}
	case llir.OpCgt:
		if cmp > 0 {
			return 1
		}
	}
	return 0
}

func branchTaken(op llir.Op, l, r Slot) bool {
	c := compare(llir.OpCeq, l, r)
	switch op {
	case llir.OpBeq:
		return c == 1
	case llir.OpBne:
		return c == 0
	case llir.OpBlt:
		return compare(llir.OpClt, l, r) == 1
	case llir.OpBle:
		return compare(llir.OpCgt, l, r) == 0
	case llir.OpBgt:
		return compare(llir.OpCgt, l, r) == 1
	case llir.OpBge:
		return compare(llir.OpClt, l, r) == 0
	default:
		return false
	}
}

func truthy(s Slot) bool {
	switch s.Kind {
	case KindI4:
		return s.I32 != 0
	case KindI8:
		return s.I64 != 0
	case KindR4:
		return s.F32 != 0
	case KindR8:
		return s.F64 != 0
	default:
		return s.Ref != nil
	}
}

func toI32(s Slot) int32 {
	switch s.Kind {
	case KindI4:
		return s.I32
	case KindI8:
		return int32(s.I64)
	case KindR4:
		return int32(s.F32)
	case KindR8:
		return int32(s.F64)
	default:
		return 0
	}
}

func toI64(s Slot) int64 {
	switch s.Kind {
	case KindI4:
		return int64(s.I32)
	case KindI8:
		return s.I64
	case KindR4:
		return int64(s.F32)
	case KindR8:
		return int64(s.F64)
	default:
		return 0
	}
}

func toF32(s Slot) float32 {
	switch s.Kind {
	case KindI4:
		return float32(s.I32)
	case KindI8:
		return float32(s.I64)
	case KindR4:
		return s.F32
	case KindR8:
		return float32(s.F64)
	default:
		return 0
	}
}

func toF64(s Slot) float64 {
	switch s.Kind {
	case KindI4:
		return float64(s.I32)
	case KindI8:
		return float64(s.I64)
	case KindR4:
		return float64(s.F32)
	case KindR8:
		return s.F64
	default:
		return 0
	}
}

// slotBytes/bytesToSlot round-trip a Slot's numeric bit pattern through a
// little-endian byte buffer, for Box/Unbox's raw-bits contract. Boxing a
// reference-kind slot is not meaningful (only value types box) and is not
// reached by a correctly lowered method body.
func slotBytes(s Slot) []byte {
	switch s.Kind {
	case KindI4:
		return le32(uint32(s.I32))
	case KindR4:
		return le32(math.Float32bits(s.F32))
	case KindR8:
		return le64(math.Float64bits(s.F64))
	default:
		return le64(uint64(s.I64))
	}
}

func bytesToSlot(b []byte) Slot {
	switch len(b) {
	case 4:
		return i4(int32(leGet32(b)))
	default:
		return i8(int64(leGet64(b)))
	}
}

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
func le64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
	return b
}
func leGet32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func leGet64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
