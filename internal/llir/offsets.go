package llir

import (
	"github.com/leanclr/leanclr/internal/hlir"
	"github.com/leanclr/leanclr/internal/rterror"
)

// assignOffsets computes each instruction's byte offset, shrinking
// branch/leave instructions from the 4-byte wide form to the 1-byte short
// form where the resulting displacement allows (.8's
// "short-vs-wide immediates"). Shrinking only ever reduces total size, so
// the fixed point is reached in at most len(m.Instrs) iterations; it
// typically converges in two or three.
func assignOffsets(m *Method) {
	layout := func() {
		var off uint32
		for i := range m.Instrs {
			m.Instrs[i].Offset = off
			off += m.Instrs[i].Size()
		}
	}
	layout()

	for pass := 0; pass < len(m.Instrs)+1; pass++ {
		changed := false
		for i := range m.Instrs {
			in := &m.Instrs[i]
			if !isShrinkable(in.Op) || !in.Wide {
				continue
			}
			t := m.instrTargets[i]
			if !t.isSet {
				continue
			}
			target := m.Instrs[t.single].Offset
			delta := int64(target) - int64(in.Offset+2) // opcode byte + short displacement byte
			if delta >= -128 && delta <= 127 {
				in.Wide = false
				changed = true
			}
		}
		if !changed {
			break
		}
		layout()
	}

	// Translate instruction-index targets into final byte offsets.
	for i := range m.Instrs {
		in := &m.Instrs[i]
		t := m.instrTargets[i]
		if !t.isSet {
			continue
		}
		if in.Op == OpSwitch {
			in.SwitchTargets = make([]uint32, len(t.multi))
			for j, ti := range t.multi {
				in.SwitchTargets[j] = m.Instrs[ti].Offset
			}
			continue
		}
		in.BranchTarget = m.Instrs[t.single].Offset
		in.HasBranch = true
	}

	m.instrTargets = nil
}

func isShrinkable(op Op) bool {
	switch op {
	case OpBr, OpLeavePlain, OpBrtrue, OpBrfalse, OpBeq, OpBne, OpBlt, OpBle, OpBgt, OpBge:
		return true
	}
	return false
}

// lowerClauses translates HL-IR exception clauses (source-bytecode offset
// space, resolved *vm.Class for catch clauses) into LL-IR form (IR byte
// offsets, a resolved-data pool index for the catch class).
func lowerClauses(hc []hlir.ExceptionClause, m *Method, blockFirstInstr map[*hlir.Block]int, pool *Pool) ([]ExceptionClause, error) {
	// Clause handler/try boundaries were HL block-leader offsets
	// (findLeaders seeds a leader at every clause boundary), so every
	// boundary offset corresponds exactly to some block's StartOffset.
	// Translating requires mapping source offset -> block -> LL instr
	// offset; build that index once.
	srcToInstrOffset := map[uint32]uint32{}
	for b, firstIdx := range blockFirstInstr {
		if firstIdx < len(m.Instrs) {
			srcToInstrOffset[b.StartOffset] = m.Instrs[firstIdx].Offset
		}
	}
	lookup := func(srcOff uint32) (uint32, error) {
		o, ok := srcToInstrOffset[srcOff]
		if !ok {
			return 0, rterror.New(rterror.ExecutionEngine, "exception clause boundary at source offset %d has no block", srcOff)
		}
		return o, nil
	}

	out := make([]ExceptionClause, 0, len(hc))
	for _, c := range hc {
		tryStart, err := lookup(c.TryStart)
		if err != nil {
			return nil, err
		}
		tryEnd, err := lookup(c.TryEnd)
		if err != nil {
			return nil, err
		}
		handlerStart, err := lookup(c.HandlerStart)
		if err != nil {
			return nil, err
		}
		handlerEnd, err := lookup(c.HandlerEnd)
		if err != nil {
			return nil, err
		}

		lc := ExceptionClause{
			Kind:               ExceptionClauseKind(c.Kind),
			TryStart:           tryStart,
			TryEnd:             tryEnd,
			HandlerStart:       handlerStart,
			HandlerEnd:         handlerEnd,
			CatchClassResolved: -1,
		}
		if c.Kind == hlir.ClauseFilter {
			fs, err := lookup(c.FilterStart)
			if err != nil {
				return nil, err
			}
			lc.FilterStart = fs
		}
		if c.Kind == hlir.ClauseCatch && c.CatchClass != nil {
			lc.CatchClassResolved = pool.Class(c.CatchClass)
		}
		out = append(out, lc)
	}
	return out, nil
}
