package llir

import (
	"github.com/leanclr/leanclr/internal/hlir"
	"github.com/leanclr/leanclr/internal/rterror"
)

// branchTarget records, for one LL instruction index, the LL instruction
// index(es) it jumps to — resolved from HL block pointers via
// blockFirstInstr. Byte offsets aren't known until assignOffsets runs, so
// targets are tracked by instruction index until then.
type branchTarget struct {
	single int
	isSet  bool
	multi  []int
}

// resolveTargets walks hm's blocks/instructions in the same order used to
// build m.Instrs (a 1:1 mapping, verified by length) and stashes each
// branch's instruction-index target(s) into instrTargets, keyed by LL
// instruction index.
func resolveTargets(hm *hlir.Method, m *Method, blockFirstInstr map[*hlir.Block]int) error {
	targets := make([]branchTarget, len(m.Instrs))

	idx := 0
	for _, b := range hm.Blocks {
		for i := range b.Instrs {
			in := &b.Instrs[i]
			if idx >= len(m.Instrs) {
				return rterror.New(rterror.ExecutionEngine, "LL instruction count mismatch during target resolution")
			}
			switch in.Op {
			case hlir.OpBr, hlir.OpLeave, hlir.OpBrtrue, hlir.OpBrfalse,
				hlir.OpBeq, hlir.OpBne, hlir.OpBlt, hlir.OpBle, hlir.OpBgt, hlir.OpBge:
				if in.Target != nil {
					t, ok := blockFirstInstr[in.Target]
					if !ok {
						return rterror.New(rterror.ExecutionEngine, "branch target block not lowered")
					}
					targets[idx] = branchTarget{single: t, isSet: true}
				}
			case hlir.OpSwitch:
				ts := make([]int, 0, len(in.Targets))
				for _, tb := range in.Targets {
					t, ok := blockFirstInstr[tb]
					if !ok {
						return rterror.New(rterror.ExecutionEngine, "switch target block not lowered")
					}
					ts = append(ts, t)
				}
				targets[idx] = branchTarget{multi: ts, isSet: true}
			}
			idx++
		}
	}

	m.instrTargets = targets
	return nil
}
