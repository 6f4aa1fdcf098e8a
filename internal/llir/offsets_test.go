package llir

import "testing"

// TestShortBranchShrinks grounds the short-vs-wide immediate rule (spec
// §4.8): a forward branch close enough to fit the 1-byte relative form must
// end up with Wide == false and a final Size of 2, not 5.
func TestShortBranchShrinks(t *testing.T) {
	m := &Method{
		Instrs: []Instr{
			{Op: OpBr, Wide: true},
			{Op: OpNop},
			{Op: OpNop},
			{Op: OpRet},
		},
		instrTargets: []branchTarget{
			{single: 3, isSet: true},
			{},
			{},
			{},
		},
	}
	assignOffsets(m)

	if m.Instrs[0].Wide {
		t.Fatalf("expected short branch to shrink, still wide")
	}
	if got, want := m.Instrs[0].Size(), uint32(2); got != want {
		t.Fatalf("short branch size = %d, want %d", got, want)
	}
	if got, want := m.Instrs[0].BranchTarget, m.Instrs[3].Offset; got != want {
		t.Fatalf("branch target offset = %d, want %d", got, want)
	}
}

// TestWideBranchStaysWide: a displacement outside [-128,127] must keep the
// 4-byte form.
func TestWideBranchStaysWide(t *testing.T) {
	instrs := []Instr{{Op: OpBr, Wide: true}}
	// Pad with enough NOPs that the displacement can't fit in a byte.
	for i := 0; i < 200; i++ {
		instrs = append(instrs, Instr{Op: OpNop})
	}
	instrs = append(instrs, Instr{Op: OpRet})
	targets := make([]branchTarget, len(instrs))
	targets[0] = branchTarget{single: len(instrs) - 1, isSet: true}

	m := &Method{Instrs: instrs, instrTargets: targets}
	assignOffsets(m)

	if !m.Instrs[0].Wide {
		t.Fatalf("expected long branch to stay wide")
	}
	if got, want := m.Instrs[0].Size(), uint32(5); got != want {
		t.Fatalf("wide branch size = %d, want %d", got, want)
	}
}

func TestPoolDedupByIdentityAndValue(t *testing.T) {
	p := newPool()

	s1 := p.String("hello")
	s2 := p.String("hello")
	if s1 != s2 {
		t.Fatalf("expected value-keyed string interning to dedup, got %d vs %d", s1, s2)
	}
	s3 := p.String("world")
	if s3 == s1 {
		t.Fatalf("expected distinct strings to get distinct pool entries")
	}

	if got := p.Class(nil); got != -1 {
		t.Fatalf("Class(nil) = %d, want -1", got)
	}
}
