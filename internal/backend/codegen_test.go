package backend

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tetratelabs/irgen/internal/asm"
	"github.com/tetratelabs/irgen/internal/ir"
)

// fakeMachine records what the code generator asks of an architecture. Its
// "code" is one 4-byte word per visited instruction.
type fakeMachine struct {
	cg        *CodeGenerator
	offset    uint64
	located   []*ir.Instruction
	emitted   []*ir.Instruction
	bound     []*ir.BasicBlock
	frameSize int
	entered   bool
	// onVisit is called for every visited instruction, after it is recorded.
	onVisit func(instr *ir.Instruction)
}

type fakeLocations struct{ m *fakeMachine }

type fakeVisitor struct{ m *fakeMachine }

func (m *fakeMachine) SetCodeGenerator(cg *CodeGenerator)     { m.cg = cg }
func (m *fakeMachine) LocationsBuilder() LocationsBuilder     { return fakeLocations{m} }
func (m *fakeMachine) InstructionVisitor() InstructionVisitor { return fakeVisitor{m} }
func (m *fakeMachine) RegisterInfo() *RegisterInfo            { return &RegisterInfo{WordSize: 4} }
func (m *fakeMachine) ComputeFrame(req FrameRequest) Frame {
	return Frame{Size: m.frameSize + req.HomeAreaSize + req.OutgoingArgsSize}
}
func (m *fakeMachine) GenerateFrameEntry()          { m.entered = true }
func (m *fakeMachine) BindBlock(blk *ir.BasicBlock) { m.bound = append(m.bound, blk) }
func (m *fakeMachine) Finalize() ([]byte, error)    { return make([]byte, m.offset), nil }
func (m *fakeMachine) Listing() string              { return "" }
func (m *fakeMachine) LongBranches() int            { return 0 }

// here returns the position right after the last emitted word.
func (m *fakeMachine) here() CodePosition { return At(offsetNode(m.offset), 0) }

func (l fakeLocations) locate(instr *ir.Instruction) {
	l.m.located = append(l.m.located, instr)
}

func (v fakeVisitor) visit(instr *ir.Instruction) {
	v.m.emitted = append(v.m.emitted, instr)
	v.m.offset += 4
	if v.m.onVisit != nil {
		v.m.onVisit(instr)
	}
}

func (l fakeLocations) VisitIntConstant(instr *ir.Instruction)          { l.locate(instr) }
func (l fakeLocations) VisitLongConstant(instr *ir.Instruction)         { l.locate(instr) }
func (l fakeLocations) VisitFloatConstant(instr *ir.Instruction)        { l.locate(instr) }
func (l fakeLocations) VisitDoubleConstant(instr *ir.Instruction)       { l.locate(instr) }
func (l fakeLocations) VisitNullConstant(instr *ir.Instruction)         { l.locate(instr) }
func (l fakeLocations) VisitParameterValue(instr *ir.Instruction)       { l.locate(instr) }
func (l fakeLocations) VisitCurrentMethod(instr *ir.Instruction)        { l.locate(instr) }
func (l fakeLocations) VisitPhi(instr *ir.Instruction)                  { l.locate(instr) }
func (l fakeLocations) VisitAdd(instr *ir.Instruction)                  { l.locate(instr) }
func (l fakeLocations) VisitSub(instr *ir.Instruction)                  { l.locate(instr) }
func (l fakeLocations) VisitMul(instr *ir.Instruction)                  { l.locate(instr) }
func (l fakeLocations) VisitDiv(instr *ir.Instruction)                  { l.locate(instr) }
func (l fakeLocations) VisitRem(instr *ir.Instruction)                  { l.locate(instr) }
func (l fakeLocations) VisitNeg(instr *ir.Instruction)                  { l.locate(instr) }
func (l fakeLocations) VisitNot(instr *ir.Instruction)                  { l.locate(instr) }
func (l fakeLocations) VisitBooleanNot(instr *ir.Instruction)           { l.locate(instr) }
func (l fakeLocations) VisitAnd(instr *ir.Instruction)                  { l.locate(instr) }
func (l fakeLocations) VisitOr(instr *ir.Instruction)                   { l.locate(instr) }
func (l fakeLocations) VisitXor(instr *ir.Instruction)                  { l.locate(instr) }
func (l fakeLocations) VisitShl(instr *ir.Instruction)                  { l.locate(instr) }
func (l fakeLocations) VisitShr(instr *ir.Instruction)                  { l.locate(instr) }
func (l fakeLocations) VisitUShr(instr *ir.Instruction)                 { l.locate(instr) }
func (l fakeLocations) VisitRor(instr *ir.Instruction)                  { l.locate(instr) }
func (l fakeLocations) VisitTypeConversion(instr *ir.Instruction)       { l.locate(instr) }
func (l fakeLocations) VisitCompare(instr *ir.Instruction)              { l.locate(instr) }
func (l fakeLocations) VisitEqual(instr *ir.Instruction)                { l.locate(instr) }
func (l fakeLocations) VisitNotEqual(instr *ir.Instruction)             { l.locate(instr) }
func (l fakeLocations) VisitLessThan(instr *ir.Instruction)             { l.locate(instr) }
func (l fakeLocations) VisitLessThanOrEqual(instr *ir.Instruction)      { l.locate(instr) }
func (l fakeLocations) VisitGreaterThan(instr *ir.Instruction)          { l.locate(instr) }
func (l fakeLocations) VisitGreaterThanOrEqual(instr *ir.Instruction)   { l.locate(instr) }
func (l fakeLocations) VisitBelow(instr *ir.Instruction)                { l.locate(instr) }
func (l fakeLocations) VisitBelowOrEqual(instr *ir.Instruction)         { l.locate(instr) }
func (l fakeLocations) VisitAbove(instr *ir.Instruction)                { l.locate(instr) }
func (l fakeLocations) VisitAboveOrEqual(instr *ir.Instruction)         { l.locate(instr) }
func (l fakeLocations) VisitSelect(instr *ir.Instruction)               { l.locate(instr) }
func (l fakeLocations) VisitGoto(instr *ir.Instruction)                 { l.locate(instr) }
func (l fakeLocations) VisitIf(instr *ir.Instruction)                   { l.locate(instr) }
func (l fakeLocations) VisitReturn(instr *ir.Instruction)               { l.locate(instr) }
func (l fakeLocations) VisitReturnVoid(instr *ir.Instruction)           { l.locate(instr) }
func (l fakeLocations) VisitExit(instr *ir.Instruction)                 { l.locate(instr) }
func (l fakeLocations) VisitThrow(instr *ir.Instruction)                { l.locate(instr) }
func (l fakeLocations) VisitPackedSwitch(instr *ir.Instruction)         { l.locate(instr) }
func (l fakeLocations) VisitSuspendCheck(instr *ir.Instruction)         { l.locate(instr) }
func (l fakeLocations) VisitDeoptimize(instr *ir.Instruction)           { l.locate(instr) }
func (l fakeLocations) VisitNullCheck(instr *ir.Instruction)            { l.locate(instr) }
func (l fakeLocations) VisitBoundsCheck(instr *ir.Instruction)          { l.locate(instr) }
func (l fakeLocations) VisitDivZeroCheck(instr *ir.Instruction)         { l.locate(instr) }
func (l fakeLocations) VisitClinitCheck(instr *ir.Instruction)          { l.locate(instr) }
func (l fakeLocations) VisitInstanceFieldGet(instr *ir.Instruction)     { l.locate(instr) }
func (l fakeLocations) VisitInstanceFieldSet(instr *ir.Instruction)     { l.locate(instr) }
func (l fakeLocations) VisitStaticFieldGet(instr *ir.Instruction)       { l.locate(instr) }
func (l fakeLocations) VisitStaticFieldSet(instr *ir.Instruction)       { l.locate(instr) }
func (l fakeLocations) VisitArrayGet(instr *ir.Instruction)             { l.locate(instr) }
func (l fakeLocations) VisitArraySet(instr *ir.Instruction)             { l.locate(instr) }
func (l fakeLocations) VisitArrayLength(instr *ir.Instruction)          { l.locate(instr) }
func (l fakeLocations) VisitNewInstance(instr *ir.Instruction)          { l.locate(instr) }
func (l fakeLocations) VisitNewArray(instr *ir.Instruction)             { l.locate(instr) }
func (l fakeLocations) VisitLoadClass(instr *ir.Instruction)            { l.locate(instr) }
func (l fakeLocations) VisitLoadString(instr *ir.Instruction)           { l.locate(instr) }
func (l fakeLocations) VisitInstanceOf(instr *ir.Instruction)           { l.locate(instr) }
func (l fakeLocations) VisitCheckCast(instr *ir.Instruction)            { l.locate(instr) }
func (l fakeLocations) VisitMonitorOperation(instr *ir.Instruction)     { l.locate(instr) }
func (l fakeLocations) VisitMemoryBarrier(instr *ir.Instruction)        { l.locate(instr) }
func (l fakeLocations) VisitInvokeStaticOrDirect(instr *ir.Instruction) { l.locate(instr) }
func (l fakeLocations) VisitInvokeVirtual(instr *ir.Instruction)        { l.locate(instr) }
func (l fakeLocations) VisitInvokeInterface(instr *ir.Instruction)      { l.locate(instr) }
func (l fakeLocations) VisitParallelMove(instr *ir.Instruction)         { l.locate(instr) }

func (v fakeVisitor) VisitIntConstant(instr *ir.Instruction)          { v.visit(instr) }
func (v fakeVisitor) VisitLongConstant(instr *ir.Instruction)         { v.visit(instr) }
func (v fakeVisitor) VisitFloatConstant(instr *ir.Instruction)        { v.visit(instr) }
func (v fakeVisitor) VisitDoubleConstant(instr *ir.Instruction)       { v.visit(instr) }
func (v fakeVisitor) VisitNullConstant(instr *ir.Instruction)         { v.visit(instr) }
func (v fakeVisitor) VisitParameterValue(instr *ir.Instruction)       { v.visit(instr) }
func (v fakeVisitor) VisitCurrentMethod(instr *ir.Instruction)        { v.visit(instr) }
func (v fakeVisitor) VisitPhi(instr *ir.Instruction)                  { v.visit(instr) }
func (v fakeVisitor) VisitAdd(instr *ir.Instruction)                  { v.visit(instr) }
func (v fakeVisitor) VisitSub(instr *ir.Instruction)                  { v.visit(instr) }
func (v fakeVisitor) VisitMul(instr *ir.Instruction)                  { v.visit(instr) }
func (v fakeVisitor) VisitDiv(instr *ir.Instruction)                  { v.visit(instr) }
func (v fakeVisitor) VisitRem(instr *ir.Instruction)                  { v.visit(instr) }
func (v fakeVisitor) VisitNeg(instr *ir.Instruction)                  { v.visit(instr) }
func (v fakeVisitor) VisitNot(instr *ir.Instruction)                  { v.visit(instr) }
func (v fakeVisitor) VisitBooleanNot(instr *ir.Instruction)           { v.visit(instr) }
func (v fakeVisitor) VisitAnd(instr *ir.Instruction)                  { v.visit(instr) }
func (v fakeVisitor) VisitOr(instr *ir.Instruction)                   { v.visit(instr) }
func (v fakeVisitor) VisitXor(instr *ir.Instruction)                  { v.visit(instr) }
func (v fakeVisitor) VisitShl(instr *ir.Instruction)                  { v.visit(instr) }
func (v fakeVisitor) VisitShr(instr *ir.Instruction)                  { v.visit(instr) }
func (v fakeVisitor) VisitUShr(instr *ir.Instruction)                 { v.visit(instr) }
func (v fakeVisitor) VisitRor(instr *ir.Instruction)                  { v.visit(instr) }
func (v fakeVisitor) VisitTypeConversion(instr *ir.Instruction)       { v.visit(instr) }
func (v fakeVisitor) VisitCompare(instr *ir.Instruction)              { v.visit(instr) }
func (v fakeVisitor) VisitEqual(instr *ir.Instruction)                { v.visit(instr) }
func (v fakeVisitor) VisitNotEqual(instr *ir.Instruction)             { v.visit(instr) }
func (v fakeVisitor) VisitLessThan(instr *ir.Instruction)             { v.visit(instr) }
func (v fakeVisitor) VisitLessThanOrEqual(instr *ir.Instruction)      { v.visit(instr) }
func (v fakeVisitor) VisitGreaterThan(instr *ir.Instruction)          { v.visit(instr) }
func (v fakeVisitor) VisitGreaterThanOrEqual(instr *ir.Instruction)   { v.visit(instr) }
func (v fakeVisitor) VisitBelow(instr *ir.Instruction)                { v.visit(instr) }
func (v fakeVisitor) VisitBelowOrEqual(instr *ir.Instruction)         { v.visit(instr) }
func (v fakeVisitor) VisitAbove(instr *ir.Instruction)                { v.visit(instr) }
func (v fakeVisitor) VisitAboveOrEqual(instr *ir.Instruction)         { v.visit(instr) }
func (v fakeVisitor) VisitSelect(instr *ir.Instruction)               { v.visit(instr) }
func (v fakeVisitor) VisitGoto(instr *ir.Instruction)                 { v.visit(instr) }
func (v fakeVisitor) VisitIf(instr *ir.Instruction)                   { v.visit(instr) }
func (v fakeVisitor) VisitReturn(instr *ir.Instruction)               { v.visit(instr) }
func (v fakeVisitor) VisitReturnVoid(instr *ir.Instruction)           { v.visit(instr) }
func (v fakeVisitor) VisitExit(instr *ir.Instruction)                 { v.visit(instr) }
func (v fakeVisitor) VisitThrow(instr *ir.Instruction)                { v.visit(instr) }
func (v fakeVisitor) VisitPackedSwitch(instr *ir.Instruction)         { v.visit(instr) }
func (v fakeVisitor) VisitSuspendCheck(instr *ir.Instruction)         { v.visit(instr) }
func (v fakeVisitor) VisitDeoptimize(instr *ir.Instruction)           { v.visit(instr) }
func (v fakeVisitor) VisitNullCheck(instr *ir.Instruction)            { v.visit(instr) }
func (v fakeVisitor) VisitBoundsCheck(instr *ir.Instruction)          { v.visit(instr) }
func (v fakeVisitor) VisitDivZeroCheck(instr *ir.Instruction)         { v.visit(instr) }
func (v fakeVisitor) VisitClinitCheck(instr *ir.Instruction)          { v.visit(instr) }
func (v fakeVisitor) VisitInstanceFieldGet(instr *ir.Instruction)     { v.visit(instr) }
func (v fakeVisitor) VisitInstanceFieldSet(instr *ir.Instruction)     { v.visit(instr) }
func (v fakeVisitor) VisitStaticFieldGet(instr *ir.Instruction)       { v.visit(instr) }
func (v fakeVisitor) VisitStaticFieldSet(instr *ir.Instruction)       { v.visit(instr) }
func (v fakeVisitor) VisitArrayGet(instr *ir.Instruction)             { v.visit(instr) }
func (v fakeVisitor) VisitArraySet(instr *ir.Instruction)             { v.visit(instr) }
func (v fakeVisitor) VisitArrayLength(instr *ir.Instruction)          { v.visit(instr) }
func (v fakeVisitor) VisitNewInstance(instr *ir.Instruction)          { v.visit(instr) }
func (v fakeVisitor) VisitNewArray(instr *ir.Instruction)             { v.visit(instr) }
func (v fakeVisitor) VisitLoadClass(instr *ir.Instruction)            { v.visit(instr) }
func (v fakeVisitor) VisitLoadString(instr *ir.Instruction)           { v.visit(instr) }
func (v fakeVisitor) VisitInstanceOf(instr *ir.Instruction)           { v.visit(instr) }
func (v fakeVisitor) VisitCheckCast(instr *ir.Instruction)            { v.visit(instr) }
func (v fakeVisitor) VisitMonitorOperation(instr *ir.Instruction)     { v.visit(instr) }
func (v fakeVisitor) VisitMemoryBarrier(instr *ir.Instruction)        { v.visit(instr) }
func (v fakeVisitor) VisitInvokeStaticOrDirect(instr *ir.Instruction) { v.visit(instr) }
func (v fakeVisitor) VisitInvokeVirtual(instr *ir.Instruction)        { v.visit(instr) }
func (v fakeVisitor) VisitInvokeInterface(instr *ir.Instruction)      { v.visit(instr) }
func (v fakeVisitor) VisitParallelMove(instr *ir.Instruction)         { v.visit(instr) }

func newTestCodeGenerator(t *testing.T, g *ir.Graph, opts CompilerOptions) (*CodeGenerator, *fakeMachine) {
	m := &fakeMachine{}
	cg := NewCodeGenerator(NewCompilationContext(g.Name(), opts, zap.NewNop()), g, m)
	require.Equal(t, cg, m.cg)
	return cg, m
}

// buildDivZeroCheck returns "v0 = 7; return v1 / v2" reduced to its zero check.
func buildDivZeroCheck(t *testing.T) (*ir.Graph, *ir.Instruction) {
	b := ir.NewBuilder("Main.check", ir.TypeInt32, ir.TypeInt32, ir.TypeReference)
	b.SetNumberOfVRegs(3)
	b.SetLocal(0, b.IntConstant(7))
	b.SetLocal(1, b.Parameter(0))
	b.SetLocal(2, b.Parameter(1))
	blk := b.AllocateBlock()
	b.SetCurrentBlock(blk)
	b.SetDexPC(4)
	check := b.InsertInstruction(b.AllocateInstruction().AsDivZeroCheck(b.Parameter(0)))
	b.InsertInstruction(b.AllocateInstruction().AsReturn(check))
	g, err := b.Finish()
	require.NoError(t, err)
	return g, check
}

func TestCodeGenerator_Compile(t *testing.T) {
	b := ir.NewBuilder("Main.max", ir.TypeInt32, ir.TypeInt32, ir.TypeInt32)
	head, then, els := b.AllocateBlock(), b.AllocateBlock(), b.AllocateBlock()
	b.SetCurrentBlock(head)
	cond := b.InsertInstruction(b.AllocateInstruction().AsCondition(ir.OpGreaterThan, b.Parameter(0), b.Parameter(1), ir.BiasNone))
	b.InsertInstruction(b.AllocateInstruction().AsIf(cond))
	b.Connect(head, then)
	b.Connect(head, els)
	b.SetCurrentBlock(then)
	b.InsertInstruction(b.AllocateInstruction().AsReturn(b.Parameter(0)))
	b.SetCurrentBlock(els)
	b.InsertInstruction(b.AllocateInstruction().AsReturn(b.Parameter(1)))
	g, err := b.Finish()
	require.NoError(t, err)
	require.True(t, cond.IsEmittedAtUseSite())

	cg, m := newTestCodeGenerator(t, g, DefaultCompilerOptions())
	m.frameSize = 16
	require.NoError(t, cg.BuildLocations())
	require.Equal(t, g.NumberOfInstructions(), len(m.located))
	for _, instr := range m.located {
		require.True(t, cg.Summary(instr).IsFrozen(), instr.String())
	}

	require.NoError(t, cg.InitializeFrame(FrameRequest{HomeAreaSize: 8}))
	require.Equal(t, 24, cg.Frame().Size)

	res, err := cg.Compile()
	require.NoError(t, err)
	require.True(t, m.entered)
	require.Equal(t, g.Blocks(), m.bound)
	require.NotContains(t, m.emitted, cond)
	require.Equal(t, g.NumberOfInstructions()-1, len(m.emitted))
	require.Equal(t, 4*len(m.emitted), len(res.Code))
	require.Equal(t, 24, res.Frame.Size)
	require.Zero(t, len(res.StackMaps))
	require.Nil(t, cg.Current())
}

func TestCodeGenerator_bailouts(t *testing.T) {
	t.Run("too many instructions", func(t *testing.T) {
		g, _ := buildDivZeroCheck(t)
		opts := DefaultCompilerOptions()
		opts.MaxInstructions = 3
		cg, _ := newTestCodeGenerator(t, g, opts)
		err := cg.BuildLocations()
		var b *Bailout
		require.True(t, errors.As(err, &b))
		require.Equal(t, BailoutTooManyInstructions, b.Reason)
	})
	t.Run("frame too large", func(t *testing.T) {
		g, _ := buildDivZeroCheck(t)
		cg, _ := newTestCodeGenerator(t, g, DefaultCompilerOptions())
		require.NoError(t, cg.BuildLocations())
		err := cg.InitializeFrame(FrameRequest{HomeAreaSize: 1 << 20})
		var b *Bailout
		require.True(t, errors.As(err, &b))
		require.Equal(t, BailoutFrameTooLarge, b.Reason)
		require.False(t, cg.IsFrameInitialized())
	})
}

type recordingSlowPath struct {
	SlowPathBase
	cg      *CodeGenerator
	m       *fakeMachine
	emitted bool
}

func (s *recordingSlowPath) EmitNativeCode() {
	s.m.offset += 8
	s.cg.RecordPcInfo(s.Instruction(), s.m.here(), s)
	s.emitted = true
	s.MarkExited()
}

func (s *recordingSlowPath) IsFatal() bool { return false }
func (s *recordingSlowPath) Name() string  { return "recording" }

func TestCodeGenerator_RecordPcInfo(t *testing.T) {
	g, check := buildDivZeroCheck(t)
	cg, m := newTestCodeGenerator(t, g, DefaultCompilerOptions())
	require.NoError(t, cg.BuildLocations())
	require.NoError(t, cg.InitializeFrame(FrameRequest{HomeAreaSize: 16}))
	cg.SetValueLocation(g.Parameters()[0], RegisterLocation(4))
	cg.SetValueLocation(g.Parameters()[1], StackSlot(12))
	cg.Summary(check).SetStackBit(12)

	sp := &recordingSlowPath{SlowPathBase: NewSlowPathBase(check), cg: cg, m: m}
	sp.StackMask.Set(5)
	var fastPC uint32
	m.onVisit = func(instr *ir.Instruction) {
		if instr != check {
			return
		}
		require.Equal(t, check, cg.Current())
		fastPC = uint32(m.offset)
		cg.RecordPcInfo(instr, m.here(), nil)
		cg.AddSlowPath(sp).Base().MarkEntered()
	}

	res, err := cg.Compile()
	require.NoError(t, err)
	require.True(t, sp.emitted)
	require.Equal(t, SlowPathExited, sp.State())
	require.Equal(t, 1, cg.Context().Stats.SlowPaths)
	require.Equal(t, 2, cg.Context().Stats.StackMaps)

	dexRegisters := []DexRegisterLocation{
		{Kind: DexRegisterConstant, Value: 7},
		{Kind: DexRegisterInRegister, Value: 4},
		{Kind: DexRegisterInStack, Value: 12},
	}
	require.Equal(t, 2, len(res.StackMaps))
	fast, slow := res.StackMaps[0], res.StackMaps[1]
	require.Equal(t, fastPC, fast.NativePC)
	require.Equal(t, StackMapDefault, fast.Kind)
	require.Equal(t, uint32(4), fast.DexPC)
	require.Equal(t, BitVector{1 << 3}, fast.StackMask)
	require.Equal(t, dexRegisters, fast.DexRegisters)

	require.Equal(t, uint32(len(res.Code)), slow.NativePC)
	require.Equal(t, StackMapSlowPath, slow.Kind)
	require.Equal(t, BitVector{1<<3 | 1<<5}, slow.StackMask)
	require.Equal(t, dexRegisters, slow.DexRegisters)

	decoded, err := DecodeStackMaps(res.EncodedStackMaps)
	require.NoError(t, err)
	require.Equal(t, len(res.StackMaps), len(decoded))
	require.Equal(t, slow.StackMask, decoded[1].StackMask)
}

func TestCodeGenerator_locationTables(t *testing.T) {
	g, check := buildDivZeroCheck(t)
	cg, _ := newTestCodeGenerator(t, g, DefaultCompilerOptions())
	require.NoError(t, cg.BuildLocations())

	c := g.EntryBlock().Instructions()[3]
	require.Equal(t, ir.OpIntConstant, c.Opcode())
	require.Equal(t, ConstantLocation(c), cg.ValueLocation(c))
	require.True(t, cg.ValueLocation(check).IsInvalid())

	pm := g.InsertParallelMoveBefore(check)
	moves := cg.ParallelMoveOf(pm)
	require.Same(t, moves, cg.ParallelMoveOf(pm))
	require.True(t, moves.IsEmpty())
	require.Panics(t, func() { cg.ParallelMoveOf(check) })
	require.Panics(t, func() { cg.NewLocationSummary(check, CallKindNoCall) })
	require.Panics(t, func() { cg.Frame() })

	blocks := g.Blocks()
	require.True(t, cg.GoesToNextBlock(blocks[0], blocks[1]))
	require.False(t, cg.GoesToNextBlock(blocks[1], blocks[0]))
	require.False(t, cg.GoesToNextBlock(g.ExitBlock(), blocks[0]))
}

func TestRegisterInfo_IsCalleeSave(t *testing.T) {
	info := &RegisterInfo{CalleeSaves: NewRegisterSet([]int{16, 17}, []int{20})}
	for _, tc := range []struct {
		loc Location
		exp bool
	}{
		{loc: RegisterLocation(16), exp: true},
		{loc: RegisterLocation(2), exp: false},
		{loc: RegisterPairLocation(16, 17), exp: true},
		{loc: RegisterPairLocation(17, 18), exp: false},
		{loc: FpuRegisterLocation(20), exp: true},
		{loc: StackSlot(4), exp: false},
	} {
		tc := tc
		t.Run(fmt.Sprint(tc.loc), func(t *testing.T) {
			require.Equal(t, tc.exp, info.IsCalleeSave(tc.loc))
		})
	}
}

var _ asm.Node = offsetNode(0)
