// verify.go - 宏汇编序列的等价性验证
//
// 对每个操作枚举寄存器重叠组合：
//   src2 ∈ {新寄存器, src1}
//   dst ∈ {新寄存器, src1, src2}
//   scratch ∈ {新寄存器, dst, src1, src2}
// 分别在有/无 AVX 的特性下编码、在 vsim.Machine 上重放，
// 检查 dst 与 Reference 逐位相同，并且 dst/scratch 以外的寄存器没有被修改。

package simd

import (
	"fmt"
	"math/rand/v2"

	"github.com/tangzhangming/vecasm/internal/cpu"
	"github.com/tangzhangming/vecasm/internal/jit/platform"
	"github.com/tangzhangming/vecasm/internal/jit/vsim"
)

// 验证用的两组特性：有 AVX，和只有 SSE4.1
var (
	FeaturesAVX = cpu.Of(cpu.AVX, cpu.SSE41, cpu.SSSE3)
	FeaturesSSE = cpu.Of(cpu.SSE41, cpu.SSSE3)
)

// Case 一个寄存器分配组合
type Case struct {
	Op       Op
	Dst      platform.XMMRegister
	Src1     platform.XMMRegister
	Src2     platform.XMMRegister
	Scratch  platform.XMMRegister
	Features cpu.Features

	// Mode 零值为 x64；Unchecked 关闭断言
	Mode      platform.Mode
	Unchecked bool
}

func (c Case) String() string {
	return fmt.Sprintf("%s dst=%s src1=%s src2=%s scratch=%s [%s]", c.Op, c.Dst, c.Src1, c.Src2, c.Scratch, c.Features)
}

// Result 一次运行的结果
type Result struct {
	Got     vsim.V128
	Want    vsim.V128
	Code    []byte
	Insts   []platform.Inst
	Clobber []platform.XMMRegister // 被意外修改的寄存器
}

// OK 结果是否正确
func (r *Result) OK() bool {
	return r.Got == r.Want && len(r.Clobber) == 0
}

// AliasCases 枚举 op 在给定特性下允许的全部重叠组合
func AliasCases(op Op, features cpu.Features) []Case {
	const (
		s1    = platform.X1
		fresh = platform.X2
		dstR  = platform.X3
		tmp   = platform.X4
	)
	probe := NewMacroAssembler(nil, features)
	var cases []Case
	for _, src2 := range []platform.XMMRegister{fresh, s1} {
		if op.Unary() && src2 != s1 {
			continue
		}
		seen := map[[3]platform.XMMRegister]bool{}
		for _, dst := range []platform.XMMRegister{dstR, s1, src2} {
			for _, scratch := range []platform.XMMRegister{tmp, dst, s1, src2} {
				key := [3]platform.XMMRegister{dst, src2, scratch}
				if seen[key] {
					continue
				}
				seen[key] = true
				if !probe.Allowed(op, dst, s1, src2, scratch) {
					continue
				}
				cases = append(cases, Case{Op: op, Dst: dst, Src1: s1, Src2: src2, Scratch: scratch, Features: features})
			}
		}
	}
	return cases
}

// Run 编码 c 描述的序列并在模拟器上执行
func Run(c Case, a, b vsim.V128) (*Result, error) {
	asm := platform.NewX64Assembler(c.Features,
		platform.WithMode(c.Mode),
		platform.WithChecks(!c.Unchecked),
	)
	m := NewMacroAssembler(asm, c.Features, WithChecks(!c.Unchecked))
	var lowerErr error
	if err := platform.Catch(func() {
		lowerErr = m.Lower(c.Op, c.Dst, c.Src1, c.Src2, c.Scratch)
	}); err != nil {
		return nil, err
	}
	if lowerErr != nil {
		return nil, lowerErr
	}

	mach := vsim.NewMachine(c.Features)
	for r := platform.X0; r <= platform.X15; r++ {
		mach.SetReg(r, fill(r))
	}
	mach.SetReg(c.Src1, a)
	if c.Src2 != c.Src1 {
		mach.SetReg(c.Src2, b)
	} else {
		b = a
	}
	before := mach.Regs()
	mach.Run(asm.Insts())

	res := &Result{
		Got:   mach.Reg(c.Dst),
		Want:  Reference(c.Op, a, b),
		Code:  append([]byte(nil), asm.Code()...),
		Insts: append([]platform.Inst(nil), asm.Insts()...),
	}
	after := mach.Regs()
	for r := platform.X0; r <= platform.X15; r++ {
		if r == c.Dst || r == c.Scratch {
			continue
		}
		if before[r] != after[r] {
			res.Clobber = append(res.Clobber, r)
		}
	}
	return res, nil
}

// fill 每个寄存器的初始内容各不相同
func fill(r platform.XMMRegister) vsim.V128 {
	var v vsim.V128
	for i := range v {
		v[i] = byte(0xA0 + int(r)*7 + i*13)
	}
	return v
}

// Inputs 生成 n 组确定性的输入，前几组是边界值
func Inputs(n int, seed uint64) [][2]vsim.V128 {
	var ones, signs, zero vsim.V128
	for i := range ones {
		ones[i] = 0xFF
		signs[i] = 0x80
	}
	seq := vsim.FromBytes(0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10)
	out := [][2]vsim.V128{{ones, ones}, {signs, ones}, {zero, ones}, {seq, signs}}
	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	for len(out) < n {
		var a, b vsim.V128
		for i := 0; i < 2; i++ {
			a.SetU64(i, rng.Uint64())
			b.SetU64(i, rng.Uint64())
		}
		out = append(out, [2]vsim.V128{a, b})
	}
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// Mismatch 验证失败的组合
type Mismatch struct {
	Case   Case
	A, B   vsim.V128
	Result *Result
	Err    error
}

func (mm Mismatch) String() string {
	if mm.Err != nil {
		return fmt.Sprintf("%s: %v", mm.Case, mm.Err)
	}
	return fmt.Sprintf("%s: a=%s b=%s got=%s want=%s clobbered=%v",
		mm.Case, mm.A, mm.B, mm.Result.Got, mm.Result.Want, mm.Result.Clobber)
}

// Report 验证汇总
type Report struct {
	Runs       int
	Mismatches []Mismatch
}

// Verify 对 ops 的全部重叠组合、两组特性和全部输入运行并比对。
// 同一组合在 AVX 与 SSE 下的结果也必须逐位相同。
func Verify(ops []Op, inputs [][2]vsim.V128) Report {
	var rep Report
	for _, op := range ops {
		for _, c := range AliasCases(op, FeaturesAVX) {
			sse := c
			sse.Features = FeaturesSSE
			sseOK := NewMacroAssembler(nil, FeaturesSSE).Allowed(op, c.Dst, c.Src1, c.Src2, c.Scratch)
			for _, in := range inputs {
				rep.Runs++
				ra, err := Run(c, in[0], in[1])
				if err != nil {
					rep.Mismatches = append(rep.Mismatches, Mismatch{Case: c, A: in[0], B: in[1], Err: err})
					continue
				}
				if !ra.OK() {
					rep.Mismatches = append(rep.Mismatches, Mismatch{Case: c, A: in[0], B: in[1], Result: ra})
				}
				if !sseOK {
					continue
				}
				rep.Runs++
				rs, err := Run(sse, in[0], in[1])
				if err != nil {
					rep.Mismatches = append(rep.Mismatches, Mismatch{Case: sse, A: in[0], B: in[1], Err: err})
					continue
				}
				if !rs.OK() || rs.Got != ra.Got {
					rep.Mismatches = append(rep.Mismatches, Mismatch{Case: sse, A: in[0], B: in[1], Result: rs})
				}
			}
		}
	}
	return rep
}
