// assembler.go - SIMD 汇编器接口
//
// 宏汇编层只通过 SIMDAssembler 发射原始指令。
// 实现者：
// - X64Assembler: 编码为机器码
// - vsim.Machine: 直接解释执行（用于测试和验证）

package platform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tangzhangming/vecasm/internal/cpu"
)

// SIMDAssembler 原始 SIMD 指令发射接口
type SIMDAssembler interface {
	// RegReg 两操作数形式：op dst, src
	RegReg(op SIMDOp, dst, src XMMRegister)
	// RegRegReg VEX 三操作数形式：vop dst, src1, src2
	RegRegReg(op SIMDOp, dst, src1, src2 XMMRegister)
	// RegImm 立即数移位：op dst, imm8
	RegImm(op SIMDOp, dst XMMRegister, imm uint8)
	// RegRegImm 带立即数的两寄存器形式：op dst, src, imm8
	RegRegImm(op SIMDOp, dst, src XMMRegister, imm uint8)
	// EnterFeature 进入特性作用域，返回的函数在退出时调用
	EnterFeature(f cpu.Feature) (release func())
}

// ============================================================================
// 断言错误
// ============================================================================

// 编程错误。违反这些前置条件时汇编器 panic。
var (
	ErrWrongForm          = errors.New("instruction used with wrong operand form")
	ErrFeatureNotEnabled  = errors.New("instruction requires a feature scope")
	ErrFeatureUnsupported = errors.New("feature scope entered for unsupported feature")
	ErrInvalidRegister    = errors.New("invalid register")
	ErrAliasing           = errors.New("operand aliasing violates helper contract")
)

// AssertionError 调试断言失败
type AssertionError struct {
	Err    error
	Detail string
}

func (e *AssertionError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

func (e *AssertionError) Unwrap() error { return e.Err }

// Assertf 以 *AssertionError 触发 panic
func Assertf(err error, format string, args ...any) {
	panic(&AssertionError{Err: err, Detail: fmt.Sprintf(format, args...)})
}

// Catch 执行 fn，把断言 panic 转换为错误返回。其它 panic 原样抛出。
func Catch(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ae, ok := r.(*AssertionError)
			if !ok {
				panic(r)
			}
			err = ae
		}
	}()
	fn()
	return nil
}

// ============================================================================
// 指令记录
// ============================================================================

// Inst 一条已发射的指令
type Inst struct {
	Op     SIMDOp
	Dst    XMMRegister
	Src1   XMMRegister
	Src2   XMMRegister
	Imm    uint8
	Offset int // 在代码中的偏移
	Len    int // 编码长度
}

// String 返回 Intel 语法
func (in Inst) String() string {
	var sb strings.Builder
	sb.WriteString(in.Op.String())
	sb.WriteByte(' ')
	sb.WriteString(in.Dst.String())
	switch in.Op.Form() {
	case FormRR:
		fmt.Fprintf(&sb, ", %s", in.Src1)
	case FormRRR:
		fmt.Fprintf(&sb, ", %s, %s", in.Src1, in.Src2)
	case FormRI:
		fmt.Fprintf(&sb, ", 0x%x", in.Imm)
	case FormRRI:
		fmt.Fprintf(&sb, ", %s, 0x%x", in.Src1, in.Imm)
	}
	return sb.String()
}

// Replay 把记录的指令重新发射到另一个汇编器
func Replay(dst SIMDAssembler, insts []Inst) {
	for _, in := range insts {
		switch in.Op.Form() {
		case FormRR:
			dst.RegReg(in.Op, in.Dst, in.Src1)
		case FormRRR:
			dst.RegRegReg(in.Op, in.Dst, in.Src1, in.Src2)
		case FormRI:
			dst.RegImm(in.Op, in.Dst, in.Imm)
		case FormRRI:
			dst.RegRegImm(in.Op, in.Dst, in.Src1, in.Imm)
		}
	}
}
