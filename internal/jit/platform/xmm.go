package platform

import "fmt"

// ============================================================================
// XMM 寄存器定义
// ============================================================================

// XMMRegister 128 位 SIMD 寄存器。相等即同一寄存器。
type XMMRegister int

const (
	X0 XMMRegister = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	X9
	X10
	X11
	X12
	X13
	X14
	X15

	RegNone XMMRegister = -1 // 无寄存器
)

// NumXMMRegisters x64 下的 XMM 寄存器数量
const NumXMMRegisters = 16

// String 返回寄存器名称
func (r XMMRegister) String() string {
	if r >= X0 && r <= X15 {
		return fmt.Sprintf("xmm%d", int(r))
	}
	return "???"
}

// Valid 检查寄存器在给定模式下是否可用
func (r XMMRegister) Valid(mode Mode) bool {
	return r >= X0 && r < XMMRegister(mode.NumXMM())
}

// isExtended 是否是 xmm8-xmm15（需要 REX/VEX 扩展位）
func (r XMMRegister) isExtended() bool {
	return r >= X8 && r <= X15
}

// lowBits 寄存器编码的低 3 位
func (r XMMRegister) lowBits() byte {
	return byte(r) & 0x7
}

// ParseXMM 解析 "xmm3" 或 "x3" 形式的寄存器名
func ParseXMM(name string) (XMMRegister, error) {
	var n int
	if _, err := fmt.Sscanf(name, "xmm%d", &n); err != nil {
		if _, err := fmt.Sscanf(name, "x%d", &n); err != nil {
			return RegNone, fmt.Errorf("%w: %q", ErrInvalidRegister, name)
		}
	}
	if n < 0 || n >= NumXMMRegisters {
		return RegNone, fmt.Errorf("%w: %q", ErrInvalidRegister, name)
	}
	return XMMRegister(n), nil
}

// ============================================================================
// 目标模式
// ============================================================================

// Mode 目标指令集宽度
type Mode uint8

const (
	Mode64 Mode = iota // x64: xmm0-xmm15，使用 REX
	Mode32             // ia32: xmm0-xmm7，没有 REX
)

// NumXMM 模式下可用的 XMM 寄存器数量
func (m Mode) NumXMM() int {
	if m == Mode32 {
		return 8
	}
	return NumXMMRegisters
}

// String 返回模式名称
func (m Mode) String() string {
	if m == Mode32 {
		return "ia32"
	}
	return "x64"
}

// ParseMode 解析 "x64"/"amd64" 或 "ia32"/"386"
func ParseMode(name string) (Mode, error) {
	switch name {
	case "x64", "amd64", "x86_64", "":
		return Mode64, nil
	case "ia32", "386", "x86":
		return Mode32, nil
	}
	return Mode64, fmt.Errorf("unknown target %q", name)
}
