package cpu

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// Detect 探测宿主 CPU 支持的特性。非 x86 宿主返回 Baseline。
func Detect() Features {
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "386" {
		return Baseline
	}
	s := Baseline
	if cpu.X86.HasSSSE3 {
		s = s.With(SSSE3)
	}
	if cpu.X86.HasSSE41 {
		s = s.With(SSE41)
	}
	// HasAVX 已经包含了 OS 对 YMM 状态保存的检查
	if cpu.X86.HasAVX {
		s = s.With(AVX)
	}
	if cpu.X86.HasAVX2 {
		s = s.With(AVX2)
	}
	return s
}
