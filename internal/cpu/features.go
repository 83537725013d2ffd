// features.go - CPU 特性集合
//
// 本文件定义了 SIMD 代码生成所依赖的指令集扩展集合。
// 特性集合是不可变的值，进程启动时初始化一次，之后只读。
//
// 代码生成器只关心两个查询：
// - AVX: 是否可以使用三操作数的 VEX 编码
// - SSE4.1: 是否可以使用 pmovsx/pmovzx/pmuldq
//
// SSE2 是 x86-64 的基线，总是被视为可用。

package cpu

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ============================================================================
// 特性定义
// ============================================================================

// Feature 指令集扩展
type Feature uint8

const (
	SSE2 Feature = iota
	SSSE3
	SSE41
	AVX
	AVX2

	numFeatures
)

var featureNames = [numFeatures]string{
	SSE2:  "sse2",
	SSSE3: "ssse3",
	SSE41: "sse4.1",
	AVX:   "avx",
	AVX2:  "avx2",
}

// String 返回特性名称
func (f Feature) String() string {
	if f < numFeatures {
		return featureNames[f]
	}
	return fmt.Sprintf("feature(%d)", uint8(f))
}

// ErrUnknownFeature 无法识别的特性名
var ErrUnknownFeature = errors.New("unknown cpu feature")

// ParseFeature 解析特性名（不区分大小写，"sse4.1"、"sse41"、"sse4_1" 均可）
func ParseFeature(name string) (Feature, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer(".", "", "_", "").Replace(n)
	for f := Feature(0); f < numFeatures; f++ {
		if strings.ReplaceAll(featureNames[f], ".", "") == n {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
}

// ============================================================================
// 特性集合
// ============================================================================

// Features 不可变的特性集合（位集）
type Features uint32

// Baseline 只包含 SSE2 的集合
const Baseline = Features(1 << SSE2)

// Of 由若干特性构造集合，SSE2 总是包含在内
func Of(fs ...Feature) Features {
	s := Baseline
	for _, f := range fs {
		s |= 1 << f
	}
	return s
}

// IsSupported 查询特性是否可用
func (s Features) IsSupported(f Feature) bool {
	return f < numFeatures && s&(1<<f) != 0
}

// With 返回加入 f 后的新集合
func (s Features) With(f Feature) Features {
	return s | 1<<f
}

// Without 返回去掉 f 后的新集合，SSE2 不能被去掉
func (s Features) Without(f Feature) Features {
	if f == SSE2 {
		return s
	}
	return s &^ (1 << f)
}

// List 按定义顺序列出集合中的特性
func (s Features) List() []Feature {
	var out []Feature
	for f := Feature(0); f < numFeatures; f++ {
		if s.IsSupported(f) {
			out = append(out, f)
		}
	}
	return out
}

// String 返回以逗号分隔的特性名
func (s Features) String() string {
	names := make([]string, 0, numFeatures)
	for _, f := range s.List() {
		names = append(names, f.String())
	}
	return strings.Join(names, ",")
}

// ParseList 解析特性列表
// "auto" 表示探测宿主 CPU，"baseline" 表示只有 SSE2，
// 其余按逗号分隔解析。AVX 隐含 SSE4.1 和 SSSE3。
func ParseList(list string) (Features, error) {
	switch strings.ToLower(strings.TrimSpace(list)) {
	case "", "auto":
		return Detect(), nil
	case "baseline", "sse2":
		return Baseline, nil
	}
	parts := strings.Split(list, ",")
	s := Baseline
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		f, err := ParseFeature(p)
		if err != nil {
			return 0, err
		}
		s = s.With(f)
	}
	return s.normalize(), nil
}

// normalize 补全隐含的特性
func (s Features) normalize() Features {
	if s.IsSupported(AVX2) {
		s = s.With(AVX)
	}
	if s.IsSupported(AVX) {
		s = s.With(SSE41)
	}
	if s.IsSupported(SSE41) {
		s = s.With(SSSE3)
	}
	return s
}

// ============================================================================
// 进程级特性表
// ============================================================================

// ErrAlreadyInitialized 全局特性集合已被初始化
var ErrAlreadyInitialized = errors.New("cpu features already initialized")

// Oracle 只写一次的特性集合
type Oracle struct {
	mu   sync.Mutex
	set  Features
	init bool
}

// Init 设置特性集合，只能调用一次
func (o *Oracle) Init(s Features) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.init {
		return ErrAlreadyInitialized
	}
	o.set = s | Baseline
	o.init = true
	return nil
}

// Features 返回特性集合。未调用 Init 时探测宿主 CPU。
func (o *Oracle) Features() Features {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.init {
		o.set = Detect()
		o.init = true
	}
	return o.set
}

// IsSupported 查询单个特性
func (o *Oracle) IsSupported(f Feature) bool {
	return o.Features().IsSupported(f)
}

var process Oracle

// Process 返回进程级特性表
func Process() *Oracle { return &process }

// Init 设置进程级特性集合，只能调用一次
func Init(s Features) error { return process.Init(s) }

// Global 返回进程级特性集合
func Global() Features { return process.Features() }
