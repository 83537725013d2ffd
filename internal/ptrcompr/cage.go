package ptrcompr

import (
	"errors"
	"fmt"

	"go.uber.org/atomic"
)

// 笼子校验错误
var (
	ErrMisaligned       = errors.New("cage base misaligned")
	ErrCodeRange        = errors.New("code range outside cage")
	ErrCageAlreadySet   = errors.New("cage already initialized")
	ErrAddressNotInCage = errors.New("address not in cage")
)

// ============================================================================
// 堆笼子
// ============================================================================

// HeapCage 基址 4 GiB 对齐的堆笼子
type HeapCage struct {
	base Address
}

// NewHeapCage 校验基址并创建堆笼子
func NewHeapCage(base Address) (*HeapCage, error) {
	if base&lowMask != 0 {
		return nil, fmt.Errorf("%w: heap cage base %s is not 4 GiB aligned", ErrMisaligned, base)
	}
	return &HeapCage{base: base}, nil
}

// Base 返回笼子基址
func (c *HeapCage) Base() CageBase { return CageBase(c.base) }

// Contains 地址是否在笼子内
func (c *HeapCage) Contains(a Address) bool { return a&^lowMask == c.base }

// Compress 压缩笼子内的标记值
func (c *HeapCage) Compress(tagged Address) (Tagged32, error) {
	if IsHeapObject(tagged) && !c.Contains(tagged) {
		return 0, fmt.Errorf("%w: %s not in heap cage %s", ErrAddressNotInCage, tagged, c.base)
	}
	return HeapScheme{}.CompressTagged(tagged), nil
}

// Decompress 解压任意标记值
func (c *HeapCage) Decompress(raw Tagged32) Address {
	if IsSmi(raw) {
		return HeapScheme{}.DecompressTaggedSigned(raw)
	}
	return HeapScheme{}.DecompressTaggedAny(c.Base(), raw)
}

// ============================================================================
// 外部代码笼子
// ============================================================================

// ExternalCodeCage 可以跨越 4 GiB 边界的代码笼子
type ExternalCodeCage struct {
	base      Address
	codeStart Address
	codeSize  uint64
}

// NewExternalCodeCage 校验 [codeStart, codeStart+codeSize) ⊆ [base, base+4 GiB)
func NewExternalCodeCage(base, codeStart Address, codeSize uint64) (*ExternalCodeCage, error) {
	if base&(OSPageSize-1) != 0 {
		return nil, fmt.Errorf("%w: code cage base %s is not aligned to %d", ErrMisaligned, base, OSPageSize)
	}
	end := codeStart + Address(codeSize)
	switch {
	case codeSize > cageSize:
		return nil, fmt.Errorf("%w: code range size %#x exceeds 4 GiB", ErrCodeRange, codeSize)
	case end < codeStart:
		return nil, fmt.Errorf("%w: code range overflows address space", ErrCodeRange)
	case codeStart < base:
		return nil, fmt.Errorf("%w: code start %s below cage base %s", ErrCodeRange, codeStart, base)
	case uint64(end-base) > cageSize:
		return nil, fmt.Errorf("%w: code end %s beyond cage end", ErrCodeRange, end)
	}
	return &ExternalCodeCage{base: base, codeStart: codeStart, codeSize: codeSize}, nil
}

// Base 返回笼子基址
func (c *ExternalCodeCage) Base() CageBase { return CageBase(c.base) }

// CodeRange 返回代码区
func (c *ExternalCodeCage) CodeRange() (start Address, size uint64) {
	return c.codeStart, c.codeSize
}

// Contains 地址是否在代码区内
func (c *ExternalCodeCage) Contains(a Address) bool {
	return a >= c.codeStart && uint64(a-c.codeStart) < c.codeSize
}

// Compress 压缩代码区内的指针
func (c *ExternalCodeCage) Compress(tagged Address) (Tagged32, error) {
	if !c.Contains(tagged) {
		return 0, fmt.Errorf("%w: %s not in code range", ErrAddressNotInCage, tagged)
	}
	return ExternalCodeScheme{}.CompressTagged(tagged), nil
}

// Decompress 解压代码指针
func (c *ExternalCodeCage) Decompress(raw Tagged32) Address {
	return ExternalCodeScheme{}.DecompressTaggedPointer(c.Base(), raw)
}

// ============================================================================
// 笼子注册表
// ============================================================================

const (
	slotEmpty uint32 = iota
	slotWriting
	slotReady
)

// onceSlot 只能写入一次的值
type onceSlot[T any] struct {
	state atomic.Uint32
	val   T
}

func (s *onceSlot[T]) set(v T) bool {
	if !s.state.CAS(slotEmpty, slotWriting) {
		return false
	}
	s.val = v
	s.state.Store(slotReady)
	return true
}

func (s *onceSlot[T]) get() (T, bool) {
	if s.state.Load() != slotReady {
		var zero T
		return zero, false
	}
	return s.val, true
}

// Registry 进程级笼子注册表。每种笼子只能在创建堆时设置一次。
type Registry struct {
	heap onceSlot[*HeapCage]
	code onceSlot[*ExternalCodeCage]
}

// SetHeapCage 设置堆笼子
func (r *Registry) SetHeapCage(c *HeapCage) error {
	if !r.heap.set(c) {
		return fmt.Errorf("%w: heap", ErrCageAlreadySet)
	}
	return nil
}

// HeapCage 返回堆笼子
func (r *Registry) HeapCage() (*HeapCage, bool) { return r.heap.get() }

// SetCodeCage 设置外部代码笼子
func (r *Registry) SetCodeCage(c *ExternalCodeCage) error {
	if !r.code.set(c) {
		return fmt.Errorf("%w: external code", ErrCageAlreadySet)
	}
	return nil
}

// CodeCage 返回外部代码笼子
func (r *Registry) CodeCage() (*ExternalCodeCage, bool) { return r.code.get() }
