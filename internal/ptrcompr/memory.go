// memory.go - 可能未对齐的字段访问
//
// 开启指针压缩后，堆对象的字段按 TaggedSize 对齐，
// 宽度大于 TaggedSize 的字段可能未按自然宽度对齐，必须按字节读写。
// float64 字段在 DoubleSize > TaggedSize 时总是按非对齐方式访问。
// 路径只由常量决定，运行时不检查地址对齐。

package ptrcompr

import (
	"errors"
	"fmt"
	"unsafe"
)

// DoubleSize float64 的宽度
const DoubleSize = 8

// ErrFieldBounds 字段越界
var ErrFieldBounds = errors.New("field out of bounds")

// Value 可以存放在堆字段中的值
type Value interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 |
		~float32 | ~float64 | ~uintptr
}

// NeedsUnaligned V 的访问是否走非对齐路径
func NeedsUnaligned[V Value]() bool {
	var v V
	_, isDouble := any(v).(float64)
	compressed := CompressPointers && unsafe.Sizeof(v) > TaggedSize
	return compressed || (isDouble && DoubleSize > TaggedSize)
}

// ReadMaybeUnaligned 读取 p 处的 V。对齐路径要求 p 按 V 的宽度对齐。
func ReadMaybeUnaligned[V Value](p unsafe.Pointer) V {
	if NeedsUnaligned[V]() {
		var v V
		copy(bytesOf(unsafe.Pointer(&v), unsafe.Sizeof(v)), bytesOf(p, unsafe.Sizeof(v)))
		return v
	}
	return *(*V)(p)
}

// WriteMaybeUnaligned 写入 p 处的 V
func WriteMaybeUnaligned[V Value](p unsafe.Pointer, v V) {
	if NeedsUnaligned[V]() {
		copy(bytesOf(p, unsafe.Sizeof(v)), bytesOf(unsafe.Pointer(&v), unsafe.Sizeof(v)))
		return
	}
	*(*V)(p) = v
}

func bytesOf(p unsafe.Pointer, n uintptr) []byte {
	return unsafe.Slice((*byte)(p), n)
}

// ============================================================================
// 字节切片上的字段
// ============================================================================

func fieldPtr(mem []byte, off int, size uintptr) (unsafe.Pointer, error) {
	if off < 0 || off > len(mem)-int(size) {
		return nil, fmt.Errorf("%w: offset %d, size %d, length %d", ErrFieldBounds, off, size, len(mem))
	}
	return unsafe.Pointer(&mem[off]), nil
}

// LoadField 读取 mem[off:] 处的字段
func LoadField[V Value](mem []byte, off int) (V, error) {
	var v V
	p, err := fieldPtr(mem, off, unsafe.Sizeof(v))
	if err != nil {
		return v, err
	}
	return ReadMaybeUnaligned[V](p), nil
}

// StoreField 写入 mem[off:] 处的字段
func StoreField[V Value](mem []byte, off int, v V) error {
	p, err := fieldPtr(mem, off, unsafe.Sizeof(v))
	if err != nil {
		return err
	}
	WriteMaybeUnaligned(p, v)
	return nil
}

// LoadTaggedField 读取标记槽。开启压缩时槽里是 Tagged32，按堆方案解压。
func LoadTaggedField(c *HeapCage, mem []byte, off int) (Address, error) {
	if !CompressPointers {
		v, err := LoadField[uint64](mem, off)
		return Address(v), err
	}
	raw, err := LoadField[uint32](mem, off)
	if err != nil {
		return 0, err
	}
	return c.Decompress(Tagged32(raw)), nil
}

// StoreTaggedField 写入标记槽
func StoreTaggedField(c *HeapCage, mem []byte, off int, v Address) error {
	if !CompressPointers {
		return StoreField(mem, off, uint64(v))
	}
	raw, err := c.Compress(v)
	if err != nil {
		return err
	}
	return StoreField(mem, off, uint32(raw))
}
