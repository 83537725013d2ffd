// scheme.go - 指针压缩方案
//
// 两种方案共用 Scheme 的四个操作：
// - HeapScheme: 笼子基址 4 GiB 对齐，可由笼子内任意地址推出（实现 CageDeriver）
// - ExternalCodeScheme: 笼子可以跨越 4 GiB 边界，基址必须显式传入
//
// 外部代码方案：
//    --|----------{---------|------}--------------|--
//     4GB         |        4GB     |             4GB
//                 +-- code range --+
//                 |
//             cage base
// 压缩只是截断到 32 位。解压时若压缩值小于基址的低 32 位，
// 说明目标在下一个 4 GiB 窗口，需要再加 4 GiB。

package ptrcompr

// CageBase 显式传递的笼子基址
type CageBase Address

// Address 返回基址
func (b CageBase) Address() Address { return Address(b) }

// Scheme 压缩方案
type Scheme interface {
	// CompressTagged 完整标记值截断为 32 位，标记位不变
	CompressTagged(tagged Address) Tagged32
	// DecompressTaggedSigned 解压 Smi
	DecompressTaggedSigned(raw Tagged32) Address
	// DecompressTaggedPointer 解压强/弱引用，保留标记位
	DecompressTaggedPointer(base CageBase, raw Tagged32) Address
	// DecompressTaggedAny 解压任意标记值，调用者不需要预先分类
	DecompressTaggedAny(base CageBase, raw Tagged32) Address
}

// CageDeriver 能从笼子内任意地址推出基址的方案
type CageDeriver interface {
	Scheme
	CageBaseOf(onHeap Address) CageBase
}

var (
	_ CageDeriver = HeapScheme{}
	_ Scheme      = ExternalCodeScheme{}
)

// ============================================================================
// 堆方案
// ============================================================================

// HeapScheme 堆指针压缩方案
type HeapScheme struct{}

// CageBaseOf 笼子内任意地址所在的 4 GiB 对齐基址
func (HeapScheme) CageBaseOf(onHeap Address) CageBase {
	return CageBase(onHeap &^ lowMask)
}

// CompressTagged 截断为低 32 位
func (HeapScheme) CompressTagged(tagged Address) Tagged32 {
	return Tagged32(tagged)
}

// DecompressTaggedSigned 符号扩展到 64 位，得到正确的 Smi 表示
func (HeapScheme) DecompressTaggedSigned(raw Tagged32) Address {
	return Address(int64(int32(raw)))
}

// DecompressTaggedPointer base 可以是笼子内的任意地址
func (h HeapScheme) DecompressTaggedPointer(base CageBase, raw Tagged32) Address {
	return h.CageBaseOf(Address(base)).Address() | Address(raw)
}

// DecompressTaggedAny 与 DecompressTaggedPointer 相同
func (h HeapScheme) DecompressTaggedAny(base CageBase, raw Tagged32) Address {
	return h.DecompressTaggedPointer(base, raw)
}

// ProcessIntermediatePointers 保守栈扫描：raw 是栈上的 64 位值，
// 可能包含完整的压缩指针或解压到一半的中间结果。
// 对低、高两个 32 位半字分别解压并回调，回调可能看到重复值。
func (h HeapScheme) ProcessIntermediatePointers(base CageBase, raw Address, cb func(Address)) {
	cb(h.DecompressTaggedPointer(base, Tagged32(raw)))
	cb(h.DecompressTaggedPointer(base, Tagged32(raw>>32)))
}

// ============================================================================
// 外部代码方案
// ============================================================================

const (
	// OSPageSize 外部代码笼子基址的最小对齐
	OSPageSize = 4 << 10
	// MinOSPageSize PrepareCageBaseAddress 向下对齐的粒度
	MinOSPageSize = 64 << 10
)

// ExternalCodeScheme 代码对象字段的压缩方案。没有 CageBaseOf。
type ExternalCodeScheme struct{}

// PrepareCageBaseAddress 把代码区内的地址向下对齐到页，作为笼子基址
func (ExternalCodeScheme) PrepareCageBaseAddress(onHeap Address) CageBase {
	return CageBase(onHeap &^ (MinOSPageSize - 1))
}

// CompressTagged 截断为低 32 位
func (ExternalCodeScheme) CompressTagged(tagged Address) Tagged32 {
	return Tagged32(tagged)
}

// DecompressTaggedSigned 不做任何变换，调用路径上已经确认不是 Smi
func (ExternalCodeScheme) DecompressTaggedSigned(raw Tagged32) Address {
	return Address(raw)
}

// DecompressTaggedPointer 低 32 位不变；压缩值小于基址低 32 位时加 4 GiB
func (ExternalCodeScheme) DecompressTaggedPointer(base CageBase, raw Tagged32) Address {
	b := Address(base)
	result := (b &^ lowMask) | Address(raw)
	if uint32(raw) < uint32(b) {
		result += cageSize
	}
	return result
}

// DecompressTaggedAny Smi 原样返回，其它按指针解压
func (s ExternalCodeScheme) DecompressTaggedAny(base CageBase, raw Tagged32) Address {
	if IsSmi(raw) {
		return s.DecompressTaggedSigned(raw)
	}
	return s.DecompressTaggedPointer(base, raw)
}
