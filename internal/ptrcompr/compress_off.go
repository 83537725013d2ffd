//go:build nocompress

package ptrcompr

// 关闭指针压缩：标记槽为完整的 8 字节
const (
	CompressPointers = false
	TaggedSize       = 8
)
