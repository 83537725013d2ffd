//go:build !nocompress

package ptrcompr

// 开启指针压缩：标记槽为 4 字节
const (
	CompressPointers = true
	TaggedSize       = 4
)
