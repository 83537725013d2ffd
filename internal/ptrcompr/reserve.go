// reserve.go - 为堆笼子预留虚拟地址空间
//
// 预留 8 GiB 不可访问的地址空间，其中必然包含一个 4 GiB 对齐的完整窗口，
// 以它作为堆笼子。Commit 把笼子内的一段页改为可读写。

package ptrcompr

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrReserveUnsupported 当前平台不支持预留笼子
var ErrReserveUnsupported = errors.New("cage reservation not supported on this platform")

// Reservation 一段预留的地址空间
type Reservation struct {
	mem  []byte  // 整个映射
	base Address // 4 GiB 对齐的笼子基址
	cage *HeapCage
}

// ReserveHeapCage 预留一个堆笼子
func ReserveHeapCage() (*Reservation, error) {
	mem, err := reserve(2 * cageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve heap cage: %w", err)
	}
	start := Address(uintptr(unsafe.Pointer(&mem[0])))
	base := (start + lowMask) &^ lowMask
	cage, err := NewHeapCage(base)
	if err != nil {
		_ = release(mem)
		return nil, err
	}
	return &Reservation{mem: mem, base: base, cage: cage}, nil
}

// Cage 返回笼子
func (r *Reservation) Cage() *HeapCage { return r.cage }

// Commit 把笼子内 [off, off+n) 所在的页改为可读写，返回对应的切片
func (r *Reservation) Commit(off, n uint64) ([]byte, error) {
	if n == 0 || off+n > cageSize || off+n < off {
		return nil, fmt.Errorf("%w: commit [%#x, %#x)", ErrAddressNotInCage, off, off+n)
	}
	skip := uint64(r.base - Address(uintptr(unsafe.Pointer(&r.mem[0]))))
	page := uint64(pageSize())
	lo := (off / page) * page
	hi := (off + n + page - 1) / page * page
	if err := commit(r.mem[skip+lo : skip+hi]); err != nil {
		return nil, fmt.Errorf("failed to commit cage pages: %w", err)
	}
	return r.mem[skip+off : skip+off+n : skip+off+n], nil
}

// Release 释放整个预留
func (r *Reservation) Release() error {
	if r.mem == nil {
		return nil
	}
	err := release(r.mem)
	r.mem = nil
	return err
}
