//go:build (linux || darwin) && (amd64 || arm64)

package ptrcompr

import "golang.org/x/sys/unix"

func reserve(size uint64) ([]byte, error) {
	return unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_NORESERVE)
}

func commit(mem []byte) error {
	return unix.Mprotect(mem, unix.PROT_READ|unix.PROT_WRITE)
}

func release(mem []byte) error {
	return unix.Munmap(mem)
}

func pageSize() int {
	return unix.Getpagesize()
}
