//go:build !((linux || darwin || windows) && (amd64 || arm64))

package ptrcompr

import "os"

func reserve(uint64) ([]byte, error) { return nil, ErrReserveUnsupported }

func commit([]byte) error { return ErrReserveUnsupported }

func release([]byte) error { return nil }

func pageSize() int { return os.Getpagesize() }
