//go:build unix

package hookmgr

import (
	"fmt"

	"golang.org/x/sys/unix"
)

var pageSize uintptr

func init() {
	pageSize = uintptr(unix.Getpagesize())
}

// protectPages makes every page overlapping [addr, addr+size) writable.
func protectPages(addr, size uintptr) error {
	start := pageSize * (addr / pageSize)
	length := pageSize * ((addr + size + pageSize - 1 - start) / pageSize)
	for i := uintptr(0); i < length; i += pageSize {
		data := makeSlice(start+i, pageSize)
		err := unix.Mprotect(data, unix.PROT_EXEC|unix.PROT_READ|unix.PROT_WRITE)
		if err != nil {
			return fmt.Errorf("%w: mprotect rwx at %#x: %v", ErrUnprotect, start+i, err)
		}
	}
	return nil
}

// reProtectPages restores execute-only protection after a patch or restore.
func reProtectPages(addr, size uintptr) error {
	start := pageSize * (addr / pageSize)
	length := pageSize * ((addr + size + pageSize - 1 - start) / pageSize)
	for i := uintptr(0); i < length; i += pageSize {
		data := makeSlice(start+i, pageSize)
		err := unix.Mprotect(data, unix.PROT_EXEC|unix.PROT_READ)
		if err != nil {
			return fmt.Errorf("%w: mprotect rx at %#x: %v", ErrUnprotect, start+i, err)
		}
	}
	return nil
}

// writeCode copies patch bytes over executable memory, flipping protection
// around the copy.
func writeCode(addr uintptr, code []byte) error {
	if err := protectPages(addr, uintptr(len(code))); err != nil {
		return err
	}
	copy(makeSlice(addr, uintptr(len(code))), code)
	return reProtectPages(addr, uintptr(len(code)))
}
