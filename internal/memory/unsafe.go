package memory

import "unsafe"

// ptr32 returns a pointer to the 4 bytes of buf starting at addr, for use
// with sync/atomic. buf must already have been bounds-checked by the
// caller for a 4-byte access at addr, and addr must be naturally aligned
// (checkAlign is called before every use site in this package).
func ptr32(buf []byte, addr uint32) unsafe.Pointer {
	return unsafe.Pointer(&buf[addr])
}
