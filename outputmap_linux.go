package otaripper

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential hints the kernel that the output file f will be
// accessed sequentially, per §4.4. No write-heavy hint is given. Grounded in the
// same golang.org/x/sys module the teacher already carries as an
// indirect dependency (it's golang.org/x/sys/unix that provides the
// fadvise syscall wrapper, not the higher-level mmap-go package, which
// has no hint API).
func adviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
