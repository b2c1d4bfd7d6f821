//go:build !linux

package otaripper

import "os"

// adviseSequential is a no-op outside Linux: posix_fadvise isn't
// available on darwin/windows through golang.org/x/sys/unix.
func adviseSequential(f *os.File) {}
