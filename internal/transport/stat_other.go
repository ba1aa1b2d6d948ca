//go:build !linux && !darwin

package transport

import "os"

// fillSysAttr is a no-op where ownership and access time are not
// available from the stat syscall data.
func fillSysAttr(attr *FileAttr, info os.FileInfo) {}
