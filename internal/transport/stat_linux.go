package transport

import (
	"os"
	"syscall"
	"time"
)

// fillSysAttr copies ownership and access time out of the stat syscall data.
func fillSysAttr(attr *FileAttr, info os.FileInfo) {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		attr.UID = int(st.Uid)
		attr.GID = int(st.Gid)
		attr.AccessTime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
	}
}
