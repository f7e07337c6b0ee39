//go:build !windows

package entry

import (
	"os"
	"syscall"
)

func ownerOf(info os.FileInfo) (uid, gid int64) {
	if st, ok := info.Sys().(*syscall.Stat_t); ok && st != nil {
		return int64(st.Uid), int64(st.Gid)
	}
	return 0, 0
}
