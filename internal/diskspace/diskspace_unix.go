//go:build unix

package diskspace

import "golang.org/x/sys/unix"

func available(dir string) (int64, bool) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, false
	}
	// Bavail counts blocks available to unprivileged users.
	return int64(st.Bavail) * int64(st.Bsize), true
}
