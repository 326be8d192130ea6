//go:build linux || darwin

package dashboard

import "syscall"

// diskUsage reports free and total bytes of the filesystem holding path.
func diskUsage(path string) (DiskStats, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return DiskStats{Path: path}, err
	}

	return DiskStats{
		Free: stat.Bavail * uint64(stat.Bsize),
		Size: stat.Blocks * uint64(stat.Bsize),
		Path: path,
	}, nil
}
