//go:build !linux && !darwin && !windows

package dashboard

import "errors"

func diskUsage(path string) (DiskStats, error) {
	return DiskStats{Path: path}, errors.New("disk usage is not supported on this platform")
}
