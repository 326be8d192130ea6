//go:build windows

package dashboard

import (
	"syscall"
	"unsafe"
)

var getDiskFreeSpaceEx = syscall.NewLazyDLL("kernel32.dll").NewProc("GetDiskFreeSpaceExW")

// diskUsage reports free and total bytes of the volume holding path.
func diskUsage(path string) (DiskStats, error) {
	var available, total, totalFree uint64

	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return DiskStats{Path: path}, err
	}

	ret, _, callErr := getDiskFreeSpaceEx.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&available)),
		uintptr(unsafe.Pointer(&total)),
		uintptr(unsafe.Pointer(&totalFree)),
	)
	if ret == 0 {
		return DiskStats{Path: path}, callErr
	}

	return DiskStats{Free: available, Size: total, Path: path}, nil
}
