//go:build linux || darwin || freebsd

package app

import "syscall"

// diskUsage reports the filesystem holding the data root (plans and the pull
// journal), or nil on error.
func diskUsage(path string) map[string]any {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil
	}
	total := uint64(stat.Blocks) * uint64(stat.Bsize)
	free := uint64(stat.Bfree) * uint64(stat.Bsize)
	return map[string]any{
		"total_bytes":     total,
		"used_bytes":      total - free,
		"available_bytes": uint64(stat.Bavail) * uint64(stat.Bsize),
	}
}
