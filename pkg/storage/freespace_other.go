//go:build !unix

package storage

// FreeSpace is not supported here; the second result is false.
func FreeSpace(dir string) (uint64, bool, error) {
	return 0, false, nil
}
