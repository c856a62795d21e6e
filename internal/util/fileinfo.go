package util

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// FileInfo identifies a log file on disk. The inode distinguishes a
// rotated file from an appended one even when the path is reused.
type FileInfo struct {
	ModTime int64
	Size    int64
	Inode   uint64
}

// GetFileInfo stats filepath and returns its identity. Linux and macOS
// only.
func GetFileInfo(filepath string) (*FileInfo, error) {
	var st unix.Stat_t
	if err := unix.Stat(filepath, &st); err != nil {
		return nil, fmt.Errorf("stat %s: %w", filepath, err)
	}
	return &FileInfo{
		ModTime: int64(st.Mtim.Sec),
		Size:    st.Size,
		Inode:   st.Ino,
	}, nil
}

// CalculateFileFingerprint returns the CRC32 of the last 2KB of the
// file, a cheap content check that catches in-place rewrites.
func CalculateFileFingerprint(filepath string) (string, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	readSize := int64(2048)
	if stat.Size() < readSize {
		readSize = stat.Size()
	}
	if readSize == 0 {
		return "00000000", nil
	}

	if _, err := f.Seek(-readSize, io.SeekEnd); err != nil {
		return "", err
	}
	data := make([]byte, readSize)
	if _, err := io.ReadFull(f, data); err != nil {
		return "", err
	}
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE(data)), nil
}
