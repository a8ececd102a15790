// Package shm implements the Shared-Memory Channel: a
// same-host fast path for homogeneous numeric arrays that avoids
// serializing large by-value arrays through the wire codec. Files use
// the fixed `SHMARRY` format:
//
//	[7-byte magic "SHMARRY"][1-byte element kind][raw element bytes x length]
//
// The writer sizes and populates a file under Directory; the reader
// mmaps it, validates the header, copies the payload out, and unlinks
// the file — the reader always owns cleanup, the same map, validate
// header, unmap, unlink lifecycle as a long-lived mmap region but
// adapted to a single-shot handoff file instead of an append log.
package shm

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/deshaw/pjrmi-go/internal/pjerrors"
	"github.com/deshaw/pjrmi-go/internal/wire"
)

const (
	magic       = "SHMARRY"
	magicLen    = len(magic)
	headerLen   = magicLen + 1
	largeMmapAt = 1 << 20 // arrays at or above this size use mmap+copy instead of a buffered write
)

// Channel writes and reads SHMARRY files rooted at Directory.
type Channel struct {
	Directory string
}

// New returns a Channel rooted at dir. dir must already exist; session
// setup is responsible for creating it.
func New(dir string) *Channel { return &Channel{Directory: dir} }

// Write creates a unique SHMARRY file under the channel directory
// holding the given homogeneous numeric array and returns its path.
// Any failure unlinks the partially written file; the caller must treat
// a write error as a failed argument-passing operation, never silently
// falling back to a stale buffer.
func (c *Channel) Write(kind wire.ShmElementKind, raw []byte) (path string, err error) {
	elemSize := kind.ElementSize()
	if elemSize == 0 {
		return "", pjerrors.New(pjerrors.CodeShmIOFailed, "shm: unknown element kind %v", kind)
	}
	if len(raw)%elemSize != 0 {
		return "", pjerrors.New(pjerrors.CodeShmIOFailed, "shm: payload length %d is not a multiple of element size %d", len(raw), elemSize)
	}

	path, err = c.uniquePath()
	if err != nil {
		return "", pjerrors.WithDetail(pjerrors.CodeShmIOFailed, err, "shm: choosing a unique filename")
	}

	total := int64(headerLen + len(raw))

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", pjerrors.WithDetail(pjerrors.CodeShmIOFailed, err, "shm: creating %s", path)
	}
	defer f.Close()

	ok := false
	defer func() {
		if !ok {
			os.Remove(path)
		}
	}()

	if err := f.Truncate(total); err != nil {
		return "", pjerrors.WithDetail(pjerrors.CodeShmIOFailed, err, "shm: sizing %s to %d bytes", path, total)
	}

	if len(raw) >= largeMmapAt {
		if err := writeViaMmap(f, total, kind, raw); err != nil {
			return "", err
		}
	} else {
		if err := writeViaBuffer(f, kind, raw); err != nil {
			return "", pjerrors.WithDetail(pjerrors.CodeShmIOFailed, err, "shm: writing %s", path)
		}
	}

	info, err := f.Stat()
	if err != nil {
		return "", pjerrors.WithDetail(pjerrors.CodeShmIOFailed, err, "shm: stat after write %s", path)
	}
	if info.Size() != total {
		return "", pjerrors.New(pjerrors.CodeShmIOFailed, "shm: partial write to %s: wrote %d of %d bytes", path, info.Size(), total)
	}

	ok = true
	return path, nil
}

func writeViaBuffer(f *os.File, kind wire.ShmElementKind, raw []byte) error {
	if _, err := f.WriteAt([]byte(magic), 0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte{byte(kind)}, int64(magicLen)); err != nil {
		return err
	}
	_, err := f.WriteAt(raw, int64(headerLen))
	return err
}

func writeViaMmap(f *os.File, total int64, kind wire.ShmElementKind, raw []byte) error {
	data, err := unix.Mmap(int(f.Fd()), 0, int(total), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return pjerrors.WithDetail(pjerrors.CodeShmIOFailed, err, "shm: mmap for write")
	}
	defer unix.Munmap(data)

	copy(data[:magicLen], magic)
	data[magicLen] = byte(kind)
	copy(data[headerLen:], raw)
	return nil
}

// Read opens the SHMARRY file at path, validates its header against the
// expected element kind, copies the payload out, unmaps, and unlinks
// the file — the reader owns cleanup regardless of outcome.
func (c *Channel) Read(path string, expectedKind wire.ShmElementKind) ([]byte, error) {
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, pjerrors.WithDetail(pjerrors.CodeShmIOFailed, err, "shm: opening %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, pjerrors.WithDetail(pjerrors.CodeShmIOFailed, err, "shm: stat %s", path)
	}
	if info.Size() < int64(headerLen) {
		return nil, pjerrors.New(pjerrors.CodeShmIOFailed, "shm: %s is smaller than the header", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, pjerrors.WithDetail(pjerrors.CodeShmIOFailed, err, "shm: mmap %s", path)
	}
	defer unix.Munmap(data)

	if string(data[:magicLen]) != magic {
		return nil, pjerrors.New(pjerrors.CodeShmIOFailed, "shm: %s has a corrupt header (bad magic)", path)
	}
	gotKind := wire.ShmElementKind(data[magicLen])
	if gotKind != expectedKind {
		return nil, pjerrors.New(pjerrors.CodeShmIOFailed, "shm: %s element kind %v does not match expected %v", path, gotKind, expectedKind)
	}

	payload := make([]byte, len(data)-headerLen)
	copy(payload, data[headerLen:])
	return payload, nil
}

// uniquePath generates a collision-resistant filename: a timestamp, the
// calling OS thread id is not observable from Go, so a cryptographically
// random suffix stands in for it.
func (c *Channel) uniquePath() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("pjrmi-%d-%d.shm", time.Now().UnixNano(), n.Int64())
	path := filepath.Join(c.Directory, name)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("shm: filename collision at %s", path)
	}
	return path, nil
}

// Threshold reports whether an array of length elements of kind should
// use the shared-memory path rather than inline wire bytes: array
// length times element size at or above thresholdBytes.
func Threshold(kind wire.ShmElementKind, length int, thresholdBytes int64) bool {
	return int64(kind.ElementSize())*int64(length) >= thresholdBytes
}
