// Package flash copies a firmware image onto a micro:bit.
//
// The board's DAPLink interface mounts as a USB mass storage volume named
// MICROBIT; copying a .hex file onto it flashes the board.
package flash

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
)

// ErrVolumeNotFound is returned when no board volume is mounted.
var ErrVolumeNotFound = errors.New("micro:bit volume not found")

const (
	// VolumeLabel is the name the board mounts under.
	VolumeLabel = "MICROBIT"

	// ImageName is the file name written to the volume.
	ImageName = "micropython.hex"

	// markerFile is present at the root of every DAPLink volume.
	markerFile = "MICROBIT.HTM"
)

// PartitionLister lists mounted partitions.
type PartitionLister func(ctx context.Context) ([]disk.PartitionStat, error)

// Flasher finds the board volume and writes images onto it.
type Flasher struct {
	partitions PartitionLister
	exists     func(path string) bool
}

// Option configures a Flasher.
type Option func(*Flasher)

// WithPartitions replaces the partition listing.
func WithPartitions(list PartitionLister) Option {
	return func(f *Flasher) {
		f.partitions = list
	}
}

// New creates a Flasher.
func New(opts ...Option) *Flasher {
	f := &Flasher{
		partitions: func(ctx context.Context) ([]disk.PartitionStat, error) {
			return disk.PartitionsWithContext(ctx, false)
		},
		exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Find returns the mount point of the first attached board volume.
func (f *Flasher) Find(ctx context.Context) (string, error) {
	parts, err := f.partitions(ctx)
	if err != nil {
		return "", fmt.Errorf("list partitions: %w", err)
	}

	for _, p := range parts {
		if p.Mountpoint == "" {
			continue
		}
		if strings.EqualFold(filepath.Base(p.Mountpoint), VolumeLabel) {
			return p.Mountpoint, nil
		}
		if f.exists(filepath.Join(p.Mountpoint, markerFile)) {
			return p.Mountpoint, nil
		}
	}
	return "", ErrVolumeNotFound
}

// Exists reports whether dir is an existing directory.
func (f *Flasher) Exists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Write copies image to dir/micropython.hex.
//
// The board starts flashing as soon as it sees the file, so the image is
// written in place rather than through a temporary file and rename.
func (f *Flasher) Write(image []byte, dir string) (string, error) {
	path := filepath.Join(dir, ImageName)
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := out.Write(image); err != nil {
		_ = out.Close()
		return "", err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return "", err
	}
	return path, out.Close()
}
