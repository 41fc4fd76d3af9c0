package flash

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listing(parts ...disk.PartitionStat) PartitionLister {
	return func(context.Context) ([]disk.PartitionStat, error) {
		return parts, nil
	}
}

func TestFind_ByLabel(t *testing.T) {
	f := New(WithPartitions(listing(
		disk.PartitionStat{Device: "/dev/sda1", Mountpoint: "/"},
		disk.PartitionStat{Device: "/dev/sdb", Mountpoint: "/media/ada/MICROBIT", Fstype: "vfat"},
	)))

	dir, err := f.Find(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/media/ada/MICROBIT", dir)
}

func TestFind_ByMarkerFile(t *testing.T) {
	mount := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(mount, "MICROBIT.HTM"), nil, 0o644))

	f := New(WithPartitions(listing(
		disk.PartitionStat{Device: "E:", Mountpoint: t.TempDir()},
		disk.PartitionStat{Device: "F:", Mountpoint: mount},
	)))

	dir, err := f.Find(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mount, dir)
}

func TestFind_NotFound(t *testing.T) {
	f := New(WithPartitions(listing(disk.PartitionStat{Device: "/dev/sda1", Mountpoint: "/"})))

	_, err := f.Find(context.Background())
	assert.ErrorIs(t, err, ErrVolumeNotFound)
}

func TestFind_ListError(t *testing.T) {
	f := New(WithPartitions(func(context.Context) ([]disk.PartitionStat, error) {
		return nil, errors.New("no /proc")
	}))

	_, err := f.Find(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrVolumeNotFound)
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ImageName), []byte("old image, longer"), 0o644))

	path, err := New().Write([]byte(":00000001FF\n"), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ImageName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":00000001FF\n", string(data))
}

func TestWrite_MissingDir(t *testing.T) {
	_, err := New().Write([]byte("x"), filepath.Join(t.TempDir(), "gone"))
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	f := New()
	assert.True(t, f.Exists(dir))
	assert.False(t, f.Exists(filepath.Join(dir, "gone")))
}
