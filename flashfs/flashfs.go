// Package flashfs mounts a littlefs volume on the board flash. It is the
// store for loader uploads and the shell's file commands.
package flashfs

import (
	"errors"
	"fmt"
	"io"
	"os"

	"tinygo.org/x/tinyfs/littlefs"

	"ember/hal"
)

// Info describes one stored file.
type Info struct {
	Name string
	Size int64
}

// Volume is a mounted littlefs filesystem.
type Volume struct {
	lfs *littlefs.LFS
}

// Mount attaches a littlefs volume to the flash, formatting a fresh
// image when no filesystem is found.
func Mount(f hal.Flash) (*Volume, error) {
	if f == nil {
		return nil, errors.New("flashfs: no flash device")
	}

	lfs := littlefs.New(&blockDev{f: f})
	lfs.Configure(&littlefs.Config{
		CacheSize:     256,
		LookaheadSize: 256,
		BlockCycles:   512,
	})

	if err := lfs.Mount(); err != nil {
		if err := lfs.Format(); err != nil {
			return nil, fmt.Errorf("flashfs format: %w", err)
		}
		if err := lfs.Mount(); err != nil {
			return nil, fmt.Errorf("flashfs mount: %w", err)
		}
	}
	return &Volume{lfs: lfs}, nil
}

// List returns the files in the volume root.
func (v *Volume) List() ([]Info, error) {
	d, err := v.lfs.OpenFile("/", os.O_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("flashfs list: %w", err)
	}
	defer func() { _ = d.Close() }()

	entries, err := d.Readdir(0)
	if err != nil {
		return nil, fmt.Errorf("flashfs list: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		name := e.Name()
		if name == "." || name == ".." || e.IsDir() {
			continue
		}
		infos = append(infos, Info{Name: name, Size: e.Size()})
	}
	return infos, nil
}

// ReadFile returns a file's contents.
func (v *Volume) ReadFile(name string) ([]byte, error) {
	f, err := v.lfs.OpenFile(name, os.O_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("flashfs read %q: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	var data []byte
	buf := make([]byte, 512)
	for {
		n, err := f.Read(buf)
		data = append(data, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return data, nil
			}
			return nil, fmt.Errorf("flashfs read %q: %w", name, err)
		}
		if n == 0 {
			return data, nil
		}
	}
}

// WriteFile replaces a file's contents.
func (v *Volume) WriteFile(name string, data []byte) error {
	f, err := v.lfs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("flashfs write %q: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("flashfs write %q: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("flashfs write %q: %w", name, err)
	}
	return nil
}

// Remove deletes a file.
func (v *Volume) Remove(name string) error {
	if err := v.lfs.Remove(name); err != nil {
		return fmt.Errorf("flashfs remove %q: %w", name, err)
	}
	return nil
}

// blockDev adapts hal.Flash to the tinyfs block-device contract.
type blockDev struct {
	f hal.Flash
}

func (d *blockDev) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, uint32(off))
}

func (d *blockDev) WriteAt(p []byte, off int64) (int, error) {
	return d.f.WriteAt(p, uint32(off))
}

func (d *blockDev) Size() int64 { return int64(d.f.SizeBytes()) }

func (d *blockDev) WriteBlockSize() int64 { return 256 }

func (d *blockDev) EraseBlockSize() int64 { return int64(d.f.EraseBlockBytes()) }

func (d *blockDev) EraseBlocks(start, length int64) error {
	bs := d.EraseBlockSize()
	return d.f.Erase(uint32(start*bs), uint32(length*bs))
}
