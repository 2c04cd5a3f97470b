package bloomfilter

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// sidecarVersion is bumped whenever the on-disk layout changes
// incompatibly. A mismatch triggers a rebuild rather than a read error.
const sidecarVersion uint32 = 1

// SidecarPath returns the conventional sidecar path for a database file,
// per spec §6: "<db>.cbloom".
func SidecarPath(dbPath string) string {
	return dbPath + ".cbloom"
}

// Save atomically snapshots the filter to path: header (version, size,
// num_hashes, seed) followed by the counter array, little-endian. The
// write goes to a temp file in the same directory and is renamed into
// place so a crash mid-write never leaves a corrupt sidecar visible.
func (f *Filter) Save(path string) (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("bloomfilter: create sidecar temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	w := bufio.NewWriter(file)
	header := make([]byte, 20)
	binary.LittleEndian.PutUint32(header[0:4], sidecarVersion)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(f.counters)))
	binary.LittleEndian.PutUint32(header[8:12], f.numHash)
	binary.LittleEndian.PutUint64(header[12:20], f.seed)
	if _, err = w.Write(header); err != nil {
		_ = file.Close()
		return fmt.Errorf("bloomfilter: write sidecar header: %w", err)
	}
	if _, err = w.Write(f.counters); err != nil {
		_ = file.Close()
		return fmt.Errorf("bloomfilter: write sidecar counters: %w", err)
	}
	if err = w.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("bloomfilter: flush sidecar: %w", err)
	}
	if err = file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("bloomfilter: sync sidecar: %w", err)
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("bloomfilter: close sidecar: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("bloomfilter: rename sidecar into place: %w", err)
	}
	return nil
}

// Load reads a sidecar previously written by Save. It returns an error
// (rather than panicking) on any parse or version mismatch; callers
// should treat a Load failure as "rebuild from the entities table", per
// spec §4.1/§6 — the sidecar is self-validating, never load-bearing for
// correctness.
func Load(path string) (*Filter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 20 {
		return nil, fmt.Errorf("bloomfilter: sidecar %s truncated header", path)
	}

	version := binary.LittleEndian.Uint32(data[0:4])
	if version != sidecarVersion {
		return nil, fmt.Errorf("bloomfilter: sidecar %s version %d unsupported", path, version)
	}
	size := binary.LittleEndian.Uint32(data[4:8])
	numHash := binary.LittleEndian.Uint32(data[8:12])
	seed := binary.LittleEndian.Uint64(data[12:20])

	counters := data[20:]
	if uint32(len(counters)) != size {
		return nil, fmt.Errorf("bloomfilter: sidecar %s counter length %d != header size %d", path, len(counters), size)
	}
	if numHash == 0 || size == 0 {
		return nil, fmt.Errorf("bloomfilter: sidecar %s has invalid dimensions", path)
	}

	buf := make([]uint8, len(counters))
	copy(buf, counters)
	return newFromParams(size, numHash, seed, buf), nil
}
