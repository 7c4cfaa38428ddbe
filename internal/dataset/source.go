package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var (
	// ErrSourceNotFound means no readable source file exists where one was expected.
	ErrSourceNotFound = errors.New("dataset: source file not found")
	// ErrUnsupportedFormat means the file extension is neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("dataset: unsupported source format")
)

// SourceInfo identifies a source file version. Two loads of the same path with
// the same size and modification time are considered the same dataset.
type SourceInfo struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Key is the cache identity of the source.
func (s SourceInfo) Key() string {
	return fmt.Sprintf("%s|%d|%d", s.Path, s.Size, s.ModTime.UnixNano())
}

// Stat resolves a path into its SourceInfo.
func Stat(path string) (SourceInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SourceInfo{}, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return SourceInfo{}, fmt.Errorf("dataset: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return SourceInfo{}, fmt.Errorf("%w: %s is a directory", ErrSourceNotFound, path)
	}
	return SourceInfo{Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// LatestSource returns the most recently modified file in dir matching the
// glob pattern.
func LatestSource(dir, pattern string) (SourceInfo, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return SourceInfo{}, fmt.Errorf("dataset: glob %q: %w", pattern, err)
	}
	var infos []SourceInfo
	for _, m := range matches {
		si, err := Stat(m)
		if err != nil {
			continue
		}
		infos = append(infos, si)
	}
	if len(infos) == 0 {
		return SourceInfo{}, fmt.Errorf("%w: no %s in %s", ErrSourceNotFound, pattern, dir)
	}
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].ModTime.Before(infos[j].ModTime) })
	return infos[len(infos)-1], nil
}

// ReadFile reads a CSV or XLSX source by extension.
func ReadFile(path string) (*RawTable, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var read func(io.Reader) (*RawTable, error)
	switch ext {
	case ".csv", ".txt":
		read = ReadCSV
	case ".xlsx", ".xlsm":
		read = ReadXLSX
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()
	return read(f)
}

// LoadFile reads, normalizes and cleans a source file.
func LoadFile(path string) (*Table, error) {
	raw, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(raw)
}
