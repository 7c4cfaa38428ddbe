package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// EnvAllowedDirs names the environment variable holding the allow-list.
const EnvAllowedDirs = "SIDPOL_ALLOWED_DIRS"

// DefaultExtensions are the source and report formats the service reads and writes.
var DefaultExtensions = []string{".csv", ".xlsx", ".xlsm"}

// Manager confines every dataset read and report write to a set of
// allow-listed directories and file extensions. Roots are stored in their
// canonical form (absolute, symlinks resolved), and candidate paths are
// resolved the same way before the containment check.
type Manager struct {
	roots []string
	exts  map[string]struct{}
}

var (
	// ErrNotAllowed: the path resolves outside every root, or names a directory.
	ErrNotAllowed = errors.New("security: path not allowed")
	// ErrUnsupportedExtension: the extension is not on the allow-list.
	ErrUnsupportedExtension = errors.New("security: unsupported file extension")
	// ErrNotFound: the file, or for writes its parent directory, does not exist.
	ErrNotFound = errors.New("security: file not found")
)

// NewManager builds a Manager. Extensions are matched case-insensitively and
// must carry the leading dot; nil selects DefaultExtensions. Every directory
// must exist.
func NewManager(dirs []string, extensions []string) (*Manager, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	m := &Manager{exts: make(map[string]struct{}, len(extensions))}
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if !strings.HasPrefix(e, ".") || len(e) < 2 {
			return nil, fmt.Errorf("security: invalid extension: %q", e)
		}
		m.exts[e] = struct{}{}
	}
	for _, d := range dirs {
		if strings.TrimSpace(d) == "" {
			continue
		}
		root, err := canonicalDir(strings.TrimSpace(d))
		if err != nil {
			return nil, err
		}
		if !slices.Contains(m.roots, root) {
			m.roots = append(m.roots, root)
		}
	}
	return m, nil
}

func canonicalDir(d string) (string, error) {
	real, err := resolve(d)
	if err != nil {
		return "", fmt.Errorf("security: allow-list entry %q: %w", d, err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return "", fmt.Errorf("security: stat %q: %w", real, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("security: allow-list entry is not a directory: %q", real)
	}
	return real, nil
}

// resolve returns the absolute, symlink-free form of p.
func resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return filepath.Clean(real), nil
}

// NewManagerFromEnv merges SIDPOL_ALLOWED_DIRS (an os.PathListSeparator
// list) with fallback. Fallback directories are created when missing so a
// fresh install can use the default data dir.
func NewManagerFromEnv(fallback ...string) (*Manager, error) {
	dirs := filepath.SplitList(os.Getenv(EnvAllowedDirs))
	for _, d := range fallback {
		if strings.TrimSpace(d) == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("security: create %q: %w", d, err)
		}
		dirs = append(dirs, d)
	}
	return NewManager(dirs, nil)
}

// AllowedDirectories returns a copy of the canonical roots.
func (m *Manager) AllowedDirectories() []string {
	return slices.Clone(m.roots)
}

// ValidateConfig fails when no root is configured; every file operation
// would be refused.
func (m *Manager) ValidateConfig() error {
	if len(m.roots) == 0 {
		return errors.New("security: no allowed directories configured")
	}
	return nil
}

// ValidateOpenPath returns the canonical path of an existing dataset file
// inside a root.
func (m *Manager) ValidateOpenPath(input string) (string, error) {
	if err := m.checkName(input); err != nil {
		return "", err
	}
	real, err := resolve(input)
	if err != nil {
		return "", wrapResolve(err)
	}
	info, err := os.Stat(real)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", ErrNotFound
	case err != nil:
		return "", fmt.Errorf("security: stat: %w", err)
	case info.IsDir(), !m.contains(real):
		return "", ErrNotAllowed
	}
	return real, nil
}

// ValidateWritePath returns the canonical target for a report about to be
// created or replaced. The parent directory must exist inside a root; an
// existing symlink at the target is refused.
func (m *Manager) ValidateWritePath(input string) (string, error) {
	if err := m.checkName(input); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("security: abs path: %w", err)
	}
	parent, err := resolve(filepath.Dir(abs))
	if err != nil {
		return "", wrapResolve(err)
	}
	target := filepath.Join(parent, filepath.Base(abs))
	if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", ErrNotAllowed
	}
	if !m.contains(target) {
		return "", ErrNotAllowed
	}
	return target, nil
}

func (m *Manager) checkName(p string) error {
	if strings.TrimSpace(p) == "" {
		return ErrNotAllowed
	}
	if _, ok := m.exts[strings.ToLower(filepath.Ext(p))]; !ok {
		return ErrUnsupportedExtension
	}
	return nil
}

func wrapResolve(err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("security: resolve: %w", err)
}

// contains reports whether real lies strictly below one of the roots.
func (m *Manager) contains(real string) bool {
	for _, root := range m.roots {
		rel, err := filepath.Rel(root, real)
		if err != nil || rel == "." {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
