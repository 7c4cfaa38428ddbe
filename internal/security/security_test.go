package security

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// realTempDir resolves t.TempDir (macOS maps /var to /private/var).
func realTempDir(t *testing.T) string {
	t.Helper()
	real, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return real
}

func writeFile(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("ANIO,MES\n"), 0o644))
	return path
}

func TestNewManager(t *testing.T) {
	dir := realTempDir(t)
	m, err := NewManager([]string{dir, " ", dir + string(filepath.Separator)}, nil)
	require.NoError(t, err)
	require.NoError(t, m.ValidateConfig())
	require.Equal(t, []string{dir}, m.AllowedDirectories())

	empty, err := NewManager(nil, nil)
	require.NoError(t, err)
	require.Error(t, empty.ValidateConfig())

	_, err = NewManager([]string{dir}, []string{"csv"})
	require.Error(t, err)
	_, err = NewManager([]string{filepath.Join(dir, "missing")}, nil)
	require.Error(t, err)
	_, err = NewManager([]string{writeFile(t, filepath.Join(dir, "f.csv"))}, nil)
	require.Error(t, err)
}

func TestValidateOpenPath(t *testing.T) {
	root := realTempDir(t)
	outside := realTempDir(t)
	m, err := NewManager([]string{root}, nil)
	require.NoError(t, err)

	inside := writeFile(t, filepath.Join(root, "2024", "DATASET_Denuncias_Policiales.CSV"))
	got, err := m.ValidateOpenPath(inside)
	require.NoError(t, err)
	require.Equal(t, inside, got)

	cases := map[string]struct {
		path string
		want error
	}{
		"empty":      {"", ErrNotAllowed},
		"outside":    {writeFile(t, filepath.Join(outside, "escape.csv")), ErrNotAllowed},
		"missing":    {filepath.Join(root, "nope.xlsx"), ErrNotFound},
		"extension":  {writeFile(t, filepath.Join(root, "bad.json")), ErrUnsupportedExtension},
		"directory":  {mkdir(t, filepath.Join(root, "dir.csv")), ErrNotAllowed},
		"dot prefix": {writeFile(t, filepath.Join(root, "..hidden", "x.csv")), nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.ValidateOpenPath(tc.path)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func mkdir(t *testing.T, dir string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func TestValidateOpenPath_SymlinkEscapeDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := realTempDir(t)
	target := writeFile(t, filepath.Join(realTempDir(t), "target.xlsx"))
	link := filepath.Join(root, "link.xlsx")
	require.NoError(t, os.Symlink(target, link))

	m, err := NewManager([]string{root}, nil)
	require.NoError(t, err)
	_, err = m.ValidateOpenPath(link)
	require.ErrorIs(t, err, ErrNotAllowed)
}

func TestValidateWritePath(t *testing.T) {
	root := realTempDir(t)
	m, err := NewManager([]string{root}, nil)
	require.NoError(t, err)

	got, err := m.ValidateWritePath(filepath.Join(root, "reporte.xlsx"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "reporte.xlsx"), got)

	_, err = m.ValidateWritePath(filepath.Join(root, "..", "reporte.xlsx"))
	require.ErrorIs(t, err, ErrNotAllowed)
	_, err = m.ValidateWritePath(filepath.Join(root, "missing", "reporte.xlsx"))
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.ValidateWritePath(filepath.Join(root, "reporte.exe"))
	require.ErrorIs(t, err, ErrUnsupportedExtension)

	if runtime.GOOS != "windows" {
		link := filepath.Join(root, "link.xlsx")
		require.NoError(t, os.Symlink(filepath.Join(realTempDir(t), "x.xlsx"), link))
		_, err = m.ValidateWritePath(link)
		require.ErrorIs(t, err, ErrNotAllowed)
	}
}

func TestNewManagerFromEnv(t *testing.T) {
	extra := realTempDir(t)
	t.Setenv(EnvAllowedDirs, extra)
	dir := filepath.Join(t.TempDir(), "data")

	m, err := NewManagerFromEnv(dir, "")
	require.NoError(t, err)
	require.NoError(t, m.ValidateConfig())
	require.DirExists(t, dir)
	require.Len(t, m.AllowedDirectories(), 2)
	require.Equal(t, extra, m.AllowedDirectories()[0])
}
