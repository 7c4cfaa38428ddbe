package acquire

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/sidpol/config"
	"github.com/vinodismyname/sidpol/internal/security"
)

const page = `<html><body>
<a href="/files/DATASET_Denuncias_Policiales_Enero%202018%20a%20Agosto%202025.csv">Agosto 2025</a>
<a href="/files/DATASET_Denuncias_Policiales_Enero%202018%20a%20Octubre%202025.csv">Descargar <b>Octubre 2025</b></a>
<a href="/files/diccionario.csv">Diccionario de datos</a>
<a href="/about">Acerca</a>
</body></html>`

func TestScoreLink(t *testing.T) {
	s := ScoreLink(Link{Href: "/f/DATASET_Enero%202018%20a%20Setiembre%202025.csv"})
	require.Equal(t, 2018, s.Year)
	require.Equal(t, 1, s.Month)

	s = ScoreLink(Link{Href: "/f/data.csv", Text: "Diciembre 2024"})
	require.Equal(t, Score{Year: 2024, Month: 12, HrefLen: len("/f/data.csv")}, s)

	require.Equal(t, Score{HrefLen: 5}, ScoreLink(Link{Href: "a.csv"}))
}

func TestCSVLinksAndBest(t *testing.T) {
	links, err := CSVLinks(strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, links, 3)
	require.Equal(t, "Descargar Octubre 2025", links[1].Text)

	best, ok := BestLink([]Link{
		{Href: "/a.csv", Text: "Marzo 2025"},
		{Href: "/b.csv", Text: "Octubre 2025"},
		{Href: "/c.csv", Text: "Diciembre 2024"},
	})
	require.True(t, ok)
	require.Equal(t, "/b.csv", best.Href)

	best, ok = BestLink([]Link{{Href: "/x.csv"}, {Href: "/longer.csv"}})
	require.True(t, ok)
	require.Equal(t, "/longer.csv", best.Href)

	_, ok = BestLink(nil)
	require.False(t, ok)
}

func TestFilenameFromContentDisposition(t *testing.T) {
	require.Equal(t, "DATASET_Denuncias_Policiales_2025.csv", FilenameFromContentDisposition(`attachment; filename="DATASET_Denuncias_Policiales_2025.csv"`))
	require.Equal(t, "x.csv", FilenameFromContentDisposition(`attachment; filename=../../x.csv`))
	require.Equal(t, config.DefaultFallbackSourceFilename, FilenameFromContentDisposition(""))
	require.Equal(t, config.DefaultFallbackSourceFilename, FilenameFromContentDisposition(`attachment; filename=""`))
}

func newPortal(t *testing.T, body string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/dataset", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "Octubre") {
			http.Error(w, "wrong file", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="DATASET_Denuncias_Policiales_Octubre_2025.csv"`)
		fmt.Fprint(w, body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload_ReplacesOldFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "DATASET_Denuncias_Policiales_Agosto.csv")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0o600))
	unrelated := filepath.Join(dir, "notes.csv")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o600))

	body := "ANIO,MES,cantidad\n2025,10,5\n"
	srv := newPortal(t, body)
	sec, err := security.NewManager([]string{dir}, nil)
	require.NoError(t, err)

	f := New(config.AcquireConfig{PageURL: srv.URL + "/dataset", UserAgent: "test"}, dir, "", sec, zerolog.Nop())
	res, err := f.Download(context.Background())
	require.NoError(t, err)
	require.Equal(t, "DATASET_Denuncias_Policiales_Octubre_2025.csv", filepath.Base(res.Path))
	require.Equal(t, int64(len(body)), res.Bytes)
	require.Equal(t, []string{"DATASET_Denuncias_Policiales_Agosto.csv"}, res.Removed)

	got, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	require.Equal(t, body, string(got))
	_, err = os.Stat(old)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(unrelated)
	require.NoError(t, err)

	temps, _ := filepath.Glob(filepath.Join(dir, "temp_*"))
	require.Empty(t, temps)
}

func TestDownload_NoLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><a href="/about">nothing</a></html>`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := New(config.AcquireConfig{PageURL: srv.URL}, dir, "", nil, zerolog.Nop())
	_, err := f.Download(context.Background())
	require.ErrorIs(t, err, ErrNoCSVLink)
}

func TestDownload_ServerErrorKeepsOldFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dataset" {
			fmt.Fprint(w, `<a href="/files/Octubre_2025.csv">x</a>`)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	old := filepath.Join(dir, "DATASET_Denuncias_Policiales.csv")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0o600))

	f := New(config.AcquireConfig{PageURL: srv.URL + "/dataset"}, dir, "", nil, zerolog.Nop())
	_, err := f.Download(context.Background())
	require.Error(t, err)
	_, err = os.Stat(old)
	require.NoError(t, err)
}
