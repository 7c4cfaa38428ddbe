package pagination

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type selection struct {
	Year       *int   `json:"year,omitempty"`
	Department string `json:"department,omitempty"`
}

func TestNextResume(t *testing.T) {
	year := 2023
	tok, err := Next("ds-123", 200, 50, selection{Year: &year, Department: "LIMA"})
	require.NoError(t, err)
	require.False(t, strings.ContainsAny(tok, "+/="), "token must be url-safe: %q", tok)

	var sel selection
	c, err := Resume(tok, &sel)
	require.NoError(t, err)
	require.Equal(t, "ds-123", c.Did)
	require.Equal(t, 200, c.Off)
	require.Equal(t, 50, c.Ps)
	require.Equal(t, 1, c.V)
	require.False(t, c.IssuedAt().IsZero())
	require.Equal(t, "LIMA", sel.Department)
	require.NotNil(t, sel.Year)
	require.Equal(t, 2023, *sel.Year)
}

func TestResume_NoSelectionKeepsTarget(t *testing.T) {
	tok, err := EncodeCursor(Cursor{Did: "ds", Off: 0, Ps: 10})
	require.NoError(t, err)
	sel := selection{Department: "CUSCO"}
	_, err = Resume(tok, &sel)
	require.NoError(t, err)
	require.Equal(t, "CUSCO", sel.Department)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	cases := map[string]struct {
		token string
		want  error
	}{
		"empty":       {"", ErrEmpty},
		"not base64":  {"!!!", ErrMalformed},
		"not json":    {base64.RawURLEncoding.EncodeToString([]byte("not-json")), ErrMalformed},
		"no dataset":  {b64(`{"v":1,"did":"","off":0,"ps":10}`), ErrNoDataset},
		"neg offset":  {b64(`{"v":1,"did":"x","off":-1,"ps":10}`), ErrBadOffset},
		"zero page":   {b64(`{"v":1,"did":"x","off":0,"ps":0}`), ErrBadPageLen},
		"tampered":    {b64(`{"v":1,"did":"x","off":0,"ps":10,"fh":"deadbeef","sel":{"year":2020}}`), ErrTampered},
		"only schema": {b64(`{"v":1}`), ErrNoDataset},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCursor(tc.token)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestResume_BadSelection(t *testing.T) {
	raw := []byte(`"LIMA"`)
	tok, err := EncodeCursor(Cursor{Did: "x", Ps: 5, Fh: Fingerprint(raw), Sel: raw})
	require.NoError(t, err)
	var sel selection
	_, err = Resume(tok, &sel)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestNextOffset(t *testing.T) {
	require.Equal(t, 10, NextOffset(-5, 10))
	require.Equal(t, 40, NextOffset(40, 0))
	require.Equal(t, 60, NextOffset(40, 20))
}

func FuzzDecodeCursor(f *testing.F) {
	for _, s := range []string{"", "abc", b64(`{"v":1}`), b64(`{"did":"x"}`), b64(`{"v":1,"did":"ds","off":0,"ps":1}`)} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, token string) {
		_, _ = DecodeCursor(token)
	})
}

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
