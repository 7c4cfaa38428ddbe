package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadCSV_UTF8WithBOM(t *testing.T) {
	in := "\xEF\xBB\xBFANIO,MES,cantidad\n2020,1,5\n2020,2,7\n"
	raw, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []string{"ANIO", "MES", "cantidad"}, raw.Header)
	require.Len(t, raw.Rows, 2)
}

func TestReadCSV_Latin1Fallback(t *testing.T) {
	// 0xD1 is Ñ in ISO-8859-1 and invalid as a standalone UTF-8 byte.
	in := []byte("A\xd1O;MES;DEPARTAMENTO;cantidad\n2021;3;JUN\xcdN;4\n")
	raw, err := ReadCSV(bytes.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, "AÑO", raw.Header[0])
	require.Equal(t, "JUNÍN", raw.Rows[0][2])

	tbl, err := Load(raw)
	require.NoError(t, err)
	require.True(t, tbl.Has(ColYear, ColMonth, ColDepartment, ColCount))
	require.Equal(t, 2021, tbl.Records[0].Year)
}

func TestReadCSV_SemicolonAndRaggedRows(t *testing.T) {
	in := "ANIO;MES;P_MODALIDADES;cantidad\n2020;1;Robo;3\n2020;2\n2020;3;\"Hurto; agravado\";1;extra\n"
	raw, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, raw.Rows, 3)
	require.Equal(t, "Hurto; agravado", raw.Rows[2][2])

	tbl, err := Load(raw)
	require.NoError(t, err)
	require.Len(t, tbl.Records, 3)
	require.Equal(t, int64(4), tbl.Total())
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.ErrorIs(t, err, ErrNotTabular)
}

func TestWriteCSV_ReadsBack(t *testing.T) {
	tbl, err := Load(sidpolRaw())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl.Raw()))

	raw, err := ReadCSV(&buf)
	require.NoError(t, err)
	again, err := Load(raw)
	require.NoError(t, err)
	require.Equal(t, tbl, again)
}
