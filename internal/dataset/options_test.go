package dataset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectionOptions(t *testing.T) {
	tbl := fixtureTable(t)

	opts := SelectionOptions(tbl, "")
	require.Equal(t, []int{2019, 2020}, opts.Years)
	require.Equal(t, []string{"Estafa", "Hurto", "Robo"}, opts.Modalities)
	require.Equal(t, []string{"CUSCO", "LIMA", "PIURA"}, opts.Departments)
	require.Nil(t, opts.Provinces)

	opts = SelectionOptions(tbl, "LIMA")
	require.Equal(t, []string{"HUAURA", "LIMA"}, opts.Provinces)

	opts = SelectionOptions(tbl, "Todos")
	require.Nil(t, opts.Provinces)
}

func TestSelectionOptions_PartialSchema(t *testing.T) {
	tbl, err := Load(&RawTable{Header: []string{"MODALIDADES", "cantidad"}, Rows: [][]string{{"Robo", "1"}, {"", "2"}}})
	require.NoError(t, err)
	opts := SelectionOptions(tbl, "LIMA")
	require.Empty(t, opts.Years)
	require.NotNil(t, opts.Years)
	require.Equal(t, []string{"Robo"}, opts.Modalities)
	require.Empty(t, opts.Departments)
	require.Nil(t, opts.Provinces)

	require.Empty(t, SelectionOptions(nil, "").Modalities)
}
