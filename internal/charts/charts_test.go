package charts

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/sidpol/internal/insights"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestModalityColor(t *testing.T) {
	require.Equal(t, rgb(0x2c, 0xa0, 0x2c), ModalityColor("HURTO"))
	require.Equal(t, rgb(0x2c, 0xa0, 0x2c), ModalityColor("Hurto"))
	require.Equal(t, rgb(0x94, 0x67, 0xbd), ModalityColor("Extorsión"))
	require.Equal(t, rgb(0xd6, 0x27, 0x28), ModalityColor("VIOLENCIA CONTRA LA MUJER E INTEGRANTES DEL GRUPO FAMILIAR"))
	require.Equal(t, otherColor, ModalityColor("MICROCOMERCIALIZACION"))
}

func TestRender(t *testing.T) {
	d := Data{
		ByModality: []insights.ModalityCount{{Modality: "HURTO", Count: 10}, {Modality: "ROBO", Count: 4}},
		Trend: []insights.TrendPoint{
			{Month: 1, Count: 10}, {Month: 2, Count: 12},
			{Month: 3, Count: 14, IsPrediction: true},
		},
		TopDepartments: []insights.DepartmentCount{{Department: "LIMA", Count: 9}, {Department: "CUSCO", Count: 3}},
	}
	for _, kind := range Kinds {
		t.Run(kind, func(t *testing.T) {
			img, err := Render(kind, d)
			require.NoError(t, err)
			require.True(t, bytes.HasPrefix(img, pngMagic))
		})
	}
}

func TestRender_Errors(t *testing.T) {
	_, err := Render("pie", Data{})
	require.Error(t, err)
	_, err = Render(KindModality, Data{})
	require.ErrorIs(t, err, ErrNoData)
}
