package dataset

import "strings"

// Column names a canonical column of the complaint dataset.
type Column string

const (
	ColYear       Column = "year"
	ColMonth      Column = "month"
	ColDepartment Column = "department"
	ColProvince   Column = "province"
	ColDistrict   Column = "district"
	ColModality   Column = "modality"
	ColCount      Column = "count"
)

// CanonicalColumns lists the canonical schema in its display order.
var CanonicalColumns = []Column{ColYear, ColMonth, ColDepartment, ColProvince, ColDistrict, ColModality, ColCount}

// synonyms maps every known header spelling (already folded by headerKey) to
// its canonical column. Older vintages of the SIDPOL export shipped "AÑO"
// through a broken Latin-1/UTF-8 round trip, hence the mangled year variants.
var synonyms = buildSynonyms(map[Column][]string{
	ColYear:       {"ANIO", "AÑO", "ANO", "A�'O", "A���'O", "AÃ‘O", "A�O", "YEAR"},
	ColMonth:      {"MES", "MONTH"},
	ColDepartment: {"DPTOHECHONEW", "DPTO_HECHO_NEW", "DEPARTAMENTO", "DEPARTMENT"},
	ColProvince:   {"PROVHECHO", "PROV_HECHO", "PROVINCIA", "PROVINCE"},
	ColDistrict:   {"DISTHECHO", "DIST_HECHO", "DISTRITO", "DISTRICT"},
	ColModality:   {"PMODALIDADES", "P_MODALIDADES", "MODALIDADES", "MODALITY"},
	ColCount:      {"cantidad", "CANTIDAD", "COUNT"},
})

func buildSynonyms(src map[Column][]string) map[string]Column {
	out := make(map[string]Column)
	for col, names := range src {
		for _, n := range names {
			out[headerKey(n)] = col
		}
	}
	return out
}

// headerKey folds a header for lookup: BOM and surrounding whitespace are
// removed and case is ignored.
func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToUpper(strings.TrimSpace(h))
}

// Resolve returns the canonical column for a raw header, if any.
func Resolve(header string) (Column, bool) {
	col, ok := synonyms[headerKey(header)]
	return col, ok
}

// Normalize renames the raw header onto the canonical schema. Headers with no
// known synonym pass through trimmed. When two headers resolve to the same
// canonical column the first one wins and later ones keep their own name.
// Row data is shared with the input.
func Normalize(raw *RawTable) *RawTable {
	if raw == nil {
		return nil
	}
	header := make([]string, len(raw.Header))
	seen := make(map[Column]bool, len(CanonicalColumns))
	for i, h := range raw.Header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if col, ok := Resolve(h); ok && !seen[col] {
			seen[col] = true
			name = string(col)
		}
		header[i] = name
	}
	return &RawTable{Header: header, Rows: raw.Rows}
}
