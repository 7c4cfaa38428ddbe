package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/vinodismyname/sidpol/config"
	"github.com/vinodismyname/sidpol/internal/insights"
)

// ErrReadOnlyQuery rejects anything but a single SELECT or WITH statement.
var ErrReadOnlyQuery = errors.New("store: only single read-only SELECT statements are allowed")

var mutating = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|replace|truncate|attach|detach|pragma|vacuum|grant|revoke|copy|merge|call|exec|execute)\b`)

// ByModality sums counts per modality, largest first.
func (s *Store) ByModality(ctx context.Context) ([]insights.ModalityCount, error) {
	var rows []struct {
		Modality string `db:"modality"`
		Count    int64  `db:"total"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT m.name AS modality, SUM(f.count) AS total
		FROM facts f JOIN modalities m ON m.id = f.modality_id
		GROUP BY m.name
		ORDER BY total DESC, m.name`)
	if err != nil {
		return nil, fmt.Errorf("store: by modality: %w", err)
	}
	out := make([]insights.ModalityCount, len(rows))
	for i, r := range rows {
		out[i] = insights.ModalityCount{Modality: r.Modality, Count: r.Count}
	}
	return out, nil
}

// TopDepartments returns the n departments with the largest counts.
func (s *Store) TopDepartments(ctx context.Context, n int) ([]insights.DepartmentCount, error) {
	if n <= 0 {
		n = config.DefaultTopDepartments
	}
	var rows []struct {
		Department string `db:"department"`
		Count      int64  `db:"total"`
	}
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT l.department AS department, SUM(f.count) AS total
		FROM facts f JOIN locations l ON l.id = f.location_id
		WHERE l.department <> ''
		GROUP BY l.department
		ORDER BY total DESC, l.department
		LIMIT ?`), n)
	if err != nil {
		return nil, fmt.Errorf("store: top departments: %w", err)
	}
	out := make([]insights.DepartmentCount, len(rows))
	for i, r := range rows {
		out[i] = insights.DepartmentCount{Department: r.Department, Count: r.Count}
	}
	return out, nil
}

// MonthlyTrend sums counts per month of one year; year 0 spans every year.
func (s *Store) MonthlyTrend(ctx context.Context, year int) ([]insights.MonthCount, error) {
	var rows []struct {
		Month int   `db:"month"`
		Count int64 `db:"total"`
	}
	q := `SELECT month, SUM(count) AS total FROM facts GROUP BY month ORDER BY month`
	args := []any{}
	if year != 0 {
		q = s.db.Rebind(`SELECT month, SUM(count) AS total FROM facts WHERE year = ? GROUP BY month ORDER BY month`)
		args = append(args, year)
	}
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("store: monthly trend: %w", err)
	}
	out := make([]insights.MonthCount, len(rows))
	for i, r := range rows {
		out[i] = insights.MonthCount{Month: r.Month, Count: r.Count}
	}
	return out, nil
}

// ProvincesOf sums counts per province of one department.
func (s *Store) ProvincesOf(ctx context.Context, department string) ([]insights.ProvinceCount, error) {
	var rows []struct {
		Province string `db:"province"`
		Count    int64  `db:"total"`
	}
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT l.province AS province, SUM(f.count) AS total
		FROM facts f JOIN locations l ON l.id = f.location_id
		WHERE l.department = ? AND l.province <> ''
		GROUP BY l.province
		ORDER BY total DESC, l.province`), department)
	if err != nil {
		return nil, fmt.Errorf("store: provinces of %s: %w", department, err)
	}
	out := make([]insights.ProvinceCount, len(rows))
	for i, r := range rows {
		out[i] = insights.ProvinceCount{Province: r.Province, Count: r.Count}
	}
	return out, nil
}

// Stats are general figures about the stored dataset.
type Stats struct {
	Facts       int64 `db:"facts" json:"facts"`
	Total       int64 `db:"total" json:"total"`
	Departments int64 `db:"departments" json:"departments"`
	Modalities  int64 `db:"modalities" json:"modalities"`
	FirstYear   int64 `db:"first_year" json:"first_year"`
	LastYear    int64 `db:"last_year" json:"last_year"`
}

// Stats summarizes the stored dataset.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st, `
		SELECT
			COUNT(*) AS facts,
			COALESCE(SUM(f.count), 0) AS total,
			(SELECT COUNT(DISTINCT department) FROM locations WHERE department <> '') AS departments,
			(SELECT COUNT(*) FROM modalities) AS modalities,
			COALESCE(MIN(f.year), 0) AS first_year,
			COALESCE(MAX(f.year), 0) AS last_year
		FROM facts f`)
	if err != nil {
		return st, fmt.Errorf("store: stats: %w", err)
	}
	return st, nil
}

// QueryResult is the tabular output of an ad hoc query.
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated"`
}

// CheckReadOnly reports whether q is a single SELECT or WITH statement
// without mutating keywords.
func CheckReadOnly(q string) error {
	q = strings.TrimSpace(q)
	q = strings.TrimSuffix(q, ";")
	if q == "" || strings.Contains(q, ";") {
		return ErrReadOnlyQuery
	}
	head := strings.ToLower(strings.Fields(q)[0])
	if head != "select" && head != "with" {
		return ErrReadOnlyQuery
	}
	if mutating.MatchString(q) {
		return ErrReadOnlyQuery
	}
	return nil
}

// Query runs a read-only statement inside a transaction that is always
// rolled back, returning at most maxRows rows.
func (s *Store) Query(ctx context.Context, q string, maxRows int) (*QueryResult, error) {
	if err := CheckReadOnly(q); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryxContext(ctx, strings.TrimSuffix(strings.TrimSpace(q), ";"))
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("store: columns: %w", err)
	}
	res := &QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if maxRows > 0 && len(res.Rows) >= maxRows {
			res.Truncated = true
			break
		}
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows: %w", err)
	}
	return res, nil
}
