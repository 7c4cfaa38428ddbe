package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vinodismyname/sidpol/internal/dataset"
	"github.com/vinodismyname/sidpol/internal/report"
	"github.com/vinodismyname/sidpol/internal/store"
	"github.com/vinodismyname/sidpol/pkg/validation"
)

var errNoStore = errors.New("no store configured (store.driver / store.dsn)")

func runFetch(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, h, err := e.app.Service.Refresh(ctx)
	if err != nil {
		return err
	}
	t := newTable(e.stdout, "field", "value")
	t.Append([]string{"url", res.URL})
	t.Append([]string{"path", res.Path})
	t.Append([]string{"bytes", strconv.FormatInt(res.Bytes, 10)})
	t.Append([]string{"removed", strings.Join(res.Removed, ", ")})
	t.Append([]string{"rows", strconv.Itoa(h.Table.Len())})
	t.Render()
	return nil
}

func runLoadDB(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	path := fs.String("path", "", "Dataset file (default: newest file in the data directory)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st := e.app.Store
	if st == nil {
		return errNoStore
	}
	h, err := e.app.Service.Load(ctx, *path)
	if err != nil {
		return err
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "loaded %s (%d rows)\n", filepath.Base(h.Source.Path), h.Table.Len())
	printStats(e, stats)
	return nil
}

func runDBStats(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	top := fs.Int("top", 0, "Departments to list (default 10)")
	year := fs.Int("year", 0, "Restrict the monthly trend to this year")
	department := fs.String("department", "", "List the provinces of this department")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st := e.app.Store
	if st == nil {
		return errNoStore
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}
	printStats(e, stats)

	mods, err := st.ByModality(ctx)
	if err != nil {
		return err
	}
	t := newTable(e.stdout, "modality", "count")
	for _, m := range mods {
		t.Append([]string{m.Modality, strconv.FormatInt(m.Count, 10)})
	}
	t.Render()

	depts, err := st.TopDepartments(ctx, *top)
	if err != nil {
		return err
	}
	t = newTable(e.stdout, "department", "count")
	for _, d := range depts {
		t.Append([]string{d.Department, strconv.FormatInt(d.Count, 10)})
	}
	t.Render()

	months, err := st.MonthlyTrend(ctx, *year)
	if err != nil {
		return err
	}
	t = newTable(e.stdout, "month", "count")
	for _, m := range months {
		t.Append([]string{strconv.Itoa(m.Month), strconv.FormatInt(m.Count, 10)})
	}
	t.Render()

	if *department != "" {
		provs, err := st.ProvincesOf(ctx, *department)
		if err != nil {
			return err
		}
		t = newTable(e.stdout, "province", "count")
		for _, p := range provs {
			t.Append([]string{p.Province, strconv.FormatInt(p.Count, 10)})
		}
		t.Render()
	}
	return nil
}

func printStats(e *env, s store.Stats) {
	t := newTable(e.stdout, "facts", "total", "departments", "modalities", "years")
	t.Append([]string{
		strconv.FormatInt(s.Facts, 10),
		strconv.FormatInt(s.Total, 10),
		strconv.FormatInt(s.Departments, 10),
		strconv.FormatInt(s.Modalities, 10),
		fmt.Sprintf("%d-%d", s.FirstYear, s.LastYear),
	})
	t.Render()
}

func runHead(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	n := fs.Int("n", 0, "Rows to print (default 100)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st := e.app.Store
	if st == nil {
		return errNoStore
	}
	src, err := st.Source(ctx)
	if err != nil {
		return err
	}
	tbl, err := st.Head(ctx, *n)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "source %s (%d bytes, %s)\n", src.Path, src.Size, src.ModTime.Format(time.RFC3339))
	printRaw(e, tbl.Raw())
	return nil
}

func printRaw(e *env, raw *dataset.RawTable) {
	t := newTable(e.stdout, raw.Header...)
	t.AppendBulk(raw.Rows)
	t.Render()
}

// selectionFlags registers the shared filter flags on fs.
func selectionFlags(fs *flag.FlagSet) func() (dataset.Selection, error) {
	year := fs.Int("year", 0, "Year")
	modalities := fs.String("modality", "", "Comma separated modalities")
	department := fs.String("department", "", "Department")
	province := fs.String("province", "", "Province")
	district := fs.String("district", "", "District")
	from := fs.Int("month-from", 0, "First month (1-12)")
	to := fs.Int("month-to", 0, "Last month (1-12)")
	return func() (dataset.Selection, error) {
		sel := dataset.Selection{Department: *department, Province: *province, District: *district}
		if *year != 0 {
			y := *year
			sel.Year = &y
		}
		for _, m := range strings.Split(*modalities, ",") {
			if m = strings.TrimSpace(m); m != "" {
				sel.Modalities = append(sel.Modalities, m)
			}
		}
		if *from != 0 || *to != 0 {
			r := dataset.MonthRange{From: 1, To: 12}
			if *from != 0 {
				r.From = *from
			}
			if *to != 0 {
				r.To = *to
			}
			sel.Months = &r
		}
		if msg := validation.ValidateStruct(sel); msg != "" {
			return sel, errors.New(msg)
		}
		return sel, nil
	}
}

func runKPIs(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	sel := selectionFlags(fs)
	path := fs.String("path", "", "Dataset file (default: newest file in the data directory)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := sel()
	if err != nil {
		return err
	}
	h, err := e.app.Service.Load(ctx, *path)
	if err != nil {
		return err
	}
	snap, err := e.app.Service.Snapshot(ctx, h.ID, s)
	if err != nil {
		return err
	}
	t := newTable(e.stdout, "total", "var_pct", "top_modality", "top_department")
	t.Append([]string{
		strconv.FormatInt(snap.KPIs.Total, 10),
		strconv.FormatFloat(snap.KPIs.VarPct, 'f', 2, 64),
		snap.KPIs.TopModality,
		snap.KPIs.TopDepartment,
	})
	t.Render()

	t = newTable(e.stdout, "month", "count", "prediction")
	for _, p := range snap.Trend {
		t.Append([]string{strconv.Itoa(p.Month), strconv.FormatFloat(p.Count, 'f', 1, 64), strconv.FormatBool(p.IsPrediction)})
	}
	t.Render()
	return nil
}

func runQuery(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	maxRows := fs.Int("max-rows", 0, "Row cap (default limits.max_query_rows)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	q := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if q == "" {
		return errors.New("missing SQL statement")
	}
	limit := e.app.Limits.MaxQueryRows
	if *maxRows > 0 {
		limit = *maxRows
	}
	res, err := e.app.Service.Query(ctx, q, limit)
	if err != nil {
		return err
	}
	t := newTable(e.stdout, res.Columns...)
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		t.Append(cells)
	}
	t.Render()
	if res.Truncated {
		fmt.Fprintf(e.stdout, "(truncated at %d rows)\n", limit)
	}
	return nil
}

func runReport(ctx context.Context, e *env, fs *flag.FlagSet, args []string) error {
	sel := selectionFlags(fs)
	path := fs.String("path", "", "Dataset file (default: newest file in the data directory)")
	out := fs.String("out", "", "Destination .xlsx file")
	charts := fs.Bool("charts", false, "Embed PNG charts")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !strings.EqualFold(filepath.Ext(*out), ".xlsx") {
		return errors.New("-out must name an .xlsx file")
	}
	s, err := sel()
	if err != nil {
		return err
	}
	target, err := e.app.Security.ValidateWritePath(*out)
	if err != nil {
		return err
	}
	h, err := e.app.Service.Load(ctx, *path)
	if err != nil {
		return err
	}
	snap, err := e.app.Service.Snapshot(ctx, h.ID, s)
	if err != nil {
		return err
	}
	filtered, _, err := e.app.Service.Filtered(ctx, h.ID, s)
	if err != nil {
		return err
	}
	err = report.WriteFile(target, report.Contents{
		Snapshot: snap,
		Table:    dataset.SortedView(filtered),
		Charts:   *charts,
	})
	if err != nil {
		return err
	}
	e.logger.Info().Str("path", target).Int("rows", snap.Rows).Msg("report written")
	fmt.Fprintf(e.stdout, "report written to %s (%d rows)\n", target, snap.Rows)
	return nil
}
