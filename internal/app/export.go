package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"vault-rebalancer/internal/config"
	"vault-rebalancer/internal/storage"
)

// ExportOptions parameterise the snapshot export.
type ExportOptions struct {
	CSVPath   string
	PNGPath   string
	From      *time.Time
	To        *time.Time
	MaxPoints int
}

// Export renders reserve history for both chains as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	snapsA, err := store.ListSnapshotsBetween(ctx, a.Config.Chains.A.ChainID, from, to)
	if err != nil {
		return err
	}
	snapsB, err := store.ListSnapshotsBetween(ctx, a.Config.Chains.B.ChainID, from, to)
	if err != nil {
		return err
	}
	if len(snapsA) == 0 && len(snapsB) == 0 {
		a.Logger.Info().Msg("no snapshots found for export window")
		return nil
	}

	snapsA = downsampleSnapshots(snapsA, opts.MaxPoints)
	snapsB = downsampleSnapshots(snapsB, opts.MaxPoints)
	a.Logger.Info().
		Int("chain_a_points", len(snapsA)).
		Int("chain_b_points", len(snapsB)).
		Msg("exporting snapshots")

	if opts.CSVPath != "" {
		if err := writeSnapshotsCSV(opts.CSVPath, snapsA, snapsB); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		nameA := chainLabel(a.Config.Chains.A)
		nameB := chainLabel(a.Config.Chains.B)
		if err := writeSnapshotsPNG(opts.PNGPath, snapsA, snapsB, nameA, nameB); err != nil {
			return err
		}
	}

	return nil
}

func chainLabel(cc config.ChainConfig) string {
	if cc.Name != "" {
		return cc.Name
	}
	return "chain " + decimal.NewFromInt(cc.ChainID).String()
}

func downsampleSnapshots(snaps []storage.ChainSnapshot, max int) []storage.ChainSnapshot {
	if max <= 0 || len(snaps) <= max {
		return snaps
	}

	result := make([]storage.ChainSnapshot, 0, max)
	step := float64(len(snaps)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(snaps) {
			idx = len(snaps) - 1
		}
		result = append(result, snaps[idx])
	}
	return result
}

func writeSnapshotsCSV(path string, snapsA, snapsB []storage.ChainSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"captured_at", "chain_id", "total_reserve_usdc", "available_usdc", "block_number"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, snaps := range [][]storage.ChainSnapshot{snapsA, snapsB} {
		for _, snap := range snaps {
			record := []string{
				snap.CapturedAt.Format(time.RFC3339),
				decimal.NewFromInt(snap.ChainID).String(),
				microString(snap.TotalReserveMicro),
				microString(snap.AvailableMicro),
				decimal.NewFromInt(snap.BlockNumber).String(),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	return writer.Error()
}

func writeSnapshotsPNG(path string, snapsA, snapsB []storage.ChainSnapshot, nameA, nameB string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	xA, yA := snapshotSeries(snapsA)
	xB, yB := snapshotSeries(snapsB)

	reserveFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Reserve (USDC)",
			ValueFormatter: reserveFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    nameA,
				XValues: xA,
				YValues: yA,
			},
			chart.TimeSeries{
				Name:    nameB,
				XValues: xB,
				YValues: yB,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func snapshotSeries(snaps []storage.ChainSnapshot) ([]time.Time, []float64) {
	x := make([]time.Time, len(snaps))
	y := make([]float64, len(snaps))
	for i, snap := range snaps {
		x[i] = snap.CapturedAt
		y[i] = decimal.New(snap.TotalReserveMicro, -6).InexactFloat64()
	}
	return x, y
}

func microString(v int64) string {
	return decimal.New(v, -6).String()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
