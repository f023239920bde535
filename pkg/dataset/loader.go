package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tourcast/tourcast/pkg/validation"
)

// UnknownNationality labels rows whose nationality cell is empty.
const UnknownNationality = "Unknown"

// Loader fetches, decodes and cleans the arrivals dataset.
type Loader struct {
	Source  Source
	Format  string // empty: guessed from the source name
	Columns Columns
	MinYear int   // rows before this year are excluded; 0 keeps everything
	Names   Namer // optional code-to-name mapping

	now func() time.Time
}

// NewLoader creates a loader with the default column mapping.
func NewLoader(src Source, names Namer) *Loader {
	return &Loader{
		Source:  src,
		Columns: DefaultColumns(),
		Names:   names,
	}
}

// loadStats counts what cleaning did to the raw rows.
type loadStats struct {
	missing      int
	negative     int
	beforeMin    int
	inconsistent int
	unnamed      int
}

// Load retrieves the dataset and returns the cleaned table. Fetch failures
// wrap ErrDataUnavailable and column problems wrap ErrSchemaMismatch; both
// are fatal. Rows without a date or count are dropped and reported as
// warnings.
func (l *Loader) Load(ctx context.Context) (*Dataset, *validation.Report, error) {
	report := validation.NewReport()

	path, cleanup, err := l.spool(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()

	format := l.Format
	if format == "" {
		format = formatOf(l.Source.Name())
	}
	cols := l.Columns
	if cols.Date == "" || cols.Nationality == "" || cols.Total == "" {
		cols = DefaultColumns()
	}

	decoded, err := decode(ctx, path, format, cols)
	if err != nil {
		return nil, nil, err
	}

	records, stats := l.clean(decoded)
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	ds := &Dataset{
		Location:  l.Source.Name(),
		FetchedAt: now().UTC(),
		Records:   records,
		RawRows:   len(decoded.rows),
		Dropped:   stats.missing + stats.negative,
	}

	if stats.missing > 0 {
		report.AddWarning(validation.Result{
			Stage:       validation.StageLoad,
			Message:     "rows with missing date or count were dropped",
			Field:       cols.Date + "/" + cols.Total,
			ActualValue: stats.missing,
		})
	}
	if stats.negative > 0 {
		report.AddWarning(validation.Result{
			Stage:       validation.StageLoad,
			Message:     "rows with negative counts were dropped",
			Field:       cols.Total,
			ActualValue: stats.negative,
			Expected:    ">= 0",
		})
	}
	if stats.inconsistent > 0 {
		report.AddWarning(validation.Result{
			Stage:       validation.StageLoad,
			Message:     "gender columns did not add up to the total; rows kept as unspecified",
			Field:       cols.Male + "+" + cols.Female,
			ActualValue: stats.inconsistent,
			Expected:    "<= " + cols.Total,
		})
	}
	if stats.unnamed > 0 {
		report.AddInfo(validation.Result{
			Stage:       validation.StageLoad,
			Message:     fmt.Sprintf("rows without nationality counted as %q", UnknownNationality),
			Field:       cols.Nationality,
			ActualValue: stats.unnamed,
		})
	}
	if stats.beforeMin > 0 {
		report.AddInfo(validation.Result{
			Stage:       validation.StageLoad,
			Message:     fmt.Sprintf("rows before %d excluded", l.MinYear),
			ActualValue: stats.beforeMin,
		})
	}

	log.Info().
		Str("stage", string(validation.StageLoad)).
		Str("location", ds.Location).
		Int("raw_rows", ds.RawRows).
		Int("records", len(ds.Records)).
		Int("dropped", ds.Dropped).
		Msg("Dataset loaded")

	return ds, report, nil
}

// spool copies the source into a temporary file so the decoder can seek it.
// The source reader is closed before spool returns; the returned cleanup
// removes the file.
func (l *Loader) spool(ctx context.Context) (string, func(), error) {
	if l.Source == nil {
		return "", nil, fmt.Errorf("%w: no source configured", ErrDataUnavailable)
	}

	rc, err := l.Source.Open(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "tourcast-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating spool file: %w", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	n, err := io.Copy(tmp, rc)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%w: reading %s: %v", ErrDataUnavailable, l.Source.Name(), err)
	}
	if n == 0 {
		cleanup()
		return "", nil, fmt.Errorf("%w: %s is empty", ErrDataUnavailable, l.Source.Name())
	}
	return tmp.Name(), cleanup, nil
}

// clean drops unusable rows and melts the gender columns into records.
func (l *Loader) clean(d *decodeResult) ([]ArrivalRecord, loadStats) {
	var stats loadStats
	records := make([]ArrivalRecord, 0, len(d.rows)*2)

	for _, row := range d.rows {
		if !row.Date.Valid || !row.Total.Valid {
			stats.missing++
			continue
		}
		total := row.Total.Int64
		if total < 0 {
			stats.negative++
			continue
		}
		month := MonthOf(row.Date.Time)
		if l.MinYear > 0 && month.Year < l.MinYear {
			stats.beforeMin++
			continue
		}

		nat := strings.TrimSpace(row.Nationality.String)
		if nat == "" {
			nat = UnknownNationality
			stats.unnamed++
		} else if l.Names != nil {
			nat = l.Names.DisplayName(nat)
		}

		add := func(g Gender, n int64) {
			records = append(records, ArrivalRecord{Month: month, Nationality: nat, Gender: g, Count: n})
		}

		male, female := row.Male, row.Female
		split := male.Valid && female.Valid &&
			male.Int64 >= 0 && female.Int64 >= 0 &&
			male.Int64+female.Int64 <= total
		if !split {
			if d.hasGender && (male.Valid || female.Valid) {
				stats.inconsistent++
			}
			add(GenderUnspecified, total)
			continue
		}
		if male.Int64 > 0 {
			add(GenderMale, male.Int64)
		}
		if female.Int64 > 0 {
			add(GenderFemale, female.Int64)
		}
		if rest := total - male.Int64 - female.Int64; rest > 0 || total == 0 {
			add(GenderUnspecified, rest)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Month != b.Month {
			return a.Month.Before(b.Month)
		}
		if a.Nationality != b.Nationality {
			return a.Nationality < b.Nationality
		}
		return a.Gender < b.Gender
	})
	return records, stats
}
