package dataset

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	duckdb "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureCSV = `date,country,arrivals,arrivals_male,arrivals_female
2019-01-01,SGP,100,60,40
2019-01-01,IDN,50,,
2019-02-01,SGP,,,
,IDN,10,5,5
2018-12-01,SGP,70,30,40
2019-02-01,IDN,30,20,20
`

type mapNamer map[string]string

func (m mapNamer) DisplayName(code string) string {
	if name, ok := m[code]; ok {
		return name
	}
	return code
}

func writeFixture(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestMonthArithmetic(t *testing.T) {
	m := Month{Year: 2025, Month: time.December}
	assert.Equal(t, Month{Year: 2026, Month: time.January}, m.Next())
	assert.Equal(t, Month{Year: 2024, Month: time.December}, m.AddMonths(-12))
	assert.Equal(t, 12, m.MonthsUntil(Month{Year: 2026, Month: time.December}))
	assert.True(t, m.Before(m.Next()))
	assert.True(t, m.Next().After(m))
	assert.Equal(t, m, FromIndex(m.Index()))
	assert.Equal(t, "2025-12", m.String())
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2026-03")
	require.NoError(t, err)
	assert.Equal(t, Month{Year: 2026, Month: time.March}, m)

	_, err = ParseMonth("March 2026")
	assert.Error(t, err)

	var u Month
	require.NoError(t, u.UnmarshalText([]byte("2023-01")))
	assert.Equal(t, Month{Year: 2023, Month: time.January}, u)
	b, err := u.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2023-01", string(b))

	b, err = Month{}.MarshalText()
	require.NoError(t, err)
	assert.Empty(t, b)
	require.NoError(t, u.UnmarshalText(b))
	assert.True(t, u.IsZero())
}

func TestNewSourceDispatch(t *testing.T) {
	src, err := NewSource("https://example.com/a.parquet", SourceOptions{})
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, src)

	src, err = NewSource("s3://bucket/path/a.parquet", SourceOptions{})
	require.NoError(t, err)
	require.IsType(t, &S3Source{}, src)
	assert.Equal(t, "bucket", src.(*S3Source).Bucket)
	assert.Equal(t, "path/a.parquet", src.(*S3Source).Key)

	src, err = NewSource("/tmp/arrivals.csv", SourceOptions{})
	require.NoError(t, err)
	assert.IsType(t, &FileSource{}, src)

	_, err = NewSource("s3://bucket", SourceOptions{})
	assert.ErrorIs(t, err, ErrDataUnavailable)

	_, err = NewSource("ftp://host/file", SourceOptions{})
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatParquet, formatOf(DefaultLocation))
	assert.Equal(t, FormatCSV, formatOf("https://host/x.csv?token=1"))
	assert.Equal(t, FormatJSON, formatOf("/data/x.json"))
}

func TestLoadCleansRows(t *testing.T) {
	path := writeFixture(t, "arrivals.csv", fixtureCSV)
	loader := NewLoader(&FileSource{Path: path}, mapNamer{"SGP": "Singapore", "IDN": "Indonesia"})
	loader.MinYear = 2019

	ds, report, err := loader.Load(context.Background())
	require.NoError(t, err)

	jan := Month{Year: 2019, Month: time.January}
	feb := Month{Year: 2019, Month: time.February}
	want := []ArrivalRecord{
		{Month: jan, Nationality: "Indonesia", Gender: GenderUnspecified, Count: 50},
		{Month: jan, Nationality: "Singapore", Gender: GenderFemale, Count: 40},
		{Month: jan, Nationality: "Singapore", Gender: GenderMale, Count: 60},
		{Month: feb, Nationality: "Indonesia", Gender: GenderUnspecified, Count: 30},
	}
	assert.Equal(t, want, ds.Records)
	assert.Equal(t, 6, ds.RawRows)
	assert.Equal(t, 2, ds.Dropped)
	assert.Equal(t, path, ds.Location)

	assert.True(t, report.Valid)
	assert.Len(t, report.Warnings, 2, "missing rows and inconsistent gender split")
	assert.Len(t, report.Info, 1, "pre-2019 exclusion")

	first, last, ok := ds.Span()
	require.True(t, ok)
	assert.Equal(t, jan, first)
	assert.Equal(t, feb, last)
}

func TestLoadWithoutGenderColumns(t *testing.T) {
	path := writeFixture(t, "plain.csv", "date,country,arrivals\n2020-05-01,JPN,12\n")
	loader := NewLoader(&FileSource{Path: path}, nil)

	ds, report, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, GenderUnspecified, ds.Records[0].Gender)
	assert.Equal(t, "JPN", ds.Records[0].Nationality)
	assert.Empty(t, report.Warnings)
}

func TestLoadSchemaMismatch(t *testing.T) {
	path := writeFixture(t, "bad.csv", "date,nation,visitors\n2020-01-01,SGP,1\n")
	loader := NewLoader(&FileSource{Path: path}, nil)

	_, _, err := loader.Load(context.Background())
	require.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "country")
	assert.Contains(t, err.Error(), "arrivals")
}

func TestLoadMissingFile(t *testing.T) {
	loader := NewLoader(&FileSource{Path: filepath.Join(t.TempDir(), "nope.parquet")}, nil)
	_, _, err := loader.Load(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeFixture(t, "empty.csv", "")
	_, _, err := NewLoader(&FileSource{Path: path}, nil).Load(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestLoadOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/arrivals.csv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(fixtureCSV))
	}))
	defer srv.Close()

	src, err := NewSource(srv.URL+"/arrivals.csv", SourceOptions{HTTPTimeout: 5 * time.Second})
	require.NoError(t, err)
	ds, _, err := NewLoader(src, nil).Load(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, ds.Records)

	src, err = NewSource(srv.URL+"/missing.csv", SourceOptions{})
	require.NoError(t, err)
	_, _, err = NewLoader(src, nil).Load(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestLoadUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/arrivals.parquet"
	srv.Close()

	src, err := NewSource(url, SourceOptions{HTTPTimeout: time.Second})
	require.NoError(t, err)
	_, _, err = NewLoader(src, nil).Load(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

// fixtureRows is the typed equivalent of the CSV fixture used for the
// Parquet and JSON loaders: one row lacks a count and is dropped.
const fixtureRows = `(VALUES
	('2019-01-01', 'SGP', 100, 60, 40),
	('2019-01-01', 'IDN', 50, NULL, NULL),
	('2019-02-01', 'SGP', NULL, NULL, NULL),
	('2019-02-01', 'IDN', 30, 10, 20)
) AS t(d, country, arrivals, arrivals_male, arrivals_female)`

func wantFixtureRecords() []ArrivalRecord {
	jan := Month{Year: 2019, Month: time.January}
	feb := Month{Year: 2019, Month: time.February}
	return []ArrivalRecord{
		{Month: jan, Nationality: "Indonesia", Gender: GenderUnspecified, Count: 50},
		{Month: jan, Nationality: "Singapore", Gender: GenderFemale, Count: 40},
		{Month: jan, Nationality: "Singapore", Gender: GenderMale, Count: 60},
		{Month: feb, Nationality: "Indonesia", Gender: GenderFemale, Count: 20},
		{Month: feb, Nationality: "Indonesia", Gender: GenderMale, Count: 10},
	}
}

// writeParquet writes the fixture rows with the date column cast to dateType.
func writeParquet(t *testing.T, dateType string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arrivals.parquet")

	connector, err := duckdb.NewConnector("", nil)
	require.NoError(t, err)
	db := sql.OpenDB(connector)
	defer db.Close()

	_, err = db.Exec(`COPY (SELECT CAST(d AS ` + dateType + `) AS date, country, arrivals, arrivals_male, arrivals_female FROM ` +
		fixtureRows + `) TO '` + path + `' (FORMAT PARQUET)`)
	require.NoError(t, err)
	return path
}

func TestLoadParquet(t *testing.T) {
	for _, dateType := range []string{"DATE", "TIMESTAMP"} {
		t.Run(dateType, func(t *testing.T) {
			path := writeParquet(t, dateType)
			loader := NewLoader(&FileSource{Path: path}, mapNamer{"SGP": "Singapore", "IDN": "Indonesia"})

			ds, report, err := loader.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, wantFixtureRecords(), ds.Records)
			assert.Equal(t, 4, ds.RawRows)
			assert.Equal(t, 1, ds.Dropped)
			assert.True(t, report.Valid)
		})
	}
}

func TestLoadJSON(t *testing.T) {
	body := strings.Join([]string{
		`{"date":"2019-01-01","country":"SGP","arrivals":100,"arrivals_male":60,"arrivals_female":40}`,
		`{"date":"2019-01-01","country":"IDN","arrivals":50,"arrivals_male":null,"arrivals_female":null}`,
		`{"date":"2019-02-01","country":"SGP","arrivals":null,"arrivals_male":null,"arrivals_female":null}`,
		`{"date":"2019-02-01","country":"IDN","arrivals":30,"arrivals_male":10,"arrivals_female":20}`,
	}, "\n") + "\n"
	path := writeFixture(t, "arrivals.json", body)
	loader := NewLoader(&FileSource{Path: path}, mapNamer{"SGP": "Singapore", "IDN": "Indonesia"})

	ds, _, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wantFixtureRecords(), ds.Records)
	assert.Equal(t, 1, ds.Dropped)
}

func TestLoadFromS3(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodGet || r.URL.Path != "/arrivals/monthly.csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(fixtureCSV))
	}))
	defer srv.Close()

	opts := SourceOptions{S3: S3Config{
		Region:          "ap-southeast-1",
		EndpointURL:     srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}}

	src, err := NewSource("s3://arrivals/monthly.csv", opts)
	require.NoError(t, err)
	rc, err := src.Open(context.Background())
	require.NoError(t, err)
	raw, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, fixtureCSV, string(raw))
	assert.Equal(t, "/arrivals/monthly.csv", gotPath, "path-style addressing")

	ds, _, err := NewLoader(src, nil).Load(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, ds.Records)
	assert.Equal(t, "s3://arrivals/monthly.csv", ds.Location)

	src, err = NewSource("s3://arrivals/missing.csv", opts)
	require.NoError(t, err)
	_, _, err = NewLoader(src, nil).Load(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
}
