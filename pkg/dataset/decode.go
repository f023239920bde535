package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	duckdb "github.com/duckdb/duckdb-go/v2"
)

// Supported dataset formats.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
	FormatJSON    = "json"
)

// rawRow is one source row before cleaning. Any field may be NULL.
type rawRow struct {
	Date        sql.NullTime
	Nationality sql.NullString
	Total       sql.NullInt64
	Male        sql.NullInt64
	Female      sql.NullInt64
}

// decodeResult carries the rows plus which optional columns were present.
type decodeResult struct {
	rows      []rawRow
	hasGender bool
}

// decode reads the spooled file with an in-process duckdb connection.
func decode(ctx context.Context, path, format string, cols Columns) (*decodeResult, error) {
	scan, err := scanExpr(path, format)
	if err != nil {
		return nil, err
	}

	connector, err := duckdb.NewConnector("", nil)
	if err != nil {
		return nil, fmt.Errorf("creating duckdb connector: %w", err)
	}
	db := sql.OpenDB(connector)
	defer db.Close()

	present, err := describe(ctx, db, scan)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s file: %v", ErrSchemaMismatch, format, err)
	}

	var missing []string
	for _, c := range []string{cols.Date, cols.Nationality, cols.Total} {
		if !present[strings.ToLower(c)] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing column(s) %s", ErrSchemaMismatch, strings.Join(missing, ", "))
	}

	hasMale := cols.Male != "" && present[strings.ToLower(cols.Male)]
	hasFemale := cols.Female != "" && present[strings.ToLower(cols.Female)]

	query := fmt.Sprintf(
		"SELECT TRY_CAST(%s AS DATE), CAST(%s AS VARCHAR), TRY_CAST(%s AS BIGINT), %s, %s FROM %s",
		quoteIdent(cols.Date),
		quoteIdent(cols.Nationality),
		quoteIdent(cols.Total),
		optionalCount(cols.Male, hasMale),
		optionalCount(cols.Female, hasFemale),
		scan,
	)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: querying rows: %v", ErrSchemaMismatch, err)
	}
	defer rows.Close()

	out := &decodeResult{hasGender: hasMale || hasFemale}
	for rows.Next() {
		var r rawRow
		if err := rows.Scan(&r.Date, &r.Nationality, &r.Total, &r.Male, &r.Female); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %v", ErrSchemaMismatch, err)
		}
		out.rows = append(out.rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating rows: %v", ErrSchemaMismatch, err)
	}
	return out, nil
}

// describe returns the lower-cased column names exposed by the scan.
func describe(ctx context.Context, db *sql.DB, scan string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "DESCRIBE SELECT * FROM "+scan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool)
	for rows.Next() {
		vals := make([]sql.NullString, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		// First column of DESCRIBE is column_name.
		present[strings.ToLower(vals[0].String)] = true
	}
	return present, rows.Err()
}

func scanExpr(path, format string) (string, error) {
	lit := "'" + strings.ReplaceAll(path, "'", "''") + "'"
	switch format {
	case FormatParquet:
		return "read_parquet(" + lit + ")", nil
	case FormatCSV:
		return "read_csv_auto(" + lit + ")", nil
	case FormatJSON:
		return "read_json_auto(" + lit + ")", nil
	}
	return "", fmt.Errorf("%w: unsupported format %q", ErrSchemaMismatch, format)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func optionalCount(col string, present bool) string {
	if !present {
		return "CAST(NULL AS BIGINT)"
	}
	return "TRY_CAST(" + quoteIdent(col) + " AS BIGINT)"
}
