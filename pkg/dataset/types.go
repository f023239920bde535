package dataset

import (
	"errors"
	"time"
)

var (
	// ErrDataUnavailable is returned when the dataset location cannot be reached or read.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrSchemaMismatch is returned when the dataset lacks a required column.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// Gender of the travellers counted in a record.
type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderUnspecified Gender = "unspecified"
)

// ArrivalRecord is one cleaned observation: arrivals of a nationality and
// gender in a month.
type ArrivalRecord struct {
	Month       Month  `json:"month"`
	Nationality string `json:"nationality"`
	Gender      Gender `json:"gender"`
	Count       int64  `json:"count"`
}

// Dataset is the in-memory table returned by the loader. It is not modified
// after Load returns.
type Dataset struct {
	Location  string          `json:"location"`
	FetchedAt time.Time       `json:"fetched_at"`
	Records   []ArrivalRecord `json:"records"`
	RawRows   int             `json:"raw_rows"`
	Dropped   int             `json:"dropped_rows"`
}

// Empty reports whether the dataset has no usable records.
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Records) == 0
}

// Span returns the first and last month present in the dataset.
func (d *Dataset) Span() (first, last Month, ok bool) {
	if d.Empty() {
		return Month{}, Month{}, false
	}
	first, last = d.Records[0].Month, d.Records[0].Month
	for _, r := range d.Records[1:] {
		if r.Month.Before(first) {
			first = r.Month
		}
		if r.Month.After(last) {
			last = r.Month
		}
	}
	return first, last, true
}

// Columns names the source columns the loader reads. Male and Female are
// optional; when absent every arrival is recorded as unspecified.
type Columns struct {
	Date        string `mapstructure:"date" yaml:"date"`
	Nationality string `mapstructure:"nationality" yaml:"nationality"`
	Total       string `mapstructure:"total" yaml:"total"`
	Male        string `mapstructure:"male" yaml:"male"`
	Female      string `mapstructure:"female" yaml:"female"`
}

// DefaultColumns matches the published arrivals_soe dataset.
func DefaultColumns() Columns {
	return Columns{
		Date:        "date",
		Nationality: "country",
		Total:       "arrivals",
		Male:        "arrivals_male",
		Female:      "arrivals_female",
	}
}

// Namer maps raw nationality codes to display names.
type Namer interface {
	DisplayName(code string) string
}
