package reference

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed countries.yaml
var bundled []byte

// Country is one entry of the reference table. MuslimShare is a percentage
// in [0, 100]; nil means the country is not rated.
type Country struct {
	ISO3        string   `yaml:"iso3" json:"iso3"`
	Name        string   `yaml:"name" json:"name"`
	MuslimShare *float64 `yaml:"muslim_share,omitempty" json:"muslim_share,omitempty"`
}

type file struct {
	Countries []Country `yaml:"countries"`
}

// Table is the immutable country reference table.
type Table struct {
	countries []Country
	byISO     map[string]int
	byName    map[string]int
}

// Default parses the table bundled with the binary.
func Default() (*Table, error) {
	return Parse(bundled)
}

// Load reads a reference table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reference file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML reference table.
func Parse(data []byte) (*Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing reference YAML: %w", err)
	}
	return New(f.Countries)
}

// New builds a table from countries. Names must be unique and non-empty,
// ISO codes unique when set, and shares within [0, 100].
func New(countries []Country) (*Table, error) {
	t := &Table{
		countries: make([]Country, len(countries)),
		byISO:     make(map[string]int),
		byName:    make(map[string]int),
	}
	for i, c := range countries {
		if c.Name == "" {
			return nil, fmt.Errorf("reference entry %d: name is required", i)
		}
		if _, dup := t.byName[c.Name]; dup {
			return nil, fmt.Errorf("reference entry %d: duplicate name %q", i, c.Name)
		}
		if c.ISO3 != "" {
			if _, dup := t.byISO[c.ISO3]; dup {
				return nil, fmt.Errorf("reference entry %d: duplicate iso3 %q", i, c.ISO3)
			}
			t.byISO[c.ISO3] = i
		}
		if c.MuslimShare != nil {
			if v := *c.MuslimShare; v < 0 || v > 100 {
				return nil, fmt.Errorf("reference entry %q: muslim_share %v outside [0, 100]", c.Name, v)
			}
			share := *c.MuslimShare
			c.MuslimShare = &share
		}
		t.byName[c.Name] = i
		t.countries[i] = c
	}
	return t, nil
}

// DisplayName maps an ISO-3 code to the country name. Unknown codes are
// returned unchanged. A nil table knows no countries.
func (t *Table) DisplayName(code string) string {
	if t == nil {
		return code
	}
	if i, ok := t.byISO[code]; ok {
		return t.countries[i].Name
	}
	return code
}

// Share returns the Muslim population percentage for an exact country name.
func (t *Table) Share(name string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	i, ok := t.byName[name]
	if !ok || t.countries[i].MuslimShare == nil {
		return 0, false
	}
	return *t.countries[i].MuslimShare, true
}

// Countries returns a copy of the table entries in file order.
func (t *Table) Countries() []Country {
	if t == nil {
		return nil
	}
	out := make([]Country, len(t.countries))
	for i, c := range t.countries {
		if c.MuslimShare != nil {
			c.MuslimShare = Pct(*c.MuslimShare)
		}
		out[i] = c
	}
	return out
}

// Len is the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.countries)
}

// Pct returns a pointer for Country.MuslimShare literals.
func Pct(v float64) *float64 {
	return &v
}
