package scorer

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/urban-climate-lab/resilience-cli/internal/model"
	"github.com/urban-climate-lab/resilience-cli/internal/stats"
)

// FieldSpec describes one scorable indicator. Raw-value derivation and
// polarity are data, not scattered conditionals: adding an indicator is
// adding a row.
type FieldSpec struct {
	Name  string   `yaml:"name"`
	Label string   `yaml:"label,omitempty"`
	Attrs []string `yaml:"attrs"`
	// Invert flips the normalized value (1 - v) for indicators where a
	// LOWER raw value means HIGHER vulnerability, e.g. household income.
	Invert bool `yaml:"invert,omitempty"`
}

// DeriveRaw computes the field's raw value for a point: the arithmetic
// mean of its source attributes, each coerced to 0 when missing or
// non-numeric. Single-attribute fields reduce to a direct read.
func (f FieldSpec) DeriveRaw(p *model.Point) float64 {
	if len(f.Attrs) == 0 {
		return 0
	}
	var sum float64
	for _, attr := range f.Attrs {
		sum += p.Attr(attr)
	}
	return sum / float64(len(f.Attrs))
}

// FieldTable is the ordered set of configured indicators.
type FieldTable []FieldSpec

// DefaultFields mirrors the Barcelona vulnerability dataset: surface
// heat (mean of land-surface temperature and urban-heat-island index),
// drought (SPEI), vulnerable population, and household income with
// inverted polarity.
func DefaultFields() FieldTable {
	return FieldTable{
		{Name: "heat", Label: "Heat", Attrs: []string{"LST1", "uhi2"}},
		{Name: "SPEI", Label: "Drought (SPEI)", Attrs: []string{"SPEI"}},
		{Name: "pop_sex3", Label: "Vulnerable Population", Attrs: []string{"pop_sex3"}},
		{Name: "renda", Label: "Household Income", Attrs: []string{"renda"}, Invert: true},
	}
}

// LoadFields reads a field table from a YAML file. The file carries a
// top-level "fields" key, matching the shape of the bundled default.
func LoadFields(path string) (FieldTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: read field table %s", path)
	}

	var wrapper struct {
		Fields []FieldSpec `yaml:"fields"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "scorer: parse field table")
	}
	if len(wrapper.Fields) == 0 {
		return nil, eris.Errorf("scorer: field table %s defines no fields", path)
	}

	for _, f := range wrapper.Fields {
		if f.Name == "" {
			return nil, eris.Errorf("scorer: field table %s has a field without a name", path)
		}
		if len(f.Attrs) == 0 {
			return nil, eris.Errorf("scorer: field %q lists no source attributes", f.Name)
		}
	}

	return wrapper.Fields, nil
}

// Lookup returns the spec for a field name.
func (t FieldTable) Lookup(name string) (FieldSpec, bool) {
	for _, f := range t {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Names returns the field names in table order.
func (t FieldTable) Names() []string {
	names := make([]string, len(t))
	for i, f := range t {
		names[i] = f.Name
	}
	return names
}

// RawFuncs adapts the table into the per-field derivation map the stats
// engine fits over.
func (t FieldTable) RawFuncs() map[string]stats.RawFunc {
	funcs := make(map[string]stats.RawFunc, len(t))
	for _, f := range t {
		spec := f
		funcs[spec.Name] = spec.DeriveRaw
	}
	return funcs
}
