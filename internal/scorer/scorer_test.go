package scorer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urban-climate-lab/resilience-cli/internal/model"
	"github.com/urban-climate-lab/resilience-cli/internal/stats"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

var testFocus = Focus{
	Center:   model.Coordinate{Lng: 2.1734, Lat: 41.3851},
	RadiusKm: 5,
}

func TestNormalizeClampsToUnitInterval(t *testing.T) {
	fs := stats.FieldStats{Low: 10, High: 20, Range: 10}
	spec := FieldSpec{Name: "v", Attrs: []string{"v"}}

	tests := []struct {
		name     string
		raw      float64
		expected float64
	}{
		{"below low clamps to 0", -1000, 0},
		{"at low", 10, 0},
		{"midpoint", 15, 0.5},
		{"at high", 20, 1},
		{"far above high clamps to 1", 1e9, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.raw, spec, fs))
		})
	}
}

func TestNormalizeInvertedPolarity(t *testing.T) {
	fs := stats.FieldStats{Low: 20000, High: 60000, Range: 40000}
	income := FieldSpec{Name: "renda", Attrs: []string{"renda"}, Invert: true}

	// Lowest income is the most vulnerable; highest is the least.
	assert.Equal(t, 1.0, Normalize(fs.Low, income, fs))
	assert.Equal(t, 0.0, Normalize(fs.High, income, fs))
	assert.Equal(t, 0.5, Normalize(40000, income, fs))
}

func TestDeriveRawHeatIsMeanOfComponents(t *testing.T) {
	heat, ok := DefaultFields().Lookup("heat")
	require.True(t, ok)

	p := model.Point{Attrs: map[string]any{"LST1": 30.0, "uhi2": 4.0}}
	assert.Equal(t, 17.0, heat.DeriveRaw(&p))

	// A missing component coerces to 0, not an error.
	partial := model.Point{Attrs: map[string]any{"LST1": 30.0}}
	assert.Equal(t, 15.0, heat.DeriveRaw(&partial))
}

func TestDeriveRawCoercesGarbageToZero(t *testing.T) {
	spei, ok := DefaultFields().Lookup("SPEI")
	require.True(t, ok)

	p := model.Point{Attrs: map[string]any{"SPEI": "not a number"}}
	assert.Equal(t, 0.0, spei.DeriveRaw(&p))

	missing := model.Point{Attrs: map[string]any{}}
	assert.Equal(t, 0.0, spei.DeriveRaw(&missing))
}

func TestComputeEmptySelectionZeroesScores(t *testing.T) {
	points := []model.Point{
		{Coord: testFocus.Center, Attrs: map[string]any{"SPEI": 3.0}},
		{Coord: model.Coordinate{Lng: 2.18, Lat: 41.39}, Attrs: map[string]any{"SPEI": 9.0}},
	}
	table := DefaultFields()
	fitted := stats.Fit(points, table.RawFuncs())

	results := Compute(points, table, map[string]bool{}, fitted, testFocus)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, 0.0, r.Score)
	}
}

func TestComputeFocusIndependentOfSelection(t *testing.T) {
	inside := model.Point{Coord: model.Coordinate{Lng: 2.18, Lat: 41.39}}
	outside := model.Point{Coord: model.Coordinate{Lng: 2.40, Lat: 41.55}}
	points := []model.Point{inside, outside}
	table := DefaultFields()
	fitted := stats.Fit(points, table.RawFuncs())

	// No active fields: scores are zero but focus flags are still set.
	results := Compute(points, table, nil, fitted, testFocus)
	assert.True(t, results[0].InFocus)
	assert.False(t, results[1].InFocus)
}

func TestComputeCompositeIsMeanOfActiveFields(t *testing.T) {
	points := []model.Point{
		{Coord: testFocus.Center, Attrs: map[string]any{"SPEI": 0.0, "pop_sex3": 0.0}},
		{Coord: testFocus.Center, Attrs: map[string]any{"SPEI": 50.0, "pop_sex3": 100.0}},
		{Coord: testFocus.Center, Attrs: map[string]any{"SPEI": 100.0, "pop_sex3": 100.0}},
	}
	table := FieldTable{
		{Name: "SPEI", Attrs: []string{"SPEI"}},
		{Name: "pop_sex3", Attrs: []string{"pop_sex3"}},
	}
	fitted := map[string]stats.FieldStats{
		"SPEI":     {Low: 0, High: 100, Range: 100},
		"pop_sex3": {Low: 0, High: 100, Range: 100},
	}
	active := map[string]bool{"SPEI": true, "pop_sex3": true}

	results := Compute(points, table, active, fitted, testFocus)
	assert.Equal(t, 0.0, results[0].Score)
	assert.Equal(t, 0.75, results[1].Score) // (0.5 + 1.0) / 2
	assert.Equal(t, 1.0, results[2].Score)
}

func TestLoadFieldsValidation(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		path := dir + "/" + name
		require.NoError(t, writeFile(path, content))
		return path
	}

	valid := write("fields.yaml", `
fields:
  - name: heat
    label: Heat
    attrs: [LST1, uhi2]
  - name: renda
    attrs: [renda]
    invert: true
`)
	table, err := LoadFields(valid)
	require.NoError(t, err)
	require.Len(t, table, 2)
	renda, ok := table.Lookup("renda")
	require.True(t, ok)
	assert.True(t, renda.Invert)

	_, err = LoadFields(write("empty.yaml", "fields: []\n"))
	assert.Error(t, err)

	_, err = LoadFields(write("noattrs.yaml", "fields:\n  - name: x\n    attrs: []\n"))
	assert.Error(t, err)

	_, err = LoadFields(dir + "/missing.yaml")
	assert.Error(t, err)
}
