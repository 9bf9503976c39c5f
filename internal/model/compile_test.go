package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/random"
)

const chainSrc = `
name: "chain"
vertices: [
	{label: "mu", constant: 0},
	{label: "sigma", constant: 1},
	{label: "x", dist: "gaussian", params: ["mu", "sigma"], value: 0.25},
	{label: "y", op: "exp", inputs: ["x"]},
	{label: "obs", dist: "gaussian", params: ["y", "sigma"], observe: 2.5},
]
`

// =============================================================================
// Successful compilation
// =============================================================================

func TestCompile_Chain(t *testing.T) {
	m, err := CompileString(chainSrc, "chain.cue")
	require.NoError(t, err)

	assert.Equal(t, "chain", m.Name)
	assert.Equal(t, []string{"mu", "sigma", "x", "y", "obs"}, m.Labels())

	vs, err := m.Vertices(m.Labels()...)
	require.NoError(t, err)
	for i := 1; i < len(vs); i++ {
		assert.Less(t, vs[i-1].ID(), vs[i].ID(), "declaration order is id order")
	}

	x, _ := m.Vertex("x")
	assert.True(t, x.IsLatent())
	assert.Equal(t, 0.25, x.Value().Value())

	y, _ := m.Vertex("y")
	assert.True(t, y.IsDeterministic())
	assert.Equal(t, []graph.ID{x.ID()}, y.Parents())

	obs, _ := m.Vertex("obs")
	assert.True(t, obs.IsObserved())
	assert.Equal(t, 2.5, obs.Value().Value())

	assert.Len(t, m.Graph.Latents(), 1)
	assert.Equal(t, []string{"x", "obs"}, LabelsOf(m.Graph.ProbabilisticVertices()))
}

func TestCompile_TensorConstants(t *testing.T) {
	m, err := CompileString(`
name: "linear"
vertices: [
	{label: "W", constant: [1, 2, 3, 4], shape: [2, 2]},
	{label: "b", constant: [0.5, -0.5]},
	{label: "x", dist: "gaussian", params: ["b", "b"], shape: [2], value: [1, 2]},
	{label: "xs", op: "sum", inputs: ["x"]},
]
`, "linear.cue")
	require.NoError(t, err)

	w, _ := m.Vertex("W")
	assert.Equal(t, []int{2, 2}, []int(w.Shape()))
	assert.Equal(t, []float64{1, 2, 3, 4}, w.Value().Data())

	b, _ := m.Vertex("b")
	assert.Equal(t, []int{2}, []int(b.Shape()))

	x, _ := m.Vertex("x")
	assert.Equal(t, []float64{1, 2}, x.Value().Data())
}

func TestCompile_SeededGraph(t *testing.T) {
	draw := func(seed uint64) float64 {
		m, err := CompileString(`
name: "prior"
vertices: [
	{label: "mu", constant: 0},
	{label: "sigma", constant: 1},
	{label: "x", dist: "gaussian", params: ["mu", "sigma"]},
]
`, "prior.cue", graph.WithRandom(random.New(seed)))
		require.NoError(t, err)
		x, _ := m.Vertex("x")
		require.NoError(t, m.Graph.LazyEval(x))
		return x.Value().Value()
	}
	assert.Equal(t, draw(5), draw(5))
	assert.NotEqual(t, draw(5), draw(6))
}

func TestCompile_NormalisesLabels(t *testing.T) {
	// Declared with a combining accent, referenced precomposed.
	m, err := CompileString(`
name: "accents"
vertices: [
	{label: "cafe\u0301", constant: 1},
	{label: "y", op: "neg", inputs: ["caf\u00e9"]},
]
`, "accents.cue")
	require.NoError(t, err)

	v, err := m.Vertex("caf\u00e9")
	require.NoError(t, err)
	_, err = m.Vertex("cafe\u0301")
	require.NoError(t, err, "lookups normalise too")
	assert.Equal(t, "caf\u00e9", v.Label())
}

// =============================================================================
// Compile errors
// =============================================================================

func TestCompile_Errors(t *testing.T) {
	cases := []struct {
		name  string
		src   string
		field string
	}{
		{"missing name", `vertices: [{label: "a", constant: 1}]`, "name"},
		{"missing vertices", `name: "m"`, "vertices"},
		{"no vertices", `name: "m", vertices: []`, "vertices"},
		{"missing label", `name: "m", vertices: [{constant: 1}]`, "vertices[0].label"},
		{"duplicate label", `name: "m", vertices: [{label: "a", constant: 1}, {label: "a", constant: 2}]`, "vertices[1].label"},
		{"forward reference", `name: "m", vertices: [{label: "a", op: "neg", inputs: ["b"]}, {label: "b", constant: 1}]`, "vertices[0].inputs"},
		{"unknown op", `name: "m", vertices: [{label: "a", constant: 1}, {label: "b", op: "tan", inputs: ["a"]}]`, "vertices[1].op"},
		{"unknown dist", `name: "m", vertices: [{label: "a", constant: 1}, {label: "b", dist: "cauchy", params: ["a"]}]`, "vertices[1].dist"},
		{"two kinds", `name: "m", vertices: [{label: "a", constant: 1, dist: "gaussian"}]`, "vertices[0]"},
		{"no kind", `name: "m", vertices: [{label: "a"}]`, "vertices[0]"},
		{"observe and value", `name: "m", vertices: [{label: "a", constant: 1}, {label: "b", dist: "gaussian", params: ["a", "a"], observe: 1, value: 2}]`, "vertices[1]"},
		{"bad shape", `name: "m", vertices: [{label: "a", constant: [1, 2], shape: [0]}]`, "vertices[0].shape"},
		{"wrong element count", `name: "m", vertices: [{label: "a", constant: [1, 2, 3], shape: [2]}]`, "vertices[0].constant"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CompileString(tc.src, "bad.cue")
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.field, ce.Field, ce.Error())
		})
	}
}

func TestCompile_SyntaxErrorHasPosition(t *testing.T) {
	_, err := CompileString("name: \"m\"\nvertices: [\n", "broken.cue")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "cue", ce.Field)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, ce.Error(), "broken.cue")
}

func TestCompile_GraphErrorKeepsCode(t *testing.T) {
	_, err := CompileString(`
name: "m"
vertices: [
	{label: "a", constant: [1, 2]},
	{label: "b", constant: [1, 2, 3]},
	{label: "c", op: "add", inputs: ["a", "b"]},
]
`, "shapes.cue")
	require.Error(t, err)
	assert.True(t, IsCompileError(err))
	assert.Equal(t, graph.ErrCodeShapeMismatch, graph.Code(err))
}

func TestModel_UnknownLabel(t *testing.T) {
	m, err := CompileString(chainSrc, "chain.cue")
	require.NoError(t, err)

	_, err = m.Vertex("nope")
	var ule *UnknownLabelError
	require.ErrorAs(t, err, &ule)
	assert.Equal(t, "nope", ule.Label)

	_, err = m.Vertices("x", "nope")
	assert.Error(t, err)
}

// =============================================================================
// Loading
// =============================================================================

func TestLoad_FileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chain.cue")
	require.NoError(t, os.WriteFile(path, []byte("package chain\n"+chainSrc), 0o644))

	fromFile, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "chain", fromFile.Name)

	fromDir, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, fromFile.Labels(), fromDir.Labels())

	_, err = Load(filepath.Join(dir, "missing.cue"))
	assert.Error(t, err)
}
