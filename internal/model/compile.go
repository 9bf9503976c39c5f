package model

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/probgraph/internal/dist"
	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/ops"
	"github.com/roach88/probgraph/internal/tensor"
)

// Load compiles the model description at path. A directory is loaded as a
// single CUE instance; a file is compiled on its own.
func Load(path string, opts ...graph.Option) (*Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}

	ctx := cuecontext.New()
	var v cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, fmt.Errorf("model %s: no CUE instances loaded", path)
		}
		if err := instances[0].Err; err != nil {
			return nil, fmt.Errorf("model %s: %w", path, err)
		}
		v = ctx.BuildInstance(instances[0])
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", path, err)
		}
		v = ctx.CompileBytes(data, cue.Filename(path))
	}
	return Compile(v, opts...)
}

// CompileString compiles CUE source. filename is used in error positions.
func CompileString(src, filename string, opts ...graph.Option) (*Model, error) {
	return Compile(cuecontext.New().CompileString(src, cue.Filename(filename)), opts...)
}

// Compile builds a model from a CUE value. opts configure the new graph,
// typically its random source.
func Compile(v cue.Value, opts ...graph.Option) (*Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{Field: "name", Message: "name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	list := v.LookupPath(cue.ParsePath("vertices"))
	if !list.Exists() {
		return nil, &CompileError{Field: "vertices", Message: "vertices is required", Pos: v.Pos()}
	}
	it, err := list.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	c := &compiler{m: &Model{Name: name, Graph: graph.New(opts...)}}
	for i := 0; it.Next(); i++ {
		if err := c.vertex(fmt.Sprintf("vertices[%d]", i), it.Value()); err != nil {
			return nil, err
		}
	}
	if len(c.m.labels) == 0 {
		return nil, &CompileError{Field: "vertices", Message: "at least one vertex is required", Pos: list.Pos()}
	}
	return c.m, nil
}

type compiler struct {
	m *Model
}

// vertex compiles one entry and appends it to the graph.
func (c *compiler) vertex(field string, e cue.Value) error {
	labelVal := e.LookupPath(cue.ParsePath("label"))
	if !labelVal.Exists() {
		return &CompileError{Field: field + ".label", Message: "label is required", Pos: e.Pos()}
	}
	raw, err := labelVal.String()
	if err != nil {
		return formatCUEError(err)
	}
	label := norm.NFC.String(strings.TrimSpace(raw))
	if label == "" {
		return &CompileError{Field: field + ".label", Message: "label must not be empty", Pos: labelVal.Pos()}
	}
	if _, dup := c.m.Graph.ByLabel(label); dup {
		return &CompileError{Field: field + ".label", Message: fmt.Sprintf("duplicate label %q", label), Pos: labelVal.Pos()}
	}

	var kinds []string
	for _, k := range []string{"constant", "op", "dist"} {
		if e.LookupPath(cue.ParsePath(k)).Exists() {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) != 1 {
		return &CompileError{
			Field:   field,
			Message: fmt.Sprintf("exactly one of constant, op or dist is required, got %d", len(kinds)),
			Pos:     e.Pos(),
		}
	}

	var v *graph.Vertex
	switch kinds[0] {
	case "constant":
		v, err = c.constant(field, e)
	case "op":
		v, err = c.operation(field, e)
	case "dist":
		v, err = c.distribution(field, e)
	}
	if err != nil {
		return err
	}

	if err := c.m.Graph.SetLabel(v, label); err != nil {
		return c.graphError(field+".label", e, err)
	}
	c.m.labels = append(c.m.labels, label)
	return nil
}

func (c *compiler) constant(field string, e cue.Value) (*graph.Vertex, error) {
	shape, err := c.shape(field, e)
	if err != nil {
		return nil, err
	}
	value, err := c.values(field+".constant", e.LookupPath(cue.ParsePath("constant")), shape)
	if err != nil {
		return nil, err
	}
	v, err := c.m.Graph.Constant(value)
	if err != nil {
		return nil, c.graphError(field, e, err)
	}
	return v, nil
}

func (c *compiler) operation(field string, e cue.Value) (*graph.Vertex, error) {
	opVal := e.LookupPath(cue.ParsePath("op"))
	name, err := opVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	op, ok := ops.Lookup(name)
	if !ok {
		return nil, &CompileError{
			Field:   field + ".op",
			Message: fmt.Sprintf("unknown operation %q (known: %s)", name, strings.Join(ops.Names(), ", ")),
			Pos:     opVal.Pos(),
		}
	}
	inputs, err := c.refs(field+".inputs", e.LookupPath(cue.ParsePath("inputs")))
	if err != nil {
		return nil, err
	}
	v, err := c.m.Graph.Deterministic(op, inputs...)
	if err != nil {
		return nil, c.graphError(field, e, err)
	}
	return v, nil
}

func (c *compiler) distribution(field string, e cue.Value) (*graph.Vertex, error) {
	distVal := e.LookupPath(cue.ParsePath("dist"))
	name, err := distVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	d, ok := dist.Lookup(name)
	if !ok {
		return nil, &CompileError{
			Field:   field + ".dist",
			Message: fmt.Sprintf("unknown distribution %q (known: %s)", name, strings.Join(dist.Names(), ", ")),
			Pos:     distVal.Pos(),
		}
	}
	params, err := c.refs(field+".params", e.LookupPath(cue.ParsePath("params")))
	if err != nil {
		return nil, err
	}
	shape, err := c.shape(field, e)
	if err != nil {
		return nil, err
	}
	v, err := c.m.Graph.Probabilistic(d, shape, params...)
	if err != nil {
		return nil, c.graphError(field, e, err)
	}

	observe := e.LookupPath(cue.ParsePath("observe"))
	initial := e.LookupPath(cue.ParsePath("value"))
	if observe.Exists() && initial.Exists() {
		return nil, &CompileError{Field: field, Message: "observe and value are mutually exclusive", Pos: e.Pos()}
	}
	if observe.Exists() {
		t, err := c.values(field+".observe", observe, v.Shape())
		if err != nil {
			return nil, err
		}
		if err := v.Observe(t); err != nil {
			return nil, c.graphError(field+".observe", observe, err)
		}
	}
	if initial.Exists() {
		t, err := c.values(field+".value", initial, v.Shape())
		if err != nil {
			return nil, err
		}
		if err := v.SetValue(t); err != nil {
			return nil, c.graphError(field+".value", initial, err)
		}
	}
	return v, nil
}

// refs resolves a list of labels declared earlier in the file.
func (c *compiler) refs(field string, list cue.Value) ([]*graph.Vertex, error) {
	if !list.Exists() {
		return nil, nil
	}
	it, err := list.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []*graph.Vertex
	for it.Next() {
		raw, err := it.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		label := norm.NFC.String(raw)
		v, ok := c.m.Graph.ByLabel(label)
		if !ok {
			return nil, &CompileError{
				Field:   field,
				Message: fmt.Sprintf("%q is not declared before this vertex", label),
				Pos:     it.Value().Pos(),
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// shape reads the optional shape field. A missing shape is nil.
func (c *compiler) shape(field string, e cue.Value) (tensor.Shape, error) {
	sv := e.LookupPath(cue.ParsePath("shape"))
	if !sv.Exists() {
		return nil, nil
	}
	it, err := sv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	shape := tensor.Shape{}
	for it.Next() {
		d, err := it.Value().Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		shape = append(shape, int(d))
	}
	if err := shape.Validate(); err != nil {
		return nil, &CompileError{Field: field + ".shape", Message: err.Error(), Pos: sv.Pos(), Err: err}
	}
	return shape, nil
}

// values reads a number or a list of numbers. A nil shape means scalar for
// a number and a vector for a list.
func (c *compiler) values(field string, x cue.Value, shape tensor.Shape) (tensor.Tensor, error) {
	var data []float64
	isList := x.IncompleteKind() == cue.ListKind
	if isList {
		it, err := x.List()
		if err != nil {
			return tensor.Tensor{}, formatCUEError(err)
		}
		for it.Next() {
			f, err := it.Value().Float64()
			if err != nil {
				return tensor.Tensor{}, formatCUEError(err)
			}
			data = append(data, f)
		}
	} else {
		f, err := x.Float64()
		if err != nil {
			return tensor.Tensor{}, formatCUEError(err)
		}
		data = []float64{f}
	}

	if shape == nil {
		if isList {
			shape = tensor.Shape{len(data)}
		} else {
			shape = tensor.Shape{}
		}
	}
	t, err := tensor.New(shape, data)
	if err != nil {
		return tensor.Tensor{}, &CompileError{Field: field, Message: err.Error(), Pos: x.Pos(), Err: err}
	}
	return t, nil
}

func (c *compiler) graphError(field string, at cue.Value, err error) error {
	return &CompileError{Field: field, Message: err.Error(), Pos: at.Pos(), Err: err}
}
