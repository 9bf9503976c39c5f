package cli

import (
	"errors"
	"os"

	"github.com/roach88/probgraph/internal/config"
	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/model"
)

// loadModel compiles the model at path, reporting failures through f.
func loadModel(f *OutputFormatter, path string, opts ...graph.Option) (*model.Model, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, commandError(f, ErrCodeNotFound, "model not found: "+path, nil)
	}
	m, err := model.Load(path, opts...)
	if err != nil {
		return nil, commandError(f, ErrCodeModelInvalid, "failed to compile model", err)
	}
	f.VerboseLog("Compiled model %q with %d vertices", m.Name, len(m.Labels()))
	return m, nil
}

// loadConfig reads the run configuration at path, or returns the defaults
// when path is empty.
func loadConfig(f *OutputFormatter, path string) (config.RunConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.RunConfig{}, commandError(f, ErrCodeConfigInvalid, "invalid run configuration", err)
	}
	return cfg, nil
}

// vertices resolves labels against m, reporting unknown labels through f.
func vertices(f *OutputFormatter, m *model.Model, labels []string) ([]*graph.Vertex, error) {
	vs, err := m.Vertices(labels...)
	if err != nil {
		var ule *model.UnknownLabelError
		if errors.As(err, &ule) {
			return nil, commandError(f, ErrCodeUnknownLabel, ule.Error(), nil)
		}
		return nil, commandError(f, ErrCodeGeneric, "failed to resolve labels", err)
	}
	return vs, nil
}
