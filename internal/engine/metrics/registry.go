package metrics

import (
	"fmt"
	"github.com/tvbeek/pdepend/internal/core/errors"
	"log/slog"
	"strings"
	"sync"
)

// Analyzer names understood by the default registry.
const (
	NameCyclomatic  = "cyclomatic"
	NameNPath       = "npath"
	NameCoupling    = "coupling"
	NameInheritance = "inheritance"
	NameNodeCount   = "nodecount"
	NameNodeLoc     = "nodeloc"
)

type Factory func(logger *slog.Logger) Analyzer

type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
	logger    *slog.Logger
}

// NewRegistry returns a registry holding every built-in analyzer.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{factories: make(map[string]Factory), logger: logger}
	r.Register(NameCyclomatic, func(l *slog.Logger) Analyzer { return NewCyclomaticComplexity(l) })
	r.Register(NameNPath, func(l *slog.Logger) Analyzer { return NewNPathComplexity(l) })
	r.Register(NameCoupling, func(*slog.Logger) Analyzer { return NewCoupling() })
	r.Register(NameInheritance, func(l *slog.Logger) Analyzer { return NewInheritance(l) })
	r.Register(NameNodeCount, func(*slog.Logger) Analyzer { return NewNodeCount() })
	r.Register(NameNodeLoc, func(l *slog.Logger) Analyzer { return NewNodeLoc(l) })
	return r
}

// Register adds or replaces a factory. New names keep their registration
// position for Create.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := r.factories[name]; !ok {
		r.order = append(r.order, name)
	}
	r.factories[name] = f
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Create instantiates the named analyzers in registration order. No names
// selects all of them.
func (r *Registry) Create(names ...string) ([]Analyzer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, ok := r.factories[key]; !ok {
			return nil, errors.AddContext(
				errors.New(errors.CodeUnsupportedAnalyzer, fmt.Sprintf("unknown analyzer %q", name)),
				errors.CtxAnalyzer, name,
			)
		}
		wanted[key] = true
	}

	out := make([]Analyzer, 0, len(r.order))
	for _, name := range r.order {
		if len(wanted) > 0 && !wanted[name] {
			continue
		}
		out = append(out, r.factories[name](r.logger.With("analyzer", name)))
	}
	return out, nil
}
