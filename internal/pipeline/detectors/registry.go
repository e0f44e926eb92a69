package detectors

import (
	"fmt"
	"sort"
	"sync"

	"veritas/internal/pipeline"
)

// Registry manages available detectors
type Registry struct {
	detectors map[string]pipeline.Detector
	mu        sync.RWMutex
}

// NewRegistry creates an empty detector registry
func NewRegistry() *Registry {
	return &Registry{
		detectors: make(map[string]pipeline.Detector),
	}
}

// NewDefaultRegistry creates a registry holding the spatial, temporal and global detectors
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range []pipeline.Detector{
		NewSpatialDetector(),
		NewTemporalDetector(),
		NewGlobalConsistencyDetector(),
	} {
		// names are distinct constants, registration cannot fail
		_ = r.Register(d)
	}
	return r
}

// Register adds a detector to the registry
func (r *Registry) Register(detector pipeline.Detector) error {
	if detector == nil {
		return fmt.Errorf("detector cannot be nil")
	}

	name := detector.Name()
	if name == "" {
		return fmt.Errorf("detector name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.detectors[name]; exists {
		return fmt.Errorf("detector %q already registered", name)
	}

	r.detectors[name] = detector
	return nil
}

// Get returns a detector by name
func (r *Registry) Get(name string) (pipeline.Detector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.detectors[name]
	return d, ok
}

// Names returns the names of all registered detectors, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.detectors))
	for name := range r.detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DetectorSet resolves one detector per scoring role
func (r *Registry) DetectorSet(spatial, temporal, global string) (pipeline.DetectorSet, error) {
	var set pipeline.DetectorSet
	for _, role := range []struct {
		name string
		dst  *pipeline.Detector
	}{
		{spatial, &set.Spatial},
		{temporal, &set.Temporal},
		{global, &set.Global},
	} {
		d, ok := r.Get(role.name)
		if !ok {
			return pipeline.DetectorSet{}, fmt.Errorf("detector %q not registered", role.name)
		}
		*role.dst = d
	}
	return set, nil
}

// DefaultDetectorSet resolves the built-in detectors by their standard names
func (r *Registry) DefaultDetectorSet() (pipeline.DetectorSet, error) {
	return r.DetectorSet(SpatialName, TemporalName, GlobalName)
}

// Ensure Registry implements DetectorRegistry
var _ pipeline.DetectorRegistry = (*Registry)(nil)
