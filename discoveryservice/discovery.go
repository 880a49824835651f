// Package discoveryservice unifies filesystem, URL, identifier, and
// remote-registry sources into dispatcher registrations (C8).
package discoveryservice

import (
	"context"
	"os"
	"path/filepath"

	"github.com/galemind/dispatch-core/dispatchservice"
	"github.com/galemind/dispatch-core/internal/modelid"
	"github.com/galemind/dispatch-core/internal/registryclient"
	"github.com/galemind/dispatch-core/internal/runtime"
)

// SourceKind tags which ModelSource variant is populated.
type SourceKind int

const (
	SourcePath SourceKind = iota
	SourceURL
	SourceID
	SourceRegistry
)

// ModelSource is a sum type over the four ingestion variants in spec.md
// §4.8, mirroring the tagged-union idiom used for runtime.ParamValue and
// the teacher's models.WSClientMsg.
type ModelSource struct {
	Kind SourceKind

	// Path is set when Kind == SourcePath.
	Path string

	// URL is set when Kind == SourceURL.
	URL string

	// ID is set when Kind == SourceID.
	ID string

	// Registry fields are set when Kind == SourceRegistry.
	RegistryBaseURL string
	RegistryToken   string
	// RegistryModelName, if non-empty, narrows discovery to a single
	// model via get-model; otherwise every model is listed.
	RegistryModelName string
}

// NewPathSource builds a Path variant.
func NewPathSource(p string) ModelSource { return ModelSource{Kind: SourcePath, Path: p} }

// NewURLSource builds a Url variant.
func NewURLSource(u string) ModelSource { return ModelSource{Kind: SourceURL, URL: u} }

// NewIDSource builds an Id variant.
func NewIDSource(id string) ModelSource { return ModelSource{Kind: SourceID, ID: id} }

// NewRegistrySource builds a Registry variant. modelName may be empty to
// discover every model the registry reports.
func NewRegistrySource(baseURL, token, modelName string) ModelSource {
	return ModelSource{
		Kind:              SourceRegistry,
		RegistryBaseURL:   baseURL,
		RegistryToken:     token,
		RegistryModelName: modelName,
	}
}

// RuntimeFactory builds the runtime a newly discovered model should run
// under. Discovery itself never constructs runtimes (out of scope); the
// host process supplies this.
type RuntimeFactory func(id modelid.ModelID) runtime.Runtime

// DiscoveryService drives dispatcher registration from heterogeneous
// sources.
type DiscoveryService struct {
	dispatcher dispatchservice.Dispatcher
	factory    RuntimeFactory
}

// New creates a DiscoveryService that registers discovered models against
// dispatcher, constructing each model's runtime via factory.
func New(dispatcher dispatchservice.Dispatcher, factory RuntimeFactory) *DiscoveryService {
	return &DiscoveryService{dispatcher: dispatcher, factory: factory}
}

// Discover resolves every source into zero or more model ids and registers
// each with the dispatcher via EnsureModel, which is idempotent; a model
// already registered is left untouched. Returns every id successfully
// resolved, in source order, including ones that were already registered.
func (s *DiscoveryService) Discover(ctx context.Context, sources []ModelSource) ([]modelid.ModelID, error) {
	var discovered []modelid.ModelID

	for _, src := range sources {
		switch src.Kind {
		case SourcePath:
			ids, err := s.discoverFromPath(src.Path)
			if err != nil {
				return discovered, err
			}
			discovered = append(discovered, ids...)

		case SourceURL:
			if id, ok := modelid.FromURL(src.URL); ok {
				s.register(id)
				discovered = append(discovered, id)
			}

		case SourceID:
			id := modelid.FromString(src.ID)
			s.register(id)
			discovered = append(discovered, id)

		case SourceRegistry:
			ids, err := s.discoverFromRegistry(ctx, src)
			if err != nil {
				return discovered, err
			}
			discovered = append(discovered, ids...)
		}
	}

	return discovered, nil
}

// discoverFromPath implements the Path variant's two-tier rule: a
// directory is scanned for immediate subdirectories that each yield a
// valid ModelID; anything else is tried directly as a single ModelID.
func (s *DiscoveryService) discoverFromPath(p string) ([]modelid.ModelID, error) {
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	if !info.IsDir() {
		if id, ok := modelid.FromPath(p); ok {
			s.register(id)
			return []modelid.ModelID{id}, nil
		}
		return nil, nil
	}

	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, err
	}

	var ids []modelid.ModelID
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if id, ok := modelid.FromPath(filepath.Join(p, entry.Name())); ok {
			s.register(id)
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *DiscoveryService) discoverFromRegistry(ctx context.Context, src ModelSource) ([]modelid.ModelID, error) {
	client := registryclient.New(src.RegistryBaseURL, "mlflow", src.RegistryToken, nil)

	if src.RegistryModelName != "" {
		model, err := client.GetModel(ctx, src.RegistryModelName)
		if err != nil {
			return nil, err
		}
		if model == nil {
			return nil, nil
		}
		id := modelid.FromString(model.Name)
		s.register(id)
		return []modelid.ModelID{id}, nil
	}

	models, err := client.ListModels(ctx, 0)
	if err != nil {
		return nil, err
	}

	ids := make([]modelid.ModelID, len(models))
	for i, m := range models {
		id := modelid.FromString(m.Name)
		s.register(id)
		ids[i] = id
	}
	return ids, nil
}

func (s *DiscoveryService) register(id modelid.ModelID) {
	s.dispatcher.EnsureModel(id, func() runtime.Runtime {
		return s.factory(id)
	})
}

// ModelVersions exposes registry version metadata for a model without
// running a full discovery pass, matching the registry client's full
// endpoint surface (list/get/list-versions).
func (s *DiscoveryService) ModelVersions(ctx context.Context, baseURL, token, name string) ([]registryclient.ModelVersion, error) {
	client := registryclient.New(baseURL, "mlflow", token, nil)
	return client.ListModelVersions(ctx, name, 0)
}
