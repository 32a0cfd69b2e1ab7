// Package app wires configuration into the running service graph.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cathedral/cathedral/internal/chat"
	"github.com/cathedral/cathedral/internal/config"
	"github.com/cathedral/cathedral/internal/history"
	"github.com/cathedral/cathedral/internal/httpapi"
	"github.com/cathedral/cathedral/internal/kv"
	"github.com/cathedral/cathedral/internal/library"
	"github.com/cathedral/cathedral/internal/llm"
	"github.com/cathedral/cathedral/internal/memory"
	"github.com/cathedral/cathedral/internal/observability"
	"github.com/cathedral/cathedral/internal/persona"
	"github.com/cathedral/cathedral/internal/projectfile"
	"github.com/cathedral/cathedral/internal/session"
)

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Store        kv.Store
	StoreBackend string
	Personas     []httpapi.Persona
	Readings     *library.Store
	Metrics      *observability.Metrics

	// Cleanup should be called on shutdown to release the store connection.
	Cleanup func() error
}

// Registry builds the persona set from config. Hollow comes first and is the
// default library companion.
func Registry(cfg config.Config) *persona.Registry {
	return persona.NewRegistry(
		persona.Persona{
			Namespace:    persona.Hollow,
			DisplayName:  "Hollow",
			Instructions: cfg.Hollow.Instructions,
			Backend:      cfg.Hollow.Backend,
			Model:        cfg.Hollow.Model,
		},
		persona.Persona{
			Namespace:    persona.Rhys,
			DisplayName:  "Rhys",
			Instructions: cfg.Rhys.Instructions,
			Backend:      cfg.Rhys.Backend,
			Model:        cfg.Rhys.Model,
		},
	)
}

// OpenStore connects the configured backend.
func OpenStore(ctx context.Context, cfg config.Config) (kv.Store, string, error) {
	store, backend, err := kv.Open(ctx, kv.Config{
		Backend:     cfg.StoreBackend,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		return nil, "", fmt.Errorf("store init failed: %w", err)
	}
	return store, backend, nil
}

// Stores are the persistence components of one persona, without any
// generation backend.
type Stores struct {
	Persona  persona.Persona
	Sessions *session.Manager
	History  *history.Log
	Memories *memory.Store
	Files    *projectfile.Store
}

func NewStores(store kv.Store, cfg config.Config, p persona.Persona, logger zerolog.Logger) Stores {
	hist := history.NewLog(store, p.Namespace, cfg.HistoryLimit, logger)
	return Stores{
		Persona:  p,
		History:  hist,
		Sessions: session.NewManager(store, p.Namespace, hist, logger),
		Memories: memory.NewStore(store, p.Namespace, cfg.MemoryMaxItems, logger),
		Files:    projectfile.NewStore(store, p.Namespace, cfg.ProjectFileMaxChars, logger),
	}
}

func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, backend, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("backend", backend).Msg("store ready")

	registry := Registry(cfg)
	var (
		bundles       []httpapi.Persona
		orchestrators []*chat.Orchestrator
		companions    []string
	)
	for _, p := range registry.All() {
		llmCfg := llm.Config{
			Backend:          p.Backend,
			Model:            p.Model,
			OpenAIKey:        cfg.OpenAIKey,
			OpenAIBaseURL:    cfg.OpenAIBaseURL,
			AnthropicKey:     cfg.AnthropicKey,
			AnthropicBaseURL: cfg.AnthropicBaseURL,
			Timeout:          cfg.GenerationTimeout,
		}
		adapter, err := llm.NewAdapter(llmCfg)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("%s adapter init failed: %w", p.Namespace, err)
		}
		logger.Info().Str("persona", p.Namespace).Str("backend", fmt.Sprintf("%T", adapter)).Msg("generation backend ready")

		st := NewStores(store, cfg, p, logger)
		orch := chat.New(chat.Deps{
			Persona:       p,
			Sessions:      st.Sessions,
			History:       st.History,
			Memories:      st.Memories,
			Files:         st.Files,
			Adapter:       adapter,
			Tools:         llm.NewTools(llmCfg, cfg.ImageModel, cfg.SearchModel),
			Metrics:       metrics,
			Logger:        logger,
			HistoryWindow: cfg.ContextHistoryWindow,
		})
		orchestrators = append(orchestrators, orch)
		companions = append(companions, p.Namespace)
		bundles = append(bundles, httpapi.Persona{
			Info:     p,
			Sessions: st.Sessions,
			History:  st.History,
			Memories: st.Memories,
			Files:    st.Files,
			Chat:     orch,
		})
	}

	readings := library.NewStore(store, cfg.ReadingMaxChars, cfg.HistoryLimit, companions, logger)
	libraryChat := chat.NewLibraryChat(readings, cfg.LibraryLegacyCompanionKeying, logger, orchestrators...)

	api := httpapi.New(httpapi.Deps{
		Config:       cfg,
		Personas:     bundles,
		Readings:     readings,
		LibraryChat:  libraryChat,
		Store:        store,
		StoreBackend: backend,
		Metrics:      metrics,
		Logger:       logger,
	})

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Store:        store,
		StoreBackend: backend,
		Personas:     bundles,
		Readings:     readings,
		Metrics:      metrics,
		Cleanup:      store.Close,
	}, nil
}
