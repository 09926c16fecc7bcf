package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/credence/internal/cache"
	"github.com/ppiankov/credence/internal/domain"
	"github.com/ppiankov/credence/internal/llm"
	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/pipeline"
	"github.com/ppiankov/credence/internal/store"
)

// app holds the components shared by the scoring commands
type app struct {
	cfg      *model.Config
	packs    *domain.Registry
	pipeline *pipeline.Pipeline
	store    *store.Store
	closers  []func() error
}

type appOptions struct {
	record  bool // Open the history store and record every assessment
	explain bool // Attach the configured LLM explainer
	noCache bool
}

// loadPacks builds the registry from the built-ins plus the configured directory
func loadPacks(cfg *model.Config) (*domain.Registry, error) {
	packs, err := domain.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("load built-in packs: %w", err)
	}
	if cfg.Domains.Dir != "" {
		n, err := packs.LoadDir(cfg.Domains.Dir)
		if err != nil {
			return nil, fmt.Errorf("load packs from %s: %w", cfg.Domains.Dir, err)
		}
		logger.Debug("loaded domain packs", zap.String("dir", cfg.Domains.Dir), zap.Int("count", n))
	}
	if cfg.Domains.Default != "" {
		if err := packs.SetFallback(cfg.Domains.Default); err != nil {
			return nil, err
		}
	}
	return packs, nil
}

func newApp(ctx context.Context, cfg *model.Config, opts appOptions) (*app, error) {
	packs, err := loadPacks(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, packs: packs}
	pipelineOpts := []pipeline.Option{pipeline.WithLogger(logger)}

	if cfg.Cache.Enabled && !opts.noCache {
		c, err := cache.New(cfg.Cache)
		if err != nil {
			return nil, err
		}
		if rc, ok := c.(*cache.RedisCache); ok {
			a.closers = append(a.closers, rc.Close)
		}
		pipelineOpts = append(pipelineOpts, pipeline.WithCache(c))
	}

	if opts.record {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = st
		a.closers = append(a.closers, st.Close)
		pipelineOpts = append(pipelineOpts, pipeline.WithRecorder(st))
	}

	if opts.explain {
		explainer, err := newExplainer(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		if explainer != nil {
			pipelineOpts = append(pipelineOpts, pipeline.WithExplainer(explainer))
		}
	}

	a.pipeline = pipeline.NewPipeline(cfg, packs, pipelineOpts...)
	return a, nil
}

// newExplainer returns nil when no provider is configured
func newExplainer(ctx context.Context, cfg *model.Config) (*llm.Explainer, error) {
	llmCfg := llm.ConfigFromModel(cfg.LLM, cfg.HTTP)
	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("LLM provider: %w", err)
	}
	if provider == nil {
		logger.Warn("explanations requested but no llm.provider is configured")
		return nil, nil
	}
	if verbose && !provider.IsAvailable(ctx) {
		logger.Warn("LLM provider did not answer the availability check", zap.String("provider", provider.Name()))
	}
	return llm.NewExplainer(provider, llmCfg, logger), nil
}

// Close releases the store and shared cache
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
