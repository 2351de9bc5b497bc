package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jo-hoe/mealmacro/internal/analysis"
	"github.com/jo-hoe/mealmacro/internal/intake"
	"github.com/jo-hoe/mealmacro/internal/preview"
	"github.com/jo-hoe/mealmacro/internal/proxy"
)

// CoreService owns the long-lived dependencies shared by the API and the page handlers.
type CoreService struct {
	config     *ServiceConfig
	previews   preview.Store
	compressor *intake.Compressor
	analysis   *analysis.Service
	openai     *proxy.OpenAIProxy
}

func NewCoreService(config *ServiceConfig) (*CoreService, error) {
	previews, err := preview.NewStore(config.Preview.Type, config.Preview.ConnectionString, config.PreviewTTL())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize preview store: %w", err)
	}

	compressor, err := intake.NewCompressor(intake.CompressorParams{
		ThresholdBytes: config.Intake.Threshold(),
		MaxWidth:       config.Intake.MaxWidth,
		Quality:        config.Intake.Quality,
	})
	if err != nil {
		_ = previews.Close()
		return nil, fmt.Errorf("failed to initialize compressor: %w", err)
	}

	model, err := analysis.NewModel(
		config.Analysis.Provider,
		config.Analysis.Model,
		config.Credentials.GoogleAPIKey,
		config.Credentials.OpenAIAPIKey,
		config.OpenAI.BaseURL,
	)
	if err != nil {
		_ = previews.Close()
		return nil, fmt.Errorf("failed to initialize analysis model: %w", err)
	}
	if !model.Configured() {
		slog.Warn("CoreService: analysis credential missing, /api/analyze will fail",
			"provider", config.Analysis.Provider)
	}

	service := &CoreService{
		config:     config,
		previews:   previews,
		compressor: compressor,
		analysis: analysis.NewService(model, analysis.PromptParams{
			Language:         config.Analysis.Language,
			UnrecognizedName: config.Analysis.UnrecognizedName,
		}),
		openai: proxy.NewOpenAIProxy(
			config.Credentials.OpenAIAPIKey,
			config.OpenAI.Endpoint,
			config.OpenAI.Model,
			&http.Client{Timeout: config.AnalysisTimeout()},
		),
	}
	slog.Info("CoreService: initialized",
		"preview_store", config.Preview.Type,
		"provider", config.Analysis.Provider,
		"model", model.Name())
	return service, nil
}

// WithModel replaces the analysis model. Used to plug in alternative providers.
func (service *CoreService) WithModel(model analysis.Model) *CoreService {
	service.analysis = analysis.NewService(model, analysis.PromptParams{
		Language:         service.config.Analysis.Language,
		UnrecognizedName: service.config.Analysis.UnrecognizedName,
	})
	return service
}

func (service *CoreService) Config() *ServiceConfig {
	return service.config
}

func (service *CoreService) Previews() preview.Store {
	return service.previews
}

func (service *CoreService) Compressor() *intake.Compressor {
	return service.compressor
}

func (service *CoreService) OpenAI() *proxy.OpenAIProxy {
	return service.openai
}

func (service *CoreService) AnalysisConfigured() bool {
	return service.analysis.Configured()
}

// Estimate runs one analysis bounded by timeout. A non-positive timeout uses
// the configured default.
func (service *CoreService) Estimate(ctx context.Context, payload string, timeout time.Duration) (analysis.MacroEstimate, error) {
	if timeout <= 0 {
		timeout = service.config.AnalysisTimeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return service.analysis.Estimate(ctx, payload)
}

// NewIntake creates the intake for one user session.
func (service *CoreService) NewIntake(onFileChange func(*intake.File)) *intake.Intake {
	return intake.New(service.compressor, service.previews, onFileChange)
}

func (service *CoreService) Close() error {
	if err := service.previews.Close(); err != nil {
		return fmt.Errorf("failed to close preview store: %w", err)
	}
	return nil
}
