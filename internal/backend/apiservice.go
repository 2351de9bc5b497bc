package backend

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/mealmacro/internal/analysis"
	"github.com/jo-hoe/mealmacro/internal/common"
	"github.com/jo-hoe/mealmacro/internal/core"
	"github.com/jo-hoe/mealmacro/internal/intake"
	"github.com/jo-hoe/mealmacro/internal/proxy"
)

const (
	TimeoutHeader = "X-Request-Timeout"

	msgNoImage           = "no image supplied"
	msgMissingCredential = "missing credential"
	msgAnalysisFailed    = "analysis failed"
	msgOpenAIFailed      = "openai request failed"
	msgServerError       = "server error"
	msgUnsupportedType   = "unsupported file type"
)

type APIService struct {
	coreService *core.CoreService
}

// AnalyzeRequest is the body of POST /api/analyze. Image is base64, with or
// without a data URL header.
type AnalyzeRequest struct {
	Image string `json:"image" validate:"required"`
}

func NewAPIService(coreService *core.CoreService) *APIService {
	return &APIService{coreService: coreService}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	e.GET("/probe", s.probeHandler)

	e.POST("/api/analyze", s.analyzeHandler)
	e.POST("/api/openai", s.openAIHandler)
	e.POST("/api/compress", s.compressHandler)
}

func (s *APIService) probeHandler(ctx echo.Context) error {
	if err := s.coreService.Previews().Ping(ctx.Request().Context()); err != nil {
		slog.Error("probeHandler: preview store unreachable", "error", err)
		return ctx.String(http.StatusServiceUnavailable, "preview store unreachable")
	}
	return ctx.String(http.StatusOK, "ok")
}

func (s *APIService) analyzeHandler(ctx echo.Context) error {
	if !s.coreService.AnalysisConfigured() {
		slog.Error("analyzeHandler: analysis credential is not set", "status", http.StatusInternalServerError)
		return jsonError(ctx, http.StatusInternalServerError, msgMissingCredential)
	}

	var req AnalyzeRequest
	if err := ctx.Bind(&req); err != nil {
		slog.Warn("analyzeHandler: failed to bind request body", "status", http.StatusBadRequest, "error", err)
		return jsonError(ctx, http.StatusBadRequest, msgNoImage)
	}
	if err := ctx.Validate(&req); err != nil {
		return jsonError(ctx, http.StatusBadRequest, msgNoImage)
	}

	estimate, err := s.coreService.Estimate(ctx.Request().Context(), req.Image, requestTimeout(ctx))
	if err != nil {
		status, msg := analysisErrorStatus(err)
		return jsonError(ctx, status, msg)
	}
	return ctx.JSON(http.StatusOK, estimate)
}

func (s *APIService) openAIHandler(ctx echo.Context) error {
	openai := s.coreService.OpenAI()
	if !openai.Configured() {
		slog.Error("openAIHandler: OPENAI_API_KEY is not set", "status", http.StatusInternalServerError)
		return jsonError(ctx, http.StatusInternalServerError, msgMissingCredential)
	}

	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		slog.Error("openAIHandler: failed to read request body", "error", err)
		return jsonError(ctx, http.StatusInternalServerError, msgServerError)
	}

	resp, err := openai.Forward(ctx.Request().Context(), body)
	if err != nil {
		var upstreamErr *proxy.UpstreamError
		switch {
		case errors.As(err, &upstreamErr):
			return ctx.JSON(upstreamErr.Status, common.ErrorResponse{Error: msgOpenAIFailed, Details: upstreamErr.Body})
		case errors.Is(err, proxy.ErrMissingCredential):
			return jsonError(ctx, http.StatusInternalServerError, msgMissingCredential)
		default:
			slog.Error("openAIHandler: request failed", "status", http.StatusInternalServerError, "error", err)
			return jsonError(ctx, http.StatusInternalServerError, msgServerError)
		}
	}
	return ctx.JSONBlob(http.StatusOK, resp)
}

func (s *APIService) compressHandler(ctx echo.Context) error {
	file, err := ReadUploadedFile(ctx, "image")
	if err != nil {
		slog.Warn("compressHandler: no uploaded file", "status", http.StatusBadRequest, "error", err)
		return jsonError(ctx, http.StatusBadRequest, msgNoImage)
	}
	if !file.IsImage() {
		return jsonError(ctx, http.StatusUnsupportedMediaType, msgUnsupportedType)
	}

	out, err := s.coreService.Compressor().Compress(ctx.Request().Context(), file)
	if err != nil {
		slog.Warn("compressHandler: compression abandoned", "error", err, "filename", file.Name)
		return jsonError(ctx, http.StatusInternalServerError, msgServerError)
	}

	ctx.Response().Header().Set("X-Original-Size", strconv.Itoa(file.Size()))
	return ctx.Blob(http.StatusOK, out.Type, out.Data)
}

// ReadUploadedFile reads the multipart file in field. The MIME type comes
// from the part header and is sniffed when absent.
func ReadUploadedFile(ctx echo.Context, field string) (intake.File, error) {
	header, err := ctx.FormFile(field)
	if err != nil {
		return intake.File{}, err
	}
	src, err := header.Open()
	if err != nil {
		return intake.File{}, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("ReadUploadedFile: failed to close uploaded file", "error", cerr, "filename", header.Filename)
		}
	}()

	data, err := io.ReadAll(src)
	if err != nil {
		return intake.File{}, err
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if semi := strings.IndexByte(mimeType, ';'); semi >= 0 {
		mimeType = strings.TrimSpace(mimeType[:semi])
	}
	return intake.File{Name: header.Filename, Type: mimeType, Data: data}, nil
}

// requestTimeout reads the per-request override in whole seconds. Zero means
// the configured default.
func requestTimeout(ctx echo.Context) time.Duration {
	raw := ctx.Request().Header.Get(TimeoutHeader)
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		slog.Warn("ignoring invalid request timeout", "header", TimeoutHeader, "value", raw)
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func analysisErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, analysis.ErrNoImage):
		return http.StatusBadRequest, msgNoImage
	case errors.Is(err, analysis.ErrMissingCredential):
		return http.StatusInternalServerError, msgMissingCredential
	default:
		return http.StatusInternalServerError, msgAnalysisFailed
	}
}

func jsonError(ctx echo.Context, status int, msg string) error {
	return ctx.JSON(status, common.ErrorResponse{Error: msg})
}
