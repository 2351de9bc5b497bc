package frontend

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jo-hoe/mealmacro/internal/backend"
	"github.com/jo-hoe/mealmacro/internal/core"
	"github.com/jo-hoe/mealmacro/internal/intake"
	"github.com/jo-hoe/mealmacro/internal/preview"
)

const (
	MainPageName = "index.html"
	panelName    = "panel"
	viewsPattern = "views/*.html"
)

//go:embed views/*.html
var templateFS embed.FS

// Template renders the embedded views for echo.
type Template struct {
	templates *template.Template
}

func (t *Template) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

func NewTemplate() *Template {
	funcs := template.FuncMap{
		"macro":     formatMacro,
		"isLoading": func(v View) bool { return v == ViewLoading },
		"isError":   func(v View) bool { return v == ViewError },
		"isResult":  func(v View) bool { return v == ViewResult },
	}
	return &Template{
		templates: template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, viewsPattern)),
	}
}

type FrontendService struct {
	coreService *core.CoreService
	sessions    *SessionManager
}

func NewFrontendService(coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		sessions: NewSessionManager(
			coreService.NewIntake,
			coreService,
			coreService.Config().SessionTTL(),
		),
	}
}

func (service *FrontendService) Sessions() *SessionManager {
	return service.sessions
}

// rootRedirectHandler redirects root path to index.html
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+MainPageName)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = NewTemplate()

	e.GET("/", service.rootRedirectHandler)
	e.GET("/"+MainPageName, service.indexHandler)

	e.POST("/htmx/upload", service.htmxUploadHandler)
	e.GET("/htmx/panel", service.htmxPanelHandler)
	e.DELETE("/htmx/image", service.htmxRemoveImageHandler)

	e.GET("/preview/:id", service.previewHandler)
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	session := service.sessions.Get(ctx)
	return ctx.Render(http.StatusOK, MainPageName, session.Panel())
}

func (service *FrontendService) htmxPanelHandler(ctx echo.Context) error {
	session := service.sessions.Get(ctx)
	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, panelName, session.Panel())
}

func (service *FrontendService) htmxUploadHandler(ctx echo.Context) error {
	session := service.sessions.Get(ctx)

	file, err := backend.ReadUploadedFile(ctx, "image")
	if err != nil {
		slog.Error("htmxUploadHandler: failed to get uploaded file",
			"status", http.StatusBadRequest, "error", err)
		return ctx.String(http.StatusBadRequest, "Failed to get uploaded file")
	}

	if _, err := session.Select(file); err != nil {
		panel := session.Panel()
		if errors.Is(err, intake.ErrUnsupportedType) {
			panel.Notice = "Only image files are supported"
			return ctx.Render(http.StatusOK, panelName, panel)
		}
		slog.Error("htmxUploadHandler: failed to select file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Name)
		return ctx.String(http.StatusInternalServerError, "Failed to process uploaded image")
	}

	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, panelName, session.Panel())
}

func (service *FrontendService) htmxRemoveImageHandler(ctx echo.Context) error {
	session := service.sessions.Get(ctx)

	if err := session.Remove(); err != nil {
		if errors.Is(err, intake.ErrProcessing) {
			return ctx.String(http.StatusConflict, "Image is still being processed")
		}
		slog.Error("htmxRemoveImageHandler: failed to remove image",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to remove image")
	}

	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, panelName, session.Panel())
}

func (service *FrontendService) previewHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	p, err := service.coreService.Previews().Get(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, preview.ErrNotFound) {
			return ctx.String(http.StatusNotFound, "Preview not available")
		}
		slog.Error("previewHandler: failed to load preview",
			"status", http.StatusInternalServerError, "preview_id", id, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load preview")
	}

	service.setNoCache(ctx)
	return ctx.Blob(http.StatusOK, p.MIMEType, p.Data)
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

// formatMacro rounds to one decimal and drops a trailing ".0".
func formatMacro(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
