package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/charmbracelet/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// PagesHandler serves the static confirmation page and the health check.
type PagesHandler struct {
	success *template.Template
	logger  *log.Logger
}

func NewPagesHandler(logger *log.Logger) *PagesHandler {
	return &PagesHandler{success: templates.Lookup("success.html"), logger: logger}
}

func (h *PagesHandler) Routes() []string {
	return []string{"GET /success", "GET /healthz"}
}

func (h *PagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/healthz":
		writeText(w, http.StatusOK, "ok")
	case "/success":
		var buf bytes.Buffer
		if err := h.success.Execute(&buf, nil); err != nil {
			h.logger.Error("failed to render success page", "err", err)
			writeText(w, http.StatusInternalServerError, "internal server error")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = buf.WriteTo(w)
	default:
		http.NotFound(w, r)
	}
}
