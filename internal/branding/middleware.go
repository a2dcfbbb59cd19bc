package branding

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IndexFile is the page branded on every navigation request.
const IndexFile = "index.html"

// PageHandler serves the embedded single page application. Existing static files are
// served as-is; any other GET that accepts HTML receives index.html with the branding
// applied. Requests that match neither are passed to fallback.
type PageHandler struct {
	fsys     fs.FS
	injector *Injector
	fallback gin.HandlerFunc
	files    http.Handler
	log      *zap.Logger
}

// NewPageHandler constructs a handler over fsys.
func NewPageHandler(fsys fs.FS, injector *Injector, fallback gin.HandlerFunc) (*PageHandler, error) {
	if fsys == nil {
		return nil, errors.New("branding: filesystem is required")
	}
	if injector == nil {
		return nil, errors.New("branding: injector is required")
	}
	if _, err := fs.Stat(fsys, IndexFile); err != nil {
		return nil, fmt.Errorf("branding: %s missing: %w", IndexFile, err)
	}
	return &PageHandler{
		fsys:     fsys,
		injector: injector,
		fallback: fallback,
		files:    http.FileServer(http.FS(fsys)),
		log:      injector.log,
	}, nil
}

// Handle is the gin handler, typically mounted with NoRoute.
func (h *PageHandler) Handle(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		h.next(c)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+c.Request.URL.Path), "/")
	if name != "" && name != IndexFile {
		if info, err := fs.Stat(h.fsys, name); err == nil && !info.IsDir() {
			h.files.ServeHTTP(c.Writer, c.Request)
			c.Abort()
			return
		}
		if strings.HasPrefix(name, "api/") || path.Ext(name) != "" {
			h.next(c)
			return
		}
	}

	if !acceptsHTML(c.Request) {
		h.next(c)
		return
	}
	h.ServeIndex(c)
}

// ServeIndex renders the branded index page.
func (h *PageHandler) ServeIndex(c *gin.Context) {
	raw, err := fs.ReadFile(h.fsys, IndexFile)
	if err != nil {
		h.log.Error("read index page", zap.Error(err))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	doc, err := ParseDocument(bytes.NewReader(raw))
	if err != nil {
		h.log.Error("parse index page", zap.Error(err))
		c.Data(http.StatusOK, "text/html; charset=utf-8", raw)
		return
	}

	h.injector.Load(c.Request.Context(), doc)

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		h.log.Error("render index page", zap.Error(err))
		c.Data(http.StatusOK, "text/html; charset=utf-8", raw)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (h *PageHandler) next(c *gin.Context) {
	if h.fallback != nil {
		h.fallback(c)
		return
	}
	c.AbortWithStatus(http.StatusNotFound)
}

func acceptsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return accept == "" || strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}
