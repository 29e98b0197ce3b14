package handlers

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/AnshRaj112/globalchat/internal/services"
)

// objectCSP keeps an object from running script or loading anything even
// when opened directly on the page's origin.
const objectCSP = "sandbox; default-src 'none'; img-src 'self' data:; media-src 'self'; style-src 'unsafe-inline'"

// ObjectSource reads stored objects back by reference.
type ObjectSource interface {
	Open(ref string) (contentType string, data []byte, err error)
}

// ObjectHandler serves objects written to the embedded store at /objects/*.
// Only images and videos are served inline; anything else is a download.
type ObjectHandler struct {
	Source ObjectSource
	Logger zerolog.Logger
}

// inlineType returns the media type to serve ref's content inline, or ""
// when it must be downloaded instead.
func inlineType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	if strings.HasPrefix(mt, "image/") || strings.HasPrefix(mt, "video/") {
		return mt
	}
	return ""
}

// objectRef is the wildcard of the route. chi matches on the escaped path
// when the request carries one, so the wildcard is unescaped only then.
func objectRef(r *http.Request) (string, error) {
	ref := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return ref, nil
	}
	return url.PathUnescape(ref)
}

func (h *ObjectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ref, err := objectRef(r)
	if err != nil || ref == "" {
		http.NotFound(w, r)
		return
	}
	ct, data, err := h.Source.Open(ref)
	if errors.Is(err, services.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.Logger.Error().Err(err).Str("ref", ref).Msg("read object failed")
		http.Error(w, "failed to read object", http.StatusInternalServerError)
		return
	}

	hdr := w.Header()
	if mt := inlineType(ct); mt != "" {
		hdr.Set("Content-Type", mt)
	} else {
		hdr.Set("Content-Type", "application/octet-stream")
		hdr.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(ref)}))
	}
	hdr.Set("Content-Security-Policy", objectCSP)
	hdr.Set("X-Content-Type-Options", "nosniff")
	hdr.Set("Content-Length", strconv.Itoa(len(data)))
	hdr.Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(data)
}
