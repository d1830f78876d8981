package httpserver

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"reelcv-backend/internal/config"
	"reelcv-backend/internal/domain"
)

var videoExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mov":  true,
}

// UploadRoutes returns a sub-router mounted at /api/uploads.
// - POST /videos      -> stores a video pitch file, returns its serving path
// - GET /{filename}   -> serves stored files from cfg.UploadDir
func UploadRoutes(cfg *config.Config) chi.Router {
	r := chi.NewRouter()

	r.Post("/videos", func(w http.ResponseWriter, r *http.Request) {
		maxBytes := int64(cfg.MaxUploadMB) << 20
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			writeError(w, domain.InvalidArg("failed to parse multipart form"))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, domain.InvalidArg("missing file field"))
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !videoExtensions[ext] {
			writeError(w, domain.InvalidArg("unsupported video format, expected mp4, webm or mov"))
			return
		}

		filename := uuid.NewString() + ext
		destPath := filepath.Join(cfg.UploadDir, filename)

		out, err := os.Create(destPath)
		if err != nil {
			writeError(w, domain.WrapError(domain.CodeInternal, "could not create file", err))
			return
		}
		defer out.Close()

		if _, err := io.Copy(out, file); err != nil {
			writeError(w, domain.WrapError(domain.CodeInternal, "could not save file", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"filename": filename,
			"url":      "/api/uploads/" + filename,
		})
	})

	r.Get("/{filename}", func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		if filename == "" {
			writeError(w, domain.InvalidArg("missing filename"))
			return
		}
		// Reject anything that could escape the upload directory.
		if filepath.Base(filename) != filename {
			writeError(w, domain.InvalidArg("invalid filename"))
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.UploadDir, filename))
	})

	return r
}
