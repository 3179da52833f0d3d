package api

import (
	"net/http"
	"time"

	"github.com/povelc/portfolio/internal/domain/types"
	"github.com/povelc/portfolio/pkg/logger"
)

const storageListLimit = 50

type storageFile struct {
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified"`
}

type storageCheckResponse struct {
	Success   bool          `json:"success"`
	Bucket    string        `json:"bucket"`
	FileCount int           `json:"fileCount"`
	Files     []storageFile `json:"files"`
	Message   string        `json:"message"`
}

// handleStorageCheck lists the first objects of the asset bucket. Privileged.
func (s *Server) handleStorageCheck(w http.ResponseWriter, r *http.Request) {
	const op = "api.storage_check"
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.authorized(w, r) {
		return
	}
	if s.deps.Assets == nil {
		s.writeServerError(w, r, http.StatusInternalServerError, "Server configuration error", NewKind(op, ErrNotConfigured))
		return
	}

	objs, err := s.deps.Assets.List(r.Context(), "", storageListLimit)
	if err != nil {
		s.writeServerError(w, r, http.StatusInternalServerError, "Storage check failed", Wrap(op, err))
		return
	}
	files := make([]storageFile, 0, len(objs))
	for _, o := range objs {
		files = append(files, storageFile{Key: o.Key, Size: o.Size, LastModified: formatModified(o.LastModified)})
	}
	s.log.Info(r.Context(), "storage check", logger.String("bucket", s.deps.Assets.Bucket()), logger.Int("files", len(files)))
	writeJSON(w, http.StatusOK, storageCheckResponse{
		Success:   true,
		Bucket:    s.deps.Assets.Bucket(),
		FileCount: len(files),
		Files:     files,
		Message:   "Storage connection successful",
	})
}

func formatModified(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return types.FormatTime(t)
}
