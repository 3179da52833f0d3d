package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/povelc/portfolio/internal/adapters/objectstore"
	"github.com/povelc/portfolio/pkg/logger"
	"github.com/povelc/portfolio/pkg/metrics"
)

const gameFilesPrefix = "/api/game-files/"

var contentTypes = map[string]string{ //nolint:gochecknoglobals // lookup table
	".js":   "application/javascript",
	".wasm": "application/wasm",
	".data": "application/octet-stream",
	".json": "application/json",
}

var contentEncodings = map[string]string{ //nolint:gochecknoglobals // lookup table
	".gz": "gzip",
	".br": "br",
}

// fileHeaders derives Content-Type and Content-Encoding from a build file name.
// Compressed files take their type from the inner extension.
func fileHeaders(name string) (contentType, encoding string) {
	ext := strings.ToLower(path.Ext(name))
	if enc, ok := contentEncodings[ext]; ok {
		encoding = enc
		ext = strings.ToLower(path.Ext(strings.TrimSuffix(name, path.Ext(name))))
	}
	if ct, ok := contentTypes[ext]; ok {
		return ct, encoding
	}
	return "application/octet-stream", encoding
}

func validFileName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

// openAsset opens key within requestTimeout. The returned body keeps reading
// under ctx after the timer is stopped, so long downloads are not cut off.
func (s *Server) openAsset(ctx context.Context, cancel context.CancelCauseFunc, key string) (*objectstore.Object, error) {
	timer := time.AfterFunc(s.requestTimeout, func() { cancel(context.DeadlineExceeded) })
	obj, err := s.deps.Assets.Get(ctx, key)
	expired := !timer.Stop()
	if err == nil && expired {
		_ = obj.Body.Close()
		err = context.Cause(ctx)
	}
	if err != nil && errors.Is(context.Cause(ctx), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return obj, err
}

// handleGameFile streams /api/game-files/{filename} from the asset bucket.
func (s *Server) handleGameFile(w http.ResponseWriter, r *http.Request) {
	const op = "api.game_file"
	status := http.StatusOK
	defer func() { metrics.RecordAssetRequest(strconv.Itoa(status)) }()

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET")
	h.Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		h.Set("Allow", http.MethodGet)
		writeError(w, status, "Method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, gameFilesPrefix)
	if !validFileName(name) {
		status = http.StatusBadRequest
		writeError(w, status, "Filename is required")
		return
	}
	if s.deps.Assets == nil {
		status = http.StatusInternalServerError
		s.writeServerError(w, r, status, "Server configuration error", NewKind(op, ErrNotConfigured))
		return
	}

	if game := r.URL.Query().Get("gameName"); game != "" {
		s.log.Debug(r.Context(), "game file requested", logger.String("game", game), logger.String("file", name))
	}

	ctx, cancel := context.WithCancelCause(r.Context())
	defer cancel(nil)
	obj, err := s.openAsset(ctx, cancel, s.assetsPrefix+name)
	switch {
	case errors.Is(err, objectstore.ErrNotFound):
		status = http.StatusNotFound
		s.log.Info(r.Context(), "game file not found", logger.String("file", name))
		writeError(w, status, fmt.Sprintf("Game file not found: %s", name))
		return
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		s.writeServerError(w, r, status, "Timed out loading game file", Wrap(op, err))
		return
	case err != nil:
		status = http.StatusInternalServerError
		s.writeServerError(w, r, status, "Failed to load game file", Wrap(op, err))
		return
	}
	defer func() { _ = obj.Body.Close() }()

	contentType, encoding := fileHeaders(name)
	h.Set("Content-Type", contentType)
	if encoding != "" {
		h.Set("Content-Encoding", encoding)
	}
	maxAge := int(s.cacheMaxAge.Seconds())
	h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d, s-maxage=%d", maxAge, maxAge))
	if obj.Size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if obj.ETag != "" {
		h.Set("ETag", `"`+strings.Trim(obj.ETag, `"`)+`"`)
	}
	w.WriteHeader(status)

	n, err := io.Copy(w, obj.Body)
	metrics.RecordAssetBytes(n)
	if err != nil {
		s.log.Warn(r.Context(), "game file stream interrupted",
			logger.String("file", name), logger.Any("bytes", n), logger.Error(err))
	}
}
