package mockbackend

import (
	"io"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/echostash/echostash-automation/internal/api"
)

// ContextStoreQuota is the per-user storage limit in bytes.
const ContextStoreQuota int64 = 10 << 20

func assetView(a *assetRecord) api.ContextAsset {
	return api.ContextAsset{
		ID:          api.ID(a.id),
		Filename:    a.filename,
		ContentType: a.contentType,
		Size:        int64(len(a.content)),
		CreatedAt:   timestamp(a.createdAt),
	}
}

// usage sums the caller's stored bytes. mu must be held.
func (s *Server) usage(owner int64) (count int, size int64) {
	for _, asset := range s.state.assets {
		if asset.owner == owner {
			count++
			size += int64(len(asset.content))
		}
	}
	return count, size
}

func (s *Server) handleUploadAsset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxRequestBody); err != nil {
		badRequest(w, r, "multipart form required: %v", err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, "file part is required")
		return
	}
	defer file.Close() //nolint:errcheck
	content, err := io.ReadAll(file)
	if err != nil {
		badRequest(w, r, "read upload: %v", err)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(content)
	}
	caller := principalFrom(r.Context())

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, used := s.usage(caller.id); used+int64(len(content)) > ContextStoreQuota {
		writeError(w, r, http.StatusRequestEntityTooLarge, "context store quota exceeded")
		return
	}
	asset := &assetRecord{
		id:          uuid.NewString(),
		owner:       caller.id,
		filename:    header.Filename,
		contentType: contentType,
		content:     content,
		createdAt:   s.state.now(),
	}
	s.state.assets[asset.id] = asset
	writeJSON(w, http.StatusCreated, assetView(asset))
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	s.state.mu.Lock()
	out := []api.ContextAsset{}
	for _, asset := range s.state.assets {
		if asset.owner == caller.id {
			out = append(out, assetView(asset))
		}
	}
	s.state.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].Filename < out[j].Filename
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) ownedAsset(w http.ResponseWriter, r *http.Request) (*assetRecord, bool) {
	caller := principalFrom(r.Context())
	s.state.mu.Lock()
	asset := s.state.assets[chi.URLParam(r, "assetID")]
	s.state.mu.Unlock()
	if asset == nil || asset.owner != caller.id {
		notFound(w, r, "Asset")
		return nil, false
	}
	return asset, true
}

func (s *Server) handleAssetContent(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.ownedAsset(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", asset.contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(asset.content)
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.ownedAsset(w, r)
	if !ok {
		return
	}
	s.state.mu.Lock()
	delete(s.state.assets, asset.id)
	s.state.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAssetUsage(w http.ResponseWriter, r *http.Request) {
	caller := principalFrom(r.Context())
	s.state.mu.Lock()
	count, size := s.usage(caller.id)
	s.state.mu.Unlock()
	writeJSON(w, http.StatusOK, api.ContextStoreUsage{TotalAssets: count, TotalSize: size, MaxSize: ContextStoreQuota})
}
