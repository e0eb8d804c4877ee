package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/doc-sanitizer/internal/filestore"
	"github.com/raaihank/doc-sanitizer/internal/profile"
	"go.uber.org/zap"
)

// multipart overhead allowed on top of the file size limit
const formOverhead = 1 << 20

// UploadResponse is returned by POST /upload
type UploadResponse struct {
	FileID    string    `json:"file_id"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expires_at"`
	Message   string    `json:"message"`
}

// FileInfo describes a stored upload
type FileInfo struct {
	FileID    string    `json:"file_id"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) fileInfo(f filestore.StoredFile) FileInfo {
	return FileInfo{
		FileID:    f.ID,
		Filename:  f.OriginalFilename,
		Size:      f.Size,
		CreatedAt: f.CreatedAt,
		ExpiresAt: f.ExpiresAt(s.app.Files().TTL()),
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   "doc-sanitizer",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":                 "doc-sanitizer",
		"version":              Version,
		"model":                s.app.Model(),
		"upstream":             s.config.Upstream.Ollama,
		"file_ttl_seconds":     int(s.app.Files().TTL().Seconds()),
		"max_upload_bytes":     s.app.Extractors().MaxSize(),
		"supported_extensions": s.app.Extractors().Extensions(),
		"files_stored":         len(s.app.Files().List()),
		"cache_enabled":        s.config.Cache.Enabled,
		"rate_limit_enabled":   s.limiter != nil,
		"websocket_enabled":    s.wsHub != nil,
	}
	if s.wsHub != nil {
		info["websocket_clients"] = s.wsHub.ClientCount()
	}
	writeJSON(w, http.StatusOK, info)
}

// handleUpload stores a multipart "file" field and returns its id
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := s.logger.WithRequestID(requestID(r.Context()))
	maxSize := s.app.Extractors().MaxSize()

	r.Body = http.MaxBytesReader(w, r.Body, maxSize+formOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file too large, maximum size: %dMB", maxSize/(1024*1024)))
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	if !s.app.Extractors().Supports(name) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file type %q not supported, allowed: %s",
			strings.ToLower(filepath.Ext(name)), strings.Join(s.app.Extractors().Extensions(), ", ")))
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		log.Error("Failed to read upload", zap.Error(err))
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if int64(len(content)) > maxSize {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file too large, maximum size: %dMB", maxSize/(1024*1024)))
		return
	}

	stored, err := s.app.Files().Save(content, name)
	if err != nil {
		log.Error("Failed to store upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	log.Info("File uploaded",
		zap.String("file_id", stored.ID),
		zap.String("filename", stored.OriginalFilename),
		zap.Int64("size", stored.Size),
	)

	ttl := s.app.Files().TTL()
	writeJSON(w, http.StatusCreated, UploadResponse{
		FileID:    stored.ID,
		Filename:  stored.OriginalFilename,
		Size:      stored.Size,
		ExpiresAt: stored.ExpiresAt(ttl),
		Message: fmt.Sprintf("File uploaded. Use this file_id with the sanitize_document tool. The file is deleted after %s.",
			ttl.Round(time.Second)),
	})
}

// handleListFiles lists live uploads
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files := s.app.Files().List()
	out := make([]FileInfo, len(files))
	for i, f := range files {
		out[i] = s.fileInfo(f)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": out, "count": len(out)})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, ok := s.app.Files().Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, s.fileInfo(*f))
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.app.Files().Delete(id) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("File %s deleted", id)})
}

// handleDownload returns the stored bytes as an attachment
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	f, ok := s.app.Files().Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	content, err := s.app.Files().Read(id)
	if errors.Is(err, filestore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		s.logger.WithRequestID(requestID(r.Context())).Error("Failed to read stored file",
			zap.String("file_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(f.OriginalFilename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.OriginalFilename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.app.Profiles().List()
	if err != nil {
		s.writeProfileError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": profiles, "count": len(profiles)})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.Profiles().Get(profile.ParseRef(mux.Vars(r)["ref"]))
	if err != nil {
		s.writeProfileError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) writeProfileError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, profile.ErrCorruptStore):
		s.logger.WithRequestID(requestID(r.Context())).Error("Profile store unreadable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.WithRequestID(requestID(r.Context())).Error("Profile lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "profile lookup failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
