package router

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/melosso/portway/internal/fileengine"
	"github.com/melosso/portway/internal/gwerr"
	"github.com/melosso/portway/internal/registry"
)

const maxUploadBytes = 100 << 20 // 100MB request-body ceiling, also passed to ValidateUpload as the file size limit

// handleFiles dispatches the three file sub-routes: upload, list, and
// download/delete by fileId. segments is the URL suffix after "files/",
// already split on "/".
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request, environment string, segments []string) {
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, gwerr.New(gwerr.CodeNotFound, "router.files", "", nil))
		return
	}
	endpointPath := segments[0]
	rest := segments[1:]

	def, err := s.reg.Lookup(environment, endpointPath, r.Method)
	if err != nil {
		writeError(w, err)
		return
	}
	if def.Kind != registry.KindFile {
		writeError(w, gwerr.New(gwerr.CodeNotFound, "router.files", endpointPath, nil))
		return
	}
	if _, err := s.auth.FromRequest(r, environment, scopeName(def)); err != nil {
		writeError(w, err)
		return
	}

	store, index := s.fileCollaborators(environment, def)

	switch {
	case r.Method == http.MethodPost && len(rest) == 0:
		s.handleFileUpload(w, r, def, store, index, environment)
	case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "list":
		s.handleFileList(w, r, index)
	case r.Method == http.MethodGet && len(rest) == 1:
		s.handleFileDownload(w, r, rest[0], store)
	case r.Method == http.MethodDelete && len(rest) == 1:
		s.handleFileDelete(w, r, environment, rest[0], store, index)
	default:
		writeError(w, gwerr.New(gwerr.CodeNotFound, "router.files", endpointPath, nil))
	}
}

func (s *Server) fileCollaborators(environment string, def *registry.Definition) (*fileengine.Store, *fileengine.Index) {
	s.filesMu.Lock()
	defer s.filesMu.Unlock()

	key := environment + "/" + scopeName(def)
	store, ok := s.fileStores[key]
	if !ok {
		base := def.BaseDirectory
		if base == "" {
			base = def.Name
		}
		root := filepath.Join(s.cfg.FilesRoot, environment, base)
		store = fileengine.NewStore(root, s.cfg.FileMemoryCacheMB, s.cfg.FileMemoryCacheMB > 0)
		s.fileStores[key] = store
	}
	index, ok := s.fileIdx[key]
	if !ok {
		base := def.BaseDirectory
		if base == "" {
			base = def.Name
		}
		root := filepath.Join(s.cfg.FilesRoot, environment, base)
		index = fileengine.NewIndex(root)
		s.fileIdx[key] = index
	}
	return store, index
}

func (s *Server) handleFileUpload(w http.ResponseWriter, r *http.Request, def *registry.Definition, store *fileengine.Store, index *fileengine.Index, environment string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, gwerr.New(gwerr.CodeFileTooLarge, "router.files.upload", def.Name, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, gwerr.New(gwerr.CodeNotFound, "router.files.upload", def.Name, err).WithDetail("multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, gwerr.New(gwerr.CodeFileTooLarge, "router.files.upload", def.Name, err))
		return
	}

	if err := fileengine.ValidateUpload(header.Filename, int64(len(data)), maxUploadBytes, def.AllowedExtensions, nil); err != nil {
		writeError(w, err)
		return
	}

	name := fileengine.SanitizeFileName(header.Filename)
	overwrite := r.URL.Query().Get("overwrite") == "true"
	if err := store.Upload(r.Context(), name, data, overwrite); err != nil {
		writeError(w, err)
		return
	}
	index.Add(name)

	fileID := fileengine.EncodeFileID(environment, name)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "fileId": fileID, "name": name, "size": len(data)})
}

func (s *Server) handleFileList(w http.ResponseWriter, r *http.Request, index *fileengine.Index) {
	prefix := r.URL.Query().Get("prefix")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "files": index.List(prefix)})
}

func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request, fileID string, store *fileengine.Store) {
	decoded, err := fileengine.DecodeFileID(fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := store.Download(r.Context(), decoded.RelativePath)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename=\""+strings.ReplaceAll(filepath.Base(decoded.RelativePath), "\"", "")+"\"")
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (s *Server) handleFileDelete(w http.ResponseWriter, r *http.Request, environment, fileID string, store *fileengine.Store, index *fileengine.Index) {
	decoded, err := fileengine.DecodeFileID(fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := store.Delete(r.Context(), decoded.RelativePath); err != nil {
		writeError(w, err)
		return
	}
	index.Remove(decoded.RelativePath)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
