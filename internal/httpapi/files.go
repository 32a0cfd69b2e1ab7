package httpapi

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cathedral/cathedral/internal/projectfile"
)

// uploadFileRequest is the JSON upload form. PDF content is base64.
type uploadFileRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	files := p.Files.List(r.Context())
	out := make([]projectfile.Summary, 0, len(files))
	for _, f := range files {
		out = append(out, f.Summary())
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	f, err := p.Files.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	up, err := readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}
	f, err := p.Files.Add(r.Context(), up)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, f.Summary())
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	ok, err := p.Files.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "project file not found")
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

func readUpload(r *http.Request) (projectfile.Upload, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return readMultipartUpload(r)
	}
	var req uploadFileRequest
	if err := decodeJSON(r, &req); err != nil {
		return projectfile.Upload{}, err
	}
	up := projectfile.Upload{
		Name: req.Name,
		Type: strings.ToLower(strings.TrimSpace(req.Type)),
		Data: []byte(req.Content),
	}
	if up.Type == "" {
		up.Type = projectfile.DetectType(req.Name, "")
	}
	if up.Type == projectfile.TypePDF {
		data, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			return projectfile.Upload{}, err
		}
		up.Data = data
	}
	return up, nil
}

func readMultipartUpload(r *http.Request) (projectfile.Upload, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return projectfile.Upload{}, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return projectfile.Upload{}, err
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = header.Filename
	}
	return projectfile.Upload{
		Name:        name,
		ContentType: header.Header.Get("Content-Type"),
		Type:        strings.ToLower(strings.TrimSpace(r.FormValue("type"))),
		Data:        data,
	}, nil
}
