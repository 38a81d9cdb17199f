package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"example.com/segyview/internal/common"
)

const maxUploadMemory = 512 << 20

// handleUpload stores multipart files as artifacts. The returned ids can be
// passed wherever a path is accepted.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		badRequest(w, "parse multipart: %v", err)
		return
	}
	if r.MultipartForm == nil {
		badRequest(w, "no files provided")
		return
	}
	defer r.MultipartForm.RemoveAll()
	var refs []ArtifactRef
	for _, files := range r.MultipartForm.File {
		for _, fh := range files {
			ref, err := s.saveUploadedFile(fh)
			if err != nil {
				badRequest(w, "save upload %s: %v", fh.Filename, err)
				return
			}
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		badRequest(w, "no files uploaded")
		return
	}
	resp := struct {
		Files []ArtifactRef `json:"files"`
	}{Files: refs}
	writeJSON(w, http.StatusOK, resp)
}

// saveUploadedFile keeps the original extension so compressed inputs are
// still recognised by suffix.
func (s *Server) saveUploadedFile(fh *multipart.FileHeader) (ArtifactRef, error) {
	if fh == nil {
		return ArtifactRef{}, fmt.Errorf("nil file header")
	}
	src, err := fh.Open()
	if err != nil {
		return ArtifactRef{}, err
	}
	defer src.Close()
	ext := filepath.Ext(fh.Filename)
	if inner := filepath.Ext(fh.Filename[:len(fh.Filename)-len(ext)]); inner != "" && ext != "" {
		ext = inner + ext
	}
	pattern := "upload-*"
	if ext != "" {
		pattern = fmt.Sprintf("upload-*%s", ext)
	}
	dest, err := os.CreateTemp(s.uploadsDir, pattern)
	if err != nil {
		return ArtifactRef{}, err
	}
	n, err := io.Copy(dest, src)
	if err != nil {
		dest.Close()
		os.Remove(dest.Name())
		return ArtifactRef{}, err
	}
	dest.Close()
	art, err := s.addArtifact(dest.Name(), filepath.Base(fh.Filename), "", "upload")
	if err != nil {
		return ArtifactRef{}, err
	}
	s.record(common.ActivityEntry{Action: "upload", Path: art.Path, Detail: art.Name, Bytes: n})
	return toRef(art), nil
}
