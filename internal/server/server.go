// Package server exposes SEG-Y decoding and rendering over HTTP.
package server

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"example.com/segyview/internal/common"
	"example.com/segyview/internal/report"
	"example.com/segyview/internal/segy"
	"example.com/segyview/internal/spec"
)

// Server holds the shared reader cache, spec registry and the artifacts
// produced by requests.
type Server struct {
	artifacts   *ArtifactStore
	workDir     string
	uploadsDir  string
	cache       *segy.ReaderCache
	registry    *spec.Registry
	renders     *renderCache
	activity    *common.ActivityLog
	metrics     *common.Metrics
	concurrency int
	lang        report.Language
}

// Artifact is a file generated or stored by the daemon.
type Artifact struct {
	ID          string
	Path        string
	Name        string
	ContentType string
	Size        int64
	Kind        string
}

// ArtifactRef is the public representation returned in API responses.
type ArtifactRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ArtifactStore keeps track of generated artifacts for later download.
type ArtifactStore struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// NewServer creates a server with a private work directory under
// opts.StorageDir.
func NewServer(opts Options) (*Server, error) {
	registry, err := buildRegistry(opts)
	if err != nil {
		return nil, err
	}
	storageDir := opts.StorageDir
	if storageDir == "" {
		storageDir = os.TempDir()
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(storageDir, "segyd-")
	if err != nil {
		return nil, err
	}
	uploadsDir := filepath.Join(workDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	activityPath := opts.ActivityLog
	if activityPath == "" {
		activityPath = filepath.Join(workDir, "activity.jsonl")
	}
	lang := opts.Lang
	if lang == "" {
		lang = report.LangEnglish
	}
	metrics := common.NewMetrics()
	metrics.Start()

	readerOpts := []segy.Option{segy.WithMetrics(metrics)}
	if opts.MaxDecompressedBytes > 0 {
		readerOpts = append(readerOpts, segy.WithMaxDecompressedSize(opts.MaxDecompressedBytes))
	}
	s := &Server{
		artifacts:   &ArtifactStore{entries: make(map[string]Artifact)},
		workDir:     workDir,
		uploadsDir:  uploadsDir,
		cache:       segy.NewReaderCache(readerOpts...),
		registry:    registry,
		renders:     newRenderCache(opts.RenderCacheEntries),
		activity:    common.NewActivityLog(activityPath),
		metrics:     metrics,
		concurrency: concurrency,
		lang:        lang,
	}
	return s, nil
}

// Close releases the cached reader and removes the work directory.
func (s *Server) Close() error {
	if s == nil || s.workDir == "" {
		return nil
	}
	cacheErr := s.cache.Close()
	if err := os.RemoveAll(s.workDir); err != nil {
		return err
	}
	return cacheErr
}

// Metrics exposes the server's decode and render counters.
func (s *Server) Metrics() *common.Metrics {
	return s.metrics
}

func (s *Server) tempPath(pattern string) (string, error) {
	f, err := os.CreateTemp(s.workDir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func (s *Server) addArtifact(path, displayName, contentType, kind string) (Artifact, error) {
	if path == "" {
		return Artifact{}, errors.New("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	art := Artifact{
		ID:          uuid.NewString(),
		Path:        path,
		Name:        displayName,
		ContentType: contentType,
		Size:        info.Size(),
		Kind:        kind,
	}
	if art.Name == "" {
		art.Name = filepath.Base(path)
	}
	if art.ContentType == "" {
		art.ContentType = guessContentType(art.Name)
	}
	s.artifacts.mu.Lock()
	s.artifacts.entries[art.ID] = art
	s.artifacts.mu.Unlock()
	return art, nil
}

func (s *Server) getArtifact(id string) (Artifact, bool) {
	s.artifacts.mu.RLock()
	art, ok := s.artifacts.entries[id]
	s.artifacts.mu.RUnlock()
	return art, ok
}

func (s *Server) listArtifacts() []ArtifactRef {
	s.artifacts.mu.RLock()
	refs := make([]ArtifactRef, 0, len(s.artifacts.entries))
	for _, art := range s.artifacts.entries {
		refs = append(refs, toRef(art))
	}
	s.artifacts.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

// resolvePath accepts an artifact id or a filesystem path. Existence is
// checked by the reader so missing files surface as I/O errors.
func (s *Server) resolvePath(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errEmptyPath
	}
	if art, ok := s.getArtifact(token); ok {
		return art.Path, nil
	}
	return filepath.Clean(token), nil
}

// record appends to the activity log. Failures are logged, not returned.
func (s *Server) record(entry common.ActivityEntry) {
	if err := s.activity.Append(entry); err != nil {
		common.Logf("activity log: %v", err)
	}
}

func toRef(art Artifact) ArtifactRef {
	return ArtifactRef{
		ID:          art.ID,
		Name:        art.Name,
		ContentType: art.ContentType,
		Size:        art.Size,
		Kind:        art.Kind,
	}
}

func guessContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "application/json"
	case ".ndjson", ".jsonl":
		return "application/x-ndjson"
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
