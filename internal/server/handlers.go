package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"example.com/segyview/internal/common"
	"example.com/segyview/internal/render"
	"example.com/segyview/internal/report"
	"example.com/segyview/internal/segy"
	"example.com/segyview/internal/spec"
)

const (
	defaultTraceCount  = 100
	defaultHeaderCount = 1000
	maxRequestBody     = 1 << 20
)

type openRequest struct {
	Path        string `json:"path"`
	Fingerprint bool   `json:"fingerprint"`
}

type renderRequest struct {
	Path string `json:"path"`
	render.Config
}

type reportRequest struct {
	Path         string          `json:"path"`
	Lang         string          `json:"lang"`
	GeometryRows int             `json:"geometryRows"`
	Render       json.RawMessage `json:"render,omitempty"`
}

type reportResponse struct {
	Summary   segy.Summary  `json:"summary"`
	Artifacts []ArtifactRef `json:"artifacts"`
}

type traceHeaderResponse struct {
	Index    int            `json:"index"`
	Revision spec.Revision  `json:"revision"`
	Header   map[string]any `json:"header"`
}

type headerLine struct {
	Index  int            `json:"index"`
	Header map[string]any `json:"header,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	snap := s.metrics.Snapshot()
	resp := map[string]any{
		"status":  "ok",
		"traces":  snap.Traces,
		"bytes":   snap.Bytes,
		"renders": snap.Renders,
	}
	if path, ok := s.cache.Path(); ok {
		resp["open"] = path
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req openRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	path, err := s.resolvePath(req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	start := time.Now()
	var summary segy.Summary
	err = s.cache.With(path, func(rd *segy.Reader) error {
		summary = rd.Summary()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Fingerprint {
		sum, _, err := common.FingerprintFile(path)
		if err != nil {
			writeError(w, fmt.Errorf("fingerprint: %w", err))
			return
		}
		summary.Fingerprint = sum
	}
	s.record(common.ActivityEntry{
		Action: "open",
		Path:   path,
		Detail: summary.Revision,
		Bytes:  summary.FileSize,
		Millis: time.Since(start).Milliseconds(),
	})
	writeJSON(w, http.StatusOK, summary)
}

// handleTraces serves GET /traces (a range of decoded trace blocks) and
// GET /traces/{index} (one spec-driven header map).
func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/traces"), "/")
	if rest != "" {
		index, err := strconv.Atoi(rest)
		if err != nil {
			badRequest(w, "invalid trace index %q", rest)
			return
		}
		s.serveTraceHeader(w, r, index)
		return
	}

	q := r.URL.Query()
	path, err := s.resolvePath(q.Get("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	start, err := queryInt(q.Get("start"), 0)
	if err != nil {
		badRequest(w, "start: %v", err)
		return
	}
	count, err := queryInt(q.Get("count"), defaultTraceCount)
	if err != nil {
		badRequest(w, "count: %v", err)
		return
	}
	maxSamples, err := queryInt(q.Get("maxSamples"), 0)
	if err != nil {
		badRequest(w, "maxSamples: %v", err)
		return
	}
	var blocks []segy.TraceBlock
	err = s.cache.With(path, func(rd *segy.Reader) error {
		var err error
		blocks, err = rd.LoadTraceRange(start, count, maxSamples)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"start": start, "traces": blocks})
}

func (s *Server) serveTraceHeader(w http.ResponseWriter, r *http.Request, index int) {
	q := r.URL.Query()
	path, err := s.resolvePath(q.Get("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	var resp traceHeaderResponse
	err = s.cache.With(path, func(rd *segy.Reader) error {
		table, err := s.tableFor(rd, q.Get("revision"))
		if err != nil {
			return err
		}
		header, err := rd.TraceHeaderMap(index, table)
		if err != nil {
			return err
		}
		resp = traceHeaderResponse{Index: index, Revision: table.Revision, Header: header}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHeaders streams one NDJSON line per trace header. A failure after
// the first line is reported in-band since the status is already sent.
func (s *Server) handleHeaders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	q := r.URL.Query()
	path, err := s.resolvePath(q.Get("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	start, err := queryInt(q.Get("start"), 0)
	if err != nil {
		badRequest(w, "start: %v", err)
		return
	}
	count, err := queryInt(q.Get("count"), defaultHeaderCount)
	if err != nil {
		badRequest(w, "count: %v", err)
		return
	}

	rd, err := s.cache.Acquire(path)
	if err != nil {
		writeError(w, err)
		return
	}
	defer s.cache.Release(rd)

	total, known := rd.TotalTraces()
	if err := rd.Config().ValidateRange(start, count, total, known); err != nil {
		writeError(w, err)
		return
	}
	table, err := s.tableFor(rd, q.Get("revision"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := NewNDJSONWriter(w)
	w.WriteHeader(http.StatusOK)
	for i := start; i < start+count; i++ {
		header, err := rd.TraceHeaderMap(i, table)
		if err != nil {
			out.WriteObject(headerLine{Index: i, Error: err.Error()})
			return
		}
		if err := out.WriteObject(headerLine{Index: i, Header: header}); err != nil {
			common.Logf("headers stream %s: %v", path, err)
			return
		}
	}
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	req := renderRequest{Config: defaultRenderConfig()}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	path, err := s.resolvePath(req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	cfg := req.Config
	if cfg.Workers <= 0 {
		cfg.Workers = s.concurrency
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, err)
		return
	}

	var key uint64
	keyed := false
	if info, err := os.Stat(path); err == nil {
		if key, err = renderKey(path, info.Size(), info.ModTime(), cfg); err == nil {
			keyed = true
		}
	}
	if keyed {
		if img, ok := s.renders.get(key); ok {
			writeImage(w, img, "hit")
			return
		}
	}

	start := time.Now()
	var img *render.Image
	err = s.cache.With(path, func(rd *segy.Reader) error {
		var err error
		img, err = render.RenderFrom(rd, cfg)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	elapsed := time.Since(start)
	s.metrics.IncRender()
	if keyed {
		s.renders.put(key, img)
	}
	common.Logf("render %s %s %dx%d in %s", path, cfg.Mode, img.Width, img.Height, elapsed)
	s.record(common.ActivityEntry{
		Action: "render",
		Path:   path,
		Detail: fmt.Sprintf("%s %s %s", cfg.Mode, cfg.Colormap, cfg.Scaling),
		Bytes:  int64(len(img.Data)),
		Millis: elapsed.Milliseconds(),
	})
	writeImage(w, img, "miss")
}

func writeImage(w http.ResponseWriter, img *render.Image, cacheState string) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("X-Image-Width", strconv.Itoa(img.Width))
	w.Header().Set("X-Image-Height", strconv.Itoa(img.Height))
	w.Header().Set("X-Render-Cache", cacheState)
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}

// handleSpec serves /spec/binary and /spec/trace. Without a revision
// parameter the Rev 1 layout is returned.
func (s *Server) handleSpec(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/spec"), "/")
	if name == "" {
		http.NotFound(w, r)
		return
	}
	section, err := spec.ParseSection(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	code := uint16(0x0100)
	if raw := r.URL.Query().Get("revision"); raw != "" {
		code, err = spec.ParseRevisionCode(raw)
		if err != nil {
			badRequest(w, "revision: %v", err)
			return
		}
	}
	table, err := s.registry.Load(code)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{
		"revision": table.Revision,
		"section":  section.String(),
		"fields":   table.Fields(section),
	}
	if section == spec.SectionBinary {
		resp["size"] = table.BinaryHeader.Size
		resp["byteOffset"] = table.BinaryHeader.ByteOffset
	} else {
		resp["size"] = table.TraceHeader.Size
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req reportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	path, err := s.resolvePath(req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	lang := s.lang
	if req.Lang != "" {
		if lang, err = report.ParseLanguage(req.Lang); err != nil {
			writeError(w, err)
			return
		}
	}
	var renderCfg *render.Config
	if len(req.Render) > 0 && !bytes.Equal(bytes.TrimSpace(req.Render), []byte("null")) {
		cfg := defaultRenderConfig()
		if err := json.Unmarshal(req.Render, &cfg); err != nil {
			writeError(w, err)
			return
		}
		cfg.Workers = s.concurrency
		renderCfg = &cfg
	}

	start := time.Now()
	var survey *report.Survey
	err = s.cache.With(path, func(rd *segy.Reader) error {
		var err error
		survey, err = report.Build(rd, report.Options{
			Render:       renderCfg,
			Lang:         lang,
			GeometryRows: req.GeometryRows,
			Registry:     s.registry,
			Fingerprint:  true,
			Metrics:      s.metrics,
		})
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	base := artifactBase(path)
	if art, ok := s.getArtifact(strings.TrimSpace(req.Path)); ok {
		base = artifactBase(art.Name)
	}
	jsonPath, err := s.tempPath("report-*.json")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := report.SaveSurveyJSON(survey, jsonPath); err != nil {
		writeError(w, err)
		return
	}
	pdfPath, err := s.tempPath("report-*.pdf")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := report.SaveSurveyPDF(survey, pdfPath); err != nil {
		writeError(w, err)
		return
	}
	jsonArt, err := s.addArtifact(jsonPath, base+"-summary.json", "application/json", "report")
	if err != nil {
		writeError(w, err)
		return
	}
	pdfArt, err := s.addArtifact(pdfPath, base+"-report.pdf", "application/pdf", "report")
	if err != nil {
		writeError(w, err)
		return
	}
	s.record(common.ActivityEntry{
		Action: "report",
		Path:   path,
		Detail: string(lang),
		Bytes:  pdfArt.Size,
		Millis: time.Since(start).Milliseconds(),
	})
	writeJSON(w, http.StatusOK, reportResponse{
		Summary:   survey.Summary,
		Artifacts: []ArtifactRef{toRef(jsonArt), toRef(pdfArt)},
	})
}

func (s *Server) handleArtifactList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": s.listArtifacts()})
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if id == "" {
		s.handleArtifactList(w, r)
		return
	}
	art, ok := s.getArtifact(id)
	if !ok {
		writeError(w, fmt.Errorf("artifact %s: %w", id, errNotFound))
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		writeError(w, fmt.Errorf("open artifact: %w", err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		common.Logf("artifact %s: %v", id, err)
	}
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	entries, err := common.ReadActivityLog(s.activity.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		writeError(w, err)
		return
	}
	out := NewNDJSONWriter(w)
	w.WriteHeader(http.StatusOK)
	for _, entry := range entries {
		if err := out.WriteObject(entry); err != nil {
			return
		}
	}
}

// tableFor picks the header layout named by the revision parameter, or the
// one the file declares.
func (s *Server) tableFor(rd *segy.Reader, revision string) (*spec.Table, error) {
	code := rd.BinaryHeader().SegyRevision
	if revision != "" {
		parsed, err := spec.ParseRevisionCode(revision)
		if err != nil {
			return nil, fmt.Errorf("revision: %w", err)
		}
		code = parsed
	}
	return s.registry.Load(code)
}

// defaultRenderConfig fills the fields a request may omit.
func defaultRenderConfig() render.Config {
	return render.Config{
		Viewport: render.Viewport{Width: 800, Height: 600},
		Colormap: render.Seismic,
		Scaling:  render.PercentileScaling(0.98),
		Mode:     render.VariableDensity,
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func artifactBase(path string) string {
	name := filepath.Base(path)
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "survey"
	}
	return name
}
