package spec

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
)

//go:embed docs/*.json
var embedded embed.FS

// Document is one specification document as stored on disk: either a full
// base table or a patch that extends a parent document.
type Document struct {
	Extends      string        `json:"extends,omitempty"`
	Version      string        `json:"version,omitempty"`
	Reference    string        `json:"reference,omitempty"`
	BinaryHeader *SectionPatch `json:"binary_header,omitempty"`
	TraceHeader  *SectionPatch `json:"trace_header,omitempty"`
}

// SectionPatch carries scalar replacements, appended fields and keyed
// overrides for one header section.
type SectionPatch struct {
	Size       *int              `json:"size,omitempty"`
	ByteOffset *int              `json:"byte_offset,omitempty"`
	Fields     []HeaderFieldSpec `json:"fields,omitempty"`
	Overrides  []HeaderFieldSpec `json:"overrides,omitempty"`
}

// ParseDocument decodes a document without resolving its parents.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	return &doc, nil
}

// Registry resolves and caches revision tables from a set of documents.
type Registry struct {
	fsys   fs.FS
	dir    string
	mu     sync.Mutex
	tables map[Revision]*Table
}

// NewRegistry returns a registry over the embedded documents.
func NewRegistry() *Registry {
	return &Registry{fsys: embedded, dir: "docs", tables: make(map[Revision]*Table)}
}

// NewRegistryFromDir returns a registry over rev0.json, rev1.json,
// rev2.json and rev2_1.json in dir.
func NewRegistryFromDir(dir string) (*Registry, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("empty spec directory")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("spec path %s is not a directory", dir)
	}
	return &Registry{fsys: os.DirFS(dir), dir: ".", tables: make(map[Revision]*Table)}, nil
}

var defaultRegistry = NewRegistry()

// Load returns the field table for a binary header revision code using the
// embedded documents.
func Load(code uint16) (*Table, error) {
	return defaultRegistry.Load(code)
}

// MustLoad is Load for callers that treat a broken document set as fatal.
func MustLoad(code uint16) *Table {
	t, err := Load(code)
	if err != nil {
		panic(err)
	}
	return t
}

// Load resolves code to a revision and returns a copy of its table.
func (r *Registry) Load(code uint16) (*Table, error) {
	return r.LoadRevision(Resolve(code))
}

// LoadRevision returns a copy of the table for rev, materializing and
// caching it on first use.
func (r *Registry) LoadRevision(rev Revision) (*Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tables[rev]; ok {
		return t.clone(), nil
	}
	t, err := r.materialize(rev.Document(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rev, err)
	}
	t.Revision = rev
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", rev, err)
	}
	r.tables[rev] = t
	return t.clone(), nil
}

// Validate materializes every revision, failing on the first broken one.
func (r *Registry) Validate() error {
	for rev := Rev0; rev <= Rev21; rev++ {
		if _, err := r.LoadRevision(rev); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) readDocument(name string) (*Document, error) {
	data, err := fs.ReadFile(r.fsys, path.Join(r.dir, name+".json"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSpec, name, err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return doc, nil
}

// materialize resolves name and its extends chain into a table. visiting
// tracks the chain to reject cycles.
func (r *Registry) materialize(name string, visiting []string) (*Table, error) {
	for _, v := range visiting {
		if v == name {
			return nil, fmt.Errorf("%w: extends cycle %s -> %s", ErrInvalidSpec, strings.Join(visiting, " -> "), name)
		}
	}
	doc, err := r.readDocument(name)
	if err != nil {
		return nil, err
	}
	if doc.Extends == "" {
		return baseTable(name, doc)
	}
	parent, err := r.materialize(doc.Extends, append(visiting, name))
	if err != nil {
		return nil, err
	}
	return Merge(parent, doc), nil
}

func baseTable(name string, doc *Document) (*Table, error) {
	if doc.BinaryHeader == nil || len(doc.BinaryHeader.Fields) == 0 {
		return nil, fmt.Errorf("%w: %s: base document has no binary_header fields", ErrInvalidSpec, name)
	}
	if doc.TraceHeader == nil || len(doc.TraceHeader.Fields) == 0 {
		return nil, fmt.Errorf("%w: %s: base document has no trace_header fields", ErrInvalidSpec, name)
	}
	if doc.BinaryHeader.Size == nil || doc.BinaryHeader.ByteOffset == nil || doc.TraceHeader.Size == nil {
		return nil, fmt.Errorf("%w: %s: base document is missing section sizes", ErrInvalidSpec, name)
	}
	return Merge(&Table{}, doc), nil
}

// Merge applies doc on top of parent and returns the result; parent is not
// modified. Scalars replace, fields append, overrides replace by field key
// or append when the key is new.
func Merge(parent *Table, doc *Document) *Table {
	out := parent.clone()
	if doc.Version != "" {
		out.Version = doc.Version
	}
	if doc.Reference != "" {
		out.Reference = doc.Reference
	}
	if p := doc.BinaryHeader; p != nil {
		if p.Size != nil {
			out.BinaryHeader.Size = *p.Size
		}
		if p.ByteOffset != nil {
			out.BinaryHeader.ByteOffset = *p.ByteOffset
		}
		out.BinaryHeader.Fields = applyPatch(out.BinaryHeader.Fields, p)
	}
	if p := doc.TraceHeader; p != nil {
		if p.Size != nil {
			out.TraceHeader.Size = *p.Size
		}
		out.TraceHeader.Fields = applyPatch(out.TraceHeader.Fields, p)
	}
	return out
}

func applyPatch(fields []HeaderFieldSpec, p *SectionPatch) []HeaderFieldSpec {
	fields = append(fields, cloneFields(p.Fields)...)
	for _, o := range cloneFields(p.Overrides) {
		replaced := false
		for i := range fields {
			if fields[i].FieldKey == o.FieldKey {
				fields[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			fields = append(fields, o)
		}
	}
	return fields
}
