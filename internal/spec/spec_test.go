package spec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		code uint16
		want Revision
	}{
		{0x0000, Rev0},
		{0x0001, Rev1},
		{0x0002, Rev2},
		{0x0005, Rev0},
		{0x0100, Rev1},
		{0x01FF, Rev1},
		{0x0200, Rev2},
		{0x0201, Rev21},
		{0x0202, Rev2},
		{0x0300, Rev0},
		{0xFFFF, Rev0},
	}
	for _, tc := range cases {
		if got := Resolve(tc.code); got != tc.want {
			t.Errorf("Resolve(%#04x) = %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestEmbeddedRevisionsValidate(t *testing.T) {
	if err := NewRegistry().Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadRev0(t *testing.T) {
	table := MustLoad(0)
	if table.Revision != Rev0 {
		t.Fatalf("revision = %s", table.Revision)
	}
	job, ok := table.Field(SectionBinary, "job_id")
	if !ok {
		t.Fatalf("job_id missing")
	}
	if job.ByteStart != 3201 || job.ByteEnd != 3204 || job.DataType != "int32" {
		t.Fatalf("job_id = %+v", job)
	}
	format, ok := table.Field(SectionBinary, "data_sample_format")
	if !ok {
		t.Fatalf("data_sample_format missing")
	}
	if label, _ := format.Label(1); label != "IBM Float32" {
		t.Fatalf("format label = %q", label)
	}
	if _, ok := table.Field(SectionTrace, "cdp_x"); ok {
		t.Fatalf("rev0 must not define cdp_x")
	}
	samples, _ := table.Field(SectionTrace, "num_samples")
	if samples.ByteStart != 115 || samples.ByteEnd != 116 {
		t.Fatalf("num_samples = %d-%d", samples.ByteStart, samples.ByteEnd)
	}
}

func TestRev1ExtendsRev0(t *testing.T) {
	rev0 := MustLoad(0)
	rev1 := MustLoad(0x0100)
	if len(rev1.TraceHeader.Fields) <= len(rev0.TraceHeader.Fields) {
		t.Fatalf("rev1 trace fields %d, rev0 %d", len(rev1.TraceHeader.Fields), len(rev0.TraceHeader.Fields))
	}
	cdp, ok := rev1.Field(SectionTrace, "cdp_x")
	if !ok || cdp.ByteStart != 181 {
		t.Fatalf("cdp_x = %+v", cdp)
	}
	if _, ok := rev1.Field(SectionBinary, "extended_textual_headers"); !ok {
		t.Fatalf("extended_textual_headers missing")
	}
	if rev1.BinaryHeader.ByteOffset != 3200 || rev1.TraceHeader.Size != 240 {
		t.Fatalf("inherited scalars lost: %+v %+v", rev1.BinaryHeader.ByteOffset, rev1.TraceHeader.Size)
	}
}

func TestRev21OverridesRev2(t *testing.T) {
	rev2 := MustLoad(0x0200)
	rev21 := MustLoad(0x0201)
	if rev21.Revision != Rev21 {
		t.Fatalf("revision = %s", rev21.Revision)
	}

	before, _ := rev2.Field(SectionTrace, "num_samples")
	after, _ := rev21.Field(SectionTrace, "num_samples")
	if before.DataType != "int16" || after.DataType != "uint16" {
		t.Fatalf("num_samples type rev2=%s rev2.1=%s", before.DataType, after.DataType)
	}
	if len(rev21.TraceHeader.Fields) != len(rev2.TraceHeader.Fields) {
		t.Fatalf("override must replace in place: %d vs %d fields", len(rev21.TraceHeader.Fields), len(rev2.TraceHeader.Fields))
	}
	for i, f := range rev2.TraceHeader.Fields {
		if rev21.TraceHeader.Fields[i].FieldKey != f.FieldKey {
			t.Fatalf("field %d moved: %s vs %s", i, rev21.TraceHeader.Fields[i].FieldKey, f.FieldKey)
		}
	}
	for _, key := range []string{"cdp_x", "trace_header_name", "coordinate_scaler"} {
		a, _ := rev2.Field(SectionTrace, key)
		b, _ := rev21.Field(SectionTrace, key)
		if a.ByteStart != b.ByteStart || a.ByteEnd != b.ByteEnd || a.DataType != b.DataType {
			t.Fatalf("%s changed: %+v vs %+v", key, a, b)
		}
	}
}

func TestRev2OverrideAppendsNewKey(t *testing.T) {
	rev2 := MustLoad(0x0200)
	major, _ := rev2.Field(SectionBinary, "segy_revision")
	if major.ByteStart != 3501 || major.ByteEnd != 3501 {
		t.Fatalf("segy_revision = %d-%d", major.ByteStart, major.ByteEnd)
	}
	if _, ok := rev2.Field(SectionBinary, "segy_revision_minor"); !ok {
		t.Fatalf("segy_revision_minor missing")
	}
}

func TestLoadReturnsCopies(t *testing.T) {
	reg := NewRegistry()
	a, err := reg.Load(0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a.TraceHeader.Fields[0].Name = "mutated"
	a.BinaryHeader.Fields[9].CodeMapping["1"] = "mutated"
	b, err := reg.Load(0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if b.TraceHeader.Fields[0].Name == "mutated" || b.BinaryHeader.Fields[9].CodeMapping["1"] == "mutated" {
		t.Fatalf("cached table was mutated through a returned copy")
	}
}

func writeDocs(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range docs {
		if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

const minimalBase = `{
  "version": "custom",
  "binary_header": {"size": 400, "byte_offset": 3200, "fields": [
    {"name": "Job", "field_key": "job_id", "byte_start": 3201, "byte_end": 3204, "data_type": "int32"}
  ]},
  "trace_header": {"size": 240, "fields": [
    {"name": "Seq", "field_key": "trace_seq_line", "byte_start": 1, "byte_end": 4, "data_type": "int32"}
  ]}
}`

func TestRegistryFromDir(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"rev0": minimalBase,
		"rev1": `{"extends": "rev0", "trace_header": {"fields": [
			{"name": "X", "field_key": "cdp_x", "byte_start": 181, "byte_end": 184, "data_type": "int32"}]}}`,
	})
	reg, err := NewRegistryFromDir(dir)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	table, err := reg.Load(0x0100)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if table.Version != "custom" || len(table.TraceHeader.Fields) != 2 {
		t.Fatalf("table = %+v", table)
	}
	if _, err := reg.Load(0x0200); !errors.Is(err, ErrInvalidSpec) {
		t.Fatalf("missing rev2 document: got %v", err)
	}
}

func TestRegistryRejectsBrokenDocuments(t *testing.T) {
	cases := map[string]map[string]string{
		"cycle": {
			"rev0": `{"extends": "rev1"}`,
			"rev1": `{"extends": "rev0"}`,
		},
		"base without fields": {
			"rev0": `{"version": "x", "binary_header": {"size": 400, "byte_offset": 3200}}`,
		},
		"malformed json": {
			"rev0": `{"version": `,
		},
		"duplicate key": {
			"rev0": `{"binary_header": {"size": 400, "byte_offset": 3200, "fields": [
				{"field_key": "a", "byte_start": 3201, "byte_end": 3202, "data_type": "int16"},
				{"field_key": "a", "byte_start": 3203, "byte_end": 3204, "data_type": "int16"}]},
				"trace_header": {"size": 240, "fields": [{"field_key": "b", "byte_start": 1, "byte_end": 2, "data_type": "int16"}]}}`,
		},
		"range past header": {
			"rev0": `{"binary_header": {"size": 400, "byte_offset": 3200, "fields": [
				{"field_key": "a", "byte_start": 3201, "byte_end": 3202, "data_type": "int16"}]},
				"trace_header": {"size": 240, "fields": [{"field_key": "b", "byte_start": 239, "byte_end": 242, "data_type": "int32"}]}}`,
		},
		"unknown type": {
			"rev0": `{"binary_header": {"size": 400, "byte_offset": 3200, "fields": [
				{"field_key": "a", "byte_start": 3201, "byte_end": 3202, "data_type": "int128"}]},
				"trace_header": {"size": 240, "fields": [{"field_key": "b", "byte_start": 1, "byte_end": 2, "data_type": "int16"}]}}`,
		},
	}
	for name, docs := range cases {
		t.Run(name, func(t *testing.T) {
			reg, err := NewRegistryFromDir(writeDocs(t, docs))
			if err != nil {
				t.Fatalf("registry: %v", err)
			}
			if _, err := reg.Load(0); !errors.Is(err, ErrInvalidSpec) {
				t.Fatalf("expected ErrInvalidSpec, got %v", err)
			}
		})
	}
}

func TestParseRevisionCode(t *testing.T) {
	cases := map[string]uint16{
		"0":      0,
		"1":      0x0100,
		"rev2":   0x0200,
		"2.1":    0x0201,
		"0x0201": 0x0201,
		"256":    0x0100,
	}
	for in, want := range cases {
		got, err := ParseRevisionCode(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if got != want {
			t.Errorf("%s = %#04x, want %#04x", in, got, want)
		}
	}
	if _, err := ParseRevisionCode("bogus"); err == nil {
		t.Fatalf("expected error")
	}
}
