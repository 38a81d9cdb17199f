package common

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.00 KiB"},
		{1536, "1.50 KiB"},
		{5 << 20, "5.00 MiB"},
		{3 << 30, "3.00 GiB"},
	}
	for _, tc := range cases {
		if got := FormatBytes(tc.in); got != tc.want {
			t.Fatalf("FormatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	if s := m.Snapshot(); s.Duration != 0 || s.ThroughputBytesPerSecond() != 0 {
		t.Fatalf("unstarted metrics report %+v", s)
	}
	m.Start()
	m.AddTraces(3, 3000)
	m.AddTraces(0, 100)
	m.AddBytes(600)
	m.AddBytes(-5)
	m.IncRender()
	m.SetTotalBytes(7200)
	time.Sleep(2 * time.Millisecond)
	m.Stop()

	s := m.Snapshot()
	if s.Traces != 3 || s.Bytes != 3600 || s.Renders != 1 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if s.Completion() != 0.5 {
		t.Fatalf("completion = %v, want 0.5", s.Completion())
	}
	if s.Duration <= 0 || s.TracesPerSecond() <= 0 {
		t.Fatalf("expected positive rates, got %+v", s)
	}
	if again := m.Snapshot(); again.Duration != s.Duration {
		t.Fatalf("duration changed after Stop: %v vs %v", again.Duration, s.Duration)
	}
	if line := formatProgressLine(s); !strings.HasPrefix(line, "Progress:  50.00%") {
		t.Fatalf("progress line %q", line)
	}
}

func TestProgressPrinterClearsLine(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.AddTraces(1, 10)
	var buf bytes.Buffer
	stop := StartProgressPrinter(&buf, m, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	stop()
	out := buf.String()
	if !strings.Contains(out, "Processed:") || !strings.HasSuffix(out, "\r\n") {
		t.Fatalf("unexpected progress output %q", out)
	}
	StartProgressPrinter(nil, m, 0)()
}

func TestFingerprintFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, []byte("segy"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sum, n, err := FingerprintFile(path)
	if err != nil {
		t.Fatalf("FingerprintFile: %v", err)
	}
	if n != 4 || len(sum) != 64 {
		t.Fatalf("got %q over %d bytes", sum, n)
	}
	h := NewHasher()
	h.Write([]byte("se"))
	h.Write([]byte("gy"))
	if h.Sum() != sum {
		t.Fatalf("incremental digest %s differs from %s", h.Sum(), sum)
	}
	if ShortFingerprint(sum) != sum[:16] || ShortFingerprint("abc") != "abc" {
		t.Fatalf("ShortFingerprint trimmed incorrectly")
	}
	if _, _, err := FingerprintFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestActivityLogAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "activity.jsonl")
	log := NewActivityLog(path)
	if log.Path() != path {
		t.Fatalf("path = %q", log.Path())
	}
	if err := log.Append(ActivityEntry{Path: "x.sgy"}); err == nil {
		t.Fatalf("expected error for entry without action")
	}
	if err := log.Append(ActivityEntry{Action: "open", Path: "x.sgy", Bytes: 3920}); err != nil {
		t.Fatalf("append open: %v", err)
	}
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := log.Append(ActivityEntry{Action: "render", Path: "x.sgy", Millis: 12, Ts: ts}); err != nil {
		t.Fatalf("append render: %v", err)
	}

	entries, err := ReadActivityLog(path)
	if err != nil {
		t.Fatalf("ReadActivityLog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].Action != "open" || entries[0].Bytes != 3920 || entries[0].Ts.IsZero() {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Action != "render" || !entries[1].Ts.Equal(ts) {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}

	var nilLog *ActivityLog
	if nilLog.Path() != "" || nilLog.Append(ActivityEntry{Action: "x"}) == nil {
		t.Fatalf("nil log should be inert")
	}
}

func TestReadActivityLogRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.jsonl")
	if err := os.WriteFile(path, []byte("{\"action\":\"open\"}\n\nnot json\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadActivityLog(path); err == nil || !strings.Contains(err.Error(), "decode activity entry") {
		t.Fatalf("expected decode error, got %v", err)
	}
}
