package segy

// Summary is the JSON-facing overview of an opened file.
type Summary struct {
	Path           string        `json:"path"`
	TextualHeader  []string      `json:"textual_header"`
	BinaryHeader   *BinaryHeader `json:"binary_header"`
	TotalTraces    *int          `json:"total_traces"`
	FileSize       int64         `json:"file_size"`
	TextEncoding   TextEncoding  `json:"text_encoding"`
	ByteOrder      ByteOrder     `json:"byte_order"`
	Revision       string        `json:"revision"`
	SampleFormat   string        `json:"sample_format"`
	TraceBlockSize int           `json:"trace_block_size,omitempty"`
	Fingerprint    string        `json:"fingerprint,omitempty"`
}

// Summary describes the file. Fingerprint is left empty; callers that hash
// the input fill it in.
func (r *Reader) Summary() Summary {
	s := Summary{
		Path:           r.path,
		TextualHeader:  append([]string(nil), r.textual.Lines...),
		BinaryHeader:   r.binary,
		FileSize:       r.size,
		TextEncoding:   r.textual.Encoding,
		ByteOrder:      r.config.ByteOrder,
		Revision:       r.binary.RevisionLabel(),
		SampleFormat:   r.format.String(),
		TraceBlockSize: r.blockSize,
	}
	if r.totalOK {
		n := r.total
		s.TotalTraces = &n
	}
	return s
}
