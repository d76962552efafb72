package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"etwtap/internal/event"
)

// JSONL writes one JSON object per line, optionally inside a zstd stream.
type JSONL struct {
	file *os.File
	zw   *zstd.Encoder
	buf  *bufio.Writer
	enc  *json.Encoder
}

func NewJSONL(path string, compress bool) (*JSONL, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	j := &JSONL{file: f}

	var w io.Writer = f
	if compress {
		zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		j.zw = zw
		w = zw
	}
	j.buf = bufio.NewWriterSize(w, 64*1024)
	j.enc = json.NewEncoder(j.buf)
	return j, nil
}

// Write encodes ev followed by a newline.
func (j *JSONL) Write(ev *event.Event) error {
	return j.enc.Encode(ev)
}

func (j *JSONL) Close() error {
	errs := []error{j.buf.Flush()}
	if j.zw != nil {
		errs = append(errs, j.zw.Close())
	}
	errs = append(errs, j.file.Close())
	return errors.Join(errs...)
}

// ReadJSONL decodes every event in a file written by JSONL. Compressed files
// are detected by their zstd magic number.
func ReadJSONL(path string) ([]*event.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, _ := br.Peek(4); len(magic) == 4 &&
		magic[0] == 0x28 && magic[1] == 0xb5 && magic[2] == 0x2f && magic[3] == 0xfd {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}

	var out []*event.Event
	dec := json.NewDecoder(r)
	for {
		var ev event.Event
		if err := dec.Decode(&ev); err == io.EOF {
			return out, nil
		} else if err != nil {
			return out, fmt.Errorf("decoding event %d: %w", len(out)+1, err)
		}
		out = append(out, &ev)
	}
}
