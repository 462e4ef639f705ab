// Package bundle stores a set of wire-encoded recipes as one zstd file: a
// JSON header line followed by the recipes back to back.
package bundle

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"alloyforge.ai/internal/recipe"
	"alloyforge.ai/internal/recipe/wirecodec"
)

const Version = 1

type Header struct {
	Version     int    `json:"version"`
	WireVersion int    `json:"wire_version"`
	Digest      string `json:"digest,omitempty"`
	Count       int    `json:"count"`
}

// Write encodes recs to w. The header's Version, WireVersion and Count are
// filled in.
func Write(w io.Writer, h Header, recs []recipe.Recipe) error {
	h.Version = Version
	h.WireVersion = int(wirecodec.Version)
	h.Count = len(recs)

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(h)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	var buf []byte
	for _, r := range recs {
		buf = wirecodec.Append(buf[:0], r)
		if _, err := bw.Write(buf); err != nil {
			_ = enc.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Read decodes a bundle written by Write. Every recipe must resolve
// through m.
func Read(r io.Reader, m recipe.Matcher) (Header, []recipe.Recipe, error) {
	var h Header
	dec, err := zstd.NewReader(r)
	if err != nil {
		return h, nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, nil, fmt.Errorf("bundle header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, nil, fmt.Errorf("bundle header: %w", err)
	}
	if h.Version != Version {
		return h, nil, fmt.Errorf("bundle: unsupported version %d", h.Version)
	}
	if h.WireVersion != int(wirecodec.Version) {
		return h, nil, fmt.Errorf("bundle: unsupported wire version %d", h.WireVersion)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return h, nil, fmt.Errorf("bundle body: %w", err)
	}
	recs, err := wirecodec.DecodeAll(body, m)
	if err != nil {
		return h, nil, fmt.Errorf("bundle: %w", err)
	}
	if len(recs) != h.Count {
		return h, nil, fmt.Errorf("bundle: header says %d recipes, read %d", h.Count, len(recs))
	}
	return h, recs, nil
}

func WriteFile(path string, h Header, recs []recipe.Recipe) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Write(f, h, recs); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func ReadFile(path string, m recipe.Matcher) (Header, []recipe.Recipe, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer f.Close()
	return Read(f, m)
}
