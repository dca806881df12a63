package bundle

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
)

// Magic bytes identify bundle files.
var magicBytes = []byte("IWSNAPBN")

const (
	checksumSize  = 16 // murmur3-128
	headerVersion = 1

	// maxSectionSize bounds header and record sections read from disk.
	maxSectionSize = 256 << 20
)

var (
	ErrInvalidMagic     = errors.New("bundle: invalid magic bytes")
	ErrChecksumMismatch = errors.New("bundle: checksum mismatch")
	ErrUnsupported      = errors.New("bundle: unsupported version")
	ErrNotFound         = errors.New("bundle: not found")
)

// Meta describes what a bundle holds.
type Meta struct {
	Project    domain.ProjectKey `json:"project"`
	DocumentID string            `json:"document_id,omitempty"`
	CreatedAt  time.Time         `json:"-"`
}

type bundleHeader struct {
	Version     int    `json:"version"`
	CreatedAt   int64  `json:"created_at"`
	Project     string `json:"project"`
	DocumentID  string `json:"document_id,omitempty"`
	RecordCount int    `json:"record_count"`
}

// Bundle is a decoded bundle.
type Bundle struct {
	Meta     Meta
	Records  []*domain.SnapshotRecord
	Checksum string
}

// Write encodes recs as a bundle onto w and returns the hex checksum.
//
// Layout:
//
//	[magic:8 "IWSNAPBN"]
//	[HeaderLen:4][HeaderJSON:HeaderLen]
//	[DataLen:4][Data:DataLen]   (JSON snapshot records)
//	[checksum:16 murmur3-128 of all bytes above]
func Write(w io.Writer, meta Meta, recs []*domain.SnapshotRecord) (string, error) {
	if recs == nil {
		recs = []*domain.SnapshotRecord{}
	}
	createdAt := meta.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	hash := murmur3.New128()
	writer := io.MultiWriter(w, hash)

	if _, err := writer.Write(magicBytes); err != nil {
		return "", fmt.Errorf("bundle: write magic: %w", err)
	}

	hdrJSON, err := json.Marshal(bundleHeader{
		Version:     headerVersion,
		CreatedAt:   createdAt.UnixMilli(),
		Project:     meta.Project.String(),
		DocumentID:  meta.DocumentID,
		RecordCount: len(recs),
	})
	if err != nil {
		return "", fmt.Errorf("bundle: marshal header: %w", err)
	}
	if err := writeSection(writer, hdrJSON); err != nil {
		return "", fmt.Errorf("bundle: write header: %w", err)
	}

	data, err := json.Marshal(recs)
	if err != nil {
		return "", fmt.Errorf("bundle: marshal records: %w", err)
	}
	if err := writeSection(writer, data); err != nil {
		return "", fmt.Errorf("bundle: write records: %w", err)
	}

	// Trailer is not included in the hash.
	sum := hash.Sum(nil)
	if _, err := w.Write(sum); err != nil {
		return "", fmt.Errorf("bundle: write checksum: %w", err)
	}
	return hex.EncodeToString(sum), nil
}

func writeSection(w io.Writer, data []byte) error {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))
	if _, err := w.Write(n[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// Read decodes a bundle, verifying its checksum before parsing.
func Read(r io.Reader) (*Bundle, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("bundle: read: %w", err)
	}
	return Decode(raw)
}

// Decode parses an in-memory bundle.
func Decode(raw []byte) (*Bundle, error) {
	if len(raw) < len(magicBytes)+checksumSize {
		return nil, ErrChecksumMismatch
	}

	body, expected := raw[:len(raw)-checksumSize], raw[len(raw)-checksumSize:]
	h := murmur3.New128()
	h.Write(body)
	if !bytes.Equal(h.Sum(nil), expected) {
		return nil, ErrChecksumMismatch
	}

	if !bytes.Equal(body[:len(magicBytes)], magicBytes) {
		return nil, ErrInvalidMagic
	}
	br := bytes.NewReader(body[len(magicBytes):])

	hdrJSON, err := readSection(br)
	if err != nil {
		return nil, fmt.Errorf("bundle: read header: %w", err)
	}
	if len(hdrJSON) == 0 {
		return nil, fmt.Errorf("bundle: empty header")
	}
	var hdr bundleHeader
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, fmt.Errorf("bundle: unmarshal header: %w", err)
	}
	if hdr.Version != headerVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupported, hdr.Version)
	}

	data, err := readSection(br)
	if err != nil {
		return nil, fmt.Errorf("bundle: read records: %w", err)
	}
	var recs []*domain.SnapshotRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("bundle: unmarshal records: %w", err)
	}
	if len(recs) != hdr.RecordCount {
		return nil, fmt.Errorf("bundle: header declares %d records, found %d", hdr.RecordCount, len(recs))
	}

	meta := Meta{
		DocumentID: hdr.DocumentID,
		CreatedAt:  time.UnixMilli(hdr.CreatedAt).UTC(),
	}
	if hdr.Project != "" {
		if meta.Project, err = domain.ParseProjectKey(hdr.Project); err != nil {
			return nil, fmt.Errorf("bundle: header project: %w", err)
		}
	}

	return &Bundle{
		Meta:     meta,
		Records:  recs,
		Checksum: hex.EncodeToString(expected),
	}, nil
}

func readSection(r io.Reader) ([]byte, error) {
	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(n[:])
	if size > maxSectionSize {
		return nil, fmt.Errorf("section too large: %d", size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
