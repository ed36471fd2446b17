package core

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// ContentFingerprint carries the duplicate signals derived from one
// ingestion attempt. It is computed fresh every time and persisted only
// inside the owning Document's metadata.
type ContentFingerprint struct {
	// ContentHash identifies the document text, stable under
	// whitespace-only edits.
	ContentHash string

	// FileHash identifies the source file by name, size and modification
	// time. It changes when a byte-identical file is re-saved, which is a
	// deliberately different signal than ContentHash.
	FileHash string

	// SourcePath is the exact path the document was read from.
	SourcePath string
}

// Fingerprint derives both duplicate signals for an extracted document.
func Fingerprint(content string, ref FileRef) ContentFingerprint {
	return ContentFingerprint{
		ContentHash: ContentHash(content),
		FileHash:    FileHash(ref),
		SourcePath:  ref.Path,
	}
}

// NormalizeContent collapses every run of whitespace to a single space and
// trims the result, so documents differing only in line-wrapping normalize
// to the same text.
func NormalizeContent(content string) string {
	return strings.Join(strings.Fields(content), " ")
}

// ContentHash hashes whitespace-normalized content.
func ContentHash(content string) string {
	return hashHex(NormalizeContent(content))
}

// FileHash hashes the file's name, size and modification time. Content is
// deliberately excluded: a re-touched file produces a new FileHash even
// when its bytes are unchanged.
func FileHash(ref FileRef) string {
	return hashHex(fmt.Sprintf("%s_%d_%d", ref.Name(), ref.Size, ref.ModTime.UnixNano()))
}

func hashHex(s string) string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}
