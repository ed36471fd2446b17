package badger

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Key prefixes for different data types. Primary records and index entries
// use disjoint prefixes so prefix iteration never mixes them.
const (
	documentPrefix    = "docrec"
	contentHashPrefix = "dxcont"
	fileHashPrefix    = "dxfile"
	sourcePathPrefix  = "dxsrce"
	datePrefix        = "dxdate"
)

// attrSep separates attribute values from document ids in composite index
// keys. NUL never appears in hex hashes or ids and sorts before any other
// byte, so partial keys prefix-match exactly one value.
const attrSep = "\x00"

// makeDocumentKey generates a key for a document by id.
func makeDocumentKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentPrefix, id))
}

// makeAttrKey generates a composite key for a string-attribute index.
// Format: prefix:value\x00id
func makeAttrKey(prefix, value, id string) []byte {
	return []byte(prefix + ":" + value + attrSep + id)
}

// makePartialAttrKey generates the iteration prefix for all index entries
// of a single attribute value.
func makePartialAttrKey(prefix, value string) []byte {
	return []byte(prefix + ":" + value + attrSep)
}

// makeDateKey generates a composite key for the creation-time index.
// Format: prefix:timestamp(BigEndian)id
func makeDateKey(timestamp time.Time, id string) []byte {
	prefix := []byte(datePrefix + ":")
	buf := make([]byte, len(prefix)+8+len(id))
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// makePartialDateKey generates a partial key for date range queries.
func makePartialDateKey(timestamp time.Time) []byte {
	prefix := []byte(datePrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	return buf
}
