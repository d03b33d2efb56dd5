/*
Package txnlog implements the production JSON-Lines transaction logger:
one append-only record per mutation, SHA-256 integrity digests, UTF-8
aware truncation, and local-day rotation with numeric collision
suffixes. It is the only production implementation of kv.TxnLogger;
Spy (in spy.go) is the test double the store's tests drive instead.

RECORD SHAPE:
  One JSON object per line, newline-terminated, UTF-8, no BOM, no
  pretty-printing. See entry and buildLine for the exact field set.

SEE ALSO:
  - logger.go: file handling, rotation, serialization
  - spy.go: in-memory test double
  - kv/logger.go: the interface this package implements
*/
package txnlog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"unicode/utf8"

	"github.com/warp/kvengine/kv"
)

// maxCSVBytes bounds the `csv` field's UTF-8 byte length. Values longer
// than this are truncated to the longest valid UTF-8 prefix at or under
// the bound.
const maxCSVBytes = 8192

// nonUTF8Marker is substituted for `csv` when the raw value is not
// valid UTF-8.
const nonUTF8Marker = "<non-utf8>"

// schemaVersion is the fixed `version` field of every record.
const schemaVersion = 1

// entry is the on-disk shape of one log line. Field order here drives
// JSON key order, which is cosmetic but kept stable for readability of
// the log file.
type entry struct {
	Version   int     `json:"version"`
	TS        float64 `json:"ts"`
	UpdatedAt float64 `json:"updated_at"`
	TxID      string  `json:"txid"`
	Op        string  `json:"op"`
	Type      string  `json:"type"`
	Key       string  `json:"key"`
	Bytes     *int    `json:"bytes,omitempty"`
	CSV       *string `json:"csv,omitempty"`
	Truncated bool    `json:"truncated,omitempty"`
	SHA256    *string `json:"sha256,omitempty"`
}

// buildLine renders one log record as a newline-terminated JSON line.
// value is nil for delete-before-missing; every other op carries it.
func buildLine(op kv.Op, typ, key string, value []byte, ts, updatedAt float64, txid string) []byte {
	e := entry{
		Version:   schemaVersion,
		TS:        ts,
		UpdatedAt: updatedAt,
		TxID:      txid,
		Op:        string(op),
		Type:      typ,
		Key:       key,
	}

	if value != nil {
		n := len(value)
		e.Bytes = &n

		sum := sha256.Sum256(value)
		digest := hex.EncodeToString(sum[:])
		e.SHA256 = &digest

		csv, truncated := toCSV(value)
		e.CSV = &csv
		e.Truncated = truncated
	}

	// Every field is a plain string, number, or bool, so Marshal fails
	// only for a NaN or infinite ts/updatedAt, which the store never
	// passes; in that case the line is just the trailing newline.
	line, _ := json.Marshal(e)
	return append(line, '\n')
}

// toCSV derives the logged text form of a raw value: the non-UTF-8
// sentinel, the full decoded string, or a UTF-8-safe prefix capped at
// maxCSVBytes with `truncated=true`.
func toCSV(value []byte) (csv string, truncated bool) {
	if !utf8.Valid(value) {
		return nonUTF8Marker, false
	}
	if len(value) <= maxCSVBytes {
		return string(value), false
	}
	return string(value[:utf8ValidPrefixLen(value, maxCSVBytes)]), true
}

// utf8ValidPrefixLen returns the longest prefix length <= limit that
// does not split a multibyte UTF-8 sequence. Since value is already
// known valid UTF-8, a cut lands mid-sequence only within the last 3
// bytes of the boundary.
func utf8ValidPrefixLen(value []byte, limit int) int {
	for back := 0; back <= 3 && limit-back >= 0; back++ {
		cut := limit - back
		if utf8.Valid(value[:cut]) {
			return cut
		}
	}
	return 0
}
