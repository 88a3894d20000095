// Package integrity computes content checksums and version numbers for
// syncable records.
package integrity

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
)

// Checksum returns a stable hex digest of the payload. encoding/json
// serializes map keys in sorted order at every nesting level, so the
// digest is independent of key insertion order. FNV-1a is enough here:
// the checksum guards against corruption, not tampering.
func Checksum(payload map[string]any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		// Unmarshalable values (channels, funcs) never come through the
		// store boundary, but a best-effort digest beats a panic.
		data = []byte(fmt.Sprint(payload))
	}

	h := fnv.New32a()
	h.Write(data)
	return strconv.FormatUint(uint64(h.Sum32()), 16)
}

// NextVersion returns the version a new write of the record should carry:
// 1 for a first save, otherwise one past the existing version. The caller
// must hold the store lock so the read-modify-write is atomic.
func NextVersion(existing *model.SyncableRecord) int {
	if existing == nil {
		return 1
	}
	return existing.Version + 1
}
