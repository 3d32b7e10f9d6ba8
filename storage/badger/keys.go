package badger

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Key prefixes for different data types
const (
	jobPrefix        = "job:"
	jobCreatedPrefix = "jobc:"
	chunkPrefix      = "chunk:"
	userPrefix       = "user:"
	userKeyPrefix    = "userk:"
)

// makeJobKey generates a key for a job by ID.
func makeJobKey(id string) []byte {
	return []byte(jobPrefix + id)
}

// makeJobCreatedKey generates a composite key for the creation-time index.
// Format: prefix:timestamp:id
func makeJobCreatedKey(created time.Time, id string) []byte {
	prefixBytes := []byte(jobCreatedPrefix)
	buf := make([]byte, len(prefixBytes)+8+len(id))
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(created.UnixNano()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// jobIDFromCreatedKey extracts the job ID from a creation-time index key.
func jobIDFromCreatedKey(key []byte) string {
	return string(key[len(jobCreatedPrefix)+8:])
}

// makeChunkPrefix returns the prefix shared by all chunks of a job. Job IDs
// never contain core.KeySeparator, so no other job's chunks share it.
func makeChunkPrefix(jobID string) []byte {
	return []byte(chunkPrefix + jobID + ":")
}

// makeChunkKey generates a key for one chunk. Indices are zero padded so
// chunks iterate in index order.
func makeChunkKey(jobID string, index int) []byte {
	return []byte(fmt.Sprintf("%s%s:%08d", chunkPrefix, jobID, index))
}

func makeUserKey(id string) []byte {
	return []byte(userPrefix + id)
}

func makeUserAPIKey(apiKey string) []byte {
	return []byte(userKeyPrefix + apiKey)
}

// prefixEnd returns the smallest key greater than every key with prefix,
// used as the seek position for reverse iteration.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix)+1)
	copy(end, prefix)
	end[len(prefix)] = 0xff
	return end
}
