package storage

import (
	"testing"
	"time"

	"github.com/poiesic/lectern/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobCodec_PreservesUnsetTimestamps(t *testing.T) {
	created := time.Date(2025, 2, 3, 4, 5, 6, 7000, time.UTC)
	job := core.NewJob("42", "owner", "42.pdf", created)

	data, err := MarshalJob(job)
	require.NoError(t, err)

	decoded, err := UnmarshalJob(data)
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.Equal(created))
	assert.True(t, decoded.StartedAt.IsZero())
	assert.True(t, decoded.CompletedAt.IsZero())
	assert.Equal(t, core.StatusPending, decoded.Status)
}

func TestUnmarshalJob_RejectsUnknownStatus(t *testing.T) {
	rec := core.Job{ID: "1", Status: "DONE"}
	data := make([]byte, core.JobMUS.Size(rec))
	core.JobMUS.Marshal(rec, data)

	_, err := UnmarshalJob(data)
	assert.ErrorIs(t, err, ErrSerializationFailed)
	assert.ErrorIs(t, err, core.ErrInvalidStatus)
}

func TestUnmarshal_Garbage(t *testing.T) {
	garbage := []byte{0xc1, 0x00, 0x13}

	_, err := UnmarshalJob(garbage)
	assert.ErrorIs(t, err, ErrSerializationFailed)
	_, err = UnmarshalChunk(garbage)
	assert.ErrorIs(t, err, ErrSerializationFailed)
	_, err = UnmarshalUser(garbage)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestChunkCodec_Embedding(t *testing.T) {
	chunk := &core.Chunk{JobID: "j", OwnerID: "o", Index: 3, Text: "hello", Embedding: []float32{0.25, -1, 0.5}, TokenCount: 1}

	data, err := MarshalChunk(chunk)
	require.NoError(t, err)
	decoded, err := UnmarshalChunk(data)
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
}

func TestJobCodec_RoundTrip(t *testing.T) {
	created := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	job := core.NewJob("42", "owner", "42.pdf", created)
	job.BlobBucket = "uploads"
	job.BlobKey = "owner/42.pdf"
	job.Checksum = core.Checksum([]byte("pdf"))
	_, err := job.Start(created.Add(time.Second))
	require.NoError(t, err)
	require.NoError(t, job.Complete(core.Result{Text: "body", PageCount: 3, Summary: "s", Extractor: "text", Duration: 1500 * time.Millisecond}, created.Add(2*time.Second)))

	data, err := MarshalJob(job)
	require.NoError(t, err)
	decoded, err := UnmarshalJob(data)
	require.NoError(t, err)
	assert.Equal(t, job, decoded)
}

func TestJobCodec_MicrosecondPrecision(t *testing.T) {
	job := &core.Job{ID: "1", Status: core.StatusPending, CreatedAt: time.Date(2025, 2, 3, 4, 5, 6, 123456789, time.UTC)}

	data, err := MarshalJob(job)
	require.NoError(t, err)
	decoded, err := UnmarshalJob(data)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 3, 4, 5, 6, 123456000, time.UTC), decoded.CreatedAt)
}

func TestUnmarshal_Truncated(t *testing.T) {
	chunk := &core.Chunk{JobID: "j", OwnerID: "o", Text: "hello", Embedding: []float32{1, 2, 3, 4}}
	data, err := MarshalChunk(chunk)
	require.NoError(t, err)

	_, err = UnmarshalChunk(data[:len(data)-3])
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshal_Nil(t *testing.T) {
	_, err := MarshalJob(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
	_, err = MarshalChunk(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
	_, err = MarshalUser(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
