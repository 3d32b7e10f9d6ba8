package storage

import (
	"fmt"

	"github.com/poiesic/lectern/core"
)

// MarshalJob serializes a job for key-value storage.
func MarshalJob(job *core.Job) ([]byte, error) {
	if job == nil {
		return nil, fmt.Errorf("%w: nil job", ErrSerializationFailed)
	}
	buf := make([]byte, core.JobMUS.Size(*job))
	core.JobMUS.Marshal(*job, buf)
	return buf, nil
}

// UnmarshalJob deserializes a job written by MarshalJob.
func UnmarshalJob(data []byte) (*core.Job, error) {
	job, _, err := core.JobMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if !job.Status.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, core.ErrInvalidStatus)
	}
	return &job, nil
}

// MarshalChunk serializes a chunk for key-value storage.
func MarshalChunk(chunk *core.Chunk) ([]byte, error) {
	if chunk == nil {
		return nil, fmt.Errorf("%w: nil chunk", ErrSerializationFailed)
	}
	buf := make([]byte, core.ChunkMUS.Size(*chunk))
	core.ChunkMUS.Marshal(*chunk, buf)
	return buf, nil
}

// UnmarshalChunk deserializes a chunk written by MarshalChunk.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := core.ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &chunk, nil
}

// MarshalUser serializes a user for key-value storage.
func MarshalUser(user *core.User) ([]byte, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: nil user", ErrSerializationFailed)
	}
	buf := make([]byte, core.UserMUS.Size(*user))
	core.UserMUS.Marshal(*user, buf)
	return buf, nil
}

// UnmarshalUser deserializes a user written by MarshalUser.
func UnmarshalUser(data []byte) (*core.User, error) {
	user, _, err := core.UserMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &user, nil
}
