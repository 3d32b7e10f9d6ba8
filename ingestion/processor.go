// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/segment"
)

// Ingester turns a completed job's text into stored chunks.
// Implementations must be safe for concurrent use on different jobs.
type Ingester interface {
	// Ingest segments and embeds job.ResultText, replacing any chunks the
	// job already had. Returns the number of chunks stored.
	Ingest(ctx context.Context, job *core.Job) (int, error)
}

// Ingestor is the Ingester used in production: segment, then write.
type Ingestor struct {
	segmenter *segment.Segmenter
	writer    *Writer
	logger    *slog.Logger
}

var _ Ingester = (*Ingestor)(nil)

// NewIngestor creates an Ingestor.
func NewIngestor(segmenter *segment.Segmenter, writer *Writer, logger *slog.Logger) (*Ingestor, error) {
	if segmenter == nil {
		return nil, ErrSegmenterRequired
	}
	if writer == nil {
		return nil, ErrWriterRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		segmenter: segmenter,
		writer:    writer,
		logger:    logger.With("component", "ingestor"),
	}, nil
}

// Ingest runs both segmentation passes over the job's text and stores the
// embedded chunks.
func (i *Ingestor) Ingest(ctx context.Context, job *core.Job) (int, error) {
	if strings.TrimSpace(job.ResultText) == "" {
		return 0, ErrNoText
	}
	segments := i.segmenter.Split(job.ResultText)
	i.logger.Debug("segmented job text", "job_id", job.ID, "segments", len(segments))
	return i.writer.Write(ctx, job, segments)
}
