package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/summary"
)

// Summarize regenerates the summary of a completed job with prompt and
// stores it on the durable row.
func (s *Service) Summarize(ctx context.Context, owner, id, prompt string) (*core.Job, error) {
	if s.summarizer == nil {
		return nil, ErrSummarizerRequired
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, summary.ErrNothingToSummarize
	}
	job, err := s.Result(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	text, err := s.summarizer.Summarize(ctx, job.ResultText, prompt)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.Jobs().UpdateJob(ctx, id, func(j *core.Job) error {
		return j.SetSummary(prompt, text)
	})
	if err != nil {
		return nil, fmt.Errorf("storing summary: %w", err)
	}
	s.logger.Info("summary regenerated", "job_id", id, "owner_id", owner)
	return updated, nil
}
