package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/lectern/ai"
)

const (
	// NoAnswer is returned by Ask when the scope holds no chunks.
	NoAnswer = "I couldn't find any relevant information in your documents to answer this question."

	previewRunes = 200

	answerSystemPrompt = "You are a helpful assistant that answers questions based on provided context. " +
		"Answer the user's question based ONLY on the information in the context. " +
		"If the context doesn't contain enough information to answer the question, " +
		"say 'I don't have enough information to answer that question based on the provided documents.'"

	answerPromptTemplate = "Context from documents:\n\n%s\n\n---\n\nQuestion: %s\n\n" +
		"Please provide a clear and concise answer based on the context above."
)

// Source identifies a chunk an answer was built from.
type Source struct {
	JobID    string
	Filename string
	Index    int
	Score    float32
	Preview  string
}

// Answer is the outcome of Ask.
type Answer struct {
	Text        string
	Model       string
	Sources     []Source
	ChunksFound int
	Usage       *ai.Usage // nil when the model was not called
}

// Ask retrieves chunks for the question and has the generator answer from
// them.
func (e *Engine) Ask(ctx context.Context, question Query) (*Answer, error) {
	if e.generator == nil {
		return nil, ErrGeneratorRequired
	}

	results, err := e.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		e.logger.Info("no chunks found for question", "owner_id", question.OwnerID, "job_id", question.JobID)
		return &Answer{Text: NoAnswer, Sources: []Source{}}, nil
	}

	prompt := BuildContext(results, e.contextChars)
	gen, err := e.generator.Generate(ctx, ai.GenerateRequest{
		System:      answerSystemPrompt,
		Prompt:      fmt.Sprintf(answerPromptTemplate, prompt, strings.TrimSpace(question.Text)),
		Model:       e.model,
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		e.logger.Error("error generating answer", "owner_id", question.OwnerID, "error", err)
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{
			JobID:    r.JobID,
			Filename: r.Filename,
			Index:    r.Index,
			Score:    r.Score,
			Preview:  Preview(r.Text, previewRunes),
		}
	}

	model := gen.Model
	if model == "" {
		model = e.model
	}
	usage := gen.Usage
	e.logger.Info("answered question", "owner_id", question.OwnerID, "chunks", len(results), "tokens", usage.TotalTokens)
	return &Answer{
		Text:        gen.Text,
		Model:       model,
		Sources:     sources,
		ChunksFound: len(results),
		Usage:       &usage,
	}, nil
}
