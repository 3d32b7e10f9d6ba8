// Package mock provides test double implementations of AI service interfaces.
//
// # Usage in Tests
//
//	provider := mock.NewMockProvider(8)
//	vec, err := provider.Embedder().EmbedText(ctx, "test")
//
//	gen := mock.NewMockGenerator("42")
//	gen.GenerateFunc = func(ctx context.Context, req ai.GenerateRequest) (*ai.Generation, error) {
//	    return nil, errors.New("service down")
//	}
//
// # Default Behavior
//
//   - MockEmbedder: deterministic unit vectors derived from an FNV hash of the text
//   - MockGenerator: returns a fixed completion and records every request
package mock
