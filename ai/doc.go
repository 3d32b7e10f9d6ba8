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


// Package ai provides abstractions for the inference services used by lectern.
//
// The package defines three interfaces:
//
//   - Embedder: turns chunk and query text into vectors
//   - Generator: produces answers and summaries
//   - Provider: bundles both for initialization and shutdown
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs through langchaingo
//   - ai/anthropic: Claude models through the Anthropic Messages API, paired
//     with an OpenAI-compatible embedder
//   - ai/mock: deterministic test doubles
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// interface types. Mock constructors return concrete types so tests can
// inject behavior and inspect calls.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Hello world")
//	out, err := provider.Generator().Generate(ctx, ai.GenerateRequest{Prompt: "Say hi"})
package ai
