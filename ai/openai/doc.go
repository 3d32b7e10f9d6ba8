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


// Package openai talks to OpenAI-compatible services (OpenAI itself,
// Ollama, vLLM, LocalAI) through langchaingo.
//
// The Embedder produces chunk and query vectors; the Generator answers
// retrieval questions and writes summaries. Both are usually obtained
// from a Provider:
//
//	cfg := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"),
//	    ai.WithEmbeddingModel("nomic-embed-text", 768),
//	    ai.WithGenerationModel("llama3"),
//	)
//	provider, err := openai.NewProvider(cfg)
package openai
