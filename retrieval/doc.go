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


// Package retrieval answers questions over a user's stored document chunks.
//
// The Engine embeds a query, asks the chunk repository for the nearest
// chunks inside the owner's scope, and returns them ranked by cosine
// similarity clamped to [0, 1]. Ask builds a source-annotated context from
// those chunks and has a generator answer from that context only.
//
// A scope without chunks is not an error: Retrieve returns an empty slice
// and Ask returns a fixed "nothing found" answer without calling the model.
package retrieval
