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


// Package search implements tiered document retrieval. Tier 1 embeds the
// query and ranks by vector similarity. If embedding or the vector index
// fails, tier 2 falls back to an attribute scan over the typed filters.
// If that fails too, the result is an empty slice. Search never returns
// an error; each result is tagged with the tier that produced it so
// callers can tell a precise answer from a degraded one.
package search
