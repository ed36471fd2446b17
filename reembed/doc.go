// Package reembed regenerates document embeddings in place. Two runs
// matter in practice: a full sweep after switching embedding models, and
// a degraded-only sweep that repairs the zero-vector, low-confidence
// documents an embedding service outage left behind. Embedding calls
// retry with exponential backoff; store updates do not, a failed update
// aborts the run so it can be re-run safely.
package reembed
