// Package jobs is the producer and read side of the extraction pipeline.
//
// Submit validates an upload, applies a per-owner rate limit and the
// admission gate, stores the bytes in the blob store, writes the PENDING
// durable row and cache entry, and enqueues the job envelope. Status reads
// the cache first and falls back to the durable row; Result, Delete and
// Summarize always work on the durable row and check ownership.
package jobs
