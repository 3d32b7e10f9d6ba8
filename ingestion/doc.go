// Package ingestion turns extracted job text into stored, embedded chunks.
//
// The Writer sends chunk texts to the embedding service in batches, checks
// that one vector of the configured dimension came back per text, and then
// replaces the job's chunk set in a single transaction. The Ingestor runs
// segmentation in front of the Writer. The Pipeline runs ingestions on an
// ants worker pool for batch re-ingestion.
//
// Ingestion failures never change a job's status; callers decide how to
// report them.
package ingestion
