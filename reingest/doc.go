// Package reingest rebuilds the chunk sets of completed jobs.
//
// It walks COMPLETED jobs in pages, skips those that already have chunks
// unless forced, and re-runs ingestion on an ants pool with exponential
// backoff between attempts. Summaries and job status are never touched.
// A Scheduler runs the same sweep on a cron schedule inside a worker.
package reingest
