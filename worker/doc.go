// Package worker runs the job coordinator: the loop that claims one queued
// envelope at a time, drives its job through extraction, summary and
// ingestion, and decides whether the envelope is acknowledged.
//
// Each stage reports failures as a *StageError whose Kind selects the path:
// transient failures leave the envelope for redelivery and back off, job
// fatal failures record the job FAILED without acknowledging, and degraded
// ingestion keeps the job COMPLETED. The durable store is always written
// before the progress cache, and both before the acknowledgment.
package worker
