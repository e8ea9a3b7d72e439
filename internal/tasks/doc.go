// Package tasks moves recorded tours from Komoot to Strava.
//
// # Pipeline
//
// [SyncEngine.Run] wires three pieces together:
//
//  1. [TourCursor] : lazily walks listing pages
//     - page size is validated to 1..255
//     - the page count comes from page 0 and is never re-read
//     - the first fetch error ends the sequence as [*PageFetchError]
//
//  2. [Transferrer] : streams one tour's GPX into a Strava upload
//     - a failed or broken download is a [*DownloadError]
//     - a rejected submission is an [*UploadSubmitError]
//
//  3. [Poller] : drives an upload handle to a terminal state
//     - fixed delay between retries, bounded by the attempt budget
//     - [*UploadFailedError], [*UploadTimeoutError] or [*StatusCheckError]
//
// # Concurrency
//
// A producer goroutine drives the cursor and feeds an unbuffered jobs channel
// read by BatchSize workers; the caller's goroutine collects outcomes. A failed
// tour becomes one failed [models.SyncOutcome] and never cancels its siblings.
// A failed page stops issuing and lets in-flight tours drain.
//
// # Progress Reporting
//
// Run emits [ProgressUpdate] values on an optional channel. Updates use select
// with default so a slow reader never stalls the pipeline.
package tasks
