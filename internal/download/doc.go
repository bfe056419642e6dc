// Package download fetches batches of beatmap set archives.
//
// # Orchestrator
//
// The Orchestrator drives one batch:
//
//  1. Skip ids already present on disk
//  2. Fetch up to MaxInFlight archives concurrently
//  3. Route each fetch through a proxy identity while proxying is on
//  4. Classify every failure as fatal, retryable or unknown
//  5. Rename finished archives to the name the server suggests
//
// # Basic Usage
//
//	o, err := download.New(download.Options{
//	    IDs:          ids,
//	    Existing:     existing,
//	    DownloadPath: "/songs/incoming",
//	    Header:       http.Header{"Cookie": {cookie}},
//	    OnProgress: func(event download.ProgressEvent) {
//	        fmt.Println(event.Message)
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := o.Run(ctx)
//
// # Retries
//
// Retryable failures (400, 429, 503, resets, timeouts) put the id in a
// RetryQueue. The queue is drained back into the pending list whenever
// fewer than DrainBelow fetches are in flight. Each retry waits
// Retry.Delay(attempt) first; Retry.MaxRetries caps the attempts, zero
// meaning unlimited.
//
// When a retryable failure happened through a proxy, that proxy is
// invalidated. Once fewer than two proxies are left, proxying is switched
// off for the rest of the run and fetches go out directly.
//
// # Workers
//
// RunAll splits a batch over several orchestrators that share a proxy
// pool through disjoint shards:
//
//	report, err := download.RunAll(ctx, opts, 4)
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives ProgressEvent:
//
//	type ProgressEvent struct {
//	    ID      model.ResourceID
//	    Message string
//	    Level   ProgressLevel // Info, Verbose, Warning, Error, Success
//	}
package download
