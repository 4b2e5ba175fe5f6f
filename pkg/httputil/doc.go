// Package httputil provides retry helpers shared by the package index
// clients.
//
// # Retry
//
// [Retry] re-runs an operation with exponential backoff, but only when the
// failure is marked transient with [Retryable]:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    ...
//	})
//
// Anything else (a 404, a malformed response) is returned on the first
// attempt. Metadata lookups surface the final error rather than retrying
// forever; the attempt count is configurable per client.
package httputil
