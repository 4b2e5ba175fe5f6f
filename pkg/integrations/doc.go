// Package integrations provides HTTP clients for Python package indexes.
//
// # Overview
//
// The [Client] type carries everything index clients share: a response
// cache keyed through [cache.Keyer], retry with exponential backoff for
// transient failures, default headers (credentials, user agent) and a
// timeout. Index-specific clients embed it:
//
//   - [pypi]: the PyPI JSON API and PEP 658 metadata files
//
// # Errors
//
// A 404 or 410 becomes [ErrNotFound] and is never retried. Connection
// failures, 429 and 5xx responses become [ErrNetwork] wrapped with
// [httputil.Retryable] so that [Client.Retry] attempts them again.
//
// [pypi]: github.com/matzehuels/pylock/pkg/integrations/pypi
// [cache.Keyer]: github.com/matzehuels/pylock/pkg/cache.Keyer
// [httputil.Retryable]: github.com/matzehuels/pylock/pkg/httputil.Retryable
package integrations
