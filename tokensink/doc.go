// Package tokensink persists access tokens acquired by the credential monitor.
//
// FileSink writes one JSON document per user and token name to <dir>/<user>/<token>.use with mode 0600,
// replacing the previous file atomically so that job processes never read a partial token.
package tokensink
