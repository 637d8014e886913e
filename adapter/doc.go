// Package adapter implements the remote text-generation call shared by every
// node: a single POST of a JSON payload with a Bearer key, a status policy,
// and extraction of one string by gjson key path. A Variant captures the
// differences between endpoints (path, extraction path, missing-key and status
// policies); node packages only build payloads and post-process results.
package adapter
