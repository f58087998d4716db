// Command tlsn-demo runs the notarization demo end to end.
//
// It makes sure a notary identity key pair exists in the data directory,
// starts the notary (or uses one that is already running), waits for it to
// accept connections, drives a prover sidecar through one notarized TLS
// session against the target URL and writes the resulting proof to
// <data-dir>/api_response.proof. Every flag has a default, so
//
//	tlsn-demo
//
// is a complete invocation. With --archive the proof is also replicated to
// file://, s3://, ipfs:// or vault:// locations.
//
// The process exits 0 on success and 1 with the error on stderr otherwise.
package main
