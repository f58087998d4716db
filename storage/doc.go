// Package storage persists the demo's artifacts.
//
// WriteFileAtomic is the only way key material and proofs reach the data
// directory: content goes to a temporary sibling, is fsynced and renamed over
// the destination, so a concurrent reader sees either the old or the new file.
//
// The remaining types archive proofs by content (SHA-256) on pluggable
// backends, selected by URI:
//
//	file:///var/lib/tlsn/archive
//	s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=eu-west-1&endpoint=http://minio:9000&path_style=true
//	ipfs://127.0.0.1:5001/tlsn-notary-demo?timeout=30s
//	vault://vault.example.com:8200/secret/tlsn?token=...
//
// MultiStorageBackend fans a store out to every available backend and
// succeeds if at least one of them accepted the artifact. Fetch tries the
// backends in order and verifies nothing beyond what each backend does
// itself; IPFS and the file backend recheck the content hash.
package storage
