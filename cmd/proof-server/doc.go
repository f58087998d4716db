// Command proof-server publishes the demo's notary public key and proofs
// over HTTP so that a verifier can fetch them.
//
// Example usage:
//
//	proof-server --listen-addr=0.0.0.0:8080 \
//	    --data-dir=./demo_data \
//	    --archive=file:///var/lib/tlsn/archive
package main
