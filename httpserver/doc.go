/*
Package httpserver publishes what a verifier needs to check a notarization
produced by the demo.

# Endpoints

  - GET /api/public/notary_pubkey - the notary's public key, PEM encoded
  - GET /api/public/proof - the most recently persisted proof artifact
  - GET /api/public/proofs/{content_id} - a proof fetched from the archive by
    its SHA-256 content ID (hex, optional 0x prefix)
  - GET /api/public/notary_pubkeys/{content_id} - an archived notary public key

Every artifact response carries its content ID in the X-Content-ID header.

Health endpoints follow the usual load balancer protocol: /livez always
answers, /readyz answers 503 after /drain until /undrain is called.

Artifacts are read from the data directory on every request. The demo writes
them with an atomic rename, so a reader always gets a complete file.
*/
package httpserver
