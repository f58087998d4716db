// Package interfaces defines the types shared across the demo, separating
// interface definitions from implementations.
//
// # Engine Interfaces
//
// NotaryService and Prover are the surface of the external notarization
// engine. The demo never looks inside a proof; ProofArtifact is opaque bytes.
// ProverFactory binds a prover to a notary address and a target server name.
//
// # Storage Interfaces
//
// StorageBackend provides content-addressed storage for archived proofs and
// published public keys across file, S3, IPFS and Vault backends.
// StorageBackendLocation is the parsed form of a backend URI:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// # Data Layout
//
// DataLayout resolves the files the demo keeps in its data directory: the
// notary key pair, the rendered notary config, optional TLS material and the
// latest proof.
package interfaces
