// Package cryptoutils generates, encodes and checks the notary's key
// material.
//
// A notary identity is a PEM key pair in one of the algorithms listed in
// KeyAlgorithms. secp256k1 keys are encoded as PKCS#8 / SubjectPublicKeyInfo
// like the NIST curves, which crypto/x509 cannot do for that curve, so the
// package carries its own DER codec for that curve.
//
// Self-signed certificates serve the notary's TLS listener on localhost.
package cryptoutils
