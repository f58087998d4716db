package cryptoutils

import (
	"bytes"
	"crypto/ecdsa"
	encasn1 "encoding/asn1"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// crypto/x509 only knows the NIST curves, so secp256k1 keys are encoded here
// following RFC 5915 (ECPrivateKey), RFC 5208 (PKCS#8) and RFC 5480 (SPKI).

var (
	oidPublicKeyECDSA      = encasn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidNamedCurveSecp256k1 = encasn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

var (
	ErrNotSecp256k1 = errors.New("key is not a secp256k1 key")
	errMalformedDER = errors.New("malformed DER")
)

const ecPrivKeyVersion = 1

func isSecp256k1(key *ecdsa.PublicKey) bool {
	return key != nil && key.Curve == ethcrypto.S256()
}

// MarshalSecp256k1PKCS8PrivateKey encodes key as an unencrypted PKCS#8
// PrivateKeyInfo carrying an RFC 5915 ECPrivateKey.
func MarshalSecp256k1PKCS8PrivateKey(key *ecdsa.PrivateKey) ([]byte, error) {
	if key == nil || !isSecp256k1(&key.PublicKey) {
		return nil, ErrNotSecp256k1
	}
	ecPriv, err := marshalSecp256k1ECPrivateKey(key, false)
	if err != nil {
		return nil, err
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(0)
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidPublicKeyECDSA)
			b.AddASN1ObjectIdentifier(oidNamedCurveSecp256k1)
		})
		b.AddASN1OctetString(ecPriv)
	})
	return b.Bytes()
}

// MarshalSecp256k1ECPrivateKey encodes key as a standalone SEC 1 structure
// (PEM type "EC PRIVATE KEY"), with the curve parameters included.
func MarshalSecp256k1ECPrivateKey(key *ecdsa.PrivateKey) ([]byte, error) {
	if key == nil || !isSecp256k1(&key.PublicKey) {
		return nil, ErrNotSecp256k1
	}
	return marshalSecp256k1ECPrivateKey(key, true)
}

func marshalSecp256k1ECPrivateKey(key *ecdsa.PrivateKey, withParams bool) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(ecPrivKeyVersion)
		b.AddASN1OctetString(ethcrypto.FromECDSA(key))
		if withParams {
			b.AddASN1(cbasn1.Tag(0).Constructed().ContextSpecific(), func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(oidNamedCurveSecp256k1)
			})
		}
		b.AddASN1(cbasn1.Tag(1).Constructed().ContextSpecific(), func(b *cryptobyte.Builder) {
			b.AddASN1BitString(ethcrypto.FromECDSAPub(&key.PublicKey))
		})
	})
	return b.Bytes()
}

// MarshalSecp256k1PKIXPublicKey encodes pub as a SubjectPublicKeyInfo with an
// uncompressed point.
func MarshalSecp256k1PKIXPublicKey(pub *ecdsa.PublicKey) ([]byte, error) {
	if !isSecp256k1(pub) {
		return nil, ErrNotSecp256k1
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidPublicKeyECDSA)
			b.AddASN1ObjectIdentifier(oidNamedCurveSecp256k1)
		})
		b.AddASN1BitString(ethcrypto.FromECDSAPub(pub))
	})
	return b.Bytes()
}

// ParseSecp256k1PKCS8PrivateKey parses an unencrypted PKCS#8 secp256k1 key.
func ParseSecp256k1PKCS8PrivateKey(der []byte) (*ecdsa.PrivateKey, error) {
	input := cryptobyte.String(der)

	var (
		pkcs8, algID, ecPriv cryptobyte.String
		version              int
		algOID, curveOID     encasn1.ObjectIdentifier
	)
	if !input.ReadASN1(&pkcs8, cbasn1.SEQUENCE) || !input.Empty() ||
		!pkcs8.ReadASN1Integer(&version) ||
		!pkcs8.ReadASN1(&algID, cbasn1.SEQUENCE) ||
		!algID.ReadASN1ObjectIdentifier(&algOID) {
		return nil, fmt.Errorf("pkcs8: %w", errMalformedDER)
	}
	if version != 0 {
		return nil, fmt.Errorf("pkcs8: unsupported version %d", version)
	}
	if !algOID.Equal(oidPublicKeyECDSA) {
		return nil, fmt.Errorf("pkcs8: %w: algorithm %s", ErrNotSecp256k1, algOID)
	}
	if !algID.ReadASN1ObjectIdentifier(&curveOID) || !curveOID.Equal(oidNamedCurveSecp256k1) {
		return nil, fmt.Errorf("pkcs8: %w: curve %s", ErrNotSecp256k1, curveOID)
	}
	if !pkcs8.ReadASN1(&ecPriv, cbasn1.OCTET_STRING) {
		return nil, fmt.Errorf("pkcs8: %w", errMalformedDER)
	}
	return ParseSecp256k1ECPrivateKey(ecPriv)
}

// ParseSecp256k1ECPrivateKey parses a SEC 1 ECPrivateKey. Curve parameters are
// optional but, when present, must name secp256k1; an embedded public key must
// match the private scalar.
func ParseSecp256k1ECPrivateKey(der []byte) (*ecdsa.PrivateKey, error) {
	input := cryptobyte.String(der)

	var (
		seq, scalar cryptobyte.String
		version     int
	)
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() ||
		!seq.ReadASN1Integer(&version) ||
		!seq.ReadASN1(&scalar, cbasn1.OCTET_STRING) {
		return nil, fmt.Errorf("ec private key: %w", errMalformedDER)
	}
	if version != ecPrivKeyVersion {
		return nil, fmt.Errorf("ec private key: unsupported version %d", version)
	}

	var (
		params, pubField  cryptobyte.String
		hasParams, hasPub bool
	)
	if !seq.ReadOptionalASN1(&params, &hasParams, cbasn1.Tag(0).Constructed().ContextSpecific()) {
		return nil, fmt.Errorf("ec private key: %w", errMalformedDER)
	}
	if hasParams {
		var curveOID encasn1.ObjectIdentifier
		if !params.ReadASN1ObjectIdentifier(&curveOID) || !curveOID.Equal(oidNamedCurveSecp256k1) {
			return nil, fmt.Errorf("ec private key: %w", ErrNotSecp256k1)
		}
	}

	key, err := ethcrypto.ToECDSA(scalar)
	if err != nil {
		return nil, fmt.Errorf("ec private key: %w", err)
	}

	if !seq.ReadOptionalASN1(&pubField, &hasPub, cbasn1.Tag(1).Constructed().ContextSpecific()) {
		return nil, fmt.Errorf("ec private key: %w", errMalformedDER)
	}
	if hasPub {
		var point []byte
		if !pubField.ReadASN1BitStringAsBytes(&point) {
			return nil, fmt.Errorf("ec private key: %w", errMalformedDER)
		}
		if !bytes.Equal(point, ethcrypto.FromECDSAPub(&key.PublicKey)) {
			return nil, fmt.Errorf("ec private key: %w", ErrKeypairMismatch)
		}
	}
	return key, nil
}

// ParseSecp256k1PKIXPublicKey parses a SubjectPublicKeyInfo holding a
// secp256k1 point. Points not on the curve are rejected.
func ParseSecp256k1PKIXPublicKey(der []byte) (*ecdsa.PublicKey, error) {
	input := cryptobyte.String(der)

	var (
		spki, algID      cryptobyte.String
		algOID, curveOID encasn1.ObjectIdentifier
		point            []byte
	)
	if !input.ReadASN1(&spki, cbasn1.SEQUENCE) || !input.Empty() ||
		!spki.ReadASN1(&algID, cbasn1.SEQUENCE) ||
		!algID.ReadASN1ObjectIdentifier(&algOID) {
		return nil, fmt.Errorf("spki: %w", errMalformedDER)
	}
	if !algOID.Equal(oidPublicKeyECDSA) {
		return nil, fmt.Errorf("spki: %w: algorithm %s", ErrNotSecp256k1, algOID)
	}
	if !algID.ReadASN1ObjectIdentifier(&curveOID) || !curveOID.Equal(oidNamedCurveSecp256k1) {
		return nil, fmt.Errorf("spki: %w: curve %s", ErrNotSecp256k1, curveOID)
	}
	if !spki.ReadASN1BitStringAsBytes(&point) {
		return nil, fmt.Errorf("spki: %w", errMalformedDER)
	}

	pub, err := ethcrypto.UnmarshalPubkey(point)
	if err != nil {
		return nil, fmt.Errorf("spki: %w", err)
	}
	return pub, nil
}
