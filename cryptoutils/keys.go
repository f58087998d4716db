package cryptoutils

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// PEM block types used for notary identity material.
const (
	PEMTypePrivateKey    = "PRIVATE KEY"
	PEMTypePublicKey     = "PUBLIC KEY"
	PEMTypeRSAPrivateKey = "RSA PRIVATE KEY"
	PEMTypeRSAPublicKey  = "RSA PUBLIC KEY"
	PEMTypeECPrivateKey  = "EC PRIVATE KEY"
)

const rsaModulusBits = 2048

// KeyAlgorithm selects the notary identity algorithm and its encoding. It is
// dictated by whatever the engine's verifier accepts; it is never negotiated.
type KeyAlgorithm string

const (
	// Secp256k1 is an EC key on secp256k1, PKCS#8 / SubjectPublicKeyInfo.
	Secp256k1 KeyAlgorithm = "secp256k1"
	// P256 is an EC key on NIST P-256, PKCS#8 / SubjectPublicKeyInfo.
	P256 KeyAlgorithm = "p256"
	// RSA2048 is an RSA-2048 key, PKCS#8 / SubjectPublicKeyInfo.
	RSA2048 KeyAlgorithm = "rsa2048"
	// RSA2048PKCS1 is an RSA-2048 key in the traditional PKCS#1 containers.
	RSA2048PKCS1 KeyAlgorithm = "rsa2048-pkcs1"
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported key algorithm")
	ErrAlgorithmMismatch    = errors.New("key does not match configured algorithm")
	ErrKeypairMismatch      = errors.New("public key does not belong to private key")
)

// KeyAlgorithms lists every supported algorithm in a stable order.
var KeyAlgorithms = []KeyAlgorithm{Secp256k1, P256, RSA2048, RSA2048PKCS1}

// ParseKeyAlgorithm maps a configuration string onto a KeyAlgorithm.
func ParseKeyAlgorithm(s string) (KeyAlgorithm, error) {
	alg := KeyAlgorithm(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KeyAlgorithms {
		if alg == known {
			return alg, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, s)
}

func (a KeyAlgorithm) String() string {
	return string(a)
}

// pemTypes returns the expected private and public PEM block types.
func (a KeyAlgorithm) pemTypes() (priv, pub string) {
	if a == RSA2048PKCS1 {
		return PEMTypeRSAPrivateKey, PEMTypeRSAPublicKey
	}
	return PEMTypePrivateKey, PEMTypePublicKey
}

// NotaryPrivkey is a notary signing key in PEM format.
type NotaryPrivkey []byte

// GetPrivateKey returns the parsed private key. secp256k1 keys, which the
// standard library cannot parse, come back as *ecdsa.PrivateKey on
// go-ethereum's S256 curve.
func (priv NotaryPrivkey) GetPrivateKey() (crypto.Signer, error) {
	block, _ := pem.Decode(priv)
	if block == nil {
		return nil, errors.New("invalid private key: not in PEM format")
	}

	var (
		key any
		err error
	)
	switch block.Type {
	case PEMTypePrivateKey:
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			key, err = ParseSecp256k1PKCS8PrivateKey(block.Bytes)
		}
	case PEMTypeRSAPrivateKey:
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case PEMTypeECPrivateKey:
		key, err = x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			key, err = ParseSecp256k1ECPrivateKey(block.Bytes)
		}
	default:
		return nil, fmt.Errorf("invalid private key: unexpected PEM block %q", block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid private key structure: %w", err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type: %T", key)
	}
	return signer, nil
}

// NotaryPubkey is the notary's verification key in PEM format.
type NotaryPubkey []byte

// NewNotaryPubkey creates a public key object from PEM-encoded data with validation.
func NewNotaryPubkey(data []byte) (NotaryPubkey, error) {
	if _, err := NotaryPubkey(data).GetPublicKey(); err != nil {
		return nil, err
	}
	return NotaryPubkey(data), nil
}

// GetPublicKey returns the parsed public key.
func (pub NotaryPubkey) GetPublicKey() (crypto.PublicKey, error) {
	block, _ := pem.Decode(pub)
	if block == nil {
		return nil, errors.New("invalid public key: not in PEM format")
	}

	var (
		key any
		err error
	)
	switch block.Type {
	case PEMTypePublicKey:
		key, err = x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			key, err = ParseSecp256k1PKIXPublicKey(block.Bytes)
		}
	case PEMTypeRSAPublicKey:
		key, err = x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		return nil, fmt.Errorf("invalid public key: unexpected PEM block %q", block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid public key structure: %w", err)
	}
	return key, nil
}

// GenerateKeypair creates a fresh notary identity for alg and returns both
// halves PEM-encoded in the containers alg prescribes.
func GenerateKeypair(alg KeyAlgorithm) (NotaryPubkey, NotaryPrivkey, error) {
	var privDER, pubDER []byte

	switch alg {
	case Secp256k1:
		key, err := ethcrypto.GenerateKey()
		if err != nil {
			return nil, nil, err
		}
		if privDER, err = MarshalSecp256k1PKCS8PrivateKey(key); err != nil {
			return nil, nil, err
		}
		if pubDER, err = MarshalSecp256k1PKIXPublicKey(&key.PublicKey); err != nil {
			return nil, nil, err
		}
	case P256:
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		if privDER, err = x509.MarshalPKCS8PrivateKey(key); err != nil {
			return nil, nil, err
		}
		if pubDER, err = x509.MarshalPKIXPublicKey(&key.PublicKey); err != nil {
			return nil, nil, err
		}
	case RSA2048:
		key, err := rsa.GenerateKey(rand.Reader, rsaModulusBits)
		if err != nil {
			return nil, nil, err
		}
		if privDER, err = x509.MarshalPKCS8PrivateKey(key); err != nil {
			return nil, nil, err
		}
		if pubDER, err = x509.MarshalPKIXPublicKey(&key.PublicKey); err != nil {
			return nil, nil, err
		}
	case RSA2048PKCS1:
		key, err := rsa.GenerateKey(rand.Reader, rsaModulusBits)
		if err != nil {
			return nil, nil, err
		}
		privDER = x509.MarshalPKCS1PrivateKey(key)
		pubDER = x509.MarshalPKCS1PublicKey(&key.PublicKey)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	privType, pubType := alg.pemTypes()
	privPEM := pem.EncodeToMemory(&pem.Block{Type: privType, Bytes: privDER})
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: pubType, Bytes: pubDER})

	return NotaryPubkey(pubPEM), NotaryPrivkey(privPEM), nil
}

// VerifyKeypair checks that priv and pub are well formed, use the containers
// and key type alg prescribes, and belong together.
func VerifyKeypair(alg KeyAlgorithm, priv NotaryPrivkey, pub NotaryPubkey) error {
	privType, pubType := alg.pemTypes()

	privBlock, _ := pem.Decode(priv)
	if privBlock == nil {
		return errors.New("invalid private key: not in PEM format")
	}
	if privBlock.Type != privType {
		return fmt.Errorf("%w: private key PEM block is %q, expected %q", ErrAlgorithmMismatch, privBlock.Type, privType)
	}
	pubBlock, _ := pem.Decode(pub)
	if pubBlock == nil {
		return errors.New("invalid public key: not in PEM format")
	}
	if pubBlock.Type != pubType {
		return fmt.Errorf("%w: public key PEM block is %q, expected %q", ErrAlgorithmMismatch, pubBlock.Type, pubType)
	}

	privKey, err := priv.GetPrivateKey()
	if err != nil {
		return err
	}
	pubKey, err := pub.GetPublicKey()
	if err != nil {
		return err
	}

	if err := checkKeyType(alg, privKey.Public()); err != nil {
		return fmt.Errorf("private key: %w", err)
	}
	if err := checkKeyType(alg, pubKey); err != nil {
		return fmt.Errorf("public key: %w", err)
	}

	derived, ok := privKey.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !derived.Equal(pubKey) {
		return ErrKeypairMismatch
	}
	return nil
}

func checkKeyType(alg KeyAlgorithm, key crypto.PublicKey) error {
	switch alg {
	case Secp256k1, P256:
		ecKey, ok := key.(*ecdsa.PublicKey)
		if !ok {
			return fmt.Errorf("%w: expected EC key, got %T", ErrAlgorithmMismatch, key)
		}
		want := elliptic.P256()
		if alg == Secp256k1 {
			want = ethcrypto.S256()
		}
		if ecKey.Curve != want {
			return fmt.Errorf("%w: key is not on %s", ErrAlgorithmMismatch, alg)
		}
	case RSA2048, RSA2048PKCS1:
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return fmt.Errorf("%w: expected RSA key, got %T", ErrAlgorithmMismatch, key)
		}
		if rsaKey.N.BitLen() != rsaModulusBits {
			return fmt.Errorf("%w: RSA modulus is %d bits", ErrAlgorithmMismatch, rsaKey.N.BitLen())
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
	return nil
}
