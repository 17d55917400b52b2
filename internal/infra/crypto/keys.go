package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

func GenerateSigningKey() (ed25519.PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return key, nil
}

func ParseSigningKeyHex(value string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, err
	}
	return parseSigningKey(raw)
}

func ParseSigningKeyBase64(value string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}
	return parseSigningKey(raw)
}

func ParsePublicKeyHex(value string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, errors.New("invalid ed25519 public key length")
	}
	return append(ed25519.PublicKey(nil), raw...), nil
}

func parseSigningKey(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		key := ed25519.NewKeyFromSeed(raw)
		return append(ed25519.PrivateKey(nil), key...), nil
	case ed25519.PrivateKeySize:
		return append(ed25519.PrivateKey(nil), raw...), nil
	default:
		return nil, errors.New("invalid ed25519 private key length")
	}
}
