package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"

	"bountyd/internal/infra/crypto"
)

func runKeygen(args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "keygen takes no arguments")
		return 1
	}
	key, err := crypto.GenerateSigningKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
		return 1
	}
	fmt.Printf("seed_hex=%s\n", hex.EncodeToString(key.Seed()))
	fmt.Printf("pubkey_hex=%s\n", hex.EncodeToString(key.Public().(ed25519.PublicKey)))
	return 0
}
