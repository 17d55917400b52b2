package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"bountyd/internal/config"
	"bountyd/internal/domain"
	"bountyd/internal/infra/contentstore"
	"bountyd/internal/infra/crypto"
	"bountyd/internal/usecase"
)

// runVerify replays the verification pipeline offline: it scores a stored
// evidence bundle against its task and prints the resulting report without
// touching any ledger.
func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var taskPath string
	var bundlePath string
	var threshold float64
	var keyHex string
	var keyBase64 string
	var outPath string

	fs.StringVar(&taskPath, "task", "", "task document (JSON)")
	fs.StringVar(&bundlePath, "bundle", "", "evidence bundle (JSON)")
	fs.Float64Var(&threshold, "threshold", 0.7, "quality threshold")
	fs.StringVar(&keyHex, "key-hex", "", "ed25519 seed or key hex; sign the report when set")
	fs.StringVar(&keyBase64, "key-base64", "", "ed25519 seed or key base64; sign the report when set")
	fs.StringVar(&outPath, "out", "", "output report path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if taskPath == "" || bundlePath == "" {
		fmt.Fprintln(os.Stderr, "verify requires --task and --bundle")
		return 1
	}

	task, err := readTaskSpec(taskPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	raw, err := os.ReadFile(bundlePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read bundle: %v\n", err)
		return 1
	}
	var bundle domain.EvidenceBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		fmt.Fprintf(os.Stderr, "decode bundle: %v\n", err)
		return 1
	}
	evidenceCID, err := contentstore.CID(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compute cid: %v\n", err)
		return 1
	}

	cfg := config.FromEnv()
	engine := usecase.NewEngine(usecase.EngineConfig{
		QualityThreshold:   threshold,
		CheckWeights:       cfg.CheckWeights,
		DefaultCheckWeight: cfg.DefaultCheckWeight,
		Concurrency:        cfg.VerifyConcurrency,
		VerifierVersion:    "bountyctl",
	}, usecase.BuiltinChecks())

	report, err := engine.Verify(context.Background(), task, evidenceCID, bundle)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		return 1
	}

	if keyHex != "" || keyBase64 != "" {
		key, err := loadKey(keyHex, keyBase64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load key: %v\n", err)
			return 1
		}
		signer, err := crypto.NewService(key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "init signer: %v\n", err)
			return 1
		}
		if err := signer.SignReport(&report); err != nil {
			fmt.Fprintf(os.Stderr, "sign report: %v\n", err)
			return 1
		}
	}

	payload, err := crypto.MarshalReport(report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, payload); err != nil {
		fmt.Fprintf(os.Stderr, "write report: %v\n", err)
		return 1
	}

	status := "fail"
	if report.Passed {
		status = "pass"
	}
	fmt.Fprintf(os.Stderr, "status=%s score=%.3f checks=%d\n", status, report.Score, len(report.ChecksPerformed))
	if report.Passed {
		return 0
	}
	return 1
}

func loadKey(keyHex, keyBase64 string) (ed25519.PrivateKey, error) {
	if keyHex != "" {
		return crypto.ParseSigningKeyHex(keyHex)
	}
	return crypto.ParseSigningKeyBase64(keyBase64)
}
