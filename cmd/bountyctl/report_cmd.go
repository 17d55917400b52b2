package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"bountyd/internal/domain"
	"bountyd/internal/infra/crypto"
)

func runReportVerify(args []string) int {
	fs := flag.NewFlagSet("report verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var pubkeyHex string

	fs.StringVar(&inPath, "in", "", "signed report (JSON)")
	fs.StringVar(&pubkeyHex, "pubkey-hex", "", "expected verifier public key hex")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "report verify requires --in")
		return 1
	}

	payload, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read report: %v\n", err)
		return 1
	}
	var report domain.VerificationReport
	if err := json.Unmarshal(payload, &report); err != nil {
		fmt.Fprintf(os.Stderr, "decode report: %v\n", err)
		return 1
	}

	if pubkeyHex != "" && report.VerifierPubKey != pubkeyHex {
		fmt.Fprintf(os.Stderr, "verifier pubkey mismatch: report carries %s\n", report.VerifierPubKey)
		return 1
	}
	if err := crypto.VerifyReport(report); err != nil {
		fmt.Fprintf(os.Stderr, "signature invalid: %v\n", err)
		return 1
	}

	status := "fail"
	if report.Passed {
		status = "pass"
	}
	fmt.Printf("signature=valid task_id=%s status=%s score=%.3f verified_at=%s\n",
		report.TaskID, status, report.Score, report.VerifiedAt)

	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		check := report.Checks[name]
		outcome := "fail"
		if check.Passed {
			outcome = "pass"
		}
		fmt.Printf("check=%s outcome=%s score=%.3f\n", name, outcome, check.Score)
	}
	return 0
}
