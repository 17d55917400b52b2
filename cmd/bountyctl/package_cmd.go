package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"bountyd/internal/domain"
	"bountyd/internal/infra/contentstore"
	"bountyd/internal/infra/crypto"
	"bountyd/internal/usecase"
)

func runPackage(args []string) int {
	fs := flag.NewFlagSet("package", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var taskPath string
	var contributor string
	var prURL string
	var prNumber int
	var demoURL string
	var description string
	var filesPath string
	var testsPassing string
	var lighthouse float64
	var findings string
	var outPath string

	fs.StringVar(&taskPath, "task", "", "task document (JSON)")
	fs.StringVar(&contributor, "contributor", "", "contributor identity")
	fs.StringVar(&prURL, "pr-url", "", "pull request URL")
	fs.IntVar(&prNumber, "pr-number", 0, "pull request number")
	fs.StringVar(&demoURL, "demo-url", "", "demo URL")
	fs.StringVar(&description, "description", "", "work description")
	fs.StringVar(&filesPath, "files", "", "file manifest JSON (array of {path,size})")
	fs.StringVar(&testsPassing, "tests-passing", "", "test run outcome (true|false)")
	fs.Float64Var(&lighthouse, "lighthouse", -1, "lighthouse accessibility score (0-100)")
	fs.StringVar(&findings, "findings", "", "comma-separated security findings")
	fs.StringVar(&outPath, "out", "", "output bundle path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if taskPath == "" || contributor == "" {
		fmt.Fprintln(os.Stderr, "package requires --task and --contributor")
		return 1
	}

	task, err := readTaskSpec(taskPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	input := usecase.PackageInput{
		Contributor: contributor,
		DemoURL:     demoURL,
		Description: description,
	}
	if prURL != "" {
		input.PullRequest = &domain.PullRequestRef{URL: prURL, Number: prNumber}
	}
	if filesPath != "" {
		payload, err := os.ReadFile(filesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read files: %v\n", err)
			return 1
		}
		if err := json.Unmarshal(payload, &input.Files); err != nil {
			fmt.Fprintf(os.Stderr, "decode files: %v\n", err)
			return 1
		}
	}
	switch testsPassing {
	case "":
	case "true":
		v := true
		input.TestsPass = &v
	case "false":
		v := false
		input.TestsPass = &v
	default:
		fmt.Fprintln(os.Stderr, "tests-passing must be true or false")
		return 1
	}
	if lighthouse >= 0 {
		input.Lighthouse = &lighthouse
	}
	if findings != "" {
		for _, f := range strings.Split(findings, ",") {
			if f = strings.TrimSpace(f); f != "" {
				input.Findings = append(input.Findings, f)
			}
		}
	}

	bundle := usecase.NewPackager().Package(task, input)
	raw, err := crypto.MarshalBundle(bundle)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode bundle: %v\n", err)
		return 1
	}
	id, err := contentstore.CID(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compute cid: %v\n", err)
		return 1
	}

	if err := writeOutput(outPath, raw); err != nil {
		fmt.Fprintf(os.Stderr, "write bundle: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "evidence_cid=%s\n", id)
	for _, check := range bundle.DeliverableChecks {
		fmt.Fprintf(os.Stderr, "deliverable[%d] status=%s description=%q\n", check.Index, check.Status, check.Description)
	}
	return 0
}
