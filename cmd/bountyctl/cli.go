package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"bountyd/internal/domain"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "keygen":
		return runKeygen(args[2:])
	case "package":
		return runPackage(args[2:])
	case "verify":
		return runVerify(args[2:])
	case "report":
		if len(args) >= 3 && args[2] == "verify" {
			return runReportVerify(args[3:])
		}
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "bountyctl"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s keygen\n", name)
	fmt.Fprintf(os.Stderr, "  %s package --task <task.json> --contributor <id> [--pr-url <url>] [--pr-number <n>] [--demo-url <url>] [--description <text>] [--files <files.json>] [--tests-passing <true|false>] [--lighthouse <score>] [--findings <a,b,c>] [--out <bundle.json>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s verify --task <task.json> --bundle <bundle.json> [--threshold <0..1>] [--key-hex <seed>|--key-base64 <b64>] [--out <report.json>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s report verify --in <report.json> [--pubkey-hex <hex>]\n", name)
}

func readTaskSpec(path string) (domain.Task, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return domain.Task{}, fmt.Errorf("read task: %w", err)
	}
	var spec domain.TaskSpec
	if err := json.Unmarshal(payload, &spec); err != nil {
		return domain.Task{}, fmt.Errorf("decode task: %w", err)
	}
	if spec.TaskID == "" {
		return domain.Task{}, fmt.Errorf("task document has no task_id")
	}
	return domain.Task{
		ID:                   spec.TaskID,
		Title:                spec.Title,
		Category:             spec.Category,
		Bounty:               spec.Bounty,
		Deliverables:         spec.Deliverables,
		DefinitionOfDone:     spec.DefinitionOfDone,
		EvidenceRequirements: spec.EvidenceRequirements,
	}, nil
}

func writeOutput(outPath string, payload []byte) error {
	if outPath == "" {
		fmt.Println(string(payload))
		return nil
	}
	return os.WriteFile(outPath, payload, 0o644)
}
