package policyopa

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bountyd/internal/domain"
	cryptoinfra "bountyd/internal/infra/crypto"

	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.bountyd.settlement.result"

// Engine evaluates the settlement rego bundle against scored reports. The
// bundle decides whether a passing report may reach the ledger; the rego
// rules are what operators tune instead of redeploying the verifier.
type Engine struct {
	query      rego.PreparedEvalQuery
	bundleHash string
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath string) (*Engine, error) {
	bundleHash, err := computeBundleHash(bundlePath)
	if err != nil {
		return nil, err
	}

	r := rego.New(
		rego.Query(defaultQuery),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}

	return &Engine{query: prepared, bundleHash: bundleHash}, nil
}

func (e *Engine) BundleHash() string {
	return e.bundleHash
}

func (e *Engine) Evaluate(ctx context.Context, input domain.SettlementInput) (domain.PolicyResult, error) {
	if e == nil {
		return domain.PolicyResult{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyResult{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyResult{}, errors.New("empty policy result")
	}

	result, err := decodePolicyResult(results[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	sort.Slice(result.Deny, func(i, j int) bool {
		if result.Deny[i].Code == result.Deny[j].Code {
			return result.Deny[i].Message < result.Deny[j].Message
		}
		return result.Deny[i].Code < result.Deny[j].Code
	})
	return result, nil
}

func decodePolicyResult(value any) (domain.PolicyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	var result domain.PolicyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.PolicyResult{}, err
	}
	return result, nil
}

type bundleHashFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// computeBundleHash digests the normative bundle files in sorted order so a
// changed rule always produces a new hash, regardless of walk order.
func computeBundleHash(bundlePath string) (string, error) {
	fsys := os.DirFS(bundlePath)

	var files []bundleHashFile
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == "." || d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") {
			return nil
		}
		if !strings.HasSuffix(base, ".rego") && base != "data.json" {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		files = append(files, bundleHashFile{
			Path:   filepath.ToSlash(path),
			SHA256: hex.EncodeToString(sum[:]),
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	canonical, err := cryptoinfra.CanonicalizeAny(struct {
		Files []bundleHashFile `json:"files"`
	}{Files: files})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
