package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"bountyd/internal/domain"
)

// Service signs verification reports with the verifier's ed25519 key and
// produces canonical bytes for content-addressing.
type Service struct {
	key ed25519.PrivateKey
}

func NewService(key ed25519.PrivateKey) (*Service, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid ed25519 private key length")
	}
	return &Service{key: key}, nil
}

func (s *Service) PublicKeyHex() string {
	return hex.EncodeToString(s.key.Public().(ed25519.PublicKey))
}

// SignReport fills VerifierPubKey, canonicalizes the report without the
// signature field and writes the detached signature back hex-encoded.
func (s *Service) SignReport(report *domain.VerificationReport) error {
	if report == nil {
		return errors.New("report is nil")
	}
	report.VerifierPubKey = s.PublicKeyHex()
	report.Signature = ""

	canonical, err := CanonicalizeAny(buildReportPayload(*report))
	if err != nil {
		return fmt.Errorf("canonicalize report: %w", err)
	}
	report.Signature = hex.EncodeToString(ed25519.Sign(s.key, canonical))
	return nil
}

// VerifyReport re-derives the canonical serialization and checks the
// detached signature against the embedded public key.
func VerifyReport(report domain.VerificationReport) error {
	if !report.Signed() {
		return domain.ErrUnsignedReport
	}
	pubKey, err := ParsePublicKeyHex(report.VerifierPubKey)
	if err != nil {
		return fmt.Errorf("invalid verifier public key: %w", err)
	}
	sig, err := hex.DecodeString(report.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid ed25519 signature length: %d", len(sig))
	}
	canonical, err := CanonicalizeAny(buildReportPayload(report))
	if err != nil {
		return fmt.Errorf("canonicalize report: %w", err)
	}
	if !ed25519.Verify(pubKey, canonical, sig) {
		return errors.New("report signature verification failed")
	}
	return nil
}

// MarshalReport returns the canonical bytes of a signed report, the exact
// content published to the content store.
func MarshalReport(report domain.VerificationReport) ([]byte, error) {
	return CanonicalizeAny(report)
}

func (s *Service) MarshalReport(report domain.VerificationReport) ([]byte, error) {
	return MarshalReport(report)
}

// MarshalBundle returns the canonical bytes of an evidence bundle so that
// identical evidence content always maps to the same CID.
func MarshalBundle(bundle domain.EvidenceBundle) ([]byte, error) {
	return CanonicalizeAny(bundle)
}

// reportPayload mirrors VerificationReport minus the signature field; the
// signature covers everything else, the embedded public key included.
type reportPayload struct {
	TaskID          string                        `json:"task_id"`
	EvidenceCID     string                        `json:"evidence_cid"`
	Passed          bool                          `json:"passed"`
	Score           float64                       `json:"score"`
	ChecksPerformed []string                      `json:"checks_performed"`
	Checks          map[string]domain.CheckResult `json:"checks"`
	VerifiedAt      string                        `json:"verified_at"`
	VerifierVersion string                        `json:"verifier_version"`
	VerifierPubKey  string                        `json:"verifier_pubkey"`
}

func buildReportPayload(report domain.VerificationReport) reportPayload {
	return reportPayload{
		TaskID:          report.TaskID,
		EvidenceCID:     report.EvidenceCID,
		Passed:          report.Passed,
		Score:           report.Score,
		ChecksPerformed: report.ChecksPerformed,
		Checks:          report.Checks,
		VerifiedAt:      report.VerifiedAt,
		VerifierVersion: report.VerifierVersion,
		VerifierPubKey:  report.VerifierPubKey,
	}
}
