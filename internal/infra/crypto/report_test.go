package crypto

import (
	"bytes"
	"errors"
	"testing"

	"bountyd/internal/domain"
)

func testReport() domain.VerificationReport {
	return domain.VerificationReport{
		TaskID:          "task-1",
		EvidenceCID:     "bafy-evidence",
		Passed:          true,
		Score:           0.9133333333333333,
		ChecksPerformed: []string{"code_review", "tests_passing"},
		Checks: map[string]domain.CheckResult{
			"code_review":   {Name: "code_review", Passed: true, Score: 0.85},
			"tests_passing": {Name: "tests_passing", Passed: true, Score: 1.0},
		},
		VerifiedAt:      "2026-03-01T10:00:00Z",
		VerifierVersion: "test",
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	key, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	service, err := NewService(key)
	if err != nil {
		t.Fatalf("init service: %v", err)
	}
	return service
}

func TestSignAndVerifyReport(t *testing.T) {
	service := newTestService(t)
	report := testReport()

	if err := service.SignReport(&report); err != nil {
		t.Fatalf("sign report: %v", err)
	}
	if !report.Signed() {
		t.Fatalf("report should carry signature and pubkey")
	}
	if report.VerifierPubKey != service.PublicKeyHex() {
		t.Fatalf("pubkey mismatch")
	}
	if err := VerifyReport(report); err != nil {
		t.Fatalf("verify report: %v", err)
	}
}

func TestSignReportDeterministic(t *testing.T) {
	service := newTestService(t)

	first := testReport()
	second := testReport()
	if err := service.SignReport(&first); err != nil {
		t.Fatalf("sign report: %v", err)
	}
	if err := service.SignReport(&second); err != nil {
		t.Fatalf("sign report: %v", err)
	}
	if first.Signature != second.Signature {
		t.Fatalf("signing identical content must be deterministic")
	}

	firstBytes, err := MarshalReport(first)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}
	secondBytes, err := MarshalReport(second)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}
	if !bytes.Equal(firstBytes, secondBytes) {
		t.Fatalf("canonical bytes differ for identical reports")
	}
}

func TestResignAlreadySignedReport(t *testing.T) {
	service := newTestService(t)
	report := testReport()

	if err := service.SignReport(&report); err != nil {
		t.Fatalf("first sign: %v", err)
	}
	firstSig := report.Signature
	// Signing again replaces the old signature; it never signs over it.
	if err := service.SignReport(&report); err != nil {
		t.Fatalf("second sign: %v", err)
	}
	if report.Signature != firstSig {
		t.Fatalf("re-signing identical content produced a different signature")
	}
	if err := VerifyReport(report); err != nil {
		t.Fatalf("verify re-signed report: %v", err)
	}
}

func TestVerifyReportDetectsTampering(t *testing.T) {
	service := newTestService(t)
	report := testReport()
	if err := service.SignReport(&report); err != nil {
		t.Fatalf("sign report: %v", err)
	}

	tampered := report
	tampered.Score = 0.99
	if err := VerifyReport(tampered); err == nil {
		t.Fatalf("expected verification failure for tampered score")
	}

	tampered = report
	tampered.Passed = false
	if err := VerifyReport(tampered); err == nil {
		t.Fatalf("expected verification failure for tampered verdict")
	}

	// Swapping in another key's pubkey must invalidate the signature even
	// though the pubkey itself is well-formed.
	other := newTestService(t)
	tampered = report
	tampered.VerifierPubKey = other.PublicKeyHex()
	if err := VerifyReport(tampered); err == nil {
		t.Fatalf("expected verification failure for swapped pubkey")
	}
}

func TestVerifyReportUnsigned(t *testing.T) {
	if err := VerifyReport(testReport()); !errors.Is(err, domain.ErrUnsignedReport) {
		t.Fatalf("expected ErrUnsignedReport, got %v", err)
	}
}

func TestParseSigningKeyForms(t *testing.T) {
	key, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	fromSeed, err := parseSigningKey(key.Seed())
	if err != nil {
		t.Fatalf("parse seed: %v", err)
	}
	fromFull, err := parseSigningKey(key)
	if err != nil {
		t.Fatalf("parse full key: %v", err)
	}
	if !bytes.Equal(fromSeed, key) || !bytes.Equal(fromFull, key) {
		t.Fatalf("parsed keys differ from original")
	}

	if _, err := parseSigningKey([]byte("short")); err == nil {
		t.Fatalf("expected error for truncated key")
	}
}
