package fileengine

import "testing"

func TestSanitizeFileName(t *testing.T) {
	if got := SanitizeFileName("../../etc/passwd"); got != "passwd" {
		t.Fatalf("SanitizeFileName = %q, want passwd with directory components stripped", got)
	}
	if got := SanitizeFileName("report 2024!.csv"); got != "report_2024_.csv" {
		t.Fatalf("SanitizeFileName = %q, want invalid chars replaced", got)
	}
}

func TestEncodeDecodeFileIDRoundTrip(t *testing.T) {
	id := EncodeFileID("prod", "invoices/2024/jan.pdf")
	decoded, err := DecodeFileID(id)
	if err != nil {
		t.Fatalf("DecodeFileID: %v", err)
	}
	if decoded.Environment != "prod" || decoded.RelativePath != "invoices/2024/jan.pdf" || decoded.Absolute {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestEncodeDecodeAbsoluteFileID(t *testing.T) {
	id := EncodeAbsoluteFileID("prod", "exports/full.csv")
	decoded, err := DecodeFileID(id)
	if err != nil {
		t.Fatalf("DecodeFileID: %v", err)
	}
	if !decoded.Absolute {
		t.Fatal("expected Absolute=true for an ABS:-prefixed fileId")
	}
}

func TestDecodeFileIDRejectsPathEscape(t *testing.T) {
	id := EncodeFileID("prod", "../../etc/passwd")
	if _, err := DecodeFileID(id); err == nil {
		t.Fatal("expected PathEscape error for a .. relative path")
	}
}

func TestDecodeFileIDRejectsMalformed(t *testing.T) {
	if _, err := DecodeFileID("not-valid-base64!!"); err == nil {
		t.Fatal("expected error for malformed fileId")
	}
}
