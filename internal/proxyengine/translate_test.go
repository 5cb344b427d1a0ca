package proxyengine

import (
	"net/http"
	"testing"
)

func TestApplyMethodTranslation(t *testing.T) {
	spec := "PUT:MERGE,DELETE:POST"
	if got := ApplyMethodTranslation(spec, "PUT"); got != "MERGE" {
		t.Fatalf("PUT -> %s, want MERGE", got)
	}
	if got := ApplyMethodTranslation(spec, "DELETE"); got != "POST" {
		t.Fatalf("DELETE -> %s, want POST", got)
	}
	if got := ApplyMethodTranslation(spec, "GET"); got != "GET" {
		t.Fatalf("unmatched method should pass through unchanged, got %s", got)
	}
	if got := ApplyMethodTranslation("", "PUT"); got != "PUT" {
		t.Fatalf("empty spec should leave method unchanged, got %s", got)
	}
}

func TestApplyMethodTranslationLegacySemicolon(t *testing.T) {
	if got := ApplyMethodTranslation("PUT:MERGE;DELETE:POST", "DELETE"); got != "POST" {
		t.Fatalf("legacy semicolon separator should still parse, got %s", got)
	}
}

func TestApplyHeaderAppend(t *testing.T) {
	headers := http.Header{}
	spec := "PUT:X-Original-Method={ORIGINAL_METHOD},X-Translated={TRANSLATED_METHOD},X-Literal=fixed"
	ApplyHeaderAppend(spec, "PUT", "MERGE", headers, ConflictOverwrite)

	if got := headers.Get("X-Original-Method"); got != "PUT" {
		t.Fatalf("X-Original-Method = %q, want PUT", got)
	}
	if got := headers.Get("X-Translated"); got != "MERGE" {
		t.Fatalf("X-Translated = %q, want MERGE", got)
	}
	if got := headers.Get("X-Literal"); got != "fixed" {
		t.Fatalf("X-Literal = %q, want fixed", got)
	}
}

func TestApplyHeaderAppendConflictPolicy(t *testing.T) {
	spec := "PUT:X-Existing=new"

	skip := http.Header{"X-Existing": []string{"old"}}
	ApplyHeaderAppend(spec, "PUT", "PUT", skip, ConflictSkip)
	if got := skip.Get("X-Existing"); got != "old" {
		t.Fatalf("Skip policy should preserve existing header, got %q", got)
	}

	overwrite := http.Header{"X-Existing": []string{"old"}}
	ApplyHeaderAppend(spec, "PUT", "PUT", overwrite, ConflictOverwrite)
	if got := overwrite.Get("X-Existing"); got != "new" {
		t.Fatalf("Overwrite policy should replace existing header, got %q", got)
	}
}

func TestApplyHeaderAppendOnlyMatchesDeclaredMethod(t *testing.T) {
	headers := http.Header{}
	ApplyHeaderAppend("PUT:X-Foo=bar", "DELETE", "DELETE", headers, ConflictOverwrite)
	if headers.Get("X-Foo") != "" {
		t.Fatal("header append rule for PUT should not fire for a DELETE request")
	}
}
