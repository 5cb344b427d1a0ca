package authz

import "testing"

func TestHashAndVerifyRoundTrip(t *testing.T) {
	hash, salt, iterations, err := HashToken("tok_abc123.supersecret")
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}
	if !Verify("tok_abc123.supersecret", hash, salt, iterations) {
		t.Fatal("Verify should succeed for the original token")
	}
	if Verify("tok_abc123.wrong", hash, salt, iterations) {
		t.Fatal("Verify should fail for a different token")
	}
}

func TestVerifyRejectsMalformedSalt(t *testing.T) {
	if Verify("anything", "not-base64!!", "also-not-base64!!", DefaultIterations) {
		t.Fatal("Verify should reject malformed stored fields rather than panic")
	}
}

func TestVerifyDefaultsIterationsWhenUnset(t *testing.T) {
	hash, salt, _, err := HashToken("secret")
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}
	if !Verify("secret", hash, salt, 0) {
		t.Fatal("Verify should fall back to DefaultIterations when iterations is 0")
	}
}
