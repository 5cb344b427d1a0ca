package sqlengine

import "testing"

func TestLexBasicTokens(t *testing.T) {
	tokens, err := Lex("age gt 18 and name eq 'Jo''e'")
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	wantKinds := []TokenKind{
		TokenIdentifier, TokenOp, TokenNumber, TokenAnd, TokenIdentifier, TokenOp, TokenString, TokenEOF,
	}
	if len(tokens) != len(wantKinds) {
		t.Fatalf("got %d tokens, want %d: %+v", len(tokens), len(wantKinds), tokens)
	}
	for i, k := range wantKinds {
		if tokens[i].Kind != k {
			t.Errorf("token %d kind = %v, want %v", i, tokens[i].Kind, k)
		}
	}
	if tokens[6].Value != "Jo'e" {
		t.Errorf("escaped string = %q, want %q", tokens[6].Value, "Jo'e")
	}
}

func TestLexFunctionAndDate(t *testing.T) {
	tokens, err := Lex("contains(name,'a') and created gt 2024-01-01")
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	if tokens[0].Kind != TokenFunc {
		t.Fatalf("expected TokenFunc, got %v", tokens[0].Kind)
	}
	var sawDate bool
	for _, tok := range tokens {
		if tok.Kind == TokenDate {
			sawDate = true
			if tok.Value != "2024-01-01" {
				t.Errorf("date value = %q", tok.Value)
			}
		}
	}
	if !sawDate {
		t.Fatal("expected a TokenDate in the stream")
	}
}

func TestLexUnknownCharacterFails(t *testing.T) {
	if _, err := Lex("age gt 18 #bad"); err == nil {
		t.Fatal("expected a lex error for an unknown character")
	}
}

func TestLexUnterminatedStringFails(t *testing.T) {
	if _, err := Lex("name eq 'unterminated"); err == nil {
		t.Fatal("expected a lex error for an unterminated string")
	}
}

func TestLexNegativeNumber(t *testing.T) {
	tokens, err := Lex("balance lt -5.5")
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	if tokens[2].Kind != TokenNumber || tokens[2].Value != "-5.5" {
		t.Fatalf("got %+v", tokens[2])
	}
}
