package proxyengine

import "testing"

func TestIsRewritableContentType(t *testing.T) {
	cases := map[string]bool{
		"application/json":            true,
		"application/json; charset=utf-8": true,
		"text/xml":                    true,
		"text/plain":                  false,
		"":                            false,
	}
	for ct, want := range cases {
		if got := IsRewritableContentType(ct); got != want {
			t.Errorf("IsRewritableContentType(%q) = %v, want %v", ct, got, want)
		}
	}
}

func TestRewriteResponseURLs(t *testing.T) {
	body := []byte(`{"self":"https://backend.internal/api/orders/42"}`)
	out := RewriteResponseURLs(body, "https://backend.internal", "https://gw.example.com/api/prod/orders")
	want := `{"self":"https://gw.example.com/api/prod/orders/api/orders/42"}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestRewriteResponseURLsNoop(t *testing.T) {
	body := []byte(`{"a":1}`)
	out := RewriteResponseURLs(body, "", "https://gw.example.com")
	if string(out) != string(body) {
		t.Fatal("empty upstreamBase should leave body untouched")
	}
}
