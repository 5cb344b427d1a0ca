package ratelimit

import "testing"

func TestAllowWithinBurst(t *testing.T) {
	l := New(1, 3)
	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("ip:1.2.3.4")
		if !ok {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}
}

func TestAllowExceedsBurst(t *testing.T) {
	l := New(1, 2)
	l.Allow("ip:1.2.3.4")
	l.Allow("ip:1.2.3.4")
	ok, wait := l.Allow("ip:1.2.3.4")
	if ok {
		t.Fatal("third rapid request should be rejected")
	}
	if wait <= 0 {
		t.Fatal("rejected request should carry a positive retry delay")
	}
}

func TestBucketsAreIndependentPerKey(t *testing.T) {
	l := New(1, 1)
	l.Allow("ip:1.1.1.1")
	if ok, _ := l.Allow("ip:2.2.2.2"); !ok {
		t.Fatal("a different key should have its own independent bucket")
	}
}
