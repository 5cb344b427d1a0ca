package authz

import "testing"

func TestMatchScope(t *testing.T) {
	cases := []struct {
		granted   []string
		requested string
		want      bool
	}{
		{[]string{"reports.monthly"}, "reports.monthly", true},
		{[]string{"reports.monthly"}, "reports.weekly", false},
		{[]string{"reports.*"}, "reports.monthly", true},
		{[]string{"reports.*"}, "invoices.monthly", false},
		{[]string{"*"}, "anything.at.all", true},
		{[]string{"reports.*.export"}, "reports.monthly.export", true},
		{[]string{"reports.*.export"}, "reports.monthly.preview", false},
		{nil, "reports.monthly", false},
	}
	for _, c := range cases {
		if got := MatchScope(c.granted, c.requested); got != c.want {
			t.Errorf("MatchScope(%v, %q) = %v, want %v", c.granted, c.requested, got, c.want)
		}
	}
}

func TestMatchEnvironment(t *testing.T) {
	if !MatchEnvironment(nil, "prod") {
		t.Fatal("empty grant list should match every environment")
	}
	if !MatchEnvironment([]string{"prod", "test"}, "test") {
		t.Fatal("exact match should succeed")
	}
	if MatchEnvironment([]string{"prod"}, "test") {
		t.Fatal("non-granted environment should not match")
	}
	if !MatchEnvironment([]string{"*"}, "whatever") {
		t.Fatal("wildcard grant should match every environment")
	}
}
