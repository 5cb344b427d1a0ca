package envreg

// Secret holds a sensitive string (a connection string) so that logging
// code can never accidentally stringify it. Passing the raw value to a
// backend driver via Reveal is the only sanctioned exit point, per the
// Design Note in spec §9: "Decrypted connection strings are held in a
// wiped-on-drop container; passing them to backend drivers is the only
// exit point."
type Secret struct {
	b []byte
}

// NewSecret copies v into a Secret-owned buffer.
func NewSecret(v string) Secret {
	b := make([]byte, len(v))
	copy(b, v)
	return Secret{b: b}
}

// Reveal returns the underlying value. Callers must not log or persist it.
func (s Secret) Reveal() string {
	if len(s.b) == 0 {
		return ""
	}
	return string(s.b)
}

// Wipe zeroes the backing buffer. Call when the Secret is no longer needed
// (e.g. on environment reload, replacing the previous snapshot).
func (s Secret) Wipe() {
	for i := range s.b {
		s.b[i] = 0
	}
}

// Masked returns a projection safe for logs: non-secret keys are kept,
// and any key that looks like it carries a credential is replaced with a
// fixed marker, never echoing even a prefix of the real value.
func Masked(connectionString string) map[string]string {
	out := map[string]string{}
	for _, pair := range splitPairs(connectionString) {
		key, _, ok := cutEquals(pair)
		if !ok {
			continue
		}
		if looksSensitive(key) {
			out[key] = "***MASKED***"
		} else {
			_, value, _ := cutEquals(pair)
			out[key] = value
		}
	}
	return out
}

func splitPairs(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ';' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func cutEquals(pair string) (key, value string, ok bool) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '=' {
			return trimSpace(pair[:i]), trimSpace(pair[i+1:]), true
		}
	}
	return "", "", false
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

func looksSensitive(key string) bool {
	lower := toLower(key)
	switch lower {
	case "password", "pwd", "user id", "uid", "apikey", "api key", "secret", "token":
		return true
	}
	return false
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
