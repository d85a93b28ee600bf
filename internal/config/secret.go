package config

// SecretString holds a credential. It prints and marshals redacted so API keys
// never reach logs or status payloads.
type SecretString string

const redacted = "[REDACTED]"

// String implements fmt.Stringer.
func (s SecretString) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// MarshalJSON implements json.Marshaler.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Unmask returns the raw value for handing to a client library.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether a value was configured.
func (s SecretString) IsSet() bool {
	return s != ""
}
