package emailchange

// VerificationStatus is the terminal (or in-flight) state of a verification
// attempt. The server resolver and the client-side handler share these values.
type VerificationStatus string

const (
	StatusLoading VerificationStatus = "loading"
	StatusSuccess VerificationStatus = "success"
	StatusExpired VerificationStatus = "expired"
	StatusError   VerificationStatus = "error"
)
