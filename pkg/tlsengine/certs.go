package tlsengine

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"
)

// expiryWarningWindow is how close to NotAfter a certificate may get before
// loads and scheduled checks start warning.
const expiryWarningWindow = 30 * 24 * time.Hour

// ValidateCertificate checks that a loaded key pair is currently valid.
// It rejects empty chains and certificates outside their validity window.
func ValidateCertificate(cert *tls.Certificate) error {
	if cert == nil {
		return fmt.Errorf("certificate is nil")
	}
	if len(cert.Certificate) == 0 {
		return fmt.Errorf("certificate chain is empty")
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	now := time.Now()
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("certificate is not yet valid (valid from %s)", leaf.NotBefore.Format(time.RFC3339))
	}
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("certificate expired on %s", leaf.NotAfter.Format(time.RFC3339))
	}

	return nil
}

// CheckExpiration returns the days until a certificate expires and a warning
// string when that is inside the warning window.
func CheckExpiration(cert *x509.Certificate) (daysUntilExpiry int, warning string) {
	remaining := time.Until(cert.NotAfter)
	daysUntilExpiry = int(remaining.Hours() / 24)

	if remaining < expiryWarningWindow {
		warning = fmt.Sprintf("certificate expires in %d days (on %s)",
			daysUntilExpiry, cert.NotAfter.Format("2006-01-02"))
	}

	return daysUntilExpiry, warning
}

// ParseMinVersion maps a configuration value ("1.2" or "1.3") to a TLS
// version constant. An empty value defaults to TLS 1.2 so older HTTP/1.1
// clients are not locked out of the dual-protocol listener.
func ParseMinVersion(s string) (uint16, error) {
	switch s {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS min version %q", s)
	}
}

// ParseCipherSuites maps configured cipher suite names to their IDs.
// An empty list returns nil, which lets crypto/tls pick its secure defaults.
func ParseCipherSuites(names []string) ([]uint16, error) {
	if len(names) == 0 {
		return nil, nil
	}

	byName := make(map[string]uint16)
	for _, cs := range tls.CipherSuites() {
		byName[cs.Name] = cs.ID
	}

	ids := make([]uint16, 0, len(names))
	for _, name := range names {
		id, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown or insecure cipher suite %q", name)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
