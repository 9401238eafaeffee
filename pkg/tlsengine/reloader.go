package tlsengine

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long the reloader waits after a filesystem event
// before reloading, so a cert+key pair written in two steps is picked up as
// one change.
const defaultDebounce = 250 * time.Millisecond

// CertReloader loads a certificate key pair and reloads it when the files
// change on disk. Renewal (e.g. ACME) therefore never requires a restart.
type CertReloader struct {
	certFile string
	keyFile  string
	debounce time.Duration
	logger   *slog.Logger

	cert atomic.Pointer[tls.Certificate]
}

// NewCertReloader creates a reloader and performs the initial load.
func NewCertReloader(certFile, keyFile string) (*CertReloader, error) {
	r := &CertReloader{
		certFile: certFile,
		keyFile:  keyFile,
		debounce: defaultDebounce,
		logger:   slog.Default().With("component", "tlsengine.reloader"),
	}

	if err := r.Reload(); err != nil {
		return nil, err
	}

	return r, nil
}

// Reload loads the key pair from disk and swaps it in atomically.
// The previous certificate stays active if the new pair fails validation.
func (r *CertReloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("loading key pair: %w", err)
	}

	if err := ValidateCertificate(&cert); err != nil {
		return fmt.Errorf("validating certificate %s: %w", r.certFile, err)
	}

	r.cert.Store(&cert)
	r.logCertificateInfo()

	return nil
}

// Watch reloads the certificate whenever its files change, until ctx is
// cancelled. It watches the parent directories rather than the files
// themselves, since renewal tooling usually replaces files by rename.
func (r *CertReloader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	dirs := map[string]struct{}{
		filepath.Dir(r.certFile): {},
		filepath.Dir(r.keyFile):  {},
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	go r.watchLoop(ctx, watcher)

	return nil
}

func (r *CertReloader) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !r.relevant(event) {
				continue
			}
			// Debounce: renewal writes cert and key close together.
			if timer == nil {
				timer = time.NewTimer(r.debounce)
				timerC = timer.C
			} else {
				timer.Reset(r.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error("certificate watcher error", "error", err)

		case <-timerC:
			if err := r.Reload(); err != nil {
				r.logger.Error("failed to reload certificate",
					"error", err,
					"cert_file", r.certFile,
				)
			} else {
				r.logger.Info("certificate reloaded", "cert_file", r.certFile)
			}
		}
	}
}

// relevant filters watcher events down to writes touching the watched pair.
func (r *CertReloader) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == filepath.Clean(r.certFile) || name == filepath.Clean(r.keyFile)
}

// GetCertificate returns the current certificate.
func (r *CertReloader) GetCertificate() *tls.Certificate {
	return r.cert.Load()
}

// GetCertificateFunc returns a callback for tls.Config.GetCertificate so
// every handshake sees the freshest certificate.
func (r *CertReloader) GetCertificateFunc() func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		cert := r.cert.Load()
		if cert == nil {
			return nil, fmt.Errorf("no certificate loaded")
		}
		return cert, nil
	}
}

// Leaf returns the parsed leaf certificate, or nil if none is loaded.
func (r *CertReloader) Leaf() *x509.Certificate {
	cert := r.cert.Load()
	if cert == nil || len(cert.Certificate) == 0 {
		return nil
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil
	}
	return leaf
}

func (r *CertReloader) logCertificateInfo() {
	leaf := r.Leaf()
	if leaf == nil {
		return
	}

	days, warning := CheckExpiration(leaf)
	if warning != "" {
		r.logger.Warn("certificate expiring soon",
			"subject", leaf.Subject.CommonName,
			"expires_in_days", days,
			"expires_at", leaf.NotAfter.Format(time.RFC3339),
		)
		return
	}

	r.logger.Info("certificate loaded",
		"subject", leaf.Subject.CommonName,
		"issuer", leaf.Issuer.CommonName,
		"expires_in_days", days,
		"expires_at", leaf.NotAfter.Format(time.RFC3339),
	)
}
