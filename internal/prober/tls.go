package prober

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math"
	"net"
	"strings"
	"time"
)

// Certificate summarizes the peer certificate extracted by TlsProber.
type Certificate struct {
	ValidFrom     time.Time
	ValidTo       time.Time
	IssuerCN      string
	SubjectCN     string
	SerialNumber  string
	Fingerprint   string
	DaysRemaining int
}

// TlsProber opens a TLS connection to host:port and reports on the leaf
// certificate's validity window (spec §4.8 TlsProber).
type TlsProber struct {
	WarnThresholdDays int
}

func NewTlsProber(warnThresholdDays int) *TlsProber {
	if warnThresholdDays <= 0 {
		warnThresholdDays = 30
	}
	return &TlsProber{WarnThresholdDays: warnThresholdDays}
}

// Probe implements Prober. target is a "host:port" pair, or a bare host
// (defaults to :443).
func (p *TlsProber) Probe(ctx context.Context, target string, config map[string]interface{}) (*Result, error) {
	host, port, err := net.SplitHostPort(target)
	if err != nil {
		host, port = target, "443"
	}

	warn := intField(config, "sslDaysUntilExpirationWarning", p.WarnThresholdDays)

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	start := time.Now()
	conn, err := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(host, port), &tls.Config{
		InsecureSkipVerify: true, // rejectUnauthorized=false per spec; validity is evaluated manually below
		ServerName:         host,
	})
	elapsed := time.Since(start)

	if err != nil {
		return p.classifyDialError(err, elapsed)
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return &Result{Status: StatusError, IsUp: false, ResponseTimeMs: durationMs(elapsed), Error: "no peer certificate presented"}, nil
	}
	leaf := certs[0]

	cert := certificateFromLeaf(leaf)
	now := time.Now()

	details := map[string]interface{}{"certificate": cert}

	switch {
	case now.Before(cert.ValidFrom):
		return &Result{Status: StatusError, IsUp: false, ResponseTimeMs: durationMs(elapsed), Details: details,
			Error: "certificate not yet valid"}, nil
	case now.After(cert.ValidTo):
		return &Result{Status: StatusDown, IsUp: false, ResponseTimeMs: durationMs(elapsed), Details: details}, nil
	case cert.DaysRemaining <= warn:
		details["sslWarning"] = fmt.Sprintf("certificate expires in %d day(s)", cert.DaysRemaining)
		return &Result{Status: StatusUp, IsUp: true, ResponseTimeMs: durationMs(elapsed), Details: details}, nil
	default:
		return &Result{Status: StatusUp, IsUp: true, ResponseTimeMs: durationMs(elapsed), Details: details}, nil
	}
}

func certificateFromLeaf(leaf *x509.Certificate) Certificate {
	daysRemaining := int(math.Ceil(time.Until(leaf.NotAfter).Hours() / 24))
	return Certificate{
		ValidFrom:     leaf.NotBefore,
		ValidTo:       leaf.NotAfter,
		IssuerCN:      leaf.Issuer.CommonName,
		SubjectCN:     leaf.Subject.CommonName,
		SerialNumber:  leaf.SerialNumber.String(),
		Fingerprint:   fingerprintSHA256(leaf.Raw),
		DaysRemaining: daysRemaining,
	}
}

func (p *TlsProber) classifyDialError(err error, elapsed time.Duration) (*Result, error) {
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "i/o timeout"):
		return &Result{Status: StatusTimeout, IsUp: false, ResponseTimeMs: durationMs(elapsed), Error: msg}, nil
	case strings.Contains(lower, "no such host"), strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no route to host"), strings.Contains(lower, "network is unreachable"),
		strings.Contains(lower, "certificate has expired"), strings.Contains(lower, "handshake failure"),
		strings.Contains(lower, "tls: "):
		return &Result{Status: StatusDown, IsUp: false, ResponseTimeMs: durationMs(elapsed), Error: msg}, nil
	default:
		return &Result{Status: StatusError, IsUp: false, ResponseTimeMs: durationMs(elapsed), Error: msg}, nil
	}
}

// ShouldPerformSSLCheck implements spec §4.10's shouldPerformSslCheck: cheap
// on calendar days, frequent as expiry approaches. hasPriorCheck, daysRemaining
// and hoursSinceLast describe the most recent completed SSL evaluation for
// this monitor (the caller resolves these from persisted state).
func ShouldPerformSSLCheck(hasPriorCheck bool, hoursSinceLast float64, daysRemaining, warnThreshold, checkFrequencyHours int) bool {
	if !hasPriorCheck {
		return true
	}
	if checkFrequencyHours <= 0 {
		checkFrequencyHours = 24
	}
	if hoursSinceLast >= float64(checkFrequencyHours) {
		return true
	}
	if daysRemaining <= warnThreshold && hoursSinceLast >= 1 {
		return true
	}
	if daysRemaining <= 2*warnThreshold && hoursSinceLast >= 6 {
		return true
	}
	return false
}
