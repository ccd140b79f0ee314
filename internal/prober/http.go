package prober

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/supercheck/core/internal/httpclient"
	"github.com/supercheck/core/internal/xerrors"
)

var allowedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

const maxRedirects = 5

// HttpProber implements the http_request and website monitor types (spec
// §4.8). Monitors legitimately target internal infrastructure, so unlike
// the SaferClient's default, private-IP targets are NOT blocked here — see
// DESIGN.md for the rationale.
type HttpProber struct {
	client *httpclient.SaferClient
	tls    *TlsProber
}

func NewHttpProber(timeout time.Duration, tlsProber *TlsProber) *HttpProber {
	client := httpclient.NewSaferClientWithOptions(timeout, httpclient.SaferClientOptions{
		BlockPrivateIP: boolPtr(false),
		MaxRedirects:   intPtr(maxRedirects),
	})
	return &HttpProber{client: client, tls: tlsProber}
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

// Probe runs an HTTP check. config keys follow spec §6's http_request /
// website shape. When config["_performSslCheck"] is true and target is
// https://, the TLS certificate is also evaluated (website only).
func (p *HttpProber) Probe(ctx context.Context, target string, config map[string]interface{}) (*Result, error) {
	method := strings.ToUpper(stringField(config, "method", "GET"))
	if !allowedMethods[method] {
		method = "GET"
	}

	var body io.Reader
	if b := stringField(config, "body", ""); b != "" {
		body = strings.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &Result{Status: StatusError, Error: err.Error()}, nil
	}

	req.Header.Set("User-Agent", "Supercheck-Monitor/1.0")
	req.Header.Set("Accept", "*/*")
	applyHeaders(req, config)
	applyAuth(req, config)

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		return classifyHTTPError(err, elapsed), nil
	}
	defer resp.Body.Close()

	expected := stringField(config, "expectedStatusCodes", "")
	statusOK := matchStatusCodes(expected, resp.StatusCode)

	var bodyText string
	if keyword := stringField(config, "keywordInBody", ""); keyword != "" {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		bodyText = string(raw)
	}

	keywordOK := true
	if keyword := stringField(config, "keywordInBody", ""); keyword != "" {
		shouldBePresent := boolField(config, "keywordInBodyShouldBePresent", true)
		found := strings.Contains(strings.ToLower(bodyText), strings.ToLower(keyword))
		keywordOK = found == shouldBePresent
	}

	details := map[string]interface{}{"statusCode": resp.StatusCode}
	isUp := statusOK && keywordOK
	status := StatusUp
	if !isUp {
		status = StatusDown
	}

	if strings.HasPrefix(strings.ToLower(target), "https://") && boolField(config, "enableSslCheck", false) &&
		boolField(config, "_performSslCheck", false) && p.tls != nil {
		sslTarget := target
		if u, err := url.Parse(target); err == nil && u.Host != "" {
			sslTarget = u.Host
		}
		sslResult, _ := p.tls.Probe(ctx, sslTarget, config)
		if sslResult != nil {
			details["sslCertificate"] = sslResult.Details["certificate"]
			if sslResult.Status == StatusDown {
				isUp = false
				status = StatusDown
				details["sslFailure"] = sslResult.Error
			} else if w, ok := sslResult.Details["sslWarning"]; ok {
				details["sslWarning"] = w
			}
		}
	}

	return &Result{Status: status, IsUp: isUp, ResponseTimeMs: durationMs(elapsed), Details: details}, nil
}

func applyHeaders(req *http.Request, config map[string]interface{}) {
	raw, ok := config["headers"].(map[string]interface{})
	if !ok {
		return
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			req.Header.Set(k, s)
		}
	}
}

func applyAuth(req *http.Request, config map[string]interface{}) {
	auth, ok := config["auth"].(map[string]interface{})
	if !ok {
		return
	}
	switch stringField(auth, "type", "none") {
	case "basic":
		req.SetBasicAuth(stringField(auth, "username", ""), stringField(auth, "password", ""))
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+stringField(auth, "token", ""))
	}
}

func classifyHTTPError(err error, elapsed time.Duration) *Result {
	msg := err.Error()
	lower := strings.ToLower(msg)

	if strings.Contains(lower, "timeout") || xerrors.Is(err, context.DeadlineExceeded) {
		return &Result{Status: StatusTimeout, ResponseTimeMs: durationMs(elapsed), Error: msg}
	}
	return &Result{Status: StatusDown, ResponseTimeMs: durationMs(elapsed), Error: msg}
}
