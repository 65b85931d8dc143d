// Package httpc builds HTTP clients with connect and overall timeouts set.
// Hosted providers (OpenAI speech, Gemini OCR) use it instead of
// http.DefaultClient.
package httpc

import (
	"net"
	"net/http"
	"time"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	keepAlive             = 30 * time.Second
	idleConnTimeout       = 90 * time.Second
)

// Client is shared by callers that are happy with DefaultTimeout.
var Client = NewClient(DefaultTimeout)

// NewClient creates a client whose requests time out after timeout.
// A zero timeout uses DefaultTimeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(),
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: keepAlive,
		}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}
