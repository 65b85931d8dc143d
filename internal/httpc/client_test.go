package httpc

import (
	"testing"
	"time"
)

func TestNewClientTimeout(t *testing.T) {
	if got := NewClient(0).Timeout; got != DefaultTimeout {
		t.Errorf("NewClient(0).Timeout = %v, want %v", got, DefaultTimeout)
	}
	if got := NewClient(5 * time.Second).Timeout; got != 5*time.Second {
		t.Errorf("NewClient(5s).Timeout = %v", got)
	}
	if Client.Timeout != DefaultTimeout {
		t.Errorf("shared Client.Timeout = %v", Client.Timeout)
	}
}
