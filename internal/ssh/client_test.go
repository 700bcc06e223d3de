package ssh

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"testing"

	gossh "golang.org/x/crypto/ssh"

	"github.com/zx06/xssh/internal/errors"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

var errAuth = fmt.Errorf("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none publickey]")

// scriptDial 按调用次序返回脚本化结果，并记录每次握手的凭据数。
type scriptDial struct {
	script []error
	calls  int
	auths  []int
}

func (d *scriptDial) dial(network, addr string, config *gossh.ClientConfig) (*gossh.Client, error) {
	d.auths = append(d.auths, len(config.Auth))
	i := d.calls
	d.calls++
	if i >= len(d.script) {
		return nil, errAuth
	}
	if d.script[i] != nil {
		return nil, d.script[i]
	}
	return &gossh.Client{}, nil
}

func chainOpts(t *testing.T, dial *scriptDial, keys ...string) Options {
	t.Helper()
	home := t.TempDir()
	for _, name := range keys {
		writeKey(t, home, name)
	}
	return Options{
		Host:        "example.com",
		User:        "ops",
		HomeDir:     home,
		NoAgent:     true,
		SkipHostKey: true,
		Dial:        dial.dial,
	}
}

func TestConnectStopsAtFirstSuccess(t *testing.T) {
	dial := &scriptDial{script: []error{errAuth, nil}}
	opts := chainOpts(t, dial, "id_ed25519", "id_rsa", "id_ecdsa")

	client, xe := Connect(context.Background(), opts)
	if xe != nil {
		t.Fatalf("Connect failed: %v", xe)
	}
	if client == nil {
		t.Fatal("successful connect should return a client")
	}
	if dial.calls != 2 {
		t.Errorf("dial called %d times, want 2 (stop at first success)", dial.calls)
	}
	for i, n := range dial.auths {
		if n != 1 {
			t.Errorf("handshake %d carried %d auth methods, want exactly 1", i, n)
		}
	}
}

func TestConnectExhaustsChain(t *testing.T) {
	dial := &scriptDial{script: []error{errAuth, errAuth}}
	opts := chainOpts(t, dial, "id_ed25519", "id_rsa")

	_, xe := Connect(context.Background(), opts)
	if xe == nil {
		t.Fatal("exhausted chain should fail")
	}
	if xe.Code != errors.CodeAuthExhausted {
		t.Errorf("code = %s, want %s", xe.Code, errors.CodeAuthExhausted)
	}
	if dial.calls != 2 {
		t.Errorf("dial called %d times, want 2", dial.calls)
	}
}

func TestConnectEmptyChainFailsBeforeDial(t *testing.T) {
	dial := &scriptDial{}
	opts := chainOpts(t, dial) // 无任何私钥，无 agent
	_, xe := Connect(context.Background(), opts)
	if xe == nil || xe.Code != errors.CodeAuthExhausted {
		t.Fatalf("empty chain should fail with %s, got %v", errors.CodeAuthExhausted, xe)
	}
	if dial.calls != 0 {
		t.Errorf("dial called %d times, want 0", dial.calls)
	}
}

func TestConnectFatalCredentialDoesNotFallThrough(t *testing.T) {
	dial := &scriptDial{script: []error{errAuth}}
	home := t.TempDir()
	writeKey(t, home, "id_ed25519") // 不应被尝试

	opts := Options{
		Host:        "example.com",
		User:        "ops",
		HomeDir:     home,
		KeyMaterial: string(genKeyPEM(t)),
		SkipHostKey: true,
		Dial:        dial.dial,
	}
	_, xe := Connect(context.Background(), opts)
	if xe == nil || xe.Code != errors.CodeAuthExhausted {
		t.Fatalf("fatal credential failure should end the chain, got %v", xe)
	}
	if dial.calls != 1 {
		t.Errorf("dial called %d times, want 1 (no fallback after fatal candidate)", dial.calls)
	}
}

func TestConnectRetryableClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.Code
	}{
		{name: "timeout", err: timeoutErr{}, want: errors.CodeDialTimeout},
		{name: "refused", err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, want: errors.CodeDialRefused},
		{name: "protocol failure", err: fmt.Errorf("ssh: handshake failed: EOF"), want: errors.CodeSessionFailed},
		{name: "dns failure", err: &net.DNSError{Err: "no such host", Name: "example.com", IsNotFound: true}, want: errors.CodeSessionFailed},
		{name: "network unreachable", err: &net.OpError{Op: "dial", Err: syscall.ENETUNREACH}, want: errors.CodeSessionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dial := &scriptDial{script: []error{tt.err}}
			opts := chainOpts(t, dial, "id_ed25519", "id_rsa")

			_, xe := Connect(context.Background(), opts)
			if xe == nil {
				t.Fatal("transport failure should be fatal for the attempt")
			}
			if xe.Code != tt.want {
				t.Errorf("code = %s, want %s", xe.Code, tt.want)
			}
			if dial.calls != 1 {
				t.Errorf("dial called %d times, want 1 (transport failure ends the chain)", dial.calls)
			}
			// 只有超时 / 拒绝消耗重试次数。
			wantRetry := tt.want == errors.CodeDialTimeout || tt.want == errors.CodeDialRefused
			if got := errors.Retryable(xe.Code); got != wantRetry {
				t.Errorf("Retryable(%s) = %v, want %v", xe.Code, got, wantRetry)
			}
		})
	}
}

func TestConnectSurfacesTrustDecision(t *testing.T) {
	trust := NewTrustStore(t.TempDir()+"/known_hosts", nil, &nopWriter{}, false, nil)
	trust.fail(errors.New(errors.CodeHostKeyMismatch, "remote host identification has changed", nil))

	dial := &scriptDial{script: []error{fmt.Errorf("ssh: handshake failed: callback rejected key")}}
	home := t.TempDir()
	writeKey(t, home, "id_ed25519")
	opts := Options{
		Host:    "example.com",
		User:    "ops",
		HomeDir: home,
		NoAgent: true,
		Trust:   trust,
		Dial:    dial.dial,
	}
	_, xe := Connect(context.Background(), opts)
	if xe == nil || xe.Code != errors.CodeHostKeyMismatch {
		t.Fatalf("trust decision should win over dial error classification, got %v", xe)
	}
}

func TestConnectRequiresHost(t *testing.T) {
	_, xe := Connect(context.Background(), Options{})
	if xe == nil || xe.Code != errors.CodeCfgInvalid {
		t.Fatalf("missing host should fail with %s, got %v", errors.CodeCfgInvalid, xe)
	}
}

func TestClassifyDialErrorAuthContinues(t *testing.T) {
	if xe := classifyDialError(errAuth, "example.com:22"); xe != nil {
		t.Errorf("auth rejection should continue the chain, got %v", xe)
	}
}

func TestClientNilGuards(t *testing.T) {
	c := &Client{}
	if _, err := c.NewSession(); err == nil {
		t.Error("NewSession on disconnected client should fail")
	}
	if _, err := c.OpenTunnel("h", 80, nil); err == nil {
		t.Error("OpenTunnel on disconnected client should fail")
	}
	if err := c.SendKeepalive(); err == nil {
		t.Error("SendKeepalive on disconnected client should fail")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on disconnected client should be a no-op: %v", err)
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
