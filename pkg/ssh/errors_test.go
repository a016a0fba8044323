package ssh

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/ssh/knownhosts"
)

func TestClassifyDialError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"deadline", fmt.Errorf("dial: %w", os.ErrDeadlineExceeded), KindTimeout},
		{"refused errno", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), KindRefused},
		{"refused text", errors.New("dial tcp 10.0.0.1:22: connect: connection refused"), KindRefused},
		{"no route", errors.New("dial tcp 10.0.0.1:22: connect: no route to host"), KindUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyDialError(tt.err))
		})
	}
}

func TestClassifyHandshakeError(t *testing.T) {
	authErr := errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none publickey], no supported methods remain")
	assert.Equal(t, KindAuthFailed, classifyHandshakeError(authErr, nil))
	assert.Equal(t, KindHandshake, classifyHandshakeError(errors.New("ssh: handshake failed: EOF"), nil))
	assert.Equal(t, KindTimeout, classifyHandshakeError(errors.New("read tcp: i/o timeout"), nil))

	unknown := &HostKeyError{Host: "h:22"}
	assert.Equal(t, KindUnknownHostKey, classifyHandshakeError(authErr, unknown))

	changed := &HostKeyError{Host: "h:22", Want: []knownhosts.KnownKey{{Filename: "known_hosts", Line: 1}}}
	assert.Equal(t, KindHostKeyMismatch, classifyHandshakeError(authErr, changed))
}

func TestConnectionErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", &ConnectionError{Kind: KindRefused, Hostname: "db", Address: "user@10.0.0.2", Err: cause})

	assert.True(t, IsKind(err, KindRefused))
	assert.False(t, IsKind(err, KindTimeout))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, err.Error(), "user@10.0.0.2")
}
