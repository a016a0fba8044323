package ssh

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveDefaults(t *testing.T) {
	r := SessionConfig{}.Resolve()
	assert.Equal(t, "user", r.Username)
	assert.Equal(t, uint16(22), r.Port)
	assert.Equal(t, HostKeyStrict, r.HostKeyPolicy)
	assert.Equal(t, 30*time.Second, r.ConnectTimeout)
}

func TestResolveOverrides(t *testing.T) {
	tests := []struct {
		name string
		cfg  SessionConfig
		want ResolvedConfig
	}{
		{
			name: "all set",
			cfg:  SessionConfig{}.WithUsername("admin").WithPort(2222).WithStrictHostKeyChecking(false).WithConnectTimeout(5),
			want: ResolvedConfig{Username: "admin", Port: 2222, HostKeyPolicy: HostKeyAccept, ConnectTimeout: 5 * time.Second},
		},
		{
			name: "explicit strict",
			cfg:  SessionConfig{}.WithStrictHostKeyChecking(true),
			want: ResolvedConfig{Username: "user", Port: 22, HostKeyPolicy: HostKeyStrict, ConnectTimeout: 30 * time.Second},
		},
		{
			name: "zero timeout means default",
			cfg:  SessionConfig{}.WithConnectTimeout(0),
			want: ResolvedConfig{Username: "user", Port: 22, HostKeyPolicy: HostKeyStrict, ConnectTimeout: 30 * time.Second},
		},
		{
			name: "oversized timeout is capped",
			cfg:  SessionConfig{}.WithConnectTimeout(math.MaxUint64),
			want: ResolvedConfig{Username: "user", Port: 22, HostKeyPolicy: HostKeyStrict, ConnectTimeout: time.Duration(maxTimeoutSeconds) * time.Second},
		},
		{
			name: "empty username means default",
			cfg:  SessionConfig{}.WithUsername(""),
			want: ResolvedConfig{Username: "user", Port: 22, HostKeyPolicy: HostKeyStrict, ConnectTimeout: 30 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Resolve())
		})
	}
}

func TestResolveTimeoutNeverNegative(t *testing.T) {
	for _, secs := range []uint64{maxTimeoutSeconds, maxTimeoutSeconds + 1, math.MaxInt64, math.MaxUint64} {
		r := SessionConfig{}.WithConnectTimeout(secs).Resolve()
		assert.Positive(t, r.ConnectTimeout, "connect_timeout=%d", secs)
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  SessionConfig
		host string
		want string
		dial string
	}{
		{"default port omitted", SessionConfig{}, "10.0.0.5", "user@10.0.0.5", "10.0.0.5:22"},
		{"custom port", SessionConfig{}.WithUsername("root").WithPort(2200), "10.0.0.5", "root@10.0.0.5:2200", "10.0.0.5:2200"},
		{"ipv6", SessionConfig{}.WithPort(2200), "::1", "user@::1:2200", "[::1]:2200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.cfg.Resolve()
			assert.Equal(t, tt.want, r.Address(tt.host))
			assert.Equal(t, tt.dial, r.DialAddress(tt.host))
		})
	}
}

func TestHostKeyPolicyString(t *testing.T) {
	assert.Equal(t, "strict", HostKeyStrict.String())
	assert.Equal(t, "accept", HostKeyAccept.String())
}
