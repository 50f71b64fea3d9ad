package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://localhost:8899", "localnet"},
		{"http://127.0.0.1:8899", "localnet"},
		{"https://api.devnet.solana.com", "devnet"},
		{"https://api.testnet.solana.com", "testnet"},
		{"https://api.mainnet-beta.solana.com", "mainnet"},
		{"https://mainnet.helius-rpc.com/?api-key=abc", "helius"},
		{"https://example.quiknode.pro/token", "quiknode"},
		{"https://rpc.example.org", "rpc.example.org"},
		{"not a url", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, EndpointLabel(tt.url))
		})
	}
}
