package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckArgs(t *testing.T) {
	tests := []struct {
		name    string
		dbURL   string
		apiKey  string
		pepper  string
		wantErr string
	}{
		{name: "complete", dbURL: "postgres://localhost/bytebuy", apiKey: "key", pepper: "pepper"},
		{name: "no database", apiKey: "key", pepper: "pepper", wantErr: "database URL"},
		{name: "no key", dbURL: "postgres://localhost/bytebuy", pepper: "pepper", wantErr: "API key is required"},
		{name: "no pepper", dbURL: "postgres://localhost/bytebuy", apiKey: "key", wantErr: "pepper is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkArgs(tt.dbURL, tt.apiKey, tt.pepper)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
