package utils

import (
	"os"
	"path/filepath"
	"testing"

	coreerrors "echo-core/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   string
		wantErr bool
		checkFn func(string) bool
	}{
		{
			name:  "expand ~/path",
			input: "~/echo.log",
			checkFn: func(got string) bool {
				return got == filepath.Join(homeDir, "echo.log")
			},
		},
		{
			name:  "expand ~ only",
			input: "~",
			checkFn: func(got string) bool {
				return got == homeDir
			},
		},
		{
			name:  "relative path",
			input: "./echo.log",
			checkFn: func(got string) bool {
				return filepath.IsAbs(got) && filepath.Base(got) == "echo.log"
			},
		},
		{
			name:  "absolute path",
			input: "/tmp/echo.log",
			checkFn: func(got string) bool {
				return got == "/tmp/echo.log"
			},
		},
		{
			name:    "empty path",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.input)
			if tt.wantErr {
				assert.True(t, coreerrors.IsCode(err, coreerrors.CodeInvalidParam))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.checkFn(got), "unexpected path %q", got)
		})
	}
}
