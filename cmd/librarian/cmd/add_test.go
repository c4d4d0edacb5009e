package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddWait_TimesOutWhenJoinStalls(t *testing.T) {
	rootCmd.SetArgs([]string{
		"add",
		"--registry", "127.0.0.1:1/archives",
		"--plain-http",
		"--library-dir", t.TempDir(),
		"--wait",
		"--timeout", "100ms",
		strings.Repeat("a", 64),
	})

	err := rootCmd.Execute()
	require.ErrorContains(t, err, "timed out waiting for network join")
}
