package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResolver_LiteralKeysResolveWithoutLookups(t *testing.T) {
	t.Parallel()

	link := "archive://" + strings.Repeat("b", 64) + "/notes.txt"

	key, err := newResolver().Resolve(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("b", 64), string(key))
}
