package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestCacheFlush_RejectsBadURL(t *testing.T) {
	var out bytes.Buffer
	app := &cli.App{
		Name:     "pharmacyctl",
		Writer:   &out,
		Commands: []*cli.Command{cacheCommand()},
	}

	err := app.Run([]string{"pharmacyctl", "cache", "flush", "--redis-url", "not-a-redis-url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")
	assert.Empty(t, out.String())
}
