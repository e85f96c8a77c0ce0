package cliutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wsearchd/wsearchd/internal/config"
)

func TestAddr(t *testing.T) {
	cfg := config.Config{Host: "0.0.0.0", Port: 9090}
	require.Equal(t, "0.0.0.0:9090", Addr(cfg))
}

func TestSplitHostPort(t *testing.T) {
	host, port := SplitHostPort("localhost:9999", "127.0.0.1", 8080)
	require.Equal(t, "localhost", host)
	require.Equal(t, 9999, port)
}

func TestSplitHostPortFallsBackOnBadInput(t *testing.T) {
	host, port := SplitHostPort("", "127.0.0.1", 8080)
	require.Equal(t, "127.0.0.1", host)
	require.Equal(t, 8080, port)

	host, port = SplitHostPort("localhost:notanumber", "127.0.0.1", 8080)
	require.Equal(t, "localhost", host)
	require.Equal(t, 8080, port)
}
