package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFramedEndsWithEND(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFramed(&buf, StatusOK, 2, []string{"hello", "hallo"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Equal(t, "200 OK 2", lines[0])
	require.Equal(t, "hello", lines[1])
	require.Equal(t, "hallo", lines[2])
	require.Equal(t, "END", lines[len(lines)-1])
}

func TestWriteFramedCountMatchesBodyLength(t *testing.T) {
	var buf bytes.Buffer
	body := []string{"a", "b", "c"}
	require.NoError(t, WriteFramed(&buf, StatusOK, len(body), body))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Equal(t, "200 OK 3", lines[0])
}

func TestWriteBadRequest(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBadRequest(&buf, "missing pattern"))
	require.Equal(t, "400 BAD-REQUEST missing pattern\nEND\n", buf.String())
}

func TestWriteBusy(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBusy(&buf))
	require.Equal(t, "503 BUSY 0\nEND\n", buf.String())
}

func TestWriteNotFound(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteNotFound(&buf))
	require.Equal(t, "404 NOT-FOUND 0\nEND\n", buf.String())
}

func TestGzipRoundTrip(t *testing.T) {
	words := []string{"hello", "hallo", "hxllo"}
	line, err := GzipBody(words)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "GZIP "))

	got, err := DecodeGzipBody(line)
	require.NoError(t, err)
	require.Equal(t, words, got)
}

func TestDecodeGzipBodyEmpty(t *testing.T) {
	line, err := GzipBody(nil)
	require.NoError(t, err)

	got, err := DecodeGzipBody(line)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDecodeGzipBodyRejectsNonGzipLine(t *testing.T) {
	_, err := DecodeGzipBody("hello")
	require.Error(t, err)
}
