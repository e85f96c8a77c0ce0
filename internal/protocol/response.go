package protocol

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// Status is a wire status code/text pair.
type Status struct {
	Code int
	Text string
}

var (
	StatusOK         = Status{200, "OK"}
	StatusNotFound   = Status{404, "NOT-FOUND"}
	StatusBadRequest = Status{400, "BAD-REQUEST"}
	StatusBusy       = Status{503, "BUSY"}
)

// WriteFramed writes a status line `<code> <text> <count>`, followed by
// each body line, followed by the literal line "END". It never returns a
// protocol-level error; any write failure is the caller's I/O concern.
func WriteFramed(w io.Writer, status Status, count int, body []string) error {
	if _, err := fmt.Fprintf(w, "%d %s %d\n", status.Code, status.Text, count); err != nil {
		return err
	}
	for _, line := range body {
		if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "END\n")
	return err
}

// WriteBadRequest writes a bare "400 BAD-REQUEST <reason>" line followed by
// "END", with no trailing count field, matching the wire format.
func WriteBadRequest(w io.Writer, reason string) error {
	if _, err := fmt.Fprintf(w, "400 BAD-REQUEST %s\n", reason); err != nil {
		return err
	}
	_, err := io.WriteString(w, "END\n")
	return err
}

// WriteBusy writes the backpressure-rejection response.
func WriteBusy(w io.Writer) error {
	return WriteFramed(w, StatusBusy, 0, nil)
}

// WriteNotFound writes the empty-result response.
func WriteNotFound(w io.Writer) error {
	return WriteFramed(w, StatusNotFound, 0, nil)
}

// GzipBody compresses words (joined by \n, no trailing newline) and
// base64-encodes the result, returning the single "GZIP <base64>" body
// line per §4.4/§6.
func GzipBody(words []string) (string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := io.WriteString(gz, strings.Join(words, "\n")); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	return "GZIP " + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeGzipBody reverses GzipBody, used by tests verifying the round-trip
// invariant (§8 property 8).
func DecodeGzipBody(line string) ([]string, error) {
	const prefix = "GZIP "
	if !strings.HasPrefix(line, prefix) {
		return nil, fmt.Errorf("not a GZIP body line")
	}
	raw, err := base64.StdEncoding.DecodeString(line[len(prefix):])
	if err != nil {
		return nil, err
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return strings.Split(string(data), "\n"), nil
}
