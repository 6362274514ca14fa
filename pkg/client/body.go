package client

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

// decodeBody undoes Content-Encoding and converts the charset to UTF-8.
// Failures at either step keep the bytes as they were.
func decodeBody(raw []byte, contentEncoding, contentType string) string {
	data, err := decompress(raw, contentEncoding)
	if err != nil {
		data = raw
	}
	return toUTF8(data, contentType)
}

// decompress applies the listed encodings in reverse order.
func decompress(raw []byte, contentEncoding string) ([]byte, error) {
	encodings := strings.Split(contentEncoding, ",")
	data := raw
	for i := len(encodings) - 1; i >= 0; i-- {
		enc := strings.ToLower(strings.TrimSpace(encodings[i]))
		var err error
		switch enc {
		case "", "identity":
			continue
		case "gzip", "x-gzip":
			data, err = readAllFrom(gzip.NewReader(bytes.NewReader(data)))
		case "deflate":
			// Servers send either zlib-wrapped or raw deflate streams.
			zdata, zerr := readAllFrom(zlib.NewReader(bytes.NewReader(data)))
			if zerr == nil {
				data = zdata
			} else {
				data, err = io.ReadAll(flate.NewReader(bytes.NewReader(data)))
			}
		case "br":
			data, err = io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
		default:
			return nil, fmt.Errorf("unsupported content encoding: %s", enc)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", enc, err)
		}
	}
	return data, nil
}

func readAllFrom(r io.ReadCloser, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

// toUTF8 converts data when Content-Type names a charset other than UTF-8.
func toUTF8(data []byte, contentType string) string {
	if contentType == "" {
		return string(data)
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return string(data)
	}
	cs := strings.ToLower(strings.TrimSpace(params["charset"]))
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return string(data)
	}
	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return string(data)
	}
	converted, err := io.ReadAll(r)
	if err != nil {
		return string(data)
	}
	return string(converted)
}
