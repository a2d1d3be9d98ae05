package api

import (
	"bytes"
	"mime/multipart"
	"testing"
)

// newMultipart writes a multipart form with the given text fields into
// buf and returns the Content-Type header to send with it.
func newMultipart(t *testing.T, buf *bytes.Buffer, fields map[string]string) string {
	t.Helper()
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write form field %q: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return mw.FormDataContentType()
}
