// Package storage handles source-media plumbing: encoding uploaded bytes
// into an inline data URI for providers that accept one, building public
// object URLs for providers that fetch their input, and sweeping stale
// uploads out of the inputs bucket.
package storage

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const defaultMIME = "application/octet-stream"

// DataURI encodes uploaded bytes as a data URI so the provider call has
// no storage dependency.
func DataURI(mime string, data []byte) string {
	mime = strings.TrimSpace(mime)
	if mime == "" {
		mime = defaultMIME
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}

// PublicObjectURL builds the fetchable URL of an object in a public
// bucket, for providers that pull their source media themselves.
func PublicObjectURL(baseURL, bucket, objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		strings.TrimRight(baseURL, "/"),
		strings.Trim(bucket, "/"),
		strings.TrimLeft(objectPath, "/"),
	)
}
