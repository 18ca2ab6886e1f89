package audio

import "encoding/base64"

// Encode converts raw bytes to the transport-safe string representation the
// wire protocol carries in its media payloads.
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Decode is the inverse of [Encode]. Decode(Encode(b)) == b for every byte
// sequence, including the empty one.
func Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
