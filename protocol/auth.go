package protocol

import (
	"crypto/sha1" //nolint:gosec // mysql_native_password is specified as SHA-1 by the wire protocol
	"crypto/sha256"
	"errors"
)

// Auth plugin names the session recognises.
const (
	PluginMysqlNativePassword = "mysql_native_password"
	PluginCachingSHA2Password = "caching_sha2_password"
)

// Caching-SHA2 ExtraAuthData status bytes.
const (
	AuthMoreDataCached    byte = 0x03
	AuthMoreDataFullAuth  byte = 0x04
)

// ErrUnsupportedAuthPlugin is returned when a server requests an auth
// plugin this client does not implement.
var ErrUnsupportedAuthPlugin = errors.New("protocol: unsupported auth plugin")

// scramble reduces challenge to exactly 20 bytes: the first 20 bytes of
// auth_plugin_data_part1 ++ part2 (both plugins use a 20-byte challenge
// derived identically).
func scramble(challenge []byte) []byte {
	if len(challenge) > 20 {
		challenge = challenge[:20]
	}
	return challenge
}

// xorBytes XORs a and b byte-wise; a and b must be the same length.
func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// NativePasswordResponse computes the mysql_native_password auth response:
// SHA1(pw) XOR SHA1(challenge ++ SHA1(SHA1(pw))). An empty password yields
// an empty response.
func NativePasswordResponse(password string, challenge []byte) []byte {
	if password == "" {
		return nil
	}
	challenge = scramble(challenge)

	pwHash := sha1.Sum([]byte(password)) //nolint:gosec
	pwHashHash := sha1.Sum(pwHash[:])     //nolint:gosec

	h := sha1.New() //nolint:gosec
	h.Write(challenge)
	h.Write(pwHashHash[:])
	messageHash := h.Sum(nil)

	return xorBytes(pwHash[:], messageHash)
}

// CachingSHA2PasswordResponse computes the caching_sha2_password auth
// response: SHA256(pw) XOR SHA256(SHA256(SHA256(pw)) ++ challenge).
func CachingSHA2PasswordResponse(password string, challenge []byte) []byte {
	if password == "" {
		return nil
	}
	challenge = scramble(challenge)

	pwHash := sha256.Sum256([]byte(password))
	pwHashHash := sha256.Sum256(pwHash[:])

	h := sha256.New()
	h.Write(pwHashHash[:])
	h.Write(challenge)
	messageHash := h.Sum(nil)

	return xorBytes(pwHash[:], messageHash)
}

// CachingSHA2FullAuthRequest encodes the cleartext password sent in
// response to an AuthMoreDataFullAuth status byte: UTF-8 bytes followed by
// a single NUL terminator. Callers must have already verified the
// transport is secured (TLS) or fail with ClientError{InsecureAuth}.
func CachingSHA2FullAuthRequest(password string) []byte {
	b := make([]byte, 0, len(password)+1)
	b = append(b, password...)
	return append(b, 0x00)
}
