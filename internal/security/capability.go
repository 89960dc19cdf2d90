// Package security decodes portal capability tokens and signs session cookies.
//
// Capability tokens are AES-256-CBC encrypted JSON issued by the external portal with a
// pre-shared key. There is no signature, expiry, or nonce: any token that decrypts to a
// well-formed payload is trusted for its full content.
package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/workspace/domain"
)

// ErrAuthentication is returned for any token that cannot be decoded, decrypted, or parsed.
var ErrAuthentication = errors.New("authentication failure")

// capabilityPayload is the decrypted JSON. write and wsid arrive as strings from the portal but
// plain booleans and numbers are accepted too.
type capabilityPayload struct {
	Workspace    string          `json:"workspace"`
	User         string          `json:"user"`
	Organization string          `json:"organization"`
	Write        json.RawMessage `json:"write"`
	WSID         json.RawMessage `json:"wsid"`
}

// CapabilityCipher decrypts (and, for tooling, encrypts) capability tokens.
type CapabilityCipher struct {
	block cipher.Block
}

// NewCapabilityCipher returns a cipher for the 32-byte AES-256 key.
func NewCapabilityCipher(key []byte) (*CapabilityCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("security: capability key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &CapabilityCipher{block: block}, nil
}

// Decrypt decodes the URL-safe base64 iv and cipherText, decrypts without padding removal, and
// parses the JSON object up to the first '}'. Every failure wraps ErrAuthentication.
func (c *CapabilityCipher) Decrypt(iv, cipherText string) (domain.Identity, error) {
	ivBytes, err := decodeURLBase64(iv)
	if err != nil {
		return domain.Identity{}, authErr("iv: %v", err)
	}
	if len(ivBytes) != aes.BlockSize {
		return domain.Identity{}, authErr("iv must be %d bytes, got %d", aes.BlockSize, len(ivBytes))
	}
	ct, err := decodeURLBase64(cipherText)
	if err != nil {
		return domain.Identity{}, authErr("ciphertext: %v", err)
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return domain.Identity{}, authErr("ciphertext length %d is not a positive multiple of %d", len(ct), aes.BlockSize)
	}

	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(c.block, ivBytes).CryptBlocks(plain, ct)

	end := bytes.IndexByte(plain, '}')
	if end < 0 {
		return domain.Identity{}, authErr("payload has no closing brace")
	}
	var p capabilityPayload
	if err := json.Unmarshal(plain[:end+1], &p); err != nil {
		return domain.Identity{}, authErr("payload: %v", err)
	}
	return p.identity()
}

// Encrypt produces URL-safe base64 iv and cipherText for id with a random IV. The JSON payload is
// space-padded to the block size, which Decrypt ignores after the closing brace.
func (c *CapabilityCipher) Encrypt(id domain.Identity) (iv, cipherText string, err error) {
	payload, err := json.Marshal(map[string]string{
		"workspace":    id.Name,
		"user":         id.User,
		"organization": id.Organization,
		"write":        strconv.FormatBool(id.Writable),
		"wsid":         strconv.FormatInt(id.WorkspaceID, 10),
	})
	if err != nil {
		return "", "", err
	}
	if pad := aes.BlockSize - len(payload)%aes.BlockSize; pad != aes.BlockSize {
		payload = append(payload, bytes.Repeat([]byte{' '}, pad)...)
	}
	ivBytes := make([]byte, aes.BlockSize)
	if _, err := rand.Read(ivBytes); err != nil {
		return "", "", err
	}
	ct := make([]byte, len(payload))
	cipher.NewCBCEncrypter(c.block, ivBytes).CryptBlocks(ct, payload)
	return base64.URLEncoding.EncodeToString(ivBytes), base64.URLEncoding.EncodeToString(ct), nil
}

func (p capabilityPayload) identity() (domain.Identity, error) {
	if p.Workspace == "" {
		return domain.Identity{}, authErr("payload: missing workspace")
	}
	writable, err := parseFlag(p.Write)
	if err != nil {
		return domain.Identity{}, authErr("payload write: %v", err)
	}
	wsid, err := parseID(p.WSID)
	if err != nil {
		return domain.Identity{}, authErr("payload wsid: %v", err)
	}
	return domain.Identity{
		Name:         p.Workspace,
		User:         p.User,
		Organization: p.Organization,
		Writable:     writable,
		WorkspaceID:  wsid,
	}, nil
}

// decodeURLBase64 maps the URL-safe alphabet to the standard one and restores missing padding.
func decodeURLBase64(s string) ([]byte, error) {
	s = strings.NewReplacer("-", "+", "_", "/").Replace(strings.TrimSpace(s))
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return base64.StdEncoding.DecodeString(s)
}

func parseFlag(raw json.RawMessage) (bool, error) {
	if len(raw) == 0 {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, err
	}
	return s == "true", nil
}

func parseID(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, errors.New("missing")
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func authErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrAuthentication}, args...)...)
}
