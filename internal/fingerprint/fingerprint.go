// Package fingerprint derives the stable content-addressed ids used for
// incidents, timeline entries and learning insights. Changing the hash
// domains breaks dedup against records already stored.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const idHexLen = 32

// Of hashes the NFC-normalised parts and prefixes the result. A single part
// is hashed as-is; multiple parts are length-prefixed so a separator inside
// one part can never shift a boundary.
func Of(prefix string, parts ...string) string {
	if len(parts) == 1 {
		return digest(prefix, []byte(norm.NFC.String(parts[0])))
	}
	var b strings.Builder
	for _, p := range parts {
		p = norm.NFC.String(p)
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return digest(prefix, []byte(b.String()))
}

// JSON hashes the JSON encoding of v. encoding/json sorts map keys, so
// equal values always encode to the same bytes.
func JSON(prefix string, v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return digest(prefix, norm.NFC.Bytes(raw)), nil
}

func digest(prefix string, data []byte) string {
	sum := sha256.Sum256(data)
	return prefix + hex.EncodeToString(sum[:])[:idHexLen]
}
