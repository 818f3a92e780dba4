// Package fingerprint derives the deterministic identity of a compilation
// unit plus its compiler configuration. The digest covers the entire
// synthesized unit text, which embeds every dependency's body, so a change
// anywhere in the closure invalidates the identity even when the target
// function's own text is untouched.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// domainUnit provides domain separation for unit digests. The version
// suffix enables future normalization or algorithm migration.
const domainUnit = "nativize/unit/v1"

// New computes the fingerprint of (normalized unit text, canonical config
// encoding). Format: SHA256(domain + 0x00 + unit + 0x00 + config), hex
// encoded. The null separators prevent boundary ambiguity between fields.
func New(unitText, configCanonical string) string {
	h := sha256.New()
	h.Write([]byte(domainUnit))
	h.Write([]byte{0x00})
	h.Write([]byte(Normalize(unitText)))
	h.Write([]byte{0x00})
	h.Write([]byte(configCanonical))
	return hex.EncodeToString(h.Sum(nil))
}

// Normalize renders unit text whitespace-insensitive: Unicode NFC, CRLF to
// LF, trailing whitespace stripped, interior space/tab runs collapsed, blank
// lines dropped. Two units that differ only in layout normalize identically;
// any token change survives normalization and changes the digest.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, line := range strings.Split(text, "\n") {
		line = collapseSpaces(strings.TrimSpace(line))
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func collapseSpaces(line string) string {
	if !strings.ContainsAny(line, " \t") {
		return line
	}
	var b strings.Builder
	b.Grow(len(line))
	inRun := false
	for _, r := range line {
		if r == ' ' || r == '\t' {
			if !inRun {
				b.WriteByte(' ')
				inRun = true
			}
			continue
		}
		inRun = false
		b.WriteRune(r)
	}
	return b.String()
}
