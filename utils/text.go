package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var espacosRe = regexp.MustCompile(`\s+`)

// NormalizeText canonicalizes text before fingerprinting: lowercase and
// collapsed whitespace. Two documents that normalize to the same string
// share one embedding.
func NormalizeText(texto string) string {
	texto = strings.ToLower(texto)
	return strings.TrimSpace(espacosRe.ReplaceAllString(texto, " "))
}

// Fingerprint returns the content-addressed cache key for a text under a
// given embedding model. Including the model keeps vectors from different
// models apart in the same cache.
func Fingerprint(texto, modelo string) string {
	sum := sha256.Sum256([]byte(NormalizeText(texto)))
	return hex.EncodeToString(sum[:]) + "_" + modelo
}
