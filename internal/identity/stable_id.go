// Package identity derives content-addressed entity keys.
package identity

import (
	"crypto/sha1"
	"encoding/hex"

	"github.com/rohankatakam/trialgraph/internal/textnorm"
)

// Namespaces mixed into the hash so an organization and a drug with the
// same name never share a key.
const (
	NamespaceOrganization = "org"
	NamespaceDrug         = "drug"
)

// Length of every identity token (SHA-1 as lowercase hex).
const Length = 40

type options struct {
	normalize bool
}

// Option adjusts StableID.
type Option func(*options)

// WithoutNormalization hashes value as given. Use it when the caller already
// holds the normalized form.
func WithoutNormalization() Option {
	return func(o *options) { o.normalize = false }
}

// StableID returns the SHA-1 of "namespace:value" (or value alone when
// namespace is empty) with value normalized unless opted out.
func StableID(value, namespace string, opts ...Option) string {
	o := options{normalize: true}
	for _, opt := range opts {
		opt(&o)
	}

	if o.normalize {
		value = textnorm.Normalize(value)
	}

	combined := value
	if namespace != "" {
		combined = namespace + ":" + value
	}

	sum := sha1.Sum([]byte(combined))
	return hex.EncodeToString(sum[:])
}

// OrganizationID is StableID in the organization namespace over an already
// normalized name.
func OrganizationID(normalizedName string) string {
	return StableID(normalizedName, NamespaceOrganization, WithoutNormalization())
}

// DrugID is StableID in the drug namespace over an already normalized name.
func DrugID(normalizedName string) string {
	return StableID(normalizedName, NamespaceDrug, WithoutNormalization())
}
