package cache

// Keyer generates cache keys. Implementations must be deterministic:
// the same inputs always yield the same key.
type Keyer interface {
	// HTTPKey is the key for a raw index response.
	HTTPKey(namespace, key string) string
	// MetadataKey is the key for the parsed metadata of one release.
	MetadataKey(name, version string) string
	// ArtifactKey is the key for data derived from a downloaded artifact,
	// such as a PEP 658 metadata file or build backend output.
	ArtifactKey(url, sha256 string) string
}

// DefaultKeyer produces readable keys for names and hashed keys for URLs.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default key layout.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// HTTPKey returns "http:<namespace>:<key>".
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

// MetadataKey returns "meta:<name>==<version>".
func (DefaultKeyer) MetadataKey(name, version string) string {
	return "meta:" + name + "==" + version
}

// ArtifactKey hashes the URL together with the expected digest, so a
// re-uploaded file under the same URL never reuses stale data.
func (DefaultKeyer) ArtifactKey(url, sha256 string) string {
	return hashKey("artifact", url, sha256)
}

// ScopedKeyer wraps a Keyer with a prefix. Each configured package index
// gets its own scope so that two indexes serving the same project name never
// share entries.
//
//	pypiKeys := NewScopedKeyer(nil, "pypi:")
//	mirrorKeys := NewScopedKeyer(nil, "mirror:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// HTTPKey generates a prefixed key for index responses.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

// MetadataKey generates a prefixed key for release metadata.
func (k *ScopedKeyer) MetadataKey(name, version string) string {
	return k.prefix + k.inner.MetadataKey(name, version)
}

// ArtifactKey generates a prefixed key for artifact-derived data.
func (k *ScopedKeyer) ArtifactKey(url, sha256 string) string {
	return k.prefix + k.inner.ArtifactKey(url, sha256)
}
