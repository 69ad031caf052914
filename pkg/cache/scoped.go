package cache

// ScopedKeyer wraps a Keyer with a prefix for isolation, for example one
// namespace per technology or per user of a shared Redis.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "n5:")
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

// ResolutionKey generates a prefixed resolution key.
func (k *ScopedKeyer) ResolutionKey(jobHash string, opts any) string {
	return k.prefix + k.inner.ResolutionKey(jobHash, opts)
}

// ArtifactKey generates a prefixed artifact key.
func (k *ScopedKeyer) ArtifactKey(jobHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(jobHash, opts)
}
