package attachment

import (
	"context"
	"fmt"
)

// resolve maps a stored remote URL to its object path. Derivation is tried
// first; when it fails, the record's namespace is listed and each entry's
// public URL compared against remoteURL.
func resolve(ctx context.Context, objects ObjectStore, recordID, remoteURL string) (string, error) {
	path, err := objects.ObjectPath(remoteURL)
	if err == nil {
		return path, nil
	}
	derr := &DerivationError{URL: remoteURL, Err: err}

	entries, lerr := objects.List(ctx, recordID+"/")
	if lerr != nil {
		return "", fmt.Errorf("%w (listing fallback failed: %v)", derr, lerr)
	}
	for _, candidate := range entries {
		if objects.PublicURL(candidate) == remoteURL {
			return candidate, nil
		}
	}
	return "", derr
}
