package gcs

import (
	"fmt"
	"net/url"
	"strings"
)

// PublicURL returns the address clients use to fetch path. The shape depends
// on configuration:
//
//	cdn domain       https://<cdn>/<path>
//	emulator         <base>/storage/v1/b/<bucket>/o/<escaped path>?alt=media
//	public base url  <base>/<bucket>/<path>
//	default          https://storage.googleapis.com/<bucket>/<path>
func (b *Bucket) PublicURL(path string) string {
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if b.cfg.Mode == ModeEmulator && b.cfg.CDNDomain == "" {
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media",
			b.emulatorBase(),
			url.PathEscape(b.cfg.Bucket),
			url.PathEscape(path),
		)
	}
	return b.prefix() + escapeSegments(path)
}

// ObjectPath reverses PublicURL. It also understands the
// ".../<bucket>/<path>" layout of URLs written by earlier hosting, where the
// bucket name is a path segment followed by the object path.
func (b *Bucket) ObjectPath(publicURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(publicURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: not an absolute url", ErrForeignURL)
	}

	if b.cfg.Mode == ModeEmulator && b.cfg.CDNDomain == "" {
		marker := "/storage/v1/b/" + url.PathEscape(b.cfg.Bucket) + "/o/"
		if i := strings.Index(u.EscapedPath(), marker); i >= 0 {
			escaped := u.EscapedPath()[i+len(marker):]
			return unescapeNonEmpty(escaped)
		}
	}

	withoutQuery := strings.SplitN(strings.SplitN(publicURL, "?", 2)[0], "#", 2)[0]
	if prefix := b.prefix(); strings.HasPrefix(withoutQuery, prefix) {
		return unescapeNonEmpty(strings.TrimPrefix(withoutQuery, prefix))
	}

	segments := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	for i, seg := range segments {
		if seg == url.PathEscape(b.cfg.Bucket) && i+1 < len(segments) {
			return unescapeNonEmpty(strings.Join(segments[i+1:], "/"))
		}
	}
	return "", ErrForeignURL
}

func (b *Bucket) prefix() string {
	switch {
	case b.cfg.CDNDomain != "":
		return fmt.Sprintf("https://%s/", b.cfg.CDNDomain)
	case b.cfg.PublicBaseURL != "":
		return fmt.Sprintf("%s/%s/", b.cfg.PublicBaseURL, url.PathEscape(b.cfg.Bucket))
	default:
		return fmt.Sprintf("%s/%s/", defaultPublicHost, url.PathEscape(b.cfg.Bucket))
	}
}

func (b *Bucket) emulatorBase() string {
	if b.cfg.PublicBaseURL != "" {
		return b.cfg.PublicBaseURL
	}
	return b.cfg.EmulatorHost
}

func escapeSegments(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func unescapeNonEmpty(escaped string) (string, error) {
	path, err := url.PathUnescape(escaped)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrForeignURL, err)
	}
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return "", fmt.Errorf("%w: empty object path", ErrForeignURL)
	}
	return path, nil
}
