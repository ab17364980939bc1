package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"experienceboard/internal/platform/logger"
)

const (
	ModeGCS      = "gcs"
	ModeEmulator = "emulator"

	defaultPublicHost = "https://storage.googleapis.com"
)

var (
	// ErrObjectExists is returned by Upload when the path is already taken.
	ErrObjectExists = errors.New("object already exists")
	// ErrForeignURL means a URL was not produced by this bucket's PublicURL.
	ErrForeignURL = errors.New("url does not belong to this bucket")
	// ErrObjectNotFound is returned by Delete for a path that does not exist.
	ErrObjectNotFound = errors.New("object not found")
)

type Config struct {
	Bucket          string
	Mode            string
	EmulatorHost    string
	PublicBaseURL   string
	CDNDomain       string
	CredentialsFile string
}

// Bucket is the single object namespace holding experience images.
type Bucket struct {
	log    *logger.Logger
	client *storage.Client
	cfg    Config
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (*Bucket, error) {
	cfg.EmulatorHost = strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if cfg.PublicBaseURL != "" {
		parsed, err := url.Parse(cfg.PublicBaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid storage public_base_url %q; expected absolute URL like http://localhost:4443", cfg.PublicBaseURL)
		}
	}

	var opts []option.ClientOption
	switch cfg.Mode {
	case ModeGCS:
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	case ModeEmulator:
		if cfg.EmulatorHost == "" {
			return nil, fmt.Errorf("storage emulator host is required in emulator mode")
		}
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		opts = append(opts, option.WithoutAuthentication())
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.Mode)
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client failed: %w", err)
	}

	b := &Bucket{log: log.With("service", "Bucket"), client: client, cfg: cfg}
	b.log.Info("object storage initialized",
		"mode", cfg.Mode,
		"bucket", cfg.Bucket,
		"public_url_example", b.PublicURL("<record>/<file>"),
	)
	return b, nil
}

func (b *Bucket) Name() string {
	return b.cfg.Bucket
}

// Upload writes r to path. Overwrites are refused with ErrObjectExists.
func (b *Bucket) Upload(ctx context.Context, path string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := b.client.Bucket(b.cfg.Bucket).Object(path).
		If(storage.Conditions{DoesNotExist: true}).
		NewWriter(ctx)
	w.CacheControl = "public, max-age=3600"
	if ct := contentTypeForKey(path); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return b.uploadErr(path, err)
	}
	if err := w.Close(); err != nil {
		return b.uploadErr(path, err)
	}
	return nil
}

func (b *Bucket) uploadErr(path string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return fmt.Errorf("upload %q: %w", path, ErrObjectExists)
	}
	return fmt.Errorf("upload %q failed: %w", path, err)
}

// Delete removes every path. Storage has no multi-object delete, so the batch
// is issued back to back; all failures are joined into the returned error.
func (b *Bucket) Delete(ctx context.Context, paths ...string) error {
	var errs []error
	for _, p := range paths {
		dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := b.client.Bucket(b.cfg.Bucket).Object(p).Delete(dctx)
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			err = ErrObjectNotFound
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("delete %q in bucket %q failed: %w", p, b.cfg.Bucket, err))
		}
	}
	return errors.Join(errs...)
}

// List returns the full paths of every object under prefix.
func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	it := b.client.Bucket(b.cfg.Bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %q failed: %w", prefix, err)
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

// Ping checks that the bucket is reachable.
func (b *Bucket) Ping(ctx context.Context) error {
	if _, err := b.client.Bucket(b.cfg.Bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("bucket attrs failed: %w", err)
	}
	return nil
}

func (b *Bucket) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".gif"):
		return "image/gif"
	case strings.HasSuffix(s, ".svg"):
		return "image/svg+xml"
	case strings.HasSuffix(s, ".heic"):
		return "image/heic"
	default:
		return ""
	}
}
