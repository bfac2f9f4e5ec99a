package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// StagingPath derives the staging file for rawURL under root, mirroring
// the URL as <host>/<path>_<hash>. The result always stays inside root,
// whatever the URL contains. The hash covers the whole raw URL, so keys
// that clean to the same host and path (scheme, dot segments, trailing
// slash, query) still get distinct files.
func StagingPath(root, rawURL string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: empty staging root", ErrInvalidRequest)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: url %q has no host", ErrInvalidRequest, rawURL)
	}

	host := strings.NewReplacer(":", "_", "/", "_", `\`, "_").Replace(u.Host)

	name := strings.Trim(path.Clean("/"+u.Path), "/")
	if name == "" {
		name = "_index"
	}
	sum := sha256.Sum256([]byte(rawURL))
	name += "_" + hex.EncodeToString(sum[:4])

	p, err := securejoin.SecureJoin(root, filepath.Join(host, filepath.FromSlash(name)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return p, nil
}
