package apps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxDescriptorBytes = 1 << 20

var ErrFetch = errors.New("apps: fetch failed")

func (i *Installer) bundleURL(appID string, file string) string {
	return strings.TrimRight(i.repoURL, "/") + "/" + url.PathEscape(appID) + "/" + file
}

func (i *Installer) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, rawURL, err)
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s: %s", ErrFetch, rawURL, resp.Status)
	}
	return resp, nil
}

// download streams rawURL into w.
func (i *Installer) download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	resp, err := i.get(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%w: %s: %v", ErrFetch, rawURL, err)
	}
	return n, nil
}

func (i *Installer) fetchBytes(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	resp, err := i.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, rawURL, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFetch, rawURL, limit)
	}
	return data, nil
}
