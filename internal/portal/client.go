// Package portal is a client for the external ITLingo portal's workspace file API.
package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const defaultTimeout = 30 * time.Second

// maxListBytes caps the file-list response relayed to the editor.
const maxListBytes = 4 << 20

// Client calls the portal API rooted at BaseURL.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for the portal at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// FileList is the raw file-list response of the portal.
type FileList struct {
	ContentType string
	Body        []byte
}

// ListFiles fetches the custom files the portal offers for a workspace. The body is returned
// unparsed so it can be relayed as-is.
func (c *Client) ListFiles(ctx context.Context, workspaceID int64) (FileList, error) {
	resp, err := c.get(ctx, "/api/workspaces/"+strconv.FormatInt(workspaceID, 10)+"/files")
	if err != nil {
		return FileList{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListBytes))
	if err != nil {
		return FileList{}, err
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/json"
	}
	return FileList{ContentType: ct, Body: body}, nil
}

// Download fetches file fileID and writes it as filename inside folder. Only the base name of
// filename is used. Returns the path written.
func (c *Client) Download(ctx context.Context, fsys afero.Fs, folder, fileID, filename string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return "", fmt.Errorf("portal: invalid file name %q", filename)
	}
	resp, err := c.get(ctx, "/api/files/"+url.PathEscape(fileID)+"/download")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	dest := filepath.Join(folder, name)
	f, err := fsys.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", err
	}
	return dest, f.Close()
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("portal: GET %s failed status=%d body=%s", path, resp.StatusCode, string(b))
	}
	return resp, nil
}
