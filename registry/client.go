package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"packsync/config"

	"go.uber.org/zap"
)

const (
	curseforgeAPIURL = "https://api.curseforge.com/v1"
	defaultTimeout   = 5 * time.Second
)

// ErrNotFound is returned when the registry has no record of the requested
// project or file.
var ErrNotFound = errors.New("registry: not found")

// FileInfo is the resolved identity of a downloadable file.
type FileInfo struct {
	FileName    string
	DownloadURL string
	DisplayName string
	ClassID     int
}

// Client handles communication with the content registry API and performs
// file downloads.
type Client struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	// HTTPClient serves the small JSON API calls and carries a short
	// request timeout. Binary downloads go through DownloadClient, which
	// has no client-level timeout: the whole body read is bounded by the
	// DownloadTimeout context in Fetch instead, so large files are not
	// cut off at the API deadline.
	HTTPClient      *http.Client
	DownloadClient  *http.Client
	DownloadTimeout time.Duration

	log *zap.SugaredLogger
}

// NewClient creates a new registry client using the provided configuration.
func NewClient(cfg config.Config, log *zap.SugaredLogger) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("USERAGENT is not configured")
	}

	return &Client{
		BaseURL:   curseforgeAPIURL,
		APIKey:    cfg.CurseForgeAPIKey,
		UserAgent: cfg.UserAgent,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		DownloadClient:  &http.Client{},
		DownloadTimeout: time.Duration(cfg.DownloadTimeout) * time.Second,
		log:             log,
	}, nil
}

func (c *Client) makeRequest(ctx context.Context, method, path string, target interface{}, isBinary bool) (*http.Response, error) {
	fullURL := c.BaseURL + path
	if isBinary {
		// For binary downloads, the 'path' is expected to be the full URL already
		fullURL = path
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.UserAgent)
	if !isBinary {
		req.Header.Set("Accept", "application/json")
		if c.APIKey != "" {
			req.Header.Set("x-api-key", c.APIKey)
		}
	} else {
		req.Header.Set("Accept", "application/octet-stream")
	}

	client := c.HTTPClient
	if isBinary && c.DownloadClient != nil {
		client = c.DownloadClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return resp, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return resp, fmt.Errorf("api request failed: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if target != nil && !isBinary {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return resp, fmt.Errorf("failed to decode json response: %w", err)
		}
	}

	return resp, nil
}

// Resolve looks up a (project, file) pair and returns its download identity.
// Returns ErrNotFound when the registry does not know the pair.
func (c *Client) Resolve(ctx context.Context, projectID, fileID int) (FileInfo, error) {
	var fileResp fileResponse
	_, err := c.makeRequest(ctx, "GET", fmt.Sprintf("/mods/%d/files/%d", projectID, fileID), &fileResp, false)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return FileInfo{}, fmt.Errorf("file %d of project %d: %w", fileID, projectID, ErrNotFound)
		}
		return FileInfo{}, fmt.Errorf("failed to resolve file %d of project %d: %w", fileID, projectID, err)
	}

	info := FileInfo{
		FileName:    fileResp.Data.FileName,
		DownloadURL: fileResp.Data.DownloadURL,
		DisplayName: fileResp.Data.DisplayName,
	}

	var modResp modResponse
	if _, err := c.makeRequest(ctx, "GET", fmt.Sprintf("/mods/%d", projectID), &modResp, false); err != nil {
		// The file identity is enough to download; class id only refines the
		// destination folder, so a mod lookup failure is not fatal.
		c.log.Warnw("Failed to look up project class", zap.Int("project_id", projectID), zap.Error(err))
	} else {
		info.ClassID = modResp.Data.ClassID
		if info.DisplayName == "" {
			info.DisplayName = modResp.Data.Name
		}
	}

	return info, nil
}

// Fetch downloads a file from the given URL and saves it to destPath. The
// download is bounded by the configured hard timeout; a partial file is
// removed on failure.
func (c *Client) Fetch(ctx context.Context, downloadURL, destPath string) error {
	dir := filepath.Dir(destPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		c.log.Warnw("Target directory for download does not exist, attempting to create", zap.String("directory", dir))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create target directory '%s': %w", dir, err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to check target directory '%s': %w", dir, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.DownloadTimeout)
	defer cancel()

	resp, err := c.makeRequest(ctx, "GET", downloadURL, nil, true)
	if err != nil {
		return fmt.Errorf("failed to start download for '%s' from %s: %w", filepath.Base(destPath), downloadURL, err)
	}
	defer resp.Body.Close()

	outFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create file '%s': %w", destPath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, resp.Body); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to write downloaded content to '%s': %w", destPath, err)
	}

	return nil
}

// --- Structs for API responses ---

type fileResponse struct {
	Data File `json:"data"`
}

type modResponse struct {
	Data ModInfo `json:"data"`
}

// File represents a registry file record (simplified).
type File struct {
	ID          int    `json:"id"`
	ModID       int    `json:"modId"`
	FileName    string `json:"fileName"`
	DisplayName string `json:"displayName"`
	DownloadURL string `json:"downloadUrl"`
	FileLength  int64  `json:"fileLength"`
}

// ModInfo represents a registry project record (simplified).
type ModInfo struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	ClassID int    `json:"classId"`
}
