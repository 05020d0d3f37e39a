// Package artifact downloads build artifacts into the CI workspace.
package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ucb-agent/src/logger"
	"ucb-agent/src/unitycloud"
)

// Download describes a completed artifact download. Filepath is relative to
// the workspace, which is the form downstream workflow steps expect.
type Download struct {
	Filename string
	Filepath string
	AbsPath  string
}

// ToWorkspace streams the artifact at url into <workspace>/artifacts/ and
// returns where it landed. The filename comes from the response's
// Content-Disposition header; any path components in it are stripped so the
// file cannot escape the workspace.
func ToWorkspace(ctx context.Context, client *unitycloud.Client, url, workspace string, log logger.Logger) (*Download, error) {
	log.Info("Downloading artifact to workspace (%s)... %s", workspace, url)

	body, filename, err := client.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	filename = filepath.Base(filename)
	if filename == "." || filename == string(filepath.Separator) {
		return nil, fmt.Errorf("artifact filename %q is not usable", filename)
	}

	dir := filepath.Join(workspace, "artifacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create artifact directory %s: %w", dir, err)
	}

	absPath := filepath.Join(dir, filename)
	log.Info("Writing download to %s...", absPath)

	f, err := os.Create(absPath)
	if err != nil {
		return nil, fmt.Errorf("could not write download to disk (%s): %w", absPath, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(absPath)
		return nil, fmt.Errorf("could not write download to disk (%s): %w", absPath, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("could not write download to disk (%s): %w", absPath, err)
	}

	relPath, err := filepath.Rel(workspace, absPath)
	if err != nil {
		return nil, fmt.Errorf("artifact path %s is not inside the workspace %s: %w", absPath, workspace, err)
	}

	log.Info("Download to %s successful!", relPath)
	return &Download{Filename: filename, Filepath: relPath, AbsPath: absPath}, nil
}
