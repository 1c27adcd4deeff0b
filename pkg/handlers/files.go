package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"text/template"

	"github.com/cuemby/zoneweaver-core/pkg/registry"
)

type fileWriteMetadata struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Mode    uint32 `json:"mode"`
}

func (h *Handlers) fileWrite(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m fileWriteMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.Path == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("path is required")}
	}
	mode := os.FileMode(m.Mode)
	if mode == 0 {
		mode = 0644
	}

	if err := atomicWriteFile(m.Path, []byte(m.Content), mode); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	return registry.Result{OK: true, Message: fmt.Sprintf("wrote %d bytes to %s", len(m.Content), m.Path)}
}

type fileTemplateRenderMetadata struct {
	Path     string            `json:"path"`
	Template string            `json:"template"`
	Vars     map[string]string `json:"vars"`
	Mode     uint32            `json:"mode"`
}

func (h *Handlers) fileTemplateRender(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m fileTemplateRenderMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.Path == "" || m.Template == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("path and template are required")}
	}

	tmpl, err := template.New("file").Parse(m.Template)
	if err != nil {
		return registry.Result{OK: false, Err: fmt.Errorf("parse template: %w", err)}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, m.Vars); err != nil {
		return registry.Result{OK: false, Err: fmt.Errorf("render template: %w", err)}
	}

	mode := os.FileMode(m.Mode)
	if mode == 0 {
		mode = 0644
	}
	if err := atomicWriteFile(m.Path, buf.Bytes(), mode); err != nil {
		return registry.Result{OK: false, Err: err}
	}
	return registry.Result{OK: true, Message: fmt.Sprintf("rendered template to %s", m.Path)}
}

type artifactDownloadMetadata struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// artifactDownloadURL streams a remote artifact to disk, reporting percent
// complete via UpdateProgress as each chunk arrives. When the server omits
// Content-Length, progress is reported in bytes transferred rather than
// percent.
func (h *Handlers) artifactDownloadURL(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	var m artifactDownloadMetadata
	if res, ok := decodeMetadata(metadata, &m); !ok {
		return res
	}
	if m.URL == "" || m.Path == "" {
		return registry.Result{OK: false, Err: fmt.Errorf("url and path are required")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return registry.Result{OK: false, Err: fmt.Errorf("build request: %w", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return registry.Result{OK: false, Err: fmt.Errorf("download %s: %w", m.URL, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return registry.Result{OK: false, Err: fmt.Errorf("download %s: status %d", m.URL, resp.StatusCode)}
	}

	if err := os.MkdirAll(filepath.Dir(m.Path), 0755); err != nil {
		return registry.Result{OK: false, Err: fmt.Errorf("create parent dir: %w", err)}
	}
	out, err := os.Create(m.Path)
	if err != nil {
		return registry.Result{OK: false, Err: fmt.Errorf("create %s: %w", m.Path, err)}
	}
	defer out.Close()

	total := resp.ContentLength
	var written int64
	buf := make([]byte, 64*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return registry.Result{OK: false, Err: fmt.Errorf("write %s: %w", m.Path, err)}
			}
			written += int64(n)
			if total > 0 {
				percent := int(written * 100 / total)
				_ = task.UpdateProgress(ctx, percent, fmt.Sprintf("%d/%d bytes", written, total))
			} else {
				_ = task.UpdateProgress(ctx, 0, fmt.Sprintf("%d bytes", written))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return registry.Result{OK: false, Err: fmt.Errorf("read response body: %w", readErr)}
		}
	}

	return registry.Result{OK: true, Message: fmt.Sprintf("downloaded %d bytes to %s", written, m.Path)}
}

// templateApply applies a set of file templates described by a JSON array
// without ever holding the whole array in memory: it walks the top-level
// array incrementally with json.Decoder.Token/Decode, rendering and writing
// each entry's file before reading the next. A host can hand this a very
// large manifest (a full zone's configuration tree) without a proportional
// memory spike.
type templateApplyEntry struct {
	Path     string            `json:"path"`
	Template string            `json:"template"`
	Vars     map[string]string `json:"vars"`
}

func (h *Handlers) templateApply(ctx context.Context, metadata []byte, task registry.TaskRef) registry.Result {
	dec := json.NewDecoder(bytes.NewReader(metadata))

	tok, err := dec.Token()
	if err != nil {
		return registry.Result{OK: false, Err: fmt.Errorf("read metadata array start: %w", err)}
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '[' {
		return registry.Result{OK: false, Err: fmt.Errorf("expected metadata to be a JSON array of template entries")}
	}

	applied := 0
	for dec.More() {
		var entry templateApplyEntry
		if err := dec.Decode(&entry); err != nil {
			return registry.Result{OK: false, Err: fmt.Errorf("decode template entry %d: %w", applied, err)}
		}

		tmpl, err := template.New("entry").Parse(entry.Template)
		if err != nil {
			return registry.Result{OK: false, Err: fmt.Errorf("parse template entry %d (%s): %w", applied, entry.Path, err)}
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, entry.Vars); err != nil {
			return registry.Result{OK: false, Err: fmt.Errorf("render template entry %d (%s): %w", applied, entry.Path, err)}
		}
		if err := atomicWriteFile(entry.Path, buf.Bytes(), 0644); err != nil {
			return registry.Result{OK: false, Err: err}
		}

		applied++
		_ = task.UpdateProgress(ctx, 0, fmt.Sprintf("applied %d templates", applied))
	}

	return registry.Result{OK: true, Message: fmt.Sprintf("applied %d templates", applied)}
}

// atomicWriteFile writes data to path via a temp file in the same directory
// followed by rename, so a crash mid-write never leaves a half-written
// config file in place of a working one.
func atomicWriteFile(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place %s: %w", path, err)
	}
	return nil
}
