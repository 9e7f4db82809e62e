package models

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// modelFiles is the on-disk layout the ONNX recognizer loads at init.
var modelFiles = []string{"model.onnx", "labels.json", "tokenizer.json"}

// Progress reports download state to the caller's progress callback.
type Progress struct {
	Downloaded int64
	Total      int64
	SpeedMBps  float64
	ETA        time.Duration
}

type ProgressCallback func(Progress)

// Downloader fetches model archives and installs them under the models
// root. Installs are serialized; concurrent calls queue on the mutex so
// two downloads never interleave their staging directories.
type Downloader struct {
	Client    *http.Client
	Retries   int
	RetryWait time.Duration

	mu sync.Mutex
}

func NewDownloader() *Downloader {
	return &Downloader{
		Client:    &http.Client{Timeout: 0},
		Retries:   2,
		RetryWait: 500 * time.Millisecond,
	}
}

// DownloadAndInstall stages the archive in a temp directory, verifies its
// checksum, unpacks it, checks the unpacked tree against the layout the
// recognizer expects and only then swaps it into place. A previous
// install stays recoverable until the swap succeeds.
func (d *Downloader) DownloadAndInstall(ctx context.Context, model ModelSpec, modelsRoot string, onProgress ProgressCallback) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if model.URL == "" {
		return fmt.Errorf("model %s: no download URL", model.Name)
	}
	if err := os.MkdirAll(modelsRoot, 0o755); err != nil {
		return fmt.Errorf("create models root: %w", err)
	}
	stage, err := os.MkdirTemp(modelsRoot, model.Name+"-stage-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	archive := filepath.Join(stage, model.Name+".tar.gz")
	if err := d.fetch(ctx, model.URL, archive, onProgress); err != nil {
		return fmt.Errorf("download %s: %w", model.Name, err)
	}
	if err := VerifyChecksum(archive, model.Checksum); err != nil {
		return fmt.Errorf("verify %s: %w", model.Name, err)
	}

	unpacked := filepath.Join(stage, "unpacked")
	if err := ExtractTarGz(archive, unpacked); err != nil {
		return fmt.Errorf("unpack %s: %w", model.Name, err)
	}
	if err := ValidateModelDir(unpacked); err != nil {
		return fmt.Errorf("model %s: %w", model.Name, err)
	}
	if err := CheckModelMetadata(unpacked); err != nil {
		return fmt.Errorf("model %s: %w", model.Name, err)
	}

	if err := swapIn(unpacked, ModelInstallPath(modelsRoot, model.Name), model.Checksum); err != nil {
		return fmt.Errorf("install %s: %w", model.Name, err)
	}
	log.Printf("[newslens] model %s v%s installed under %s", model.Name, model.Version, modelsRoot)
	return nil
}

// swapIn replaces finalPath with srcDir, restoring the previous install
// when the rename fails, and records the archive checksum alongside the
// files for later verification.
func swapIn(srcDir, finalPath, checksum string) error {
	backup := finalPath + ".bak"
	_ = os.RemoveAll(backup)
	if _, err := os.Stat(finalPath); err == nil {
		if err := os.Rename(finalPath, backup); err != nil {
			return err
		}
	}
	if err := os.Rename(srcDir, finalPath); err != nil {
		_ = os.Rename(backup, finalPath)
		return err
	}
	if err := os.WriteFile(filepath.Join(finalPath, ".checksum"), []byte(checksum+"\n"), 0o644); err != nil {
		return err
	}
	_ = os.RemoveAll(backup)
	return nil
}

func (d *Downloader) fetch(ctx context.Context, url, dest string, onProgress ProgressCallback) error {
	var lastErr error
	for attempt := 0; attempt <= d.Retries; attempt++ {
		if attempt > 0 {
			log.Printf("[newslens] download retry %d/%d: %v", attempt, d.Retries, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.RetryWait):
			}
		}
		if lastErr = d.fetchOnce(ctx, url, dest, onProgress); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("after %d attempts: %w", d.Retries+1, lastErr)
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dest string, onProgress ProgressCallback) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	pw := &progressWriter{total: resp.ContentLength, started: time.Now(), report: onProgress}
	_, err = io.Copy(out, io.TeeReader(resp.Body, pw))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

// progressWriter derives transfer speed and ETA from bytes seen so far.
type progressWriter struct {
	total   int64
	written int64
	started time.Time
	report  ProgressCallback
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.report != nil {
		elapsed := time.Since(p.started).Seconds()
		var speed float64
		if elapsed > 0 {
			speed = float64(p.written) / elapsed / (1 << 20)
		}
		var eta time.Duration
		if p.total > 0 && speed > 0 {
			remainingMB := float64(p.total-p.written) / (1 << 20)
			eta = time.Duration(remainingMB / speed * float64(time.Second))
		}
		p.report(Progress{Downloaded: p.written, Total: p.total, SpeedMBps: speed, ETA: eta})
	}
	return len(b), nil
}

// VerifyChecksum compares the file's sha256 digest against the registry
// value. The "sha256:" prefix is optional and hex case is ignored.
func VerifyChecksum(file, expected string) error {
	want := strings.TrimPrefix(strings.TrimSpace(expected), "sha256:")
	if want == "" {
		return errors.New("no checksum in model spec")
	}
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("checksum mismatch: want sha256:%s, got sha256:%s", want, got)
	}
	return nil
}

// ExtractTarGz unpacks archivePath under dest. Entries that would land
// outside dest (absolute paths, ..) are dropped.
func ExtractTarGz(archivePath, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		name := strings.TrimPrefix(filepath.Clean(hdr.Name), "./")
		if name == "." || !filepath.IsLocal(name) {
			continue
		}
		target := filepath.Join(dest, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr); err != nil {
				return fmt.Errorf("extract %s: %w", name, err)
			}
		}
	}
}

func writeEntry(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ValidateModelDir checks that base holds the files the recognizer loads.
// Archives that nest everything one directory down (ner_en/model.onnx) are
// flattened so installs always end up with the files at the top.
func ValidateModelDir(base string) error {
	dir, err := locateModelFiles(base)
	if err != nil {
		return err
	}
	if dir == base {
		return nil
	}
	for _, name := range modelFiles {
		if err := os.Rename(filepath.Join(dir, name), filepath.Join(base, name)); err != nil {
			return err
		}
	}
	return nil
}

func locateModelFiles(base string) (string, error) {
	candidates := []string{base}
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			candidates = append(candidates, filepath.Join(base, e.Name()))
		}
	}
	for _, c := range candidates {
		complete := true
		for _, name := range modelFiles {
			if _, err := os.Stat(filepath.Join(c, name)); err != nil {
				complete = false
				break
			}
		}
		if complete {
			return c, nil
		}
	}
	return "", fmt.Errorf("archive is missing %s", strings.Join(modelFiles, ", "))
}

// CheckModelMetadata parses the metadata files the recognizer reads at
// init: labels.json must be a non-empty index-to-label map and
// tokenizer.json must be well-formed JSON.
func CheckModelMetadata(dir string) error {
	var labels map[string]string
	if err := readJSONFile(filepath.Join(dir, "labels.json"), &labels); err != nil {
		return err
	}
	if len(labels) == 0 {
		return errors.New("labels.json: no labels defined")
	}
	var tokenizer map[string]any
	return readJSONFile(filepath.Join(dir, "tokenizer.json"), &tokenizer)
}

func readJSONFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}
