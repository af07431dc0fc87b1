// Package assets resolves digital products to downloadable content.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest maps product ids to the files shipped for them. It is loaded once
// at startup from a YAML file next to the asset directory.
type Manifest struct {
	Assets map[string]AssetEntry `yaml:"assets"`
}

type AssetEntry struct {
	File        string `yaml:"file"`
	ContentType string `yaml:"content_type"`
	Filename    string `yaml:"filename"`
}

// Asset is the resolved content handed to the download endpoint.
type Asset struct {
	Content     []byte
	ContentType string
	Filename    string
}

type Store struct {
	dir      string
	manifest Manifest
}

// NewStore loads the manifest and returns a store rooted at dir. Both empty
// means no assets are configured; Resolve then always falls back to the
// generated receipt body.
func NewStore(dir, manifestPath string) (*Store, error) {
	store := &Store{dir: dir}
	if manifestPath == "" {
		return store, nil
	}

	content, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset manifest: %w", err)
	}
	if err := yaml.Unmarshal(content, &store.manifest); err != nil {
		return nil, fmt.Errorf("failed to parse asset manifest: %w", err)
	}

	for productID, entry := range store.manifest.Assets {
		if entry.File == "" {
			return nil, fmt.Errorf("asset manifest entry %q is missing a file", productID)
		}
		if strings.Contains(entry.File, "..") || filepath.IsAbs(entry.File) {
			return nil, fmt.Errorf("asset manifest entry %q has an unsafe path: %s", productID, entry.File)
		}
	}

	return store, nil
}

// Resolve returns the asset for a product. Products without a manifest entry
// get a plain-text receipt body so a sold entitlement is always redeemable,
// even when the file upload lagged behind the catalog.
func (s *Store) Resolve(productID, itemName string) (*Asset, error) {
	entry, ok := s.manifest.Assets[productID]
	if !ok {
		return receiptAsset(itemName), nil
	}

	content, err := os.ReadFile(filepath.Join(s.dir, entry.File))
	if err != nil {
		return nil, fmt.Errorf("failed to read asset file for product %s: %w", productID, err)
	}

	contentType := entry.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	filename := entry.Filename
	if filename == "" {
		filename = SanitizeFilename(itemName) + filepath.Ext(entry.File)
	} else {
		filename = SanitizeFilename(strings.TrimSuffix(filename, filepath.Ext(filename))) + filepath.Ext(filename)
	}

	return &Asset{
		Content:     content,
		ContentType: contentType,
		Filename:    filename,
	}, nil
}

func receiptAsset(itemName string) *Asset {
	body := fmt.Sprintf("Thank you for your purchase of %q!\n\nYour file is being prepared. If this persists, contact support with this receipt.\n", itemName)
	return &Asset{
		Content:     []byte(body),
		ContentType: "text/plain",
		Filename:    SanitizeFilename(itemName) + "_receipt.txt",
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SanitizeFilename reduces a purchased item's name to a safe attachment
// filename stem.
func SanitizeFilename(name string) string {
	sanitized := unsafeFilenameChars.ReplaceAllString(name, "_")
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		return "download"
	}
	return sanitized
}
