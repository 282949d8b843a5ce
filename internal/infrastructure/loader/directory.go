// Package loader reads source documents from a local directory tree.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	pdflib "github.com/ledongthuc/pdf"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
)

// DirectorySource loads every supported document under Root, walking
// subdirectories in lexical order. Supported extensions are .txt, .md
// and .pdf; everything else is skipped with a log line so a typo in a
// data directory is visible rather than silent.
type DirectorySource struct {
	Root string
}

func NewDirectorySource(root string) *DirectorySource {
	return &DirectorySource{Root: root}
}

// documentNamespace seeds deterministic document IDs. A document keeps
// the same ID across reindex runs as long as its path under Root does
// not change, so catalog rows update in place instead of accumulating.
var documentNamespace = uuid.MustParse("9f2c41de-7b8a-4f63-b1d0-5a8e2c9d0c44")

func documentID(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return uuid.NewSHA1(documentNamespace, []byte(filepath.ToSlash(rel))).String()
}

func supportedExtension(ext string) bool {
	switch ext {
	case ".txt", ".md", ".pdf":
		return true
	default:
		return false
	}
}

func (s *DirectorySource) Load(ctx context.Context) ([]domain.Document, error) {
	if s.Root == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "load documents", errors.New("data directory is not set"))
	}
	info, err := os.Stat(s.Root)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "load documents", err)
	}
	if !info.IsDir() {
		return nil, domain.WrapError(domain.ErrConfiguration, "load documents", fmt.Errorf("%s is not a directory", s.Root))
	}

	var docs []domain.Document
	walkErr := filepath.WalkDir(s.Root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := entry.Name()
		if entry.IsDir() {
			if name != filepath.Base(s.Root) && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		if !supportedExtension(ext) {
			slog.Debug("skipping unsupported file", "path", path)
			return nil
		}

		text, err := readDocument(path, ext)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if strings.TrimSpace(text) == "" {
			slog.Warn("skipping empty document", "path", path)
			return nil
		}

		docs = append(docs, domain.Document{
			ID:         documentID(s.Root, path),
			SourcePath: path,
			Extension:  ext,
			Text:       text,
		})
		return nil
	})
	if walkErr != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "load documents", walkErr)
	}

	if len(docs) == 0 {
		return nil, domain.WrapError(domain.ErrNoData, "load documents", fmt.Errorf("no supported documents under %s", s.Root))
	}
	return docs, nil
}

func readDocument(path, ext string) (string, error) {
	if ext == ".pdf" {
		return extractPDFText(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// extractPDFText concatenates the plain text of every page, separated
// by form feeds. Pages that fail to decode are skipped; a PDF with no
// decodable text at all counts as empty and is skipped upstream.
func extractPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("skipping undecodable pdf page", "path", path, "page", i, "error", err)
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\f")
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}
