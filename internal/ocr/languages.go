package ocr

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
)

const (
	trainedDataSuffix = ".traineddata"
	osdLanguage       = "osd"
)

// LanguageResolver discovers the tesseract languages installed on this host.
// Nothing is cached; every call reads the directory again.
type LanguageResolver struct {
	dir     string
	lenient bool
}

// NewLanguageResolver returns a resolver for dir. With lenient set, an
// unreadable directory yields an empty list rather than an error.
func NewLanguageResolver(dir string, lenient bool) *LanguageResolver {
	return &LanguageResolver{dir: dir, lenient: lenient}
}

// Available lists language codes in directory order, without "osd".
func (r *LanguageResolver) Available() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if r.lenient {
			slog.Warn("tessdata directory unreadable, reporting no languages", "dir", r.dir, "error", err)
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrLanguageDataUnavailable, r.dir, err)
	}

	langs := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, trainedDataSuffix) {
			continue
		}
		lang := strings.TrimSuffix(name, trainedDataSuffix)
		if strings.EqualFold(lang, osdLanguage) {
			continue
		}
		langs = append(langs, lang)
	}
	return langs, nil
}

// Filter keeps the requested languages that are installed, in the order they
// were requested. Duplicates are kept.
func (r *LanguageResolver) Filter(requested []string) ([]string, error) {
	available, err := r.Available()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, lang := range requested {
		if slices.Contains(available, lang) {
			out = append(out, lang)
		}
	}
	return out, nil
}
