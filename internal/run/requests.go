package run

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cactuslab/cactus-client-go/internal/tracker"
)

var sanitiseURLRE = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitiseURLToFilename strips the leading slash and any query string
// from a URL path, replacing every character outside [a-zA-Z0-9._-]
// with an underscore so it is safe as a filename component.
func sanitiseURLToFilename(url string) string {
	path := strings.TrimPrefix(url, "/")
	if i := strings.IndexByte(path, '?'); i != -1 {
		path = path[:i]
	}
	return sanitiseURLRE.ReplaceAllString(path, "_")
}

func requestLines(method, url string, body []byte) string {
	lines := []string{fmt.Sprintf("%s %s", method, url)}
	if len(body) > 0 {
		lines = append(lines, "", string(body))
	}
	return strings.Join(lines, "\n")
}

func responseLines(status int, body []byte) string {
	lines := []string{fmt.Sprintf("HTTP %d", status)}
	if len(body) > 0 {
		lines = append(lines, "", string(body))
	}
	return strings.Join(lines, "\n")
}

// PersistRequests writes every logged request/response and
// notification-collector interaction into this run's requests
// directory, one numbered pair of files per entry.
func (m *Manager) PersistRequests(responses *tracker.ResponseTracker) error {
	dir := m.RequestsDir()
	for idx, entry := range responses.Entries() {
		switch v := entry.(type) {
		case tracker.ServerResponse:
			sanitisedURL := sanitiseURLToFilename(v.URL)
			stem := fmt.Sprintf("%03d-%s-%s-%s", idx, v.ClientAlias, v.Method, sanitisedURL)
			if err := os.WriteFile(filepath.Join(dir, stem+".request"), []byte(requestLines(v.Method, v.URL, v.RequestBody)), 0o644); err != nil {
				return fmt.Errorf("run: writing %s.request: %w", stem, err)
			}
			if err := os.WriteFile(filepath.Join(dir, stem+".response"), []byte(responseLines(v.StatusCode, v.ResponseBody)), 0o644); err != nil {
				return fmt.Errorf("run: writing %s.response: %w", stem, err)
			}
		case tracker.NotificationRequest:
			stem := fmt.Sprintf("%03d-%s-NOTIFICATION-%s", idx, v.ClientAlias, v.SubAlias)
			if err := os.WriteFile(filepath.Join(dir, stem+".request"), []byte(requestLines(v.Kind, v.URL, nil)), 0o644); err != nil {
				return fmt.Errorf("run: writing %s.request: %w", stem, err)
			}
		}
	}
	return nil
}
