package data

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/repo"
)

const groupIDsKey = "GROUP_IDS"

// envFileStore keeps the group list in the GROUP_IDS line of a .env file
type envFileStore struct {
	path     string
	fallback string // Used when the file has no GROUP_IDS entry

	mu sync.Mutex
}

// NewEnvFileStore creates a store backed by the .env file at path.
// fallback is the GROUP_IDS value seen at startup.
func NewEnvFileStore(path, fallback string) repo.MembershipStore {
	return &envFileStore{path: path, fallback: fallback}
}

// Read returns the groups currently listed in the file
func (s *envFileStore) Read(ctx context.Context) (domain.GroupSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readValue()
	if err != nil {
		return nil, err
	}
	groups, err := domain.ParseGroupSet(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s in %s: %w", groupIDsKey, s.path, err)
	}
	return groups, nil
}

func (s *envFileStore) readValue() (string, error) {
	content, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.path, err)
	}

	values, err := godotenv.Parse(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", s.path, err)
	}
	if v, ok := values[groupIDsKey]; ok {
		return v, nil
	}
	return s.fallback, nil
}

// Write rewrites only the GROUP_IDS line, leaving every other line untouched
func (s *envFileStore) Write(ctx context.Context, groups domain.GroupSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	perm := os.FileMode(0o600)
	content, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		content = nil
	case err != nil:
		return fmt.Errorf("read %s: %w", s.path, err)
	default:
		if info, statErr := os.Stat(s.path); statErr == nil {
			perm = info.Mode().Perm()
		}
	}

	return writeFileAtomic(s.path, replaceGroupLine(content, groups.String()), perm)
}

func (s *envFileStore) Close() error {
	return nil
}

// replaceGroupLine swaps the value of the GROUP_IDS line, appending one if absent
func replaceGroupLine(content []byte, value string) []byte {
	text := string(content)
	lines := strings.Split(text, "\n")
	replaced := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		prefix := ""
		if rest, ok := strings.CutPrefix(trimmed, "export "); ok {
			prefix = "export "
			trimmed = strings.TrimSpace(rest)
		}
		key, _, ok := strings.Cut(trimmed, "=")
		if !ok || strings.TrimSpace(key) != groupIDsKey {
			continue
		}
		lines[i] = prefix + groupIDsKey + "=" + value
		replaced = true
	}

	if replaced {
		return []byte(strings.Join(lines, "\n"))
	}

	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return []byte(text + groupIDsKey + "=" + value + "\n")
}
