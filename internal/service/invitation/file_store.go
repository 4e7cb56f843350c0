package invitation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type fileDocument struct {
	InvitedEmails []string `json:"invited_emails"`
}

// FileStore keeps the allow-list in a JSON document of the form
// {"invited_emails": [...]}. The file is re-read on every call so edits made
// outside the process apply immediately.
type FileStore struct {
	path string
	mu   sync.Mutex // serialises writers
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() (*fileDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid invitation file %s: %w", s.path, err)
	}
	return &doc, nil
}

// loadForWrite treats a missing file as an empty list
func (s *FileStore) loadForWrite() (*fileDocument, error) {
	doc, err := s.load()
	if errors.Is(err, os.ErrNotExist) {
		return &fileDocument{InvitedEmails: []string{}}, nil
	}
	return doc, err
}

func (s *FileStore) save(doc *fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".invited-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func indexOf(emails []string, email string) int {
	for i, e := range emails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return i
		}
	}
	return -1
}

func (s *FileStore) Contains(_ context.Context, email string) (bool, error) {
	doc, err := s.load()
	if err != nil {
		return false, err
	}
	return indexOf(doc.InvitedEmails, email) >= 0, nil
}

func (s *FileStore) Add(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadForWrite()
	if err != nil {
		return false, err
	}
	if indexOf(doc.InvitedEmails, email) >= 0 {
		return false, nil
	}
	doc.InvitedEmails = append(doc.InvitedEmails, email)
	return true, s.save(doc)
}

func (s *FileStore) Remove(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadForWrite()
	if err != nil {
		return false, err
	}
	i := indexOf(doc.InvitedEmails, email)
	if i < 0 {
		return false, nil
	}
	doc.InvitedEmails = append(doc.InvitedEmails[:i], doc.InvitedEmails[i+1:]...)
	return true, s.save(doc)
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	doc, err := s.load()
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if doc.InvitedEmails == nil {
		return []string{}, nil
	}
	return doc.InvitedEmails, nil
}
