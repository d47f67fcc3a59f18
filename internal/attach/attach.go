// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attach holds the files a user has queued for the next chat message.
//
// Attachments are encoded once, when added, into the wire shape the backend
// expects ({name, type, data} with base64 data). The store is emptied after
// every send attempt.
package attach

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// MaxAttachmentBytes is the largest file accepted for upload.
const MaxAttachmentBytes = 20 << 20

// ErrTooLarge is returned when a file exceeds MaxAttachmentBytes.
var ErrTooLarge = errors.New("attachment too large")

// Attachment is a file queued for upload.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"type"`
	// Data is the base64-encoded file content.
	Data string `json:"data"`
}

// IsImage reports whether the attachment has an image/* MIME type.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.MimeType, "image/")
}

// DataURL returns the attachment as a data: URL.
func (a Attachment) DataURL() string {
	return "data:" + a.MimeType + ";base64," + a.Data
}

// Bytes decodes the attachment payload.
func (a Attachment) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Data)
}

// Size returns the decoded payload size in bytes.
func (a Attachment) Size() int {
	return base64.StdEncoding.DecodedLen(len(a.Data)) - strings.Count(a.Data[max(0, len(a.Data)-2):], "=")
}

// Store is an ordered, concurrency-safe list of pending attachments.
type Store struct {
	mu    sync.RWMutex
	items []Attachment
}

// NewStore creates an empty attachment store.
func NewStore() *Store {
	return &Store{}
}

// Add reads the file at path and appends it to the store.
// On error the store is unchanged.
func (s *Store) Add(path string) (Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if info.IsDir() {
		return Attachment{}, fmt.Errorf("read %s: is a directory", filepath.Base(path))
	}
	if info.Size() > MaxAttachmentBytes {
		return Attachment{}, fmt.Errorf("%s: %w (%d bytes)", filepath.Base(path), ErrTooLarge, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return s.AddBytes(filepath.Base(path), DetectMIME(path, data), data)
}

// AddBytes appends in-memory content to the store.
func (s *Store) AddBytes(name, mimeType string, data []byte) (Attachment, error) {
	if len(data) > MaxAttachmentBytes {
		return Attachment{}, fmt.Errorf("%s: %w (%d bytes)", name, ErrTooLarge, len(data))
	}
	if mimeType == "" {
		mimeType = DetectMIME(name, data)
	}
	a := Attachment{
		Name:     name,
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}

	s.mu.Lock()
	s.items = append(s.items, a)
	s.mu.Unlock()
	return a, nil
}

// Clear removes every attachment.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}

// List returns a copy of the pending attachments in selection order.
func (s *Store) List() []Attachment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Attachment, len(s.items))
	copy(out, s.items)
	return out
}

// Take returns the pending attachments and empties the store.
func (s *Store) Take() []Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.items
	s.items = nil
	return out
}

// Len returns the number of pending attachments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Badge is the count indicator: empty when nothing is pending.
func (s *Store) Badge() string {
	n := s.Len()
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// DetectMIME guesses a MIME type from the file extension, falling back to
// content sniffing.
func DetectMIME(name string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = strings.TrimSpace(t[:i])
		}
		return t
	}
	if len(data) == 0 {
		return "application/octet-stream"
	}
	t := http.DetectContentType(data)
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}
