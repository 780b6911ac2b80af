// Package storage keeps uploaded attachments and profile photos.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/OfomiMatthew/tech-buddy/internal/db"
)

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("file too large")

// Store persists a blob under a unique key and resolves keys to URLs.
type Store interface {
	// Save writes r under folder and returns the relative key.
	Save(ctx context.Context, folder, originalName string, r io.Reader, size int64, contentType string) (string, error)
	// URL returns a URL a client can fetch key from.
	URL(ctx context.Context, key string) (string, error)
	// Handler serves GET requests for keys below the mount point.
	Handler() http.Handler
}

// Kind describes how an upload is presented in a conversation.
type Kind struct {
	MessageType string
	Folder      string
}

var kinds = map[string]Kind{
	"png":  {db.MessageImage, "messages/images"},
	"jpg":  {db.MessageImage, "messages/images"},
	"jpeg": {db.MessageImage, "messages/images"},
	"gif":  {db.MessageImage, "messages/images"},
	"webp": {db.MessageImage, "messages/images"},
	"mp3":  {db.MessageVoice, "messages/voice"},
	"wav":  {db.MessageVoice, "messages/voice"},
	"ogg":  {db.MessageVoice, "messages/voice"},
	"mp4":  {db.MessageVideo, "messages/videos"},
	"webm": {db.MessageVideo, "messages/videos"},
	"pdf":  {db.MessageFile, "messages/files"},
	"doc":  {db.MessageFile, "messages/files"},
	"docx": {db.MessageFile, "messages/files"},
	"txt":  {db.MessageFile, "messages/files"},
	"zip":  {db.MessageFile, "messages/files"},
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	ext := path.Ext(strings.ToLower(strings.TrimSpace(name)))
	return strings.TrimPrefix(ext, ".")
}

// Classify maps a filename to exactly one message kind.
// ok is false for extensions that are not accepted at all.
func Classify(name string) (Kind, bool) {
	k, ok := kinds[Extension(name)]
	return k, ok
}

// IsImage reports whether name is an accepted image upload.
func IsImage(name string) bool {
	k, ok := Classify(name)
	return ok && k.MessageType == db.MessageImage
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeName strips directories and anything outside [A-Za-z0-9._-].
func SafeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "upload"
	}
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}

// UniqueName prefixes the sanitized name with a timestamp and a random id.
func UniqueName(original string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s", now.UTC().Format("20060102150405"), uuid.NewString()[:8], SafeName(original))
}
