package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/tokengate"
	"github.com/google/uuid"
)

// MaxPostLength is the largest post body accepted, in characters.
const MaxPostLength = 500

// DefaultListLimit is used by ListPosts when limit <= 0.
const DefaultListLimit = 100

var (
	// ErrInvalidRecord is returned when a credential record has a blank
	// username or password hash.
	ErrInvalidRecord = errors.New("invalid credential record")
	// ErrInvalidContent is returned when post content is empty after
	// trimming or longer than MaxPostLength.
	ErrInvalidContent = errors.New("post content must be 1-500 characters")
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown store driver")
)

// UserStore is a writable identity store.
type UserStore interface {
	tokengate.CredentialStore
	// CreateUser inserts rec and fails with tokengate.ErrUserExists when the
	// username is taken.
	CreateUser(ctx context.Context, rec tokengate.CredentialRecord) error
	// PutUser inserts or replaces rec.
	PutUser(ctx context.Context, rec tokengate.CredentialRecord) error
	// DeleteUser removes username. Deleting an absent user is not an error.
	DeleteUser(ctx context.Context, username string) error
}

// PostStore persists posts.
type PostStore interface {
	CreatePost(ctx context.Context, p Post) error
	// ListPosts returns up to limit posts, newest first.
	ListPosts(ctx context.Context, limit int) ([]Post, error)
}

// Backend is a complete store for the reference service.
type Backend interface {
	UserStore
	PostStore
	Ping(ctx context.Context) error
	Close() error
}

// Post is a short text authored by a principal.
type Post struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewPost validates content and builds a post with a fresh ID.
func NewPost(author, content string, now time.Time) (Post, error) {
	content = strings.TrimSpace(content)
	n := utf8.RuneCountInString(content)
	if n == 0 || n > MaxPostLength {
		return Post{}, ErrInvalidContent
	}
	if strings.TrimSpace(author) == "" {
		return Post{}, fmt.Errorf("%w: empty author", ErrInvalidRecord)
	}
	return Post{
		ID:        uuid.NewString(),
		Author:    author,
		Content:   content,
		CreatedAt: now.UTC(),
	}, nil
}

func validateRecord(rec tokengate.CredentialRecord) (tokengate.CredentialRecord, error) {
	rec.Username = strings.TrimSpace(rec.Username)
	if rec.Username == "" || rec.PasswordHash == "" {
		return tokengate.CredentialRecord{}, ErrInvalidRecord
	}
	rec.Authorities = normalizeAuthorities(rec.Authorities)
	return rec, nil
}

func normalizeAuthorities(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func joinAuthorities(a []string) string {
	return strings.Join(a, ",")
}

func splitAuthorities(s string) []string {
	if s == "" {
		return nil
	}
	return normalizeAuthorities(strings.Split(s, ","))
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func unavailable(err error) error {
	if err == nil || errors.Is(err, tokengate.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", tokengate.ErrStoreUnavailable, err)
}
