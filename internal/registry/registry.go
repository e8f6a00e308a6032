package registry

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

var (
	// ErrInvalidEmail is returned when an address fails shape validation.
	ErrInvalidEmail = errors.New("registry: invalid email address")
	// ErrNotFound is returned when removing an email that is not subscribed.
	ErrNotFound = errors.New("registry: subscriber not found")
	// ErrUnknownSource is returned for a provenance tag outside the enum.
	ErrUnknownSource = errors.New("registry: unknown subscription source")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Source tags where a subscription came from.
type Source string

const (
	SourceNewsletter Source = "newsletter"
	SourceCheckout   Source = "checkout"
	SourceContact    Source = "contact"
)

// ParseSource validates a provenance tag. An empty value defaults to
// SourceNewsletter; anything outside the enum is rejected.
func ParseSource(raw string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case "":
		return SourceNewsletter, nil
	case SourceNewsletter, SourceCheckout, SourceContact:
		return s, nil
	default:
		return "", ErrUnknownSource
	}
}

// Subscriber is one newsletter subscriber record.
type Subscriber struct {
	Email        string    `json:"email"`
	SubscribedAt time.Time `json:"subscribedAt"`
	Source       Source    `json:"source"`
}

// AddResult reports the outcome of an Add call.
type AddResult struct {
	Created        bool
	AlreadyExisted bool
	Subscriber     Subscriber
}

// Registry owns the durable subscriber collection, persisted as a JSON array
// in a single file. Every mutation is a whole-file read-modify-write; the
// mutex serializes those cycles so concurrent adds cannot lose updates.
type Registry struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// New creates a Registry backed by the given file path. The file is created
// lazily on first write; an absent file reads as an empty collection.
func New(path string) *Registry {
	return &Registry{path: path, now: time.Now}
}

// Add registers a new subscriber. Emails are normalized (lowercase, trimmed)
// before lookup and storage; re-subscribing an existing email is a no-op that
// reports AlreadyExisted without touching storage or the original timestamp.
func (r *Registry) Add(email string, source Source) (AddResult, error) {
	normalized := normalizeEmail(email)
	if normalized == "" || !emailPattern.MatchString(normalized) {
		return AddResult{}, ErrInvalidEmail
	}
	if source == "" {
		source = SourceNewsletter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	subs, err := r.load()
	if err != nil {
		return AddResult{}, err
	}
	for _, s := range subs {
		if s.Email == normalized {
			return AddResult{AlreadyExisted: true, Subscriber: s}, nil
		}
	}

	sub := Subscriber{
		Email:        normalized,
		SubscribedAt: r.now().UTC(),
		Source:       source,
	}
	subs = append(subs, sub)
	if err := r.save(subs); err != nil {
		return AddResult{}, err
	}
	return AddResult{Created: true, Subscriber: sub}, nil
}

// Remove deletes a subscriber by email (case-insensitive). Returns ErrNotFound
// when no record matched; storage is untouched in that case.
func (r *Registry) Remove(email string) error {
	normalized := normalizeEmail(email)

	r.mu.Lock()
	defer r.mu.Unlock()

	subs, err := r.load()
	if err != nil {
		return err
	}

	kept := subs[:0]
	removed := false
	for _, s := range subs {
		if s.Email == normalized {
			removed = true
			continue
		}
		kept = append(kept, s)
	}
	if !removed {
		return ErrNotFound
	}
	return r.save(kept)
}

// List returns all current subscribers in insertion order.
func (r *Registry) List() ([]Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Count returns the number of subscribers.
func (r *Registry) Count() (int, error) {
	subs, err := r.List()
	if err != nil {
		return 0, err
	}
	return len(subs), nil
}

// ExportCSV writes all subscribers as CSV (header + one row per record).
func (r *Registry) ExportCSV(w io.Writer) error {
	subs, err := r.List()
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"email", "subscribed_at", "source"}); err != nil {
		return err
	}
	for _, s := range subs {
		if err := cw.Write([]string{s.Email, s.SubscribedAt.Format(time.RFC3339), string(s.Source)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// load reads the registry file. An absent file means "no subscribers yet";
// a file that exists but cannot be parsed is a hard error, never an empty list.
func (r *Registry) load() ([]Subscriber, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Subscriber{}, nil
		}
		return nil, fmt.Errorf("registry: read %s: %w", r.path, err)
	}
	var subs []Subscriber
	if err := json.Unmarshal(raw, &subs); err != nil {
		return nil, fmt.Errorf("registry: file %s is corrupt: %w", r.path, err)
	}
	return subs, nil
}

// save writes the full collection atomically (temp file + rename).
func (r *Registry) save(subs []Subscriber) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("registry: create data dir: %w", err)
	}
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".subscribers-*.json")
	if err != nil {
		return fmt.Errorf("registry: create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("registry: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("registry: replace %s: %w", r.path, err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
