// Package persist is the local-storage adapter: it keeps a session's messages, theme
// and bookmarks as blobs in a key-value namespace.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/store"
)

// Storage keys inside a session namespace.
const (
	KeyMessages    = "chat-messages"
	KeyTheme       = "theme"
	KeyLegacyTheme = "chat-theme"
	KeyBookmarks   = "bookmarkedMessages"
)

// WelcomeMessageID is the id of the canned welcome message.
const WelcomeMessageID = "welcome"

// Theme is the UI color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ErrInvalidTheme is returned for themes other than light and dark.
var ErrInvalidTheme = errors.New("theme must be light or dark")

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTheme, s)
	}
}

// LocalStorage reads and writes session state in a store.Store.
type LocalStorage struct {
	kv      store.Store
	welcome string
	now     func() time.Time
	log     *zerolog.Logger
}

// New creates the adapter. welcomeText is the body of the default message shown
// to sessions without (readable) history.
func New(kv store.Store, welcomeText string, logger *zerolog.Logger) *LocalStorage {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LocalStorage{
		kv:      kv,
		welcome: welcomeText,
		now:     time.Now,
		log:     logger,
	}
}

// SaveMessages writes the full message list of namespace.
func (l *LocalStorage) SaveMessages(ctx context.Context, namespace string, msgs []core.Message) error {
	data, err := encodeMessages(msgs)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	if err := l.kv.Set(ctx, namespace, KeyMessages, data); err != nil {
		return fmt.Errorf("save messages: %w", err)
	}
	return nil
}

// LoadMessages reads the message list of namespace. An absent or unreadable list
// yields the single welcome message; only storage failures are returned as errors.
func (l *LocalStorage) LoadMessages(ctx context.Context, namespace string) ([]core.Message, error) {
	data, err := l.kv.Get(ctx, namespace, KeyMessages)
	if errors.Is(err, store.ErrNotFound) {
		return l.defaultMessages(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	msgs, err := decodeMessages(data)
	if err != nil {
		l.log.Warn().Err(err).Str("session_id", namespace).Msg("stored messages are corrupt, using default")
		return l.defaultMessages(), nil
	}
	return msgs, nil
}

// WelcomeMessage returns the canned system message.
func (l *LocalStorage) WelcomeMessage() core.Message {
	return core.Message{
		ID:        WelcomeMessageID,
		Text:      l.welcome,
		Sender:    core.SenderSystem,
		Timestamp: l.now().UTC(),
	}
}

func (l *LocalStorage) defaultMessages() []core.Message {
	return []core.Message{l.WelcomeMessage()}
}

// LoadTheme returns the stored theme, defaulting to light.
func (l *LocalStorage) LoadTheme(ctx context.Context, namespace string) (Theme, error) {
	for _, key := range []string{KeyTheme, KeyLegacyTheme} {
		data, err := l.kv.Get(ctx, namespace, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("load theme: %w", err)
		}
		theme, err := ParseTheme(string(data))
		if err != nil {
			l.log.Warn().Err(err).Str("session_id", namespace).Msg("stored theme is invalid, using default")
			return ThemeLight, nil
		}
		return theme, nil
	}
	return ThemeLight, nil
}

// SaveTheme stores theme after validating it.
func (l *LocalStorage) SaveTheme(ctx context.Context, namespace string, theme Theme) error {
	if _, err := ParseTheme(string(theme)); err != nil {
		return err
	}
	if err := l.kv.Set(ctx, namespace, KeyTheme, []byte(theme)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

// AddBookmark stores a copy of msg. It reports false when msg is already bookmarked.
func (l *LocalStorage) AddBookmark(ctx context.Context, namespace string, msg core.Message) (bool, error) {
	bookmarks, err := l.ListBookmarks(ctx, namespace)
	if err != nil {
		return false, err
	}
	for _, b := range bookmarks {
		if b.ID == msg.ID {
			return false, nil
		}
	}

	data, err := encodeMessages(append(bookmarks, msg))
	if err != nil {
		return false, fmt.Errorf("encode bookmarks: %w", err)
	}
	if err := l.kv.Set(ctx, namespace, KeyBookmarks, data); err != nil {
		return false, fmt.Errorf("save bookmarks: %w", err)
	}
	return true, nil
}

// ListBookmarks returns bookmarked messages in the order they were added.
func (l *LocalStorage) ListBookmarks(ctx context.Context, namespace string) ([]core.Message, error) {
	data, err := l.kv.Get(ctx, namespace, KeyBookmarks)
	if errors.Is(err, store.ErrNotFound) {
		return []core.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load bookmarks: %w", err)
	}

	bookmarks, err := decodeMessages(data)
	if err != nil {
		l.log.Warn().Err(err).Str("session_id", namespace).Msg("stored bookmarks are corrupt, starting over")
		return []core.Message{}, nil
	}
	return bookmarks, nil
}

// Export returns every raw key of namespace as JSON-friendly values, for the CLI.
func (l *LocalStorage) Export(ctx context.Context, namespace string) (map[string]json.RawMessage, error) {
	entries, err := l.kv.List(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("list namespace: %w", err)
	}
	out := make(map[string]json.RawMessage, len(entries))
	for _, entry := range entries {
		if json.Valid(entry.Value) {
			out[entry.Key] = json.RawMessage(entry.Value)
			continue
		}
		quoted, err := json.Marshal(string(entry.Value))
		if err != nil {
			return nil, err
		}
		out[entry.Key] = quoted
	}
	return out, nil
}
