package persist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/store"
	"github.com/vovakirdan/relaychat/internal/store/pebble"
	"github.com/vovakirdan/relaychat/internal/store/sqlite"
)

const welcome = "Welcome to the chat! Try sending a message or asking the AI assistant a question."

func backends(t *testing.T) map[string]store.Store {
	t.Helper()

	sq, err := sqlite.New(":memory:")
	require.NoError(t, err)
	pb, err := pebble.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sq.Close()
		_ = pb.Close()
	})
	return map[string]store.Store{"sqlite": sq, "pebble": pb}
}

func TestLoadMessagesAbsentReturnsWelcome(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ls := New(kv, welcome, nil)
			msgs, err := ls.LoadMessages(context.Background(), "s1")
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.Equal(t, WelcomeMessageID, msgs[0].ID)
			assert.Equal(t, core.SenderSystem, msgs[0].Sender)
			assert.Equal(t, welcome, msgs[0].Text)
		})
	}
}

func TestSaveLoadRoundTripToMillis(t *testing.T) {
	read := true
	ts := time.Date(2024, 3, 9, 14, 5, 7, 123456789, time.FixedZone("X", 3*3600))
	msgs := []core.Message{
		{ID: "a", Text: "hi", Sender: core.SenderUser, Timestamp: ts, Read: &read},
		{
			ID: "b", Text: "hello", Sender: core.SenderBot, Timestamp: ts.Add(time.Second),
			Reactions: []core.Reaction{
				{Emoji: "👍", UserID: "u1", Timestamp: ts},
				{Emoji: "🎉", UserID: "u2"},
			},
		},
		{ID: "c", Sender: core.SenderUser, Timestamp: ts, ImageURL: "http://x/storage/v1/object/public/chat-files/c.png"},
	}

	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ls := New(kv, welcome, nil)
			ctx := context.Background()
			require.NoError(t, ls.SaveMessages(ctx, "s1", msgs))

			got, err := ls.LoadMessages(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, got, len(msgs))

			for i := range msgs {
				want := msgs[i]
				assert.Equal(t, want.ID, got[i].ID)
				assert.Equal(t, want.Text, got[i].Text)
				assert.Equal(t, want.Sender, got[i].Sender)
				assert.True(t, want.Timestamp.Truncate(time.Millisecond).Equal(got[i].Timestamp),
					"timestamp %v != %v", want.Timestamp, got[i].Timestamp)
				assert.Equal(t, want.Read, got[i].Read)
				assert.Equal(t, want.ImageURL, got[i].ImageURL)
				assert.Equal(t, want.FileURL, got[i].FileURL)
				require.Len(t, got[i].Reactions, len(want.Reactions))
			}
			assert.True(t, got[1].Reactions[1].Timestamp.IsZero())
			assert.Equal(t, "u2", got[1].Reactions[1].UserID)
		})
	}
}

func TestSavedTimestampsAreISOMillis(t *testing.T) {
	kv := backends(t)["sqlite"]
	ls := New(kv, welcome, nil)
	ctx := context.Background()

	ts := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	require.NoError(t, ls.SaveMessages(ctx, "s1", []core.Message{{ID: "a", Sender: core.SenderUser, Timestamp: ts}}))

	raw, err := kv.Get(ctx, "s1", KeyMessages)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"timestamp":"2024-01-02T03:04:05.006Z"`)
}

func TestLoadMessagesCorruptFallsBackToWelcome(t *testing.T) {
	cases := map[string]string{
		"not json":       "{{{",
		"wrong shape":    `{"id":"a"}`,
		"bad timestamp":  `[{"id":"a","text":"x","sender":"user","timestamp":"yesterday"}]`,
		"unknown sender": `[{"id":"a","text":"x","sender":"alien","timestamp":"2024-01-02T03:04:05.006Z"}]`,
		"missing id":     `[{"text":"x","sender":"user","timestamp":"2024-01-02T03:04:05.006Z"}]`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			kv := backends(t)["pebble"]
			ctx := context.Background()
			require.NoError(t, kv.Set(ctx, "s1", KeyMessages, []byte(payload)))

			msgs, err := New(kv, welcome, nil).LoadMessages(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.Equal(t, WelcomeMessageID, msgs[0].ID)
		})
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	kv := backends(t)["sqlite"]
	ls := New(kv, welcome, nil)
	ctx := context.Background()

	require.NoError(t, ls.SaveMessages(ctx, "s1", []core.Message{{ID: "a", Sender: core.SenderUser, Timestamp: time.Now()}}))

	msgs, err := ls.LoadMessages(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, WelcomeMessageID, msgs[0].ID)
}

func TestTheme(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ls := New(kv, welcome, nil)
			ctx := context.Background()

			theme, err := ls.LoadTheme(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, ThemeLight, theme)

			require.NoError(t, ls.SaveTheme(ctx, "s1", ThemeDark))
			theme, err = ls.LoadTheme(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, ThemeDark, theme)

			err = ls.SaveTheme(ctx, "s1", Theme("sepia"))
			assert.ErrorIs(t, err, ErrInvalidTheme)
		})
	}
}

func TestThemeLegacyKeyAndInvalidStored(t *testing.T) {
	kv := backends(t)["sqlite"]
	ls := New(kv, welcome, nil)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "old", KeyLegacyTheme, []byte("dark")))
	theme, err := ls.LoadTheme(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)

	require.NoError(t, kv.Set(ctx, "bad", KeyTheme, []byte("neon")))
	theme, err = ls.LoadTheme(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)
}

func TestBookmarksDedupeByID(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ls := New(kv, welcome, nil)
			ctx := context.Background()
			msg := core.Message{ID: "a", Text: "keep me", Sender: core.SenderBot, Timestamp: time.Now()}

			added, err := ls.AddBookmark(ctx, "s1", msg)
			require.NoError(t, err)
			assert.True(t, added)

			added, err = ls.AddBookmark(ctx, "s1", msg)
			require.NoError(t, err)
			assert.False(t, added)

			list, err := ls.ListBookmarks(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "keep me", list[0].Text)
		})
	}
}

func TestListBookmarksEmptyAndCorrupt(t *testing.T) {
	kv := backends(t)["sqlite"]
	ls := New(kv, welcome, nil)
	ctx := context.Background()

	list, err := ls.ListBookmarks(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, kv.Set(ctx, "s1", KeyBookmarks, []byte("nope")))
	list, err = ls.ListBookmarks(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestExport(t *testing.T) {
	kv := backends(t)["pebble"]
	ls := New(kv, welcome, nil)
	ctx := context.Background()

	require.NoError(t, ls.SaveTheme(ctx, "s1", ThemeDark))
	require.NoError(t, ls.SaveMessages(ctx, "s1", []core.Message{{ID: "a", Sender: core.SenderUser, Timestamp: time.Now()}}))

	out, err := ls.Export(ctx, "s1")
	require.NoError(t, err)
	assert.JSONEq(t, `"dark"`, string(out[KeyTheme]))
	assert.Contains(t, string(out[KeyMessages]), `"id":"a"`)
}
