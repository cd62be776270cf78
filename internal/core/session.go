package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/metrics"
	"github.com/vovakirdan/relaychat/internal/provider"
	"github.com/vovakirdan/relaychat/internal/upload"
)

const (
	defaultTypingIdle     = 1500 * time.Millisecond
	defaultPersistTimeout = 5 * time.Second
	defaultSessionIdle    = 30 * time.Minute
)

// Persister loads and saves the message list of a session namespace.
type Persister interface {
	LoadMessages(ctx context.Context, namespace string) ([]Message, error)
	SaveMessages(ctx context.Context, namespace string, msgs []Message) error
}

// Uploader validates and stores attachments.
type Uploader interface {
	Validate(f *upload.File) error
	Upload(ctx context.Context, f upload.File) (string, error)
}

// SessionDeps are the collaborators shared by every session of a hub.
type SessionDeps struct {
	Persister      Persister
	Uploader       Uploader
	Router         *provider.Router
	Metrics        *metrics.Metrics
	Logger         *zerolog.Logger
	TypingIdle     time.Duration
	PersistTimeout time.Duration

	// SessionIdle is how long a hub keeps a session nobody uses.
	SessionIdle time.Duration

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

func (d SessionDeps) withDefaults() SessionDeps {
	if d.Logger == nil {
		nop := zerolog.Nop()
		d.Logger = &nop
	}
	if d.TypingIdle <= 0 {
		d.TypingIdle = defaultTypingIdle
	}
	if d.PersistTimeout <= 0 {
		d.PersistTimeout = defaultPersistTimeout
	}
	if d.SessionIdle <= 0 {
		d.SessionIdle = defaultSessionIdle
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}

// Outgoing is what the user submits: text, an optional attachment, or both.
type Outgoing struct {
	Text string
	File *upload.File
}

// SendResult describes what one send produced.
type SendResult struct {
	User   Message
	Bot    *Message
	Notice *Notice
}

// Session is the message pipeline of one chat session: its store, persistence sync,
// indicators and the cancellation scope of outstanding provider calls.
type Session struct {
	id    string
	deps  SessionDeps
	log   zerolog.Logger
	store *MessageStore

	audience  *audience
	composing *Indicator
	typing    *TypingTimer

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	pending  map[uint64]context.CancelFunc
	nextCall uint64
	closed   bool
}

func newSession(id string, initial []Message, deps SessionDeps) *Session {
	deps = deps.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:       id,
		deps:     deps,
		log:      deps.Logger.With().Str("session_id", id).Logger(),
		store:    NewMessageStore(initial),
		audience: newAudience(),
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[uint64]context.CancelFunc),
	}
	s.composing = NewIndicator(func(active bool) {
		s.audience.broadcast(&Event{Kind: EventBotTyping, SessionID: id, Active: active})
	})
	s.typing = NewTypingTimer(deps.TypingIdle, func(active bool) {
		s.audience.broadcast(&Event{Kind: EventUserTyping, SessionID: id, Active: active})
	})
	s.store.Observe(s.persist)
	s.store.Observe(s.publish)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Messages returns a snapshot of the session's messages.
func (s *Session) Messages() []Message {
	return s.store.Snapshot()
}

// Message returns one message by id.
func (s *Session) Message(id string) (Message, error) {
	msg, ok := s.store.Get(id)
	if !ok {
		return Message{}, coreError(ErrCodeMessageNotFound, ErrMessageNotFound)
	}
	return msg, nil
}

// Composing reports whether a provider call is outstanding.
func (s *Session) Composing() bool {
	return s.composing.Active()
}

// Typing reports whether the user typing indicator is asserted.
func (s *Session) Typing() bool {
	return s.typing.Active()
}

// Send runs the outgoing pipeline: validate, upload, append the user message, then
// relay to an AI provider when the text starts with a known command.
func (s *Session) Send(ctx context.Context, out Outgoing) (SendResult, error) {
	if s.isClosed() {
		return SendResult{}, ErrSessionClosed
	}
	s.typing.Stop()

	if strings.TrimSpace(out.Text) == "" && out.File == nil {
		return SendResult{}, coreError(ErrCodeEmptyMessage, ErrEmptyMessage)
	}

	msg := Message{
		ID:        s.deps.NewID(),
		Text:      out.Text,
		Sender:    SenderUser,
		Timestamp: s.deps.Now().UTC(),
	}

	if out.File != nil {
		url, notice, err := s.attach(ctx, out.File)
		if err != nil {
			s.notify(notice)
			return SendResult{Notice: notice}, err
		}
		if out.File.IsImage() {
			msg.ImageURL = url
		} else {
			msg.FileURL = url
		}
	}

	s.store.Append(msg)
	result := SendResult{User: msg}

	dispatch, ok := s.deps.Router.Route(out.Text)
	if !ok {
		return result, nil
	}

	reply, err := s.relay(ctx, dispatch)
	if err != nil {
		s.log.Warn().Err(err).Str("provider", dispatch.Provider).Msg("provider call failed")
		notice := &Notice{
			Code:        ErrCodeProviderFailed,
			Title:       dispatch.Provider + " Assistant Error",
			Description: providerFailureText(dispatch.Provider, err),
			Variant:     NoticeVariantDestructive,
		}
		s.notify(notice)
		result.Notice = notice
		return result, nil
	}

	if s.isClosed() {
		return result, ErrSessionClosed
	}
	bot := Message{
		ID:        s.deps.NewID(),
		Text:      reply,
		Sender:    SenderBot,
		Timestamp: s.deps.Now().UTC(),
	}
	s.store.Append(bot)
	result.Bot = &bot
	return result, nil
}

func (s *Session) attach(ctx context.Context, f *upload.File) (string, *Notice, error) {
	if s.deps.Uploader == nil {
		return "", uploadNotice(), coreError(ErrCodeUploadFailed, ErrUploadFailed)
	}

	if err := s.deps.Uploader.Validate(f); err != nil {
		var rejection *upload.RejectionError
		if errors.As(err, &rejection) {
			s.deps.Metrics.Upload(metrics.UploadRejected)
			notice := &Notice{
				Code:        string(rejection.Reason),
				Title:       rejection.Title,
				Description: rejection.Description,
				Variant:     NoticeVariantDestructive,
			}
			return "", notice, &CoreError{Code: string(rejection.Reason), Message: rejection.Error(), Err: rejection}
		}
		s.deps.Metrics.Upload(metrics.UploadFailed)
		return "", uploadNotice(), uploadError(err)
	}

	url, err := s.deps.Uploader.Upload(ctx, *f)
	if err != nil {
		s.log.Error().Err(err).Str("file", f.Name).Msg("upload failed")
		s.deps.Metrics.Upload(metrics.UploadFailed)
		return "", uploadNotice(), uploadError(err)
	}
	s.deps.Metrics.Upload(metrics.UploadOK)
	return url, nil, nil
}

func uploadNotice() *Notice {
	return &Notice{
		Code:        ErrCodeUploadFailed,
		Title:       "Error uploading file",
		Description: "Your file could not be uploaded. Please try again.",
		Variant:     NoticeVariantDestructive,
	}
}

func uploadError(err error) *CoreError {
	return coreError(ErrCodeUploadFailed, fmt.Errorf("%w: %w", ErrUploadFailed, err))
}

func providerFailureText(name string, err error) string {
	if errors.Is(err, context.Canceled) {
		return "The request was cancelled."
	}
	return fmt.Sprintf("Failed to get a response from %s. Please try again.", name)
}

// relay calls the routed provider with the composing indicator asserted. The call is
// bound to the session lifetime and to ctx, and can be aborted with CancelPending.
func (s *Session) relay(ctx context.Context, d provider.Dispatch) (string, error) {
	callCtx, done, err := s.beginCall()
	if err != nil {
		return "", err
	}
	defer done()
	stop := context.AfterFunc(ctx, done)
	defer stop()

	s.composing.Acquire()
	defer s.composing.Release()

	start := s.deps.Now()
	reply, err := d.Completer.Complete(callCtx, d.Prompt)
	elapsed := s.deps.Now().Sub(start)

	switch {
	case err != nil && callCtx.Err() != nil:
		s.deps.Metrics.ProviderCall(d.Provider, metrics.ProviderCancelled, elapsed)
		return "", fmt.Errorf("%s: %w", d.Provider, context.Canceled)
	case err != nil:
		s.deps.Metrics.ProviderCall(d.Provider, metrics.ProviderError, elapsed)
		return "", fmt.Errorf("%s: %w", d.Provider, err)
	}
	s.deps.Metrics.ProviderCall(d.Provider, metrics.ProviderOK, elapsed)
	return reply, nil
}

func (s *Session) beginCall() (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, ErrSessionClosed
	}

	ctx, cancel := context.WithCancel(s.ctx)
	id := s.nextCall
	s.nextCall++
	s.pending[id] = cancel

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.pending, id)
			s.mu.Unlock()
			cancel()
		})
	}, nil
}

// CancelPending aborts every outstanding provider call and returns how many there were.
func (s *Session) CancelPending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending)
	for _, cancel := range s.pending {
		cancel()
	}
	return n
}

// React inserts or replaces userID's reaction on a message.
func (s *Session) React(messageID, emoji, userID string) (Message, error) {
	if s.isClosed() {
		return Message{}, ErrSessionClosed
	}
	if strings.TrimSpace(emoji) == "" {
		return Message{}, coreError(ErrCodeBadRequest, ErrEmptyEmoji)
	}
	if userID == "" {
		userID = AnonymousUserID
	}

	updated, ok := s.store.UpsertReaction(messageID, Reaction{
		Emoji:     emoji,
		UserID:    userID,
		Timestamp: s.deps.Now().UTC(),
	})
	if !ok {
		return Message{}, coreError(ErrCodeMessageNotFound, ErrMessageNotFound)
	}
	return updated, nil
}

// Keystroke records user input activity; active=false clears typing at once.
func (s *Session) Keystroke(active bool) {
	if active {
		s.typing.Touch()
		return
	}
	s.typing.Stop()
}

// Close tears the session down: pending calls are cancelled, timers released and
// subscribers disconnected. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.typing.Close()
	s.audience.close()
}

// idle reports whether nothing depends on the live session: no subscribers and no
// outstanding provider call.
func (s *Session) idle() bool {
	s.mu.Lock()
	pending := len(s.pending)
	s.mu.Unlock()
	return pending == 0 && s.audience.size() == 0
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) subscribe(c *Client) bool {
	if !s.audience.add(c) {
		return false
	}
	s.audience.send(c, &Event{Kind: EventHistory, SessionID: s.id, Messages: s.store.Snapshot()})
	return true
}

func (s *Session) unsubscribe(c *Client) {
	s.audience.remove(c)
}

func (s *Session) notify(n *Notice) {
	if n == nil {
		return
	}
	s.audience.broadcast(&Event{Kind: EventNotice, SessionID: s.id, Notice: n})
}

// persist mirrors every mutation to the persistence namespace, in mutation order.
func (s *Session) persist(change Change) {
	if s.deps.Persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.PersistTimeout)
	defer cancel()
	if err := s.deps.Persister.SaveMessages(ctx, s.id, change.Messages); err != nil {
		s.log.Error().Err(err).Msg("failed to persist messages")
	}
}

func (s *Session) publish(change Change) {
	switch change.Kind {
	case ChangeAppend:
		s.deps.Metrics.MessageAppended(string(change.Message.Sender))
		s.audience.broadcast(&Event{Kind: EventMessage, SessionID: s.id, Message: change.Message})
	case ChangeReaction:
		s.audience.broadcast(&Event{Kind: EventReaction, SessionID: s.id, Message: change.Message})
	}
}
