package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/relaychat/internal/upload"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// memPersister is an in-memory Persister recording every save.
type memPersister struct {
	mu      sync.Mutex
	data    map[string][]Message
	saves   int
	loadErr error
}

func newMemPersister() *memPersister {
	return &memPersister{data: make(map[string][]Message)}
}

func (p *memPersister) LoadMessages(_ context.Context, ns string) ([]Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	return append([]Message(nil), p.data[ns]...), nil
}

func (p *memPersister) SaveMessages(_ context.Context, ns string, msgs []Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	p.data[ns] = append([]Message(nil), msgs...)
	return nil
}

func (p *memPersister) saved(ns string) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.data[ns]...)
}

// fakeUploader runs the real validation and fakes the network part.
type fakeUploader struct {
	mu      sync.Mutex
	real    *upload.Uploader
	calls   int
	failErr error
}

func (u *fakeUploader) Validate(f *upload.File) error {
	return u.real.Validate(f)
}

func (u *fakeUploader) Upload(_ context.Context, f upload.File) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if u.failErr != nil {
		return "", u.failErr
	}
	return fmt.Sprintf("http://files.test/%s", f.Name), nil
}

func (u *fakeUploader) uploadCalls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{real: upload.New(nil)}
}

var errBackend = errors.New("backend exploded")

func counter(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}
