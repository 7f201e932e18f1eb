package main

import (
	"context"
	"sync"
	"testing"
	"time"
)

type memoryBlob struct {
	mu      sync.Mutex
	name    string
	data    []byte
	failing error
	saves   int
}

func newMemoryBlob(name string) *memoryBlob {
	return &memoryBlob{name: name}
}

func (o *memoryBlob) Load(context.Context) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]byte(nil), o.data...), nil
}

func (o *memoryBlob) Save(_ context.Context, v []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failing != nil {
		return o.failing
	}
	o.data = append([]byte(nil), v...)
	o.saves++
	return nil
}

func (o *memoryBlob) setFailing(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failing = err
}

func (o *memoryBlob) String() string { return "memory:" + o.name }

type sentMessage struct {
	Method  string
	Chat    any
	Text    string
	FileID  string
	Buttons Buttons
	From    MessageRef
}

// fakeTransport records every call. fail is keyed by method name, failFiles
// by file id.
type fakeTransport struct {
	mu            sync.Mutex
	nextID        int
	sent          []sentMessage
	edits         []MessageRef
	fail          map[string]error
	failFiles     map[string]error
	membership    Membership
	membershipErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		fail:       map[string]error{},
		failFiles:  map[string]error{},
		membership: MembershipMember,
	}
}

func (o *fakeTransport) record(m sentMessage, chat any) (MessageRef, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.fail[m.Method]; err != nil {
		return MessageRef{}, err
	}
	if err := o.failFiles[m.FileID]; m.FileID != "" && err != nil {
		return MessageRef{}, err
	}
	o.nextID++
	o.sent = append(o.sent, m)
	id, _ := chat.(int64)
	return MessageRef{ChatID: id, MessageID: o.nextID}, nil
}

func (o *fakeTransport) SendMessage(_ context.Context, chat any, text string, buttons Buttons) (MessageRef, error) {
	return o.record(sentMessage{Method: "SendMessage", Chat: chat, Text: text, Buttons: buttons}, chat)
}

func (o *fakeTransport) SendDocument(_ context.Context, chat any, fileID string, caption string) (MessageRef, error) {
	return o.record(sentMessage{Method: "SendDocument", Chat: chat, FileID: fileID, Text: caption}, chat)
}

func (o *fakeTransport) SendImage(_ context.Context, chat any, imageID string, caption string, buttons Buttons) (MessageRef, error) {
	return o.record(sentMessage{Method: "SendImage", Chat: chat, FileID: imageID, Text: caption, Buttons: buttons}, chat)
}

func (o *fakeTransport) RelayMessage(_ context.Context, chat any, from MessageRef) (MessageRef, error) {
	return o.record(sentMessage{Method: "RelayMessage", Chat: chat, From: from}, chat)
}

func (o *fakeTransport) GetMembership(context.Context, any, int64) (Membership, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.membershipErr != nil {
		return MembershipUnknown, o.membershipErr
	}
	return o.membership, nil
}

func (o *fakeTransport) EditButtons(_ context.Context, ref MessageRef, _ Buttons) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.fail["EditButtons"]; err != nil {
		return err
	}
	o.edits = append(o.edits, ref)
	return nil
}

func (o *fakeTransport) byMethod(method string) []sentMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []sentMessage
	for _, m := range o.sent {
		if m.Method == method {
			out = append(out, m)
		}
	}
	return out
}

func (o *fakeTransport) last() sentMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return sentMessage{}
	}
	return o.sent[len(o.sent)-1]
}

type testEnv struct {
	transport   *fakeTransport
	catalogBlob *memoryBlob
	sessionBlob *memoryBlob
	catalog     *DocumentStore[Entry]
	sessions    *DocumentStore[Session]
	publisher   *Publisher
	wizard      *Wizard
}

func newTestEnv(t *testing.T, opts PublisherOptions) *testEnv {
	t.Helper()
	ctx := context.Background()
	env := &testEnv{
		transport:   newFakeTransport(),
		catalogBlob: newMemoryBlob(catalogDocument),
		sessionBlob: newMemoryBlob(sessionDocument),
	}
	var err error
	if env.catalog, err = OpenDocumentStore[Entry](ctx, env.catalogBlob); err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	if env.sessions, err = OpenDocumentStore[Session](ctx, env.sessionBlob); err != nil {
		t.Fatalf("open sessions: %v", err)
	}
	if opts.BotUsername == "" {
		opts.BotUsername = "MollywoodBot"
	}
	env.publisher = NewPublisher(env.transport, env.catalog, env.sessions, opts)
	env.wizard = NewWizard(env.sessions, env.catalog, env.publisher)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	env.wizard.now = func() time.Time { return fixed }
	env.publisher.now = func() time.Time { return fixed }
	return env
}

func fileInput(id string) Input {
	return Input{ChatID: 1, FileID: "file-" + id, FileKey: "key-" + id}
}

func textInput(text string) Input {
	return Input{ChatID: 1, Text: text}
}

func mustStep(t *testing.T) func(Step, error) Step {
	return func(step Step, err error) Step {
		t.Helper()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		return step
	}
}
