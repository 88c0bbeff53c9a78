package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/blogpress/pkg/bus"
	"github.com/nao1215/blogpress/pkg/event"
	"github.com/nao1215/blogpress/pkg/logging"
	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("サービスに接続できません")

// fakeContent はContentLookupのテスト用実装。
type fakeContent struct {
	mu    sync.Mutex
	info  ContentInfo
	err   error
	block bool
	calls []string
}

func (f *fakeContent) GetContentByID(ctx context.Context, id string) (ContentInfo, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return ContentInfo{}, ctx.Err()
	}
	if f.err != nil {
		return ContentInfo{}, f.err
	}
	return f.info, nil
}

func (f *fakeContent) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeIdentity はIdentityLookupのテスト用実装。
type fakeIdentity struct {
	mu           sync.Mutex
	profiles     map[string]Profile
	profileErr   error
	emails       []string
	emailsErr    error
	profileCalls []string
	emailCalls   int
}

func (f *fakeIdentity) GetProfileByID(_ context.Context, id string) (Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileCalls = append(f.profileCalls, id)
	if f.profileErr != nil {
		return Profile{}, f.profileErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeIdentity) GetAllEmails(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emailCalls++
	if f.emailsErr != nil {
		return nil, f.emailsErr
	}
	return f.emails, nil
}

func (f *fakeIdentity) profileCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.profileCalls)
}

// sentMail は送信されたメール。
type sentMail struct {
	to      string
	subject string
	body    string
}

// recordingTransport は送信内容を記録するmail.Transport。
type recordingTransport struct {
	mu      sync.Mutex
	sent    []sentMail
	failFor map[string]bool
	panicOn string
}

func (t *recordingTransport) Send(_ context.Context, to, subject, body string) error {
	if to == t.panicOn && to != "" {
		panic("smtp connection reset")
	}
	if t.failFor[to] {
		return errUnavailable
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (t *recordingTransport) messages() []sentMail {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]sentMail, len(t.sent))
	copy(out, t.sent)
	return out
}

// allowOnce は同じキーを2回目以降拒否するGuard。
type allowOnce struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (g *allowOnce) Allow(_ context.Context, s event.MilestoneSignal) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen == nil {
		g.seen = make(map[string]bool)
	}
	key := guardKey(s)
	if g.seen[key] {
		return false
	}
	g.seen[key] = true
	return true
}

// authorProfile は著者ID "7" のプロフィール。
func authorProfile() Profile {
	return Profile{
		Username:  "hanako",
		Email:     "hanako@example.com",
		FirstName: "Hanako",
		LastName:  "Yamada",
	}
}

func newTestResolver(content ContentLookup, identity IdentityLookup) *Resolver {
	return NewResolver(content, identity, time.Second, logging.Discard())
}

func newTestDispatcher(content ContentLookup, identity IdentityLookup, transport *recordingTransport, guard Guard) *Dispatcher {
	logger := logging.Discard()
	return NewDispatcher(
		newTestResolver(content, identity),
		NewSender(transport, time.Second, logger, nil),
		guard,
		logger,
		nil,
	)
}

func milestoneMessage(t *testing.T, s event.MilestoneSignal) bus.Message {
	t.Helper()
	data, err := event.Encode(s)
	require.NoError(t, err)
	return bus.Message{Channel: string(event.ChannelEngagementMilestones), Key: []byte(s.BlogID), Value: data}
}

func newContentMessage(t *testing.T, s event.NewContentSignal) bus.Message {
	t.Helper()
	data, err := event.Encode(s)
	require.NoError(t, err)
	return bus.Message{Channel: string(event.ChannelNewContent), Key: []byte(s.BlogID), Value: data}
}
