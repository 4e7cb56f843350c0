package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/m-proto/loginpage/internal/repository"
)

// fakeGate is a mutable allow-list
type fakeGate struct {
	mu      sync.Mutex
	allowed map[string]bool
}

func newFakeGate(emails ...string) *fakeGate {
	g := &fakeGate{allowed: map[string]bool{}}
	for _, e := range emails {
		g.allowed[strings.ToLower(e)] = true
	}
	return g
}

func (g *fakeGate) IsAllowed(_ context.Context, email string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.allowed[strings.ToLower(email)]
}

func (g *fakeGate) revoke(email string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.allowed, strings.ToLower(email))
}

// capturingNotifier records delivered codes, or fails when err is set
type capturingNotifier struct {
	mu    sync.Mutex
	err   error
	codes map[string]string
}

func newCapturingNotifier() *capturingNotifier {
	return &capturingNotifier{codes: map[string]string{}}
}

func (n *capturingNotifier) SendCode(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.codes[email] = code
	return nil
}

func (n *capturingNotifier) lastCode(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[email]
}

type MockExchanger struct {
	mock.Mock
}

func (m *MockExchanger) Exchange(ctx context.Context, email string) (json.RawMessage, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

type MockAudit struct {
	mock.Mock
}

func (m *MockAudit) LogEvent(ctx context.Context, event repository.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

var errSMTPDown = errors.New("smtp: connection refused")

// sequenceGenerator hands out codes in order, repeating the last one
type sequenceGenerator struct {
	mu    sync.Mutex
	codes []string
	next  int
}

func (g *sequenceGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	code := g.codes[g.next]
	if g.next < len(g.codes)-1 {
		g.next++
	}
	return code, nil
}

// stallingNotifier holds delivery of stallCode until release is closed, then fails it.
// Every other code is delivered immediately.
type stallingNotifier struct {
	*capturingNotifier
	stallCode string
	stalled   chan struct{}
	release   chan struct{}
}

func newStallingNotifier(stallCode string) *stallingNotifier {
	return &stallingNotifier{
		capturingNotifier: newCapturingNotifier(),
		stallCode:         stallCode,
		stalled:           make(chan struct{}),
		release:           make(chan struct{}),
	}
}

func (n *stallingNotifier) SendCode(ctx context.Context, email, code string) error {
	if code == n.stallCode {
		close(n.stalled)
		<-n.release
		return errSMTPDown
	}
	return n.capturingNotifier.SendCode(ctx, email, code)
}
