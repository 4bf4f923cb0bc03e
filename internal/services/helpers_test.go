package services

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/llm"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/storage"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/vectordb"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/wallet"
)

// scriptedLLM answers per task from outputs/errs and falls back to the mock
// provider for tasks without a script.
type scriptedLLM struct {
	mu      sync.Mutex
	outputs map[llm.Task]string
	errs    map[llm.Task]error
	calls   []llm.Request
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{outputs: map[llm.Task]string{}, errs: map[llm.Task]error{}}
}

func (s *scriptedLLM) Complete(ctx context.Context, task llm.Task, req llm.Request) (string, error) {
	s.mu.Lock()
	req.Task = task
	s.calls = append(s.calls, req)
	out, hasOut := s.outputs[task]
	err := s.errs[task]
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	if hasOut {
		return out, nil
	}
	return llm.NewMockProvider().Complete(ctx, req)
}

func (s *scriptedLLM) callsFor(task llm.Task) []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []llm.Request
	for _, c := range s.calls {
		if c.Task == task {
			out = append(out, c)
		}
	}
	return out
}

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}
func (fakeEmbedder) Dimension() int             { return 3 }
func (fakeEmbedder) Name() string               { return "fake" }
func (fakeEmbedder) Ping(context.Context) error { return nil }

// fakeVectors returns fixed matches regardless of the query vector.
type fakeVectors struct {
	matches []vectordb.Match
	err     error
}

func (f *fakeVectors) Name() string { return "fake" }
func (f *fakeVectors) Query(context.Context, []float32, int) ([]vectordb.Match, error) {
	return f.matches, f.err
}
func (f *fakeVectors) Upsert(_ context.Context, r []vectordb.Record) (int, error) { return len(r), nil }
func (f *fakeVectors) Ping(context.Context) error                                 { return f.err }
func (f *fakeVectors) Close() error                                               { return nil }

type sentMessage struct{ phone, body string }

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) Notify(_ context.Context, phone, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{phone, body})
	return nil
}

func (n *recordingNotifier) Enabled() bool { return true }

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

func newTestWallets(t *testing.T) (*WalletService, *storage.MemoryWalletRepository) {
	t.Helper()
	log := zaptest.NewLogger(t)
	repo := storage.NewMemoryWalletRepository()
	factory := wallet.NewFactoryWithClient(nil, "base-sepolia", log)
	return NewWalletService(repo, factory, "base-sepolia", testEncryptionKey, log), repo
}
