package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fitglue/polar-ingest/pkg/integrations/polar"
)

// recordingSleeper records requested waits without blocking.
type recordingSleeper struct {
	mu     sync.Mutex
	waits  []time.Duration
	failOn int // 1-based call that returns context.Canceled, 0 for never
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	if s.failOn > 0 && len(s.waits) == s.failOn {
		return context.Canceled
	}
	return nil
}

func (s *recordingSleeper) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// fakeSessions serves a fixed set of exercises and records the calls made.
type fakeSessions struct {
	mu sync.Mutex

	noData    bool
	openErr   error
	listErr   error
	commitErr error

	refs      []polar.RecordReference
	summaries map[polar.RecordReference]map[string]interface{}
	tracks    map[polar.RecordReference][]byte
	failing   map[polar.RecordReference]error

	calls   []string
	commits int
}

func newFakeSessions(n int) *fakeSessions {
	f := &fakeSessions{
		summaries: map[polar.RecordReference]map[string]interface{}{},
		tracks:    map[polar.RecordReference][]byte{},
		failing:   map[polar.RecordReference]error{},
	}
	for i := 1; i <= n; i++ {
		ref := polar.RecordReference(fmt.Sprintf("https://polar.test/v3/users/1/exercise-transactions/9/exercises/%d", i))
		f.refs = append(f.refs, ref)
		f.summaries[ref] = map[string]interface{}{
			"id":         fmt.Sprintf("%d", i),
			"start-time": fmt.Sprintf("2024-05-%02dT07:00:00", i),
			"sport":      "RUNNING",
		}
	}
	return f
}

func (f *fakeSessions) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSessions) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSessions) Open(ctx context.Context, userID, accessToken string) (*polar.Session, error) {
	f.record("open")
	if f.openErr != nil {
		return nil, f.openErr
	}
	if f.noData {
		return nil, nil
	}
	return &polar.Session{UserID: userID, AccessToken: accessToken, TransactionID: 9}, nil
}

func (f *fakeSessions) ListRecords(ctx context.Context, s *polar.Session) ([]polar.RecordReference, error) {
	f.record("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.refs, nil
}

func (f *fakeSessions) Summary(ctx context.Context, s *polar.Session, ref polar.RecordReference) (map[string]interface{}, error) {
	f.record("summary " + string(ref))
	if err, ok := f.failing[ref]; ok {
		return nil, err
	}
	summary, ok := f.summaries[ref]
	if !ok {
		return nil, errors.New("unknown exercise")
	}
	return summary, nil
}

func (f *fakeSessions) Track(ctx context.Context, s *polar.Session, ref polar.RecordReference) ([]byte, error) {
	f.record("track " + string(ref))
	return f.tracks[ref], nil
}

func (f *fakeSessions) Commit(ctx context.Context, s *polar.Session) error {
	f.record("commit")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits++
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
