package framework

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitglue/polar-ingest/pkg/bootstrap"
	"github.com/fitglue/polar-ingest/pkg/testing/mocks"
	"github.com/fitglue/polar-ingest/pkg/types"
)

type ledger struct {
	mu      sync.Mutex
	started []*types.ExecutionRecord
	updates []map[string]interface{}
}

func (l *ledger) db() *mocks.MockDatabase {
	return &mocks.MockDatabase{
		SetExecutionFunc: func(ctx context.Context, r *types.ExecutionRecord) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.started = append(l.started, r)
			return nil
		},
		UpdateExecutionFunc: func(ctx context.Context, id string, data map[string]interface{}) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.updates = append(l.updates, data)
			return nil
		},
	}
}

func (l *ledger) lastStatus() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.updates) == 0 {
		return ""
	}
	return l.updates[len(l.updates)-1]["status"].(string)
}

func newTestService(l *ledger) *bootstrap.Service {
	return &bootstrap.Service{
		DB:     l.db(),
		Config: &bootstrap.Config{},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func pubsubEvent(t *testing.T, payload string) event.Event {
	t.Helper()
	var msg types.PubSubMessage
	msg.Message.Data = []byte(payload)
	e := event.New()
	e.SetID("evt-1")
	e.SetType("google.cloud.pubsub.topic.v1.messagePublished")
	e.SetSource("//pubsub.googleapis.com/projects/p/topics/polar-exercise")
	require.NoError(t, e.SetData(event.ApplicationJSON, msg))
	return e
}

func TestWrapCloudEvent_Success(t *testing.T) {
	l := &ledger{}
	svc := newTestService(l)
	var seen *FrameworkContext

	fn := WrapCloudEvent("polar-to-gcs", svc, func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error) {
		seen = fwCtx
		return map[string]interface{}{"status": "COMMITTED"}, nil
	})

	require.NoError(t, fn(context.Background(), pubsubEvent(t, `{"event":"EXERCISE","user_id":475}`)))

	require.Len(t, l.started, 1)
	assert.Equal(t, "475", l.started[0].UserID)
	assert.Equal(t, "pubsub", l.started[0].TriggerType)
	assert.Equal(t, l.started[0].ExecutionID, seen.ExecutionID)
	assert.Same(t, svc, seen.Service)
	assert.Equal(t, "STATUS_SUCCESS", l.lastStatus())
}

func TestWrapCloudEvent_HandlerError(t *testing.T) {
	l := &ledger{}
	boom := errors.New("boom")
	fn := WrapCloudEvent("svc", newTestService(l), func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error) {
		return nil, boom
	})

	err := fn(context.Background(), pubsubEvent(t, `{}`))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "STATUS_FAILED", l.lastStatus())
	assert.Equal(t, "boom", l.updates[0]["error_message"])
}

func TestWrapCloudEvent_AbortedOutputsAreAcknowledged(t *testing.T) {
	l := &ledger{}
	fn := WrapCloudEvent("svc", newTestService(l), func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error) {
		return map[string]interface{}{"status": "ABORTED", "error": "UploadExhausted: x"}, nil
	})

	require.NoError(t, fn(context.Background(), pubsubEvent(t, `{}`)))
	assert.Equal(t, "STATUS_FAILED", l.lastStatus())
	assert.Equal(t, "UploadExhausted: x", l.updates[0]["error_message"])
}

func TestWrapCloudEvent_RecoversPanic(t *testing.T) {
	l := &ledger{}
	fn := WrapCloudEvent("svc", newTestService(l), func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error) {
		panic("nil map")
	})

	err := fn(context.Background(), pubsubEvent(t, `{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil map")
	assert.Equal(t, "STATUS_FAILED", l.lastStatus())
}

func TestWrapCloudEvent_StorageTrigger(t *testing.T) {
	l := &ledger{}
	fn := WrapCloudEvent("svc", newTestService(l), func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error) {
		return nil, nil
	})
	e := event.New()
	e.SetID("1")
	e.SetType("google.cloud.storage.object.v1.finalized")
	e.SetSource("//storage.googleapis.com/projects/_/buckets/b")
	require.NoError(t, e.SetData(event.ApplicationJSON, types.StorageObjectData{Bucket: "b", Name: "polar/x.json"}))

	require.NoError(t, fn(context.Background(), e))
	assert.Equal(t, "storage", l.started[0].TriggerType)
	assert.Empty(t, l.started[0].UserID)
}

func TestWrapHTTP_RecordsStatus(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   string
	}{
		{"ok", http.StatusOK, "STATUS_SUCCESS"},
		{"client error", http.StatusBadRequest, "STATUS_FAILED"},
		{"server error", http.StatusInternalServerError, "STATUS_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := &ledger{}
			h := WrapHTTP("polar-webhook", newTestService(l), func(w http.ResponseWriter, r *http.Request, fwCtx *FrameworkContext) {
				w.WriteHeader(tc.status)
			})

			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodPost, "/", nil))

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.want, l.lastStatus())
			var outputs map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(l.updates[0]["outputs_json"].(string)), &outputs))
			assert.EqualValues(t, tc.status, outputs["status_code"])
		})
	}
}

func TestWrapHTTP_RecordsRejectionReason(t *testing.T) {
	l := &ledger{}
	h := WrapHTTP("polar-webhook", newTestService(l), func(w http.ResponseWriter, r *http.Request, fwCtx *FrameworkContext) {
		fwCtx.SetOutput("error", "verification failed")
		w.WriteHeader(http.StatusBadRequest)
	})

	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))

	require.Len(t, l.updates, 1)
	assert.Equal(t, "STATUS_FAILED", l.lastStatus())
	assert.Equal(t, "responded with status 400: verification failed", l.updates[0]["error_message"])
	var outputs map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(l.updates[0]["outputs_json"].(string)), &outputs))
	assert.Equal(t, "verification failed", outputs["error"])
	assert.EqualValues(t, http.StatusBadRequest, outputs["status_code"])
}

func TestWrapHTTP_Panic(t *testing.T) {
	l := &ledger{}
	h := WrapHTTP("svc", newTestService(l), func(w http.ResponseWriter, r *http.Request, fwCtx *FrameworkContext) {
		panic(errors.New("nil pointer"))
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "STATUS_FAILED", l.lastStatus())
}
