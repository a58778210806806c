package polar

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httputil "github.com/fitglue/polar-ingest/pkg/infrastructure/http"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Accept string
}

// fakeAccessLink serves one user with a single open transaction.
func fakeAccessLink(t *testing.T, routes map[string]http.HandlerFunc) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Auth:   r.Header.Get("Authorization"),
			Accept: r.Header.Get("Accept"),
		})
		h, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		BaseURL:      srv.URL + "/v3/",
		ClientID:     "client",
		ClientSecret: "secret",
		HTTPClient:   srv.Client(),
	})
}

func writeJSON(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func TestCreateTransaction(t *testing.T) {
	srv, seen := fakeAccessLink(t, map[string]http.HandlerFunc{
		"POST /v3/users/42/exercise-transactions": writeJSON(201, `{"transaction-id":179879,"resource-uri":"https://x/v3/users/42/exercise-transactions/179879"}`),
	})

	tx, err := newTestClient(srv).CreateTransaction(context.Background(), "42", "user-token")
	require.NoError(t, err)
	require.NotNil(t, tx)

	assert.Equal(t, int64(179879), tx.ID)
	assert.Equal(t, "Bearer user-token", (*seen)[0].Auth)
	assert.Equal(t, "application/json", (*seen)[0].Accept)
}

func TestCreateTransaction_NoContent(t *testing.T) {
	srv, _ := fakeAccessLink(t, map[string]http.HandlerFunc{
		"POST /v3/users/42/exercise-transactions": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		},
	})

	tx, err := newTestClient(srv).CreateTransaction(context.Background(), "42", "user-token")
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestCreateTransaction_Unauthorized(t *testing.T) {
	srv, _ := fakeAccessLink(t, map[string]http.HandlerFunc{
		"POST /v3/users/42/exercise-transactions": writeJSON(401, `{"error":"invalid_token"}`),
	})

	_, err := newTestClient(srv).CreateTransaction(context.Background(), "42", "expired")
	require.Error(t, err)
	assert.True(t, httputil.IsStatus(err, http.StatusUnauthorized))
	assert.Contains(t, err.Error(), "invalid_token")
}

func TestListExercises(t *testing.T) {
	srv, _ := fakeAccessLink(t, map[string]http.HandlerFunc{
		"GET /v3/users/42/exercise-transactions/7": writeJSON(200, `{"exercises":["https://x/e/1","https://x/e/2"]}`),
	})

	urls, err := newTestClient(srv).ListExercises(context.Background(), "42", "t", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/e/1", "https://x/e/2"}, urls)
}

func TestGetExerciseSummary_KeepsNumbers(t *testing.T) {
	srv, _ := fakeAccessLink(t, map[string]http.HandlerFunc{
		"GET /v3/users/42/exercise-transactions/7/exercises/99": writeJSON(200, `{"id":12345678901234567,"start-time":"2024-03-01T10:00:00","distance":5012.5}`),
	})
	c := newTestClient(srv)

	summary, err := c.GetExerciseSummary(context.Background(), "t", srv.URL+"/v3/users/42/exercise-transactions/7/exercises/99")
	require.NoError(t, err)

	assert.Equal(t, json.Number("12345678901234567"), summary["id"])
	assert.Equal(t, json.Number("5012.5"), summary["distance"])
}

func TestGetExerciseSummary_NullBody(t *testing.T) {
	srv, _ := fakeAccessLink(t, map[string]http.HandlerFunc{
		"GET /v3/e/1": writeJSON(200, `null`),
	})
	_, err := newTestClient(srv).GetExerciseSummary(context.Background(), "t", srv.URL+"/v3/e/1")
	assert.Error(t, err)
}

func TestGetGPX(t *testing.T) {
	const doc = `<?xml version="1.0"?><gpx version="1.1"></gpx>`
	srv, seen := fakeAccessLink(t, map[string]http.HandlerFunc{
		"GET /v3/e/1/gpx": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/gpx+xml")
			io.WriteString(w, doc)
		},
		"GET /v3/e/2/gpx": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		},
		"GET /v3/e/4/gpx": writeJSON(500, `{}`),
	})
	c := newTestClient(srv)
	ctx := context.Background()

	data, err := c.GetGPX(ctx, "t", srv.URL+"/v3/e/1")
	require.NoError(t, err)
	assert.Equal(t, doc, string(data))
	assert.Equal(t, "application/gpx+xml", (*seen)[0].Accept)

	data, err = c.GetGPX(ctx, "t", srv.URL+"/v3/e/2")
	require.NoError(t, err)
	assert.Empty(t, data)

	// Exercises recorded without GPS answer 404
	data, err = c.GetGPX(ctx, "t", srv.URL+"/v3/e/3")
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = c.GetGPX(ctx, "t", srv.URL+"/v3/e/4")
	assert.True(t, httputil.IsStatus(err, 500))
}

func TestCommitTransaction(t *testing.T) {
	srv, seen := fakeAccessLink(t, map[string]http.HandlerFunc{
		"PUT /v3/users/42/exercise-transactions/7": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	})

	err := newTestClient(srv).CommitTransaction(context.Background(), "42", "t", 7)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, (*seen)[0].Method)
}

func TestListAvailableData(t *testing.T) {
	srv, seen := fakeAccessLink(t, map[string]http.HandlerFunc{
		"GET /v3/notifications": writeJSON(200, `{"available-user-data":[
			{"user-id":42,"data-type":"EXERCISE","url":"https://x/v3/users/42/exercise-transactions"},
			{"user-id":42,"data-type":"ACTIVITY_SUMMARY","url":"https://x/v3/users/42/activity-transactions"}
		]}`),
	})

	data, err := newTestClient(srv).ListAvailableData(context.Background())
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, AvailableData{UserID: 42, DataType: "EXERCISE", URL: "https://x/v3/users/42/exercise-transactions"}, data[0])
	assert.Equal(t, "Basic Y2xpZW50OnNlY3JldA==", (*seen)[0].Auth)
}

func TestListAvailableData_RequiresCredentials(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := c.ListAvailableData(context.Background())
	assert.Error(t, err)
}

func TestSessionManager_Lifecycle(t *testing.T) {
	srv, seen := fakeAccessLink(t, map[string]http.HandlerFunc{
		"POST /v3/users/42/exercise-transactions":  writeJSON(201, `{"transaction-id":7,"resource-uri":"r"}`),
		"GET /v3/users/42/exercise-transactions/7": writeJSON(200, `{"exercises":["e1"]}`),
		"PUT /v3/users/42/exercise-transactions/7": func(w http.ResponseWriter, r *http.Request) {},
	})
	opened := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	m := NewSessionManager(newTestClient(srv))
	m.Now = func() time.Time { return opened }
	ctx := context.Background()

	s, err := m.Open(ctx, "42", "t")
	require.NoError(t, err)
	assert.Equal(t, &Session{UserID: "42", AccessToken: "t", TransactionID: 7, ResourceURI: "r", OpenedAt: opened}, s)

	refs, err := m.ListRecords(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, []RecordReference{"e1"}, refs)

	require.NoError(t, m.Commit(ctx, s))
	assert.Len(t, *seen, 3)
}

func TestSessionManager_CommitFailure(t *testing.T) {
	srv, _ := fakeAccessLink(t, map[string]http.HandlerFunc{
		"PUT /v3/users/42/exercise-transactions/7": writeJSON(500, `{}`),
	})
	m := NewSessionManager(newTestClient(srv))

	err := m.Commit(context.Background(), &Session{UserID: "42", AccessToken: "t", TransactionID: 7})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit transaction 7")
}
