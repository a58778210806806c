package polar

import (
	"context"
	"fmt"
	"time"
)

// Session is one open exercise transaction for a user.
type Session struct {
	UserID        string
	AccessToken   string
	TransactionID int64
	ResourceURI   string
	OpenedAt      time.Time
}

// RecordReference locates one exercise inside a session.
type RecordReference string

// SessionManager drives the transaction lifecycle on top of Client.
type SessionManager struct {
	Client *Client
	Now    func() time.Time
}

func NewSessionManager(client *Client) *SessionManager {
	return &SessionManager{Client: client, Now: time.Now}
}

// Open starts a transaction. A nil session with a nil error means there is no new data.
func (m *SessionManager) Open(ctx context.Context, userID, accessToken string) (*Session, error) {
	tx, err := m.Client.CreateTransaction(ctx, userID, accessToken)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	if tx == nil {
		return nil, nil
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	return &Session{
		UserID:        userID,
		AccessToken:   accessToken,
		TransactionID: tx.ID,
		ResourceURI:   tx.ResourceURI,
		OpenedAt:      now().UTC(),
	}, nil
}

func (m *SessionManager) ListRecords(ctx context.Context, s *Session) ([]RecordReference, error) {
	urls, err := m.Client.ListExercises(ctx, s.UserID, s.AccessToken, s.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("list exercises in transaction %d: %w", s.TransactionID, err)
	}
	refs := make([]RecordReference, 0, len(urls))
	for _, u := range urls {
		refs = append(refs, RecordReference(u))
	}
	return refs, nil
}

func (m *SessionManager) Summary(ctx context.Context, s *Session, ref RecordReference) (map[string]interface{}, error) {
	return m.Client.GetExerciseSummary(ctx, s.AccessToken, string(ref))
}

func (m *SessionManager) Track(ctx context.Context, s *Session, ref RecordReference) ([]byte, error) {
	return m.Client.GetGPX(ctx, s.AccessToken, string(ref))
}

func (m *SessionManager) Commit(ctx context.Context, s *Session) error {
	if err := m.Client.CommitTransaction(ctx, s.UserID, s.AccessToken, s.TransactionID); err != nil {
		return fmt.Errorf("commit transaction %d: %w", s.TransactionID, err)
	}
	return nil
}
