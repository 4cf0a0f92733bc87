package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads credentials from IGCURATOR_* environment variables.
// It is read-only.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	sessionID := os.Getenv("IGCURATOR_SESSION_ID")
	csrfToken := os.Getenv("IGCURATOR_CSRF_TOKEN")
	dsUserID := os.Getenv("IGCURATOR_DS_USER_ID")
	userAgent := os.Getenv("IGCURATOR_USER_AGENT")

	if sessionID == "" || csrfToken == "" {
		return nil, ErrCredentialsNotFound
	}

	if username == "" {
		username = os.Getenv("IGCURATOR_USERNAME")
	}
	if username == "" {
		username = "default"
	}

	return &Account{
		Username:     username,
		SessionID:    sessionID,
		CSRFToken:    csrfToken,
		DSUserID:     dsUserID,
		UserAgent:    userAgent,
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(username string) bool {
	return os.Getenv("IGCURATOR_SESSION_ID") != "" && os.Getenv("IGCURATOR_CSRF_TOKEN") != ""
}
