package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	credentialRepo "agendo/database/repository/credential"
	"agendo/models"
	"agendo/utils"
)

// ErrNotConnected is returned when an instance has no usable calendar
// credential: nothing stored, or refresh failed. Callers must treat it
// as "booking temporarily unavailable", never retry with a stale token.
var ErrNotConnected = errors.New("calendar not connected")

// refreshMargin is how close to expiry a token may get before the
// store refreshes it proactively.
const refreshMargin = 5 * time.Minute

type refreshFunc func(ctx context.Context, cred *models.Credential) (*models.Credential, error)

type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// Store owns all reads and writes of per-instance OAuth credentials.
// Concurrent callers hitting an expiring token await a single in-flight
// refresh; parallel refreshes would invalidate each other's tokens.
type Store struct {
	repo    credentialRepo.CredentialRepository
	oauth   *oauth2.Config
	margin  time.Duration
	refresh refreshFunc

	mu       sync.Mutex
	inflight map[string]*refreshCall
}

// NewOAuthConfig builds the Google OAuth config for the calendar scopes.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			calendar.CalendarScope,
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// NewStore creates a credential store backed by the given repository.
func NewStore(repo credentialRepo.CredentialRepository, oauthCfg *oauth2.Config) *Store {
	s := &Store{
		repo:     repo,
		oauth:    oauthCfg,
		margin:   refreshMargin,
		inflight: make(map[string]*refreshCall),
	}
	s.refresh = s.refreshWithOAuth
	return s
}

// GetValidToken returns a bearer token guaranteed to be valid for at
// least the safety margin, refreshing it first when needed.
func (s *Store) GetValidToken(ctx context.Context, instanceID string) (string, error) {
	cred, err := s.repo.Get(ctx, instanceID)
	if errors.Is(err, credentialRepo.ErrNotFound) {
		return "", ErrNotConnected
	}
	if err != nil {
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	if cred.AccessToken == "" && cred.RefreshToken == "" {
		return "", ErrNotConnected
	}
	if cred.AccessToken != "" && time.Until(cred.Expiry) > s.margin {
		return cred.AccessToken, nil
	}
	return s.refreshSingleFlight(ctx, instanceID, cred)
}

func (s *Store) refreshSingleFlight(ctx context.Context, instanceID string, cred *models.Credential) (string, error) {
	s.mu.Lock()
	if call, ok := s.inflight[instanceID]; ok {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.token, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	s.inflight[instanceID] = call
	s.mu.Unlock()

	logger := utils.GetLogger()
	refreshed, err := s.refresh(ctx, cred)
	if err != nil {
		logger.Warn("token refresh failed",
			zap.String("instanceID", instanceID), zap.Error(err))
		call.err = ErrNotConnected
	} else {
		if perr := s.repo.Upsert(ctx, refreshed); perr != nil {
			// The token is still good for this call even if persisting
			// the new expiry failed; the next caller refreshes again.
			logger.Error("failed to persist refreshed credential",
				zap.String("instanceID", instanceID), zap.Error(perr))
		}
		call.token = refreshed.AccessToken
	}
	close(call.done)

	s.mu.Lock()
	delete(s.inflight, instanceID)
	s.mu.Unlock()

	return call.token, call.err
}

func (s *Store) refreshWithOAuth(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if cred.RefreshToken == "" {
		return nil, errors.New("no refresh token on record")
	}
	src := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh exchange failed: %w", err)
	}

	out := *cred
	out.AccessToken = tok.AccessToken
	out.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		out.RefreshToken = tok.RefreshToken
	}
	return &out, nil
}

// AuthURL builds the authorization URL for an instance. The OAuth state
// carries the instance id so the callback can attribute the grant.
func (s *Store) AuthURL(instanceID string) string {
	return s.oauth.AuthCodeURL(instanceID,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// CompleteAuth exchanges the callback code and stores the credential.
func (s *Store) CompleteAuth(ctx context.Context, instanceID, code string) (*models.Credential, error) {
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	cred := &models.Credential{
		InstanceID:   instanceID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		Scopes:       s.oauth.Scopes,
		AccountEmail: s.lookupAccountEmail(ctx, tok),
	}
	if err := s.repo.Upsert(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}
	return cred, nil
}

func (s *Store) lookupAccountEmail(ctx context.Context, tok *oauth2.Token) string {
	svc, err := googleoauth.NewService(ctx, option.WithTokenSource(s.oauth.TokenSource(ctx, tok)))
	if err != nil {
		utils.GetLogger().Warn("userinfo service init failed", zap.Error(err))
		return ""
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		utils.GetLogger().Warn("userinfo lookup failed", zap.Error(err))
		return ""
	}
	return info.Email
}

// Disconnect drops the stored credential for an instance.
func (s *Store) Disconnect(ctx context.Context, instanceID string) error {
	err := s.repo.Delete(ctx, instanceID)
	if errors.Is(err, credentialRepo.ErrNotFound) {
		return nil
	}
	return err
}
