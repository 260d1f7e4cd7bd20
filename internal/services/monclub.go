// MonClub registry [SourceRegistry] implementation
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/rostersync/internal/models"
	"github.com/desertthunder/rostersync/internal/shared"
)

const (
	defaultMonClubBaseURL = "https://app.monclub.app"
	monclubTokenLifetime  = 55 * time.Minute
)

// MonClubService implements [SourceRegistry] against the MonClub admin API.
//
// Login is exposed as an [oauth2.TokenSource] and cached with [oauth2.ReuseTokenSource],
// so a token is fetched once and renewed transparently when it nears expiry.
// MonClub expects the raw token in the Authorization header, without a scheme.
type MonClubService struct {
	client   *APIClient
	email    string
	password string
	customID string
	seasonID string
	logger   *log.Logger

	mu     sync.Mutex
	tokens oauth2.TokenSource
}

// NewMonClubService creates a MonClub client from cfg.
func NewMonClubService(cfg shared.SourceConfig, httpClient *http.Client, logger *log.Logger) *MonClubService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultMonClubBaseURL
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &MonClubService{
		client: NewAPIClient(ClientOptions{
			Service:    "monclub",
			BaseURL:    baseURL,
			HTTPClient: httpClient,
			Timeout:    cfg.HTTP.Timeout(),
			RateLimit:  cfg.HTTP.RateLimit,
			RateBurst:  cfg.HTTP.RateBurst,
			MaxRetries: cfg.HTTP.MaxRetries,
			Logger:     logger,
		}),
		email:    cfg.Email,
		password: cfg.Password,
		customID: cfg.CustomID,
		seasonID: cfg.SeasonID,
		logger:   logger,
	}
}

// Name returns the service name.
func (m *MonClubService) Name() string {
	return "MonClub"
}

// Authenticate logs in and caches the token for later calls.
func (m *MonClubService) Authenticate(ctx context.Context) error {
	if m.email == "" || m.password == "" || m.customID == "" {
		return fmt.Errorf("%w: %w: email, password and custom_id are required", shared.ErrSourceAuth, shared.ErrMissingCredentials)
	}

	src := oauth2.ReuseTokenSource(nil, &passwordTokenSource{
		ctx:    ctx,
		client: m.client,
		request: authRequest{
			Email:    m.email,
			Password: m.password,
			CustomID: m.customID,
		},
	})

	if _, err := src.Token(); err != nil {
		return err
	}

	m.mu.Lock()
	m.tokens = src
	m.mu.Unlock()
	return nil
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	CustomID string `json:"customId"`
}

// passwordTokenSource exchanges credentials for a MonClub session token.
//
// ctx is the Authenticate context: renewals run under the run that logged in.
// Every run authenticates again, so a canceled run never leaks into the next one.
type passwordTokenSource struct {
	ctx     context.Context
	client  *APIClient
	request authRequest
}

func (s *passwordTokenSource) Token() (*oauth2.Token, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := s.client.Do(s.ctx, http.MethodPost, "/api/users/authenticate", nil, s.request, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSourceAuth, err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("%w: empty token in response", shared.ErrSourceAuth)
	}
	return &oauth2.Token{
		AccessToken: resp.Token,
		Expiry:      time.Now().Add(monclubTokenLifetime),
	}, nil
}

func (m *MonClubService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	m.mu.Lock()
	src := m.tokens
	m.mu.Unlock()

	if src == nil {
		return shared.ErrNotAuthenticated
	}

	tok, err := src.Token()
	if err != nil {
		return err
	}

	headers := http.Header{}
	headers.Set("Authorization", tok.AccessToken)
	return m.client.Do(ctx, method, endpoint, headers, body, result)
}

type monclubList struct {
	ID       string          `json:"_id"`
	Name     string          `json:"name"`
	ParentID json.RawMessage `json:"parentId"`
}

// FetchLists retrieves every list of the club.
//
// Calls GET /api/clubs/admin/custom/{customId}.
func (m *MonClubService) FetchLists(ctx context.Context) ([]models.SourceList, error) {
	var raw []monclubList
	endpoint := "/api/clubs/admin/custom/" + url.PathEscape(m.customID)
	if err := m.doRequest(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
		return nil, err
	}

	lists := make([]models.SourceList, 0, len(raw))
	for _, l := range raw {
		lists = append(lists, models.SourceList{
			ID:       l.ID,
			Name:     l.Name,
			ParentID: parentID(l.ParentID),
		})
	}
	return lists, nil
}

// parentID flattens the parentId field: null or absent is empty, a string is itself,
// and anything else is kept verbatim so the list is still treated as nested.
func parentID(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}

// membersRequest is the search filter the MonClub admin UI sends; only section and season narrow it.
type membersRequest struct {
	CustomID           string   `json:"customId"`
	Section            string   `json:"section"`
	SeasonID           string   `json:"seasonId,omitempty"`
	Membership         []string `json:"membership"`
	Search             string   `json:"search"`
	MinimumDOB         *string  `json:"minimumDOB"`
	MaximumDOB         *string  `json:"maximumDOB"`
	IncompleteFiles    bool     `json:"incompleteFiles"`
	DocumentStatus     string   `json:"documentStatus"`
	DocumentTypeID     string   `json:"documentTypeId"`
	Tag                []string `json:"tag"`
	Slot               string   `json:"slot"`
	HasSeason          bool     `json:"hasSeason"`
	ChildrenLimited    bool     `json:"childrenLimited"`
	Licenses           bool     `json:"licenses"`
	HidePractitioners  bool     `json:"hidePractitioners"`
	MembersWithLicense string   `json:"membersWithLicense"`
	Status             string   `json:"status"`
	QuestionID         string   `json:"questionId"`
	Response           string   `json:"response"`
	Inactive           bool     `json:"inactive"`
}

// FetchMembers retrieves the raw member records of a list.
//
// Calls POST /api/customs/members with the list ID as section.
func (m *MonClubService) FetchMembers(ctx context.Context, listID string) ([]json.RawMessage, error) {
	req := membersRequest{
		CustomID:   m.customID,
		Section:    listID,
		SeasonID:   m.seasonID,
		Membership: []string{},
		Tag:        []string{},
		HasSeason:  m.seasonID != "",
	}

	var body json.RawMessage
	if err := m.doRequest(ctx, http.MethodPost, "/api/customs/members", req, &body); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSourceMembers, err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: expected an array of members: %w", shared.ErrSourceMembers, err)
	}

	m.logger.Debug("fetched members", "list", listID, "records", len(records))
	return records, nil
}
