// Brevo contacts API [Destination] implementation
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/rostersync/internal/models"
	"github.com/desertthunder/rostersync/internal/shared"
)

const (
	defaultBrevoBaseURL = "https://api.brevo.com/v3"
	brevoDirectoryLimit = 50 // max page size for lists and folders
)

// BrevoService implements [Destination] and [Mailer] for the Brevo v3 API.
type BrevoService struct {
	client *APIClient
	apiKey string
	logger *log.Logger
}

// NewBrevoService creates a Brevo client from cfg.
func NewBrevoService(cfg shared.DestinationConfig, httpClient *http.Client, logger *log.Logger) *BrevoService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBrevoBaseURL
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &BrevoService{
		client: NewAPIClient(ClientOptions{
			Service:    "brevo",
			BaseURL:    baseURL,
			HTTPClient: httpClient,
			Timeout:    cfg.HTTP.Timeout(),
			RateLimit:  cfg.HTTP.RateLimit,
			RateBurst:  cfg.HTTP.RateBurst,
			MaxRetries: cfg.HTTP.MaxRetries,
			Logger:     logger,
		}),
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

// Name returns the service name.
func (b *BrevoService) Name() string {
	return "Brevo"
}

func (b *BrevoService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if b.apiKey == "" {
		return fmt.Errorf("%w: brevo api key", shared.ErrMissingCredentials)
	}
	headers := http.Header{}
	headers.Set("api-key", b.apiKey)
	return b.client.Do(ctx, method, endpoint, headers, body, result)
}

// Raw sends an authenticated request and returns the response whatever its status.
func (b *BrevoService) Raw(ctx context.Context, method, endpoint string, payload []byte) (*APIResponse, error) {
	headers := http.Header{}
	headers.Set("api-key", b.apiKey)
	return b.client.Raw(ctx, method, endpoint, headers, payload)
}

func contactPath(email string) string {
	return "/contacts/" + url.PathEscape(email)
}

func listPath(listID int64) string {
	return "/contacts/lists/" + strconv.FormatInt(listID, 10)
}

type brevoCreateContact struct {
	Email         string            `json:"email"`
	Attributes    map[string]string `json:"attributes"`
	UpdateEnabled bool              `json:"updateEnabled"`
}

// CreateContact creates a contact and returns its ID.
//
// updateEnabled is left off so an existing address surfaces as a conflict.
func (b *BrevoService) CreateContact(ctx context.Context, email string, attrs models.ContactAttributes) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	body := brevoCreateContact{Email: email, Attributes: attrs.Map()}
	if err := b.doRequest(ctx, http.MethodPost, "/contacts", body, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// UpdateContact overwrites the attributes of an existing contact.
func (b *BrevoService) UpdateContact(ctx context.Context, email string, attrs models.ContactAttributes) error {
	body := map[string]any{"attributes": attrs.Map()}
	return b.doRequest(ctx, http.MethodPut, contactPath(email), body, nil)
}

// GetContact fetches a contact by email.
func (b *BrevoService) GetContact(ctx context.Context, email string) (*models.ContactInfo, error) {
	var info models.ContactInfo
	if err := b.doRequest(ctx, http.MethodGet, contactPath(email), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListContacts fetches one page of a list's contacts.
func (b *BrevoService) ListContacts(ctx context.Context, listID int64, limit, offset int) ([]models.ContactInfo, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var resp struct {
		Contacts []models.ContactInfo `json:"contacts"`
		Count    int                  `json:"count"`
	}
	if err := b.doRequest(ctx, http.MethodGet, listPath(listID)+"/contacts?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Contacts, nil
}

type brevoListMembership struct {
	Emails []string `json:"emails"`
}

type brevoMembershipResult struct {
	Contacts struct {
		Success []string `json:"success"`
		Failure []string `json:"failure"`
	} `json:"contacts"`
}

// AddToList adds existing contacts to a list.
func (b *BrevoService) AddToList(ctx context.Context, listID int64, emails []string) error {
	var resp brevoMembershipResult
	if err := b.doRequest(ctx, http.MethodPost, listPath(listID)+"/contacts/add", brevoListMembership{Emails: emails}, &resp); err != nil {
		return err
	}
	if n := len(resp.Contacts.Failure); n > 0 {
		b.logger.Debug("brevo rejected some additions", "list", listID, "failed", n)
	}
	return nil
}

// RemoveFromList removes contacts from a list. The contacts themselves are kept.
func (b *BrevoService) RemoveFromList(ctx context.Context, listID int64, emails []string) error {
	var resp brevoMembershipResult
	if err := b.doRequest(ctx, http.MethodPost, listPath(listID)+"/contacts/remove", brevoListMembership{Emails: emails}, &resp); err != nil {
		return err
	}
	if n := len(resp.Contacts.Failure); n > 0 {
		b.logger.Debug("brevo rejected some removals", "list", listID, "failed", n)
	}
	return nil
}

// Lists retrieves every contact list, paging 50 at a time.
func (b *BrevoService) Lists(ctx context.Context) ([]models.DestinationList, error) {
	var all []models.DestinationList
	for offset := 0; ; offset += brevoDirectoryLimit {
		var resp struct {
			Lists []models.DestinationList `json:"lists"`
			Count int                      `json:"count"`
		}
		endpoint := fmt.Sprintf("/contacts/lists?limit=%d&offset=%d", brevoDirectoryLimit, offset)
		if err := b.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Lists...)
		if len(resp.Lists) < brevoDirectoryLimit {
			return all, nil
		}
	}
}

// FindList looks a list up by exact name.
func (b *BrevoService) FindList(ctx context.Context, name string) (int64, bool, error) {
	lists, err := b.Lists(ctx)
	if err != nil {
		return 0, false, err
	}
	for _, l := range lists {
		if l.Name == name {
			return l.ID, true, nil
		}
	}
	return 0, false, nil
}

// CreateList creates a list inside folderID and returns its ID.
func (b *BrevoService) CreateList(ctx context.Context, name string, folderID int64) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	body := map[string]any{"name": name, "folderId": folderID}
	if err := b.doRequest(ctx, http.MethodPost, "/contacts/lists", body, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// Folders retrieves every contact folder, paging 50 at a time.
func (b *BrevoService) Folders(ctx context.Context) ([]models.Folder, error) {
	var all []models.Folder
	for offset := 0; ; offset += brevoDirectoryLimit {
		var resp struct {
			Folders []models.Folder `json:"folders"`
			Count   int             `json:"count"`
		}
		endpoint := fmt.Sprintf("/contacts/folders?limit=%d&offset=%d", brevoDirectoryLimit, offset)
		if err := b.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Folders...)
		if len(resp.Folders) < brevoDirectoryLimit {
			return all, nil
		}
	}
}

// FindFolder looks a folder up by exact name.
func (b *BrevoService) FindFolder(ctx context.Context, name string) (int64, bool, error) {
	folders, err := b.Folders(ctx)
	if err != nil {
		return 0, false, err
	}
	for _, f := range folders {
		if f.Name == name {
			return f.ID, true, nil
		}
	}
	return 0, false, nil
}

type brevoAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoEmail struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
	TextContent string         `json:"textContent"`
}

// SendEmail sends a transactional email through POST /smtp/email.
func (b *BrevoService) SendEmail(ctx context.Context, msg EmailMessage) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("%w: no recipients", shared.ErrMissingArgument)
	}

	body := brevoEmail{
		Sender:      brevoAddress{Name: msg.SenderName, Email: msg.SenderEmail},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
		TextContent: msg.Text,
	}
	for _, to := range msg.To {
		body.To = append(body.To, brevoAddress{Email: to})
	}

	var resp struct {
		MessageID string `json:"messageId"`
	}
	if err := b.doRequest(ctx, http.MethodPost, "/smtp/email", body, &resp); err != nil {
		return err
	}
	b.logger.Debug("email sent", "message_id", resp.MessageID, "to", msg.To)
	return nil
}
