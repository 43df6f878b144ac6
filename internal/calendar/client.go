package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	apperrors "github.com/contextmeet/contextmeet/pkg/errors"
)

// DefaultAPIBase is the Google Calendar v3 REST endpoint.
const DefaultAPIBase = "https://www.googleapis.com/calendar/v3"

// DefaultSyncWindow bounds how far ahead events are fetched.
const DefaultSyncWindow = 7 * 24 * time.Hour

const maxEventResults = 50

// ReadonlyScope grants read access to the user's calendar.
const ReadonlyScope = "https://www.googleapis.com/auth/calendar.readonly"

// Config holds the Google OAuth client settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	SyncWindow   time.Duration
}

// Attendee is one participant on a calendar event.
type Attendee struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	ResponseStatus string `json:"response_status"`
}

// Event is a calendar event normalised into the shape the sync service stores.
type Event struct {
	EventID     string
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Location    string
	MeetingLink string
	Attendees   []Attendee
	Organizer   string
	Status      string
	HTMLLink    string
}

// DefaultUserinfoURL is the Google OAuth2 userinfo endpoint.
const DefaultUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Client wraps the Google Calendar REST API with token refresh handling.
type Client struct {
	oauth       oauth2.Config
	apiBase     string
	userinfoURL string
	httpClient  *http.Client
	syncWindow  time.Duration
}

// Option customises Client construction.
type Option func(*Client)

// WithAPIBase points the client at an alternative calendar endpoint.
func WithAPIBase(base string) Option {
	return func(c *Client) {
		c.apiBase = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserinfoURL overrides the OAuth userinfo endpoint.
func WithUserinfoURL(url string) Option {
	return func(c *Client) {
		c.userinfoURL = url
	}
}

// WithTokenEndpoint overrides the OAuth token endpoint.
func WithTokenEndpoint(endpoint oauth2.Endpoint) Option {
	return func(c *Client) {
		c.oauth.Endpoint = endpoint
	}
}

// NewClient constructs a calendar client from OAuth settings.
func NewClient(cfg Config, opts ...Option) *Client {
	window := cfg.SyncWindow
	if window <= 0 {
		window = DefaultSyncWindow
	}

	c := &Client{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{ReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		apiBase:     DefaultAPIBase,
		userinfoURL: DefaultUserinfoURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		syncWindow:  window,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SyncWindow reports the configured forward fetch window.
func (c *Client) SyncWindow() time.Duration {
	return c.syncWindow
}

// Exchange trades an authorization code for a token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.New("OAUTH_EXCHANGE_FAILED", "Google authorization failed", http.StatusUnauthorized).WithInternal(err)
	}
	return token, nil
}

// AuthURL returns the consent page URL for the given state.
func (c *Client) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// UserInfo describes the identity behind an access token.
type UserInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// FetchUserInfo resolves the profile of the token's owner.
func (c *Client) FetchUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("calendar: build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar: fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar: userinfo endpoint returned %d", resp.StatusCode)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("calendar: decode userinfo: %w", err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("calendar: userinfo missing email")
	}
	if info.Name == "" {
		info.Name = info.Email
	}
	return &info, nil
}

// ListEvents fetches events between from and to. On a 401 the token is
// refreshed once and the call retried; a second 401 surfaces as an auth
// error so callers can ask the user to reconnect. The possibly refreshed
// token is returned so it can be re-encrypted and stored.
func (c *Client) ListEvents(ctx context.Context, token *oauth2.Token, from, to time.Time) ([]Event, *oauth2.Token, error) {
	events, status, err := c.listOnce(ctx, token.AccessToken, from, to)
	if err != nil && status != http.StatusUnauthorized {
		return nil, token, err
	}

	if status == http.StatusUnauthorized {
		refreshed, refreshErr := c.refresh(ctx, token)
		if refreshErr != nil {
			return nil, token, apperrors.ErrCalendarAuthExpired
		}

		events, status, err = c.listOnce(ctx, refreshed.AccessToken, from, to)
		if status == http.StatusUnauthorized {
			return nil, token, apperrors.ErrCalendarAuthExpired
		}
		if err != nil {
			return nil, refreshed, err
		}
		return events, refreshed, nil
	}

	return events, token, err
}

func (c *Client) refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("calendar: no refresh token")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	stale := *token
	stale.AccessToken = ""
	stale.Expiry = time.Now().Add(-time.Minute)

	refreshed, err := c.oauth.TokenSource(ctx, &stale).Token()
	if err != nil {
		return nil, fmt.Errorf("calendar: refresh token: %w", err)
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = token.RefreshToken
	}
	return refreshed, nil
}

func (c *Client) listOnce(ctx context.Context, accessToken string, from, to time.Time) ([]Event, int, error) {
	query := url.Values{}
	query.Set("timeMin", from.UTC().Format(time.RFC3339))
	query.Set("timeMax", to.UTC().Format(time.RFC3339))
	query.Set("maxResults", fmt.Sprintf("%d", maxEventResults))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")

	endpoint := fmt.Sprintf("%s/calendars/primary/events?%s", c.apiBase, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("calendar: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("calendar: list events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, resp.StatusCode, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("calendar: events endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		Items []apiEvent `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("calendar: decode events: %w", err)
	}

	events := make([]Event, 0, len(payload.Items))
	for _, item := range payload.Items {
		events = append(events, parseEvent(item))
	}
	return events, resp.StatusCode, nil
}

type apiEventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

type apiEvent struct {
	ID          string       `json:"id"`
	Summary     string       `json:"summary"`
	Description string       `json:"description"`
	Location    string       `json:"location"`
	Status      string       `json:"status"`
	HTMLLink    string       `json:"htmlLink"`
	Start       apiEventTime `json:"start"`
	End         apiEventTime `json:"end"`
	Attendees   []struct {
		Email          string `json:"email"`
		DisplayName    string `json:"displayName"`
		ResponseStatus string `json:"responseStatus"`
	} `json:"attendees"`
	Organizer struct {
		Email string `json:"email"`
	} `json:"organizer"`
	ConferenceData struct {
		EntryPoints []struct {
			EntryPointType string `json:"entryPointType"`
			URI            string `json:"uri"`
		} `json:"entryPoints"`
	} `json:"conferenceData"`
}

func parseEvent(item apiEvent) Event {
	event := Event{
		EventID:     item.ID,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Status:      item.Status,
		HTMLLink:    item.HTMLLink,
		Organizer:   item.Organizer.Email,
		StartTime:   parseEventTime(item.Start),
		EndTime:     parseEventTime(item.End),
	}

	if event.Title == "" {
		event.Title = "Untitled Event"
	}
	if event.Status == "" {
		event.Status = "confirmed"
	}

	for _, attendee := range item.Attendees {
		name := attendee.DisplayName
		if name == "" {
			name = attendee.Email
		}
		status := attendee.ResponseStatus
		if status == "" {
			status = "needsAction"
		}
		event.Attendees = append(event.Attendees, Attendee{
			Email:          attendee.Email,
			Name:           name,
			ResponseStatus: status,
		})
	}

	for _, entry := range item.ConferenceData.EntryPoints {
		if entry.EntryPointType == "video" {
			event.MeetingLink = entry.URI
			break
		}
	}
	if event.MeetingLink == "" {
		event.MeetingLink = ExtractMeetingLink(item.Description)
	}

	return event
}

func parseEventTime(value apiEventTime) time.Time {
	if value.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, value.DateTime); err == nil {
			return parsed.UTC()
		}
	}
	if value.Date != "" {
		if parsed, err := time.Parse("2006-01-02", value.Date); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

var meetingLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https://[a-zA-Z0-9-]+\.zoom\.us/j/[0-9]+[^\s]*`),
	regexp.MustCompile(`https://meet\.google\.com/[a-zA-Z0-9-]+`),
	regexp.MustCompile(`https://teams\.microsoft\.com/l/meetup-join/[^\s]+`),
	regexp.MustCompile(`https://[a-zA-Z0-9-]+\.webex\.com/[^\s]+`),
}

// ExtractMeetingLink finds the first video conferencing URL in free text.
func ExtractMeetingLink(text string) string {
	if text == "" {
		return ""
	}
	for _, pattern := range meetingLinkPatterns {
		if match := pattern.FindString(text); match != "" {
			return match
		}
	}
	return ""
}

// PlatformFromLink labels the conferencing platform behind a meeting link.
func PlatformFromLink(link string) string {
	switch {
	case link == "":
		return ""
	case strings.Contains(link, "zoom.us"):
		return "zoom"
	case strings.Contains(link, "meet.google.com"):
		return "google_meet"
	case strings.Contains(link, "teams.microsoft.com"):
		return "teams"
	case strings.Contains(link, "webex.com"):
		return "webex"
	default:
		return "other"
	}
}
