// Package gmail implements the authenticated search provider over the Gmail
// REST API: it finds Bandcamp notification messages for a date window and
// downloads their HTML bodies in batches.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/bcfeed/bcfeed/internal/core"
	"github.com/bcfeed/bcfeed/internal/engine"
)

// AuthError is raised when Gmail OAuth credentials are missing, expired, or
// revoked. It is fatal for the current populate run; credentials must be
// re-established out of band (via the settings panel).
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// releaseQuery builds the Gmail search query for one inclusive date window.
// Gmail's before: is exclusive, hence the one-day bump.
func releaseQuery(start, end time.Time) string {
	after := core.FormatSlashDate(start)
	before := core.FormatSlashDate(end.AddDate(0, 0, 1))
	return fmt.Sprintf("from:noreply@bandcamp.com subject:'New release from' before:%s after:%s", before, after)
}

// Client fetches Bandcamp notification messages through the Gmail API.
// It implements engine.Fetcher.
type Client struct {
	dataDir string
	verbose bool
	svc     *gmailapi.Service
}

// NewClient creates a Gmail client reading credentials from dataDir.
// An empty dataDir uses the default data directory.
func NewClient(dataDir string, verbose bool) *Client {
	if dataDir == "" {
		dataDir = core.DataDir()
	}
	return &Client{dataDir: dataDir, verbose: verbose}
}

func (c *Client) log(msg string) {
	core.Eprint(fmt.Sprintf("[Gmail] %s", msg), c.verbose)
}

func (c *Client) tokenPath() string {
	return filepath.Join(c.dataDir, core.TokenFile)
}

// HasCredentials reports whether the OAuth client credentials file is present
// on disk. Used by callers to fail fast before starting a populate stream.
func (c *Client) HasCredentials() bool {
	_, err := os.Stat(filepath.Join(c.dataDir, core.CredentialsFile))
	return err == nil
}

// HasToken reports whether a saved Gmail token is present on disk.
func (c *Client) HasToken() bool {
	_, err := os.Stat(c.tokenPath())
	return err == nil
}

// clearToken removes the saved token so the next run forces re-authorization.
func (c *Client) clearToken() {
	_ = os.Remove(c.tokenPath())
	c.svc = nil
}

// Authenticate builds the Gmail service from the on-disk OAuth token,
// refreshing it eagerly so credential problems surface here rather than
// mid-fetch. Returns *AuthError when credentials or token are missing or the
// refresh fails. Acquiring a token in the first place (the browser consent
// flow) happens out of band.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.svc != nil {
		return nil
	}

	credBytes, err := os.ReadFile(filepath.Join(c.dataDir, core.CredentialsFile))
	if err != nil {
		return &AuthError{Reason: "could not read Gmail credentials; reload credentials in the settings panel", Err: err}
	}
	config, err := google.ConfigFromJSON(credBytes, gmailapi.GmailReadonlyScope)
	if err != nil {
		return &AuthError{Reason: "invalid Gmail credentials file", Err: err}
	}

	tok, err := c.tokenFromFile()
	if err != nil {
		return &AuthError{Reason: "Gmail token missing; re-authorize in the settings panel", Err: err}
	}

	source := config.TokenSource(ctx, tok)
	if _, err := source.Token(); err != nil {
		c.clearToken()
		return &AuthError{Reason: "Gmail access was revoked or expired; re-authorize in the settings panel", Err: err}
	}

	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return &AuthError{Reason: "failed to build Gmail service", Err: err}
	}
	c.svc = svc
	return nil
}

func (c *Client) tokenFromFile() (*oauth2.Token, error) {
	f, err := os.Open(c.tokenPath())
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Search returns the ids of all messages matching the notification query for
// the inclusive window, following result pages transparently.
func (c *Client) Search(ctx context.Context, start, end time.Time) ([]string, error) {
	if c.svc == nil {
		return nil, &AuthError{Reason: "not authenticated"}
	}

	query := releaseQuery(start, end)
	c.log(fmt.Sprintf("Search: %s", query))

	var ids []string
	pageToken := ""
	for {
		call := c.svc.Users.Messages.List("me").Q(query).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, c.wrapAPIError(err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	c.log(fmt.Sprintf("Search matched %d messages", len(ids)))
	return ids, nil
}

// FetchBatch downloads full messages in batches of batchSize, reporting
// progress between batches, and reduces each to its HTML part plus the Date
// and Subject headers.
func (c *Client) FetchBatch(ctx context.Context, ids []string, batchSize int, progress func(msg string)) ([]engine.Message, error) {
	if c.svc == nil {
		return nil, &AuthError{Reason: "not authenticated"}
	}
	if batchSize <= 0 {
		batchSize = core.DefaultBatchSize
	}
	if progress == nil {
		progress = func(string) {}
	}

	msgs := make([]engine.Message, 0, len(ids))
	for idx := 0; idx < len(ids); idx += batchSize {
		hi := min(idx+batchSize, len(ids))
		progress(fmt.Sprintf("Downloading messages %d to %d", idx, hi))

		for _, id := range ids[idx:hi] {
			raw, err := c.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
			if err != nil {
				return nil, c.wrapAPIError(err)
			}
			msgs = append(msgs, reduceMessage(raw))
		}
	}
	return msgs, nil
}

// wrapAPIError maps Gmail API failures onto the error kinds callers handle:
// 401 clears the saved token and becomes an AuthError, 429 advises a smaller
// batch size, anything else passes through.
func (c *Client) wrapAPIError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 401:
			c.clearToken()
			return &AuthError{Reason: "Gmail access revoked; reload the credentials in the settings and re-authorize", Err: err}
		case 429:
			return fmt.Errorf("gmail rate limited: %w (try reducing batch size using --batch)", err)
		}
	}
	return err
}

// reduceMessage extracts the HTML part and the Date/Subject headers from a
// full-format Gmail message.
func reduceMessage(raw *gmailapi.Message) engine.Message {
	msg := engine.Message{HTML: htmlPart(raw.Payload)}
	if raw.Payload == nil {
		return msg
	}
	for _, h := range raw.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "date":
			if t, err := mail.ParseDate(h.Value); err == nil {
				msg.Date = core.DateOnly(t.UTC())
			}
		case "subject":
			msg.Subject = h.Value
		}
	}
	return msg
}

// htmlPart walks the MIME tree for the first text/html part and decodes it.
// Gmail body data is base64url; some messages additionally wrap the HTML in
// quoted-printable, so that is undone when it applies cleanly.
func htmlPart(part *gmailapi.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Body.Data, "="))
		if err != nil {
			return ""
		}
		if unquoted, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(string(decoded)))); err == nil && len(unquoted) > 0 {
			return string(unquoted)
		}
		return string(decoded)
	}
	for _, p := range part.Parts {
		if html := htmlPart(p); html != "" {
			return html
		}
	}
	return ""
}
