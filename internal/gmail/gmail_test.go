package gmail

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/bcfeed/bcfeed/internal/engine"
)

func TestReleaseQuery(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)

	q := releaseQuery(start, end)
	assert.Equal(t, "from:noreply@bandcamp.com subject:'New release from' before:2024/03/04 after:2024/03/01", q)
}

func TestReleaseQuerySingleDay(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	q := releaseQuery(day, day)
	assert.Contains(t, q, "after:2024/03/01")
	assert.Contains(t, q, "before:2024/03/02")
}

func encodeBody(t *testing.T, s string) string {
	t.Helper()
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestHTMLPartDirect(t *testing.T) {
	part := &gmailapi.MessagePart{
		MimeType: "text/html",
		Body:     &gmailapi.MessagePartBody{Data: encodeBody(t, "<html><body>hi</body></html>")},
	}
	assert.Equal(t, "<html><body>hi</body></html>", htmlPart(part))
}

func TestHTMLPartNested(t *testing.T) {
	part := &gmailapi.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmailapi.MessagePart{
			{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: encodeBody(t, "plain")}},
			{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: encodeBody(t, "<p>rich</p>")}},
		},
	}
	assert.Equal(t, "<p>rich</p>", htmlPart(part))
}

func TestHTMLPartQuotedPrintable(t *testing.T) {
	// Some Gmail messages carry quoted-printable inside the HTML part.
	part := &gmailapi.MessagePart{
		MimeType: "text/html",
		Body:     &gmailapi.MessagePartBody{Data: encodeBody(t, "caf=C3=A9")},
	}
	assert.Equal(t, "café", htmlPart(part))
}

func TestHTMLPartMissing(t *testing.T) {
	assert.Empty(t, htmlPart(nil))
	assert.Empty(t, htmlPart(&gmailapi.MessagePart{MimeType: "text/plain"}))
}

func TestReduceMessage(t *testing.T) {
	raw := &gmailapi.Message{
		Payload: &gmailapi.MessagePart{
			MimeType: "text/html",
			Body:     &gmailapi.MessagePartBody{Data: encodeBody(t, "<p>x</p>")},
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "Date", Value: "Tue, 16 Jan 2024 08:15:00 +0000"},
				{Name: "Subject", Value: "New release from Label"},
			},
		},
	}

	msg := reduceMessage(raw)
	assert.Equal(t, "<p>x</p>", msg.HTML)
	assert.Equal(t, "New release from Label", msg.Subject)
	assert.Equal(t, time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), msg.Date)
}

func TestMockSearchByWindow(t *testing.T) {
	m := NewMock()
	m.Seed("m1", messageOn(t, "2024-03-01"))
	m.Seed("m2", messageOn(t, "2024-03-02"))
	m.Seed("m3", messageOn(t, "2024-03-08"))

	ids, err := m.Search(context.Background(), day(t, "2024-03-01"), day(t, "2024-03-03"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m1", "m2"}, ids)
}

func messageOn(t *testing.T, iso string) (msg engine.Message) {
	t.Helper()
	msg.Date = day(t, iso)
	return msg
}

func day(t *testing.T, iso string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", iso)
	require.NoError(t, err)
	return d
}
