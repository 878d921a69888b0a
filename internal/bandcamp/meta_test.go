package bandcamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const albumPage = `<html><head>
<meta name="bc-page-properties" content="{&quot;item_type&quot;:&quot;a&quot;,&quot;item_id&quot;:123456789}">
<meta property="og:description" content="Arctic Silence by Netherworld, released 12 June 2024">
</head><body>
<div class="tralbum-about">Recorded during a winter residency.<br>Mixed in Rome.</div>
<div class="tralbum-credits">released June 12, 2024</div>
</body></html>`

const trackPage = `<html><head>
<meta name="bc-page-properties" content="{'item_type': 'track', 'item_id': 42}">
</head><body></body></html>`

func TestExtractPageMetaAlbum(t *testing.T) {
	meta, err := ExtractPageMeta(albumPage)
	require.NoError(t, err)
	assert.Equal(t, int64(123456789), meta.ItemID)
	assert.Equal(t, "a", meta.ItemType)
	assert.False(t, meta.IsTrack())
}

func TestExtractPageMetaSingleQuotedPayload(t *testing.T) {
	meta, err := ExtractPageMeta(trackPage)
	require.NoError(t, err)
	assert.Equal(t, int64(42), meta.ItemID)
	assert.True(t, meta.IsTrack())
}

func TestExtractPageMetaMissing(t *testing.T) {
	_, err := ExtractPageMeta(`<html><head></head><body></body></html>`)
	assert.Error(t, err)
}

func TestExtractDescriptionJoinsAboutAndCredits(t *testing.T) {
	desc := ExtractDescription(albumPage)
	assert.Equal(t, "Recorded during a winter residency.\nMixed in Rome.\n\nreleased June 12, 2024", desc)
}

func TestExtractDescriptionFallsBackToOpenGraph(t *testing.T) {
	page := `<html><head>
<meta property="og:description" content="Arctic Silence by Netherworld">
</head><body></body></html>`
	assert.Equal(t, "Arctic Silence by Netherworld", ExtractDescription(page))
}

func TestExtractDescriptionEmpty(t *testing.T) {
	assert.Equal(t, "", ExtractDescription(`<html><body><p>hi</p></body></html>`))
}

func TestBuildEmbedURL(t *testing.T) {
	assert.Equal(t,
		"https://bandcamp.com/EmbeddedPlayer/album=99/size=large/bgcol=ffffff/linkcol=0687f5/tracklist=true/artwork=small/transparent=true/",
		BuildEmbedURL(99, false))
	assert.Equal(t,
		"https://bandcamp.com/EmbeddedPlayer/track=42/size=large/bgcol=ffffff/linkcol=0687f5/tracklist=true/artwork=small/transparent=true/",
		BuildEmbedURL(42, true))
	assert.Equal(t, "", BuildEmbedURL(0, false))
}
