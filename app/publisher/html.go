package publisher

import (
	"fmt"
	"strings"

	e "nuclight.org/tg-wordpress-bot/pkg/entities"
)

// fallbackHandle substitutes a channel without a public username in the
// "back to Telegram" deep link.
const fallbackHandle = "channel"

// renderSingleHTML builds the article body for a standalone post: an
// optional image/video embed followed by the text block.
func renderSingleHTML(post e.ChannelPost, asset *e.UploadedAsset) string {
	var sb strings.Builder

	if asset != nil && asset.SourceURL != "" {
		switch asset.Kind {
		case e.MediaKindPhoto:
			fmt.Fprintf(&sb, `<div class="wp-block-image"><figure><img src="%s" alt=""/></figure></div>`, asset.SourceURL)
		case e.MediaKindVideo:
			fmt.Fprintf(&sb, `<div class="wp-block-video"><video controls src="%s"></video></div>`, asset.SourceURL)
		}
	}

	sb.WriteString(telegramPostBlock(post))

	return sb.String()
}

// renderGroupHTML builds the article body for a completed media group: a
// gallery of the uploaded photos followed by the text block. Videos count
// toward featured-media selection but are not rendered into the gallery.
// The gallery block is emitted even when empty.
func renderGroupHTML(post e.ChannelPost, assets []e.UploadedAsset) string {
	var sb strings.Builder

	sb.WriteString(`<div class="wp-block-gallery"><ul class="blocks-gallery-grid">`)
	for _, asset := range assets {
		if asset.Kind != e.MediaKindPhoto || asset.SourceURL == "" {
			continue
		}
		fmt.Fprintf(&sb, `<li class="blocks-gallery-item"><figure><img src="%s" alt=""/></figure></li>`, asset.SourceURL)
	}
	sb.WriteString(`</ul></div>`)

	sb.WriteString(telegramPostBlock(post))

	return sb.String()
}

func telegramPostBlock(post e.ChannelPost) string {
	handle := post.Handle
	if handle == "" {
		handle = fallbackHandle
	}

	return fmt.Sprintf(
		`<div class="telegram-post">%s<br><br><a href="https://t.me/%s/%d" class="telegram-link">Перейти в Telegram</a></div>`,
		strings.ReplaceAll(post.Text, "\n", "<br>"),
		handle,
		post.MessageID,
	)
}
