package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	e "nuclight.org/tg-wordpress-bot/pkg/entities"
	"nuclight.org/tg-wordpress-bot/pkg/logger"
)

// PostPublisher runs the synchronous single-post pipeline.
type PostPublisher interface {
	PublishPost(ctx context.Context, post e.ChannelPost)
}

// GroupCollector buffers media-group members for a later fire.
type GroupCollector interface {
	Add(post e.ChannelPost)
}

// JournalReader exposes recent publish outcomes for the /status command.
type JournalReader interface {
	ListRecent(ctx context.Context, limit int) ([]e.PublishRecord, error)
}

// Client polls Telegram updates and routes channel posts into the publish
// pipeline. Posts from chats other than ChannelID are ignored silently,
// textless standalone posts are skipped, media-group members are handed to
// the collector without waiting for the fire.
type Client struct {
	Log        logger.Logger
	APIToken   string
	WorkersNum int

	// ChannelID is the source channel, AdminID the operator chat
	ChannelID int64
	AdminID   int64

	Publisher PostPublisher
	Collector GroupCollector

	// StatusCheck probes the content backend for /status
	StatusCheck func(ctx context.Context) error

	// Journal is optional, /status reports the last outcome when set
	Journal JournalReader

	bot *tgbotapi.BotAPI
	wg  sync.WaitGroup
}

func (c *Client) Start(ctx context.Context) (err error) {
	if c.WorkersNum == 0 {
		return fmt.Errorf("workers number must be greater than 0")
	}

	log := c.Log

	c.bot, err = tgbotapi.NewBotAPI(c.APIToken)
	if err != nil {
		return fmt.Errorf("creating bot api: %w", err)
	}

	log.Info("bot api created", "username", c.bot.Self.UserName)

	updatesConf := tgbotapi.NewUpdate(0)
	updatesConf.Timeout = 60

	updatesChan := c.bot.GetUpdatesChan(updatesConf)

	for i := 0; i < c.WorkersNum; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.handleUpdatesFromChan(ctx, updatesChan)
		}()
	}

	return nil
}

func (c *Client) Wait() {
	c.wg.Wait()
}

// NotifyOperator sends a one-line status message to the admin chat. Send
// failures are logged and swallowed, a broken notification channel must not
// fail the pipeline.
func (c *Client) NotifyOperator(_ context.Context, text string) {
	if c.AdminID == 0 {
		c.Log.Warn("admin user id is not configured, dropping notification", "text", text)
		return
	}

	msg := tgbotapi.NewMessage(c.AdminID, text)
	msg.DisableWebPagePreview = true

	if _, err := c.bot.Send(msg); err != nil {
		c.Log.Error("sending operator notification", "error", err)
	}
}

func (c *Client) handleUpdatesFromChan(ctx context.Context, updatesChan tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updatesChan:
			err := c.handleUpdate(ctx, update)
			if err != nil {
				c.Log.Error("handling update", "tg_update_id", update.UpdateID, "error", err)
			}
		}
	}
}

func (c *Client) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	log := c.Log.With("tg_update_id", update.UpdateID)

	defer func() {
		if err := recover(); err != nil {
			log.Error("panic", "error", err)
		}
	}()

	switch {
	case update.ChannelPost != nil:
		return c.handleChannelPost(ctx, log, update.ChannelPost)
	case update.Message != nil:
		return c.handleMessage(ctx, log, update.Message)
	default:
		return nil
	}
}

func (c *Client) handleChannelPost(ctx context.Context, log logger.Logger, msg *tgbotapi.Message) error {
	if msg.Chat == nil {
		log.Warn("channel post chat is nil")
		return nil
	}

	if msg.Chat.ID != c.ChannelID {
		// not the configured source channel
		return nil
	}

	log.Info(
		"new channel post",
		"tg_message_id", msg.MessageID,
		"tg_chat_id", msg.Chat.ID,
		"tg_chat_title", msg.Chat.Title,
		"tg_media_group_id", msg.MediaGroupID,
	)

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	post := e.ChannelPost{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		GroupID:   msg.MediaGroupID,
		Text:      text,
		Handle:    msg.Chat.UserName,
		Media:     c.resolveMedia(log, msg),
	}

	if post.GroupID != "" {
		c.Collector.Add(post)
		return nil
	}

	if !post.HasText() {
		log.Info("post without text or caption, skipping", "tg_message_id", msg.MessageID)
		return nil
	}

	c.Publisher.PublishPost(ctx, post)
	return nil
}

// resolveMedia turns the post's attachment into media items with resolved
// file URLs. For photos Telegram sends every size, the largest one is taken.
// A failed resolution drops the item, the post itself still goes through.
func (c *Client) resolveMedia(log logger.Logger, msg *tgbotapi.Message) []e.MediaItem {
	var fileID string
	var kind e.MediaKind

	switch {
	case len(msg.Photo) > 0:
		fileID = msg.Photo[len(msg.Photo)-1].FileID
		kind = e.MediaKindPhoto
	case msg.Video != nil:
		fileID = msg.Video.FileID
		kind = e.MediaKindVideo
	default:
		return nil
	}

	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		log.Error("resolving media file, continuing without it", "tg_file_id", fileID, "error", err)
		return nil
	}

	return []e.MediaItem{{Kind: kind, FileURL: file.Link(c.bot.Token)}}
}

func (c *Client) handleMessage(ctx context.Context, log logger.Logger, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil {
		return nil
	}

	if !msg.Chat.IsPrivate() || !msg.IsCommand() {
		return nil
	}

	if msg.From.ID != c.AdminID {
		log.Info("command from a non-admin user", "tg_user_id", msg.From.ID, "command", msg.Command())
		return c.reply(msg.Chat.ID, "Sorry, you don't have access to this bot.")
	}

	switch msg.Command() {
	case "start":
		return c.reply(msg.Chat.ID,
			"Hi! I relay posts from the channel to the WordPress site.\n"+
				"Use /status to check the connection.")

	case "status":
		return c.reply(msg.Chat.ID, c.buildStatus(ctx))

	default:
		return c.reply(msg.Chat.ID, fmt.Sprintf("Unknown command: /%s", msg.Command()))
	}
}

func (c *Client) buildStatus(ctx context.Context) string {
	var status string
	if err := c.StatusCheck(ctx); err != nil {
		c.Log.Error("wordpress connectivity check", "error", err)
		status = "❌ WordPress connection failed."
	} else {
		status = "✅ WordPress connected."
	}

	if c.Journal == nil {
		return status
	}

	records, err := c.Journal.ListRecent(ctx, 1)
	if err != nil {
		c.Log.Error("listing recent publishes", "error", err)
		return status
	}

	if len(records) > 0 {
		rec := records[0]
		if rec.Outcome.Succeeded {
			status += fmt.Sprintf("\nLast publish: ✅ %s\n%s", rec.Title, rec.Outcome.ArticleURL)
		} else {
			status += fmt.Sprintf("\nLast publish: ❌ %s", rec.Title)
		}
	}

	return status
}

func (c *Client) reply(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	_, err := c.bot.Send(msg)
	return err
}
