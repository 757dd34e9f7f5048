package publisher

import (
	"context"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	e "nuclight.org/tg-wordpress-bot/pkg/entities"
	"nuclight.org/tg-wordpress-bot/pkg/logger"
)

// Uploader pushes a remote file to the content backend.
type Uploader interface {
	UploadMedia(ctx context.Context, fileURL string, kind e.MediaKind) (e.UploadedAsset, error)
}

// Poster creates an article on the content backend and returns its link.
type Poster interface {
	CreatePost(ctx context.Context, title, content string, featuredID int64) (string, error)
}

// Notifier delivers a one-line outcome message to the operator. It must
// never fail the pipeline, implementations swallow their own errors.
type Notifier interface {
	NotifyOperator(ctx context.Context, text string)
}

// Journal records publish outcomes.
type Journal interface {
	SaveOutcome(ctx context.Context, rec e.PublishRecord) error
}

// Service runs the upload-render-publish-notify pipeline. Exactly one
// article is created per logical post; a failed media upload degrades the
// post instead of aborting it; a failed article creation is reported to the
// operator and never retried.
type Service struct {
	Log      logger.Logger
	Uploader Uploader
	Poster   Poster
	Notifier Notifier
	Journal  Journal // optional
}

// PublishPost relays a standalone channel message. Callers must filter out
// textless posts.
func (s *Service) PublishPost(ctx context.Context, post e.ChannelPost) {
	corrID := uuid.NewString()
	log := s.Log.With("post_id", corrID, "tg_message_id", post.MessageID)

	defer s.recoverPipeline(ctx, log, post)

	var featured int64
	var embed *e.UploadedAsset

	if len(post.Media) > 0 {
		item := post.Media[0]

		asset, err := s.uploadItem(ctx, log, item)
		if err == nil {
			featured = asset.ID
			embed = &asset
		}
	}

	content := renderSingleHTML(post, embed)
	outcome := s.createPost(ctx, log, post.Title(), content, featured)

	s.finish(ctx, log, corrID, post, outcome)
}

// PublishGroup relays a completed media group: every item is uploaded in
// arrival order, the first uploaded photo becomes the featured asset.
func (s *Service) PublishGroup(ctx context.Context, post e.ChannelPost) {
	corrID := uuid.NewString()
	log := s.Log.With("post_id", corrID, "tg_media_group_id", post.GroupID, "tg_message_id", post.MessageID)

	defer s.recoverPipeline(ctx, log, post)

	if !post.HasText() {
		log.Info("media group without text, skipping")
		return
	}

	var assets []e.UploadedAsset
	for _, item := range post.Media {
		asset, err := s.uploadItem(ctx, log, item)
		if err != nil {
			continue
		}
		assets = append(assets, asset)
	}

	var featured int64
	for _, asset := range assets {
		if asset.Kind == e.MediaKindPhoto {
			featured = asset.ID
			break
		}
	}

	content := renderGroupHTML(post, assets)
	outcome := s.createPost(ctx, log, post.Title(), content, featured)

	s.finish(ctx, log, corrID, post, outcome)
}

// uploadItem degrades gracefully: fetch and upload failures leave the post
// without that asset.
func (s *Service) uploadItem(ctx context.Context, log logger.Logger, item e.MediaItem) (e.UploadedAsset, error) {
	if item.FileURL == "" {
		log.Warn("media item without file url, skipping", "kind", item.Kind)
		return e.UploadedAsset{}, fmt.Errorf("empty file url")
	}

	asset, err := s.Uploader.UploadMedia(ctx, item.FileURL, item.Kind)
	if err != nil {
		log.Error("uploading media, continuing without it", "kind", item.Kind, "error", err)
		return e.UploadedAsset{}, err
	}

	log.Debug("media uploaded", "asset_id", asset.ID, "kind", asset.Kind)
	return asset, nil
}

func (s *Service) createPost(ctx context.Context, log logger.Logger, title, content string, featured int64) e.PublishOutcome {
	link, err := s.Poster.CreatePost(ctx, title, content, featured)
	if err != nil {
		log.Error("creating post", "title", title, "error", err)
		sentry.CaptureException(err)

		return e.PublishOutcome{FailureDetail: err.Error()}
	}

	log.Info("post created", "title", title, "link", link)
	return e.PublishOutcome{Succeeded: true, ArticleURL: link}
}

func (s *Service) finish(ctx context.Context, log logger.Logger, corrID string, post e.ChannelPost, outcome e.PublishOutcome) {
	if s.Journal != nil {
		err := s.Journal.SaveOutcome(ctx, e.PublishRecord{
			CorrelationID: corrID,
			GroupID:       post.GroupID,
			MessageID:     post.MessageID,
			Title:         post.Title(),
			Outcome:       outcome,
		})
		if err != nil {
			log.Error("saving publish outcome", "error", err)
		}
	}

	if outcome.Succeeded {
		s.Notifier.NotifyOperator(ctx, fmt.Sprintf("✅ Published: %s\n%s", post.Title(), outcome.ArticleURL))
	} else {
		s.Notifier.NotifyOperator(ctx, fmt.Sprintf("❌ Failed to publish: %s", post.Title()))
	}
}

// recoverPipeline keeps an unexpected failure inside one pipeline run from
// reaching the update loop, the operator gets a generic failure notice.
func (s *Service) recoverPipeline(ctx context.Context, log logger.Logger, post e.ChannelPost) {
	r := recover()
	if r == nil {
		return
	}

	log.Error("panic in publish pipeline", "error", r)
	sentry.CurrentHub().Recover(r)

	s.Notifier.NotifyOperator(ctx, fmt.Sprintf("❌ Failed to publish: %s", post.Title()))
}
