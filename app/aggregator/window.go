package aggregator

import (
	"sort"
	"sync"
	"time"

	e "nuclight.org/tg-wordpress-bot/pkg/entities"
	"nuclight.org/tg-wordpress-bot/pkg/logger"
)

// DefaultQuietInterval is the debounce window: a media group fires once no
// new member arrived for this long.
const DefaultQuietInterval = 2 * time.Second

// Window buffers media-group members until the group goes quiet, then hands
// the merged post to Fire exactly once. Members are merged in message-id
// order, so concurrent ingress workers overtaking each other cannot scramble
// the gallery or drop the caption: the text and title come from the first
// message carrying text, the deep link points at the group's first message.
//
// Appends and fires for the same group are serialized by the window lock.
// A member arriving after its group was detached for firing starts a fresh
// buffer instead of appending to the one in flight.
type Window struct {
	Log   logger.Logger
	Quiet time.Duration

	// Fire receives each completed group, it runs on the timer goroutine
	Fire func(post e.ChannelPost)

	mu     sync.Mutex
	groups map[string]*buffer
}

type buffer struct {
	members []e.ChannelPost
	timer   *time.Timer
	gen     uint64 // bumped on every re-arm, stale timers check it and bail
}

// Add registers a group member and (re)arms the group's debounce timer.
func (w *Window) Add(post e.ChannelPost) {
	groupID := post.GroupID

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.groups == nil {
		w.groups = make(map[string]*buffer)
	}

	b, ok := w.groups[groupID]
	if !ok {
		b = &buffer{}
		w.groups[groupID] = b

		w.Log.Debug("media group opened", "tg_media_group_id", groupID, "tg_message_id", post.MessageID)
	} else {
		b.timer.Stop()

		w.Log.Debug(
			"media group member added",
			"tg_media_group_id", groupID,
			"tg_message_id", post.MessageID,
			"members", len(b.members)+1,
		)
	}

	b.members = append(b.members, post)

	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(w.quiet(), func() {
		w.fire(groupID, gen)
	})
}

// Pending reports how many groups are still collecting.
func (w *Window) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.groups)
}

// Flush drops every collecting group without firing. Called on shutdown,
// buffered members are lost.
func (w *Window) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for groupID, b := range w.groups {
		b.timer.Stop()
		delete(w.groups, groupID)
		w.Log.Warn("dropping unfired media group", "tg_media_group_id", groupID, "members", len(b.members))
	}
}

func (w *Window) fire(groupID string, gen uint64) {
	w.mu.Lock()

	b, ok := w.groups[groupID]
	if !ok || b.gen != gen {
		// the group was re-armed or flushed after this timer was scheduled
		w.mu.Unlock()
		return
	}

	delete(w.groups, groupID)
	w.mu.Unlock()

	post := mergeMembers(b.members)

	w.Log.Info(
		"media group complete",
		"tg_media_group_id", groupID,
		"members", len(b.members),
		"media_count", len(post.Media),
	)
	w.Fire(post)
}

// mergeMembers flattens the accumulated members into one post. Ingress
// workers may hand members over in any order, so arrival order is not
// trusted: media follows message-id order and the text comes from the first
// message carrying one.
func mergeMembers(members []e.ChannelPost) e.ChannelPost {
	sort.Slice(members, func(i, j int) bool {
		return members[i].MessageID < members[j].MessageID
	})

	post := members[0]
	post.Text = ""
	post.Media = nil

	for _, m := range members {
		if post.Text == "" && m.Text != "" {
			post.Text = m.Text
		}
		post.Media = append(post.Media, m.Media...)
	}

	return post
}

func (w *Window) quiet() time.Duration {
	if w.Quiet > 0 {
		return w.Quiet
	}
	return DefaultQuietInterval
}
