package aggregator

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	e "nuclight.org/tg-wordpress-bot/pkg/entities"
)

const testQuiet = 100 * time.Millisecond

type fireRecorder struct {
	mu    sync.Mutex
	fired []e.ChannelPost
}

func (r *fireRecorder) fire(post e.ChannelPost) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, post)
}

func (r *fireRecorder) posts() []e.ChannelPost {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]e.ChannelPost(nil), r.fired...)
}

func newTestWindow(rec *fireRecorder) *Window {
	return &Window{
		Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Quiet: testQuiet,
		Fire:  rec.fire,
	}
}

func member(groupID string, messageID int, text string, media ...e.MediaItem) e.ChannelPost {
	return e.ChannelPost{
		ChatID:    -100,
		MessageID: messageID,
		GroupID:   groupID,
		Text:      text,
		Handle:    "mychannel",
		Media:     media,
	}
}

func photo(url string) e.MediaItem {
	return e.MediaItem{Kind: e.MediaKindPhoto, FileURL: url}
}

func waitFired(t *testing.T, rec *fireRecorder, want int) {
	t.Helper()

	deadline := time.Now().Add(20 * testQuiet)
	for time.Now().Before(deadline) {
		if len(rec.posts()) >= want {
			return
		}
		time.Sleep(testQuiet / 4)
	}
	t.Fatalf("expected %d fires, got %d", want, len(rec.posts()))
}

func TestFiresOncePerGroup(t *testing.T) {
	rec := &fireRecorder{}
	w := newTestWindow(rec)

	w.Add(member("G1", 10, "Hello\nWorld", photo("http://files/a")))
	time.Sleep(testQuiet / 4)
	w.Add(member("G1", 11, "", photo("http://files/b")))
	time.Sleep(testQuiet / 4)
	w.Add(member("G1", 12, "", photo("http://files/c")))

	waitFired(t, rec, 1)
	time.Sleep(3 * testQuiet)

	posts := rec.posts()
	require.Len(t, posts, 1)

	got := posts[0]
	assert.Equal(t, "Hello\nWorld", got.Text)
	assert.Equal(t, 10, got.MessageID)
	require.Len(t, got.Media, 3)
	assert.Equal(t, "http://files/a", got.Media[0].FileURL)
	assert.Equal(t, "http://files/b", got.Media[1].FileURL)
	assert.Equal(t, "http://files/c", got.Media[2].FileURL)

	assert.Equal(t, 0, w.Pending(), "fired group buffer must be discarded")
}

func TestReArmDelaysFire(t *testing.T) {
	rec := &fireRecorder{}
	w := newTestWindow(rec)

	w.Add(member("G1", 10, "text", photo("http://files/a")))

	// keep appending past the initial deadline, the timer must keep sliding
	for i := 0; i < 4; i++ {
		time.Sleep(testQuiet / 4)
		w.Add(member("G1", 11+i, "", photo("http://files/b")))
		assert.Empty(t, rec.posts(), "group fired while members were still arriving")
	}

	waitFired(t, rec, 1)
	require.Len(t, rec.posts(), 1)
	assert.Len(t, rec.posts()[0].Media, 5)
}

func TestArrivalAfterFireOpensFreshBuffer(t *testing.T) {
	rec := &fireRecorder{}
	w := newTestWindow(rec)

	w.Add(member("G1", 10, "first batch", photo("http://files/a")))
	waitFired(t, rec, 1)

	w.Add(member("G1", 20, "second batch", photo("http://files/b")))
	waitFired(t, rec, 2)

	posts := rec.posts()
	require.Len(t, posts, 2)
	assert.Equal(t, "first batch", posts[0].Text)
	assert.Len(t, posts[0].Media, 1)
	assert.Equal(t, "second batch", posts[1].Text)
	assert.Len(t, posts[1].Media, 1)
}

func TestInvertedArrivalKeepsCaptionAndOrder(t *testing.T) {
	rec := &fireRecorder{}
	w := newTestWindow(rec)

	// a worker racing ahead delivers the caption-less second member first
	w.Add(member("G1", 11, "", photo("http://files/b")))
	w.Add(member("G1", 10, "Hello\nWorld", photo("http://files/a")))

	waitFired(t, rec, 1)

	got := rec.posts()[0]
	assert.Equal(t, "Hello\nWorld", got.Text, "the caption must survive out-of-order delivery")
	assert.Equal(t, 10, got.MessageID)
	require.Len(t, got.Media, 2)
	assert.Equal(t, "http://files/a", got.Media[0].FileURL)
	assert.Equal(t, "http://files/b", got.Media[1].FileURL)
}

func TestCaptionOnLaterMessageAdopted(t *testing.T) {
	rec := &fireRecorder{}
	w := newTestWindow(rec)

	w.Add(member("G1", 10, "", photo("http://files/a")))
	w.Add(member("G1", 11, "late caption", photo("http://files/b")))

	waitFired(t, rec, 1)

	got := rec.posts()[0]
	assert.Equal(t, "late caption", got.Text, "text comes from the first message carrying one")
	assert.Equal(t, 10, got.MessageID, "the deep link still points at the group's first message")
	assert.Len(t, got.Media, 2)
}

func TestDistinctGroupsFireIndependently(t *testing.T) {
	rec := &fireRecorder{}
	w := newTestWindow(rec)

	w.Add(member("G1", 10, "one", photo("http://files/a")))
	w.Add(member("G2", 20, "two", photo("http://files/b")))

	waitFired(t, rec, 2)

	texts := map[string]int{}
	for _, p := range rec.posts() {
		texts[p.Text]++
	}
	assert.Equal(t, map[string]int{"one": 1, "two": 1}, texts)
	assert.Equal(t, 0, w.Pending())
}

func TestFlushDropsCollectingGroups(t *testing.T) {
	rec := &fireRecorder{}
	w := newTestWindow(rec)

	w.Add(member("G1", 10, "text", photo("http://files/a")))
	w.Flush()

	time.Sleep(3 * testQuiet)
	assert.Empty(t, rec.posts())
	assert.Equal(t, 0, w.Pending())
}

func TestConcurrentAddsLoseNoMember(t *testing.T) {
	rec := &fireRecorder{}
	w := newTestWindow(rec)

	const n = 20

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w.Add(member("G1", 10+i, "text", photo("http://files/x")))
		}(i)
	}
	wg.Wait()

	waitFired(t, rec, 1)
	time.Sleep(3 * testQuiet)

	posts := rec.posts()
	require.Len(t, posts, 1)
	assert.Len(t, posts[0].Media, n)
}
