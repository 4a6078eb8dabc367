package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Andres3232/telegram-conversations/internal/event"
	"github.com/Andres3232/telegram-conversations/internal/repo"
	"github.com/Andres3232/telegram-conversations/internal/telegram"
)

type fakeFetcher struct {
	updates []telegram.Update
	offsets []int64
	err     error
}

func (f *fakeFetcher) FetchUpdates(_ context.Context, offset int64, _, _ int) ([]telegram.Update, error) {
	f.offsets = append(f.offsets, offset)
	if f.err != nil {
		return nil, f.err
	}
	return f.updates, nil
}

type memCursor struct {
	v    int64
	sets []int64
}

func (c *memCursor) Get(context.Context) (int64, error) { return c.v, nil }
func (c *memCursor) Set(_ context.Context, v int64) error {
	if v > c.v {
		c.v = v
	}
	c.sets = append(c.sets, v)
	return nil
}

type memConversations struct {
	byChat  map[string]*repo.Conversation
	nextID  int64
	creates int
}

func newMemConversations() *memConversations {
	return &memConversations{byChat: map[string]*repo.Conversation{}, nextID: 100}
}

func (m *memConversations) FindByChatID(_ context.Context, chatID string) (*repo.Conversation, error) {
	return m.byChat[chatID], nil
}

func (m *memConversations) Create(_ context.Context, chatID string) (*repo.Conversation, error) {
	m.creates++
	m.nextID++
	c := &repo.Conversation{ID: m.nextID, TelegramChatID: chatID}
	m.byChat[chatID] = c
	return c, nil
}

type memMessages struct {
	byUpdateID map[int64]*repo.Message
	nextID     int64
	insertErr  error
}

func newMemMessages() *memMessages {
	return &memMessages{byUpdateID: map[int64]*repo.Message{}, nextID: 1000}
}

func (m *memMessages) InsertInboundIfAbsent(_ context.Context, convID, updateID int64, content string) (*repo.Message, bool, error) {
	if m.insertErr != nil {
		return nil, false, m.insertErr
	}
	if _, ok := m.byUpdateID[updateID]; ok {
		return nil, false, nil
	}
	m.nextID++
	msg := &repo.Message{ID: m.nextID, ConversationID: convID, Direction: repo.DirectionIn, Content: content, TelegramUpdateID: updateID}
	m.byUpdateID[updateID] = msg
	return msg, true, nil
}

type capturePublisher struct {
	envs      []event.Envelope
	keys      []string
	failAfter int // fail once this many publishes have happened; -1 = never
}

func (p *capturePublisher) Publish(_ context.Context, env event.Envelope, key string) error {
	if p.failAfter >= 0 && len(p.envs) >= p.failAfter {
		return errors.New("broker down")
	}
	p.envs = append(p.envs, env)
	p.keys = append(p.keys, key)
	return nil
}

func textUpdate(id int64, chatID, text string) telegram.Update {
	return telegram.Update{ID: id, Message: &telegram.IncomingMessage{ChatID: chatID, Text: text}}
}

func newTestSyncer(f *fakeFetcher, c *memCursor, convs *memConversations, msgs *memMessages, pub *capturePublisher) *Syncer {
	return NewSyncer(f, c, convs, msgs, pub, zap.NewNop())
}

func TestRunIngestsNewUpdate(t *testing.T) {
	fetcher := &fakeFetcher{updates: []telegram.Update{textUpdate(10, "123", "hola")}}
	cursor := &memCursor{v: 9}
	convs := newMemConversations()
	msgs := newMemMessages()
	pub := &capturePublisher{failAfter: -1}

	out, err := newTestSyncer(fetcher, cursor, convs, msgs, pub).Run(context.Background(), 50, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if fetcher.offsets[0] != 10 {
		t.Errorf("fetch offset = %d, want 10", fetcher.offsets[0])
	}
	if out.ProcessedUpdates != 1 || out.ProcessedMessages != 1 {
		t.Errorf("counts = %d/%d, want 1/1", out.ProcessedUpdates, out.ProcessedMessages)
	}
	if out.CursorBefore != 9 || out.CursorAfter != 10 {
		t.Errorf("cursor = %d -> %d, want 9 -> 10", out.CursorBefore, out.CursorAfter)
	}
	if cursor.v != 10 {
		t.Errorf("persisted cursor = %d, want 10", cursor.v)
	}
	if convs.creates != 1 {
		t.Errorf("conversations created = %d, want 1", convs.creates)
	}
	if _, ok := msgs.byUpdateID[10]; !ok {
		t.Error("message for update 10 not stored")
	}
	if len(pub.envs) != 1 {
		t.Fatalf("published = %d, want 1", len(pub.envs))
	}
	if pub.envs[0].EventName != event.MessageReceived {
		t.Errorf("event name = %q", pub.envs[0].EventName)
	}
}

func TestRunSecondIngestOfSameUpdateIsNoop(t *testing.T) {
	fetcher := &fakeFetcher{updates: []telegram.Update{textUpdate(10, "123", "hola")}}
	cursor := &memCursor{v: 9}
	convs := newMemConversations()
	msgs := newMemMessages()
	pub := &capturePublisher{failAfter: -1}
	s := newTestSyncer(fetcher, cursor, convs, msgs, pub)

	if _, err := s.Run(context.Background(), 50, 0); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Upstream replays the same update (e.g. offset not yet visible).
	cursor.v = 9
	out, err := s.Run(context.Background(), 50, 0)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if out.ProcessedMessages != 0 {
		t.Errorf("second run processedMessages = %d, want 0", out.ProcessedMessages)
	}
	if out.CursorAfter != 10 {
		t.Errorf("second run cursorAfter = %d, want 10", out.CursorAfter)
	}
	if len(pub.envs) != 1 {
		t.Errorf("published = %d after replay, want 1", len(pub.envs))
	}
	if len(msgs.byUpdateID) != 1 {
		t.Errorf("stored messages = %d, want 1", len(msgs.byUpdateID))
	}
}

func TestRunPublishFailureAdvancesCursorAndAbortsBatch(t *testing.T) {
	fetcher := &fakeFetcher{updates: []telegram.Update{
		textUpdate(10, "123", "uno"),
		textUpdate(11, "123", "dos"),
	}}
	cursor := &memCursor{v: 9}
	convs := newMemConversations()
	msgs := newMemMessages()
	pub := &capturePublisher{failAfter: 0} // every publish fails

	_, err := newTestSyncer(fetcher, cursor, convs, msgs, pub).Run(context.Background(), 50, 0)
	if err == nil {
		t.Fatal("expected error from failing publish")
	}

	// The failing update is still covered by the watermark.
	if cursor.v != 10 {
		t.Errorf("persisted cursor = %d, want 10", cursor.v)
	}
	// The rest of the batch was aborted.
	if _, ok := msgs.byUpdateID[11]; ok {
		t.Error("update 11 should not have been processed")
	}
}

func TestRunSkipsUpdatesWithoutTextOrChat(t *testing.T) {
	fetcher := &fakeFetcher{updates: []telegram.Update{
		{ID: 10}, // no message at all
		textUpdate(11, "123", "   "),
		textUpdate(12, "abc", "hola"), // malformed chat id
	}}
	cursor := &memCursor{v: 9}
	convs := newMemConversations()
	msgs := newMemMessages()
	pub := &capturePublisher{failAfter: -1}

	out, err := newTestSyncer(fetcher, cursor, convs, msgs, pub).Run(context.Background(), 50, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if out.ProcessedMessages != 0 {
		t.Errorf("processedMessages = %d, want 0", out.ProcessedMessages)
	}
	if out.CursorAfter != 12 {
		t.Errorf("cursorAfter = %d, want 12", out.CursorAfter)
	}
	if len(msgs.byUpdateID) != 0 || convs.creates != 0 || len(pub.envs) != 0 {
		t.Error("skipped updates must not write or publish")
	}
	// cursor persisted once per update
	if len(cursor.sets) != 3 {
		t.Errorf("cursor writes = %d, want 3", len(cursor.sets))
	}
}

func TestRunTwoUpdatesSameChatShareOneConversation(t *testing.T) {
	fetcher := &fakeFetcher{updates: []telegram.Update{
		textUpdate(10, "123", "uno"),
		textUpdate(11, "123", "dos"),
	}}
	cursor := &memCursor{v: 9}
	convs := newMemConversations()
	msgs := newMemMessages()
	pub := &capturePublisher{failAfter: -1}

	out, err := newTestSyncer(fetcher, cursor, convs, msgs, pub).Run(context.Background(), 50, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if convs.creates != 1 {
		t.Errorf("conversations created = %d, want 1", convs.creates)
	}
	if out.ProcessedMessages != 2 {
		t.Errorf("processedMessages = %d, want 2", out.ProcessedMessages)
	}
	if pub.keys[0] != pub.keys[1] {
		t.Errorf("sharding keys differ: %q vs %q", pub.keys[0], pub.keys[1])
	}
}

func TestRunKeepsMultibyteTextWithinRuneLimitIntact(t *testing.T) {
	// 2101 two-byte runes: over 4096 bytes but well under 4096 chars.
	long := strings.Repeat("ñ", 2101)
	fetcher := &fakeFetcher{updates: []telegram.Update{textUpdate(10, "123", long)}}
	cursor := &memCursor{v: 9}
	convs := newMemConversations()
	msgs := newMemMessages()
	pub := &capturePublisher{failAfter: -1}

	if _, err := newTestSyncer(fetcher, cursor, convs, msgs, pub).Run(context.Background(), 50, 0); err != nil {
		t.Fatalf("run: %v", err)
	}

	stored := msgs.byUpdateID[10]
	if stored == nil {
		t.Fatal("message for update 10 not stored")
	}
	if stored.Content != long {
		t.Errorf("stored %d bytes / %d runes, want the full text untouched",
			len(stored.Content), utf8.RuneCountInString(stored.Content))
	}
}

func TestRunTruncatesOverlongTextByRunes(t *testing.T) {
	long := strings.Repeat("ñ", 5000)
	fetcher := &fakeFetcher{updates: []telegram.Update{textUpdate(10, "123", long)}}
	cursor := &memCursor{v: 9}
	convs := newMemConversations()
	msgs := newMemMessages()
	pub := &capturePublisher{failAfter: -1}

	if _, err := newTestSyncer(fetcher, cursor, convs, msgs, pub).Run(context.Background(), 50, 0); err != nil {
		t.Fatalf("run: %v", err)
	}

	stored := msgs.byUpdateID[10]
	if stored == nil {
		t.Fatal("message for update 10 not stored")
	}
	if got := utf8.RuneCountInString(stored.Content); got != maxContentLen {
		t.Errorf("stored runes = %d, want %d", got, maxContentLen)
	}
	if !utf8.ValidString(stored.Content) {
		t.Error("truncated content must remain valid UTF-8")
	}
}

func TestRunStoreErrorAbortsBatch(t *testing.T) {
	fetcher := &fakeFetcher{updates: []telegram.Update{textUpdate(10, "123", "hola")}}
	cursor := &memCursor{v: 9}
	convs := newMemConversations()
	msgs := newMemMessages()
	msgs.insertErr = errors.New("db down")
	pub := &capturePublisher{failAfter: -1}

	_, err := newTestSyncer(fetcher, cursor, convs, msgs, pub).Run(context.Background(), 50, 0)
	if err == nil {
		t.Fatal("expected store error")
	}
	if cursor.v != 10 {
		t.Errorf("persisted cursor = %d, want 10", cursor.v)
	}
	if len(pub.envs) != 0 {
		t.Error("no event may be published when the store fails")
	}
}
