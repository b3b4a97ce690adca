package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunterwarburton/pantry/internal/auth"
	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/pipeline"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*bot.SendMessageParams
}

func (f *fakeSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	return &models.Message{}, nil
}

func (f *fakeSender) SendChatAction(context.Context, *bot.SendChatActionParams) (bool, error) {
	return true, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, p := range f.sent {
		out[i] = p.Text
	}
	return out
}

type fakeSearcher struct {
	results   []core.RankedResult
	report    pipeline.IngestReport
	ingestErr error
	status    pipeline.Status

	queries    []string
	requesters []string
	ingested   int
}

func (f *fakeSearcher) Run(_ context.Context, _, query, requesterID string) []core.RankedResult {
	f.queries = append(f.queries, query)
	f.requesters = append(f.requesters, requesterID)
	return f.results
}

func (f *fakeSearcher) Ingest(context.Context, string) (pipeline.IngestReport, error) {
	f.ingested++
	return f.report, f.ingestErr
}

func (f *fakeSearcher) Status(context.Context) (pipeline.Status, error) {
	return f.status, nil
}

type fakeSummarizer struct {
	answer string
	err    error
}

func (f *fakeSummarizer) Summarize(context.Context, string, []core.RankedResult) (string, error) {
	return f.answer, f.err
}

func update(chatID, userID int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{
		ID:   1,
		Chat: models.Chat{ID: chatID},
		From: &models.User{ID: userID},
		Text: text,
	}}
}

func newTestBot(s *fakeSearcher, sum Summarizer) (*Bot, *fakeSender) {
	sender := &fakeSender{}
	policy := auth.NewPolicyService([]int64{1}, []int64{2}, []int64{100})
	return newBot(sender, s, sum, policy, Options{DocumentID: "doc", Limit: 3, Timeout: time.Second}, nil), sender
}

func TestParseCommand(t *testing.T) {
	cmd, args, ok := parseCommand("/search where is rice")
	assert.True(t, ok)
	assert.Equal(t, "search", cmd)
	assert.Equal(t, "where is rice", args)

	cmd, args, ok = parseCommand("!search beans")
	assert.True(t, ok)
	assert.Equal(t, "search", cmd)
	assert.Equal(t, "beans", args)

	cmd, _, ok = parseCommand("/Status@pantry_bot")
	assert.True(t, ok)
	assert.Equal(t, "status", cmd)

	_, _, ok = parseCommand("hello there")
	assert.False(t, ok)
	_, _, ok = parseCommand("/")
	assert.False(t, ok)
}

func TestBot_Search(t *testing.T) {
	s := &fakeSearcher{results: []core.RankedResult{{Text: "Rice is on shelf B.", Similarity: 0.91}}}
	b, sender := newTestBot(s, nil)

	b.handleUpdate(context.Background(), nil, update(100, 2, "/search where is the rice"))

	assert.Equal(t, []string{"where is the rice"}, s.queries)
	assert.Equal(t, []string{"2"}, s.requesters)
	require.Len(t, sender.texts(), 1)
	assert.Contains(t, sender.texts()[0], "Top Match (Similarity: 0.91)")
}

func TestBot_IgnoresOtherChats(t *testing.T) {
	s := &fakeSearcher{}
	b, sender := newTestBot(s, nil)

	b.handleUpdate(context.Background(), nil, update(999, 2, "/search rice"))
	b.handleUpdate(context.Background(), nil, update(100, 2, "just chatting"))

	assert.Empty(t, s.queries)
	assert.Empty(t, sender.texts())
}

func TestBot_DeniesUnknownUser(t *testing.T) {
	s := &fakeSearcher{}
	b, sender := newTestBot(s, nil)

	b.handleUpdate(context.Background(), nil, update(100, 3, "/search rice"))

	assert.Empty(t, s.queries)
	assert.Equal(t, []string{"You are not allowed to use this command."}, sender.texts())
}

func TestBot_SearchUsage(t *testing.T) {
	b, sender := newTestBot(&fakeSearcher{}, nil)

	b.handleUpdate(context.Background(), nil, update(100, 2, "/search   "))
	assert.Equal(t, []string{"Usage: /search <query>"}, sender.texts())
}

func TestBot_Reindex(t *testing.T) {
	s := &fakeSearcher{report: pipeline.IngestReport{Chunks: 5, Embedded: 4, Skipped: 1, Stored: 4}}
	b, sender := newTestBot(s, nil)

	b.handleUpdate(context.Background(), nil, update(100, 2, "/reindex"))
	assert.Equal(t, 0, s.ingested)

	b.handleUpdate(context.Background(), nil, update(100, 1, "/reindex"))
	assert.Equal(t, 1, s.ingested)

	texts := sender.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "You are not allowed to use this command.", texts[0])
	assert.Equal(t, "Reindexed document: 5 chunks, 4 embedded, 1 skipped, 4 stored.", texts[1])
}

func TestBot_ReindexFailureHidesError(t *testing.T) {
	s := &fakeSearcher{ingestErr: errors.New("googleapi: Error 403: secret detail")}
	b, sender := newTestBot(s, nil)

	b.handleUpdate(context.Background(), nil, update(100, 1, "/reindex"))
	require.Len(t, sender.texts(), 1)
	assert.NotContains(t, sender.texts()[0], "secret detail")
}

func TestBot_Status(t *testing.T) {
	s := &fakeSearcher{status: pipeline.Status{Collection: "Vector", Index: "cvector", Records: 12}}
	b, sender := newTestBot(s, nil)

	b.handleUpdate(context.Background(), nil, update(100, 2, "/status"))
	assert.Equal(t, []string{"Collection Vector (index cvector) holds 12 chunks."}, sender.texts())
}

func TestBot_Ask(t *testing.T) {
	s := &fakeSearcher{results: []core.RankedResult{{Text: "Rice is on shelf B.", Similarity: 0.91}}}
	b, sender := newTestBot(s, &fakeSummarizer{answer: "Shelf B."})

	b.handleUpdate(context.Background(), nil, update(100, 2, "/ask where is the rice?"))
	assert.Equal(t, []string{"Shelf B."}, sender.texts())
}

func TestBot_AskFallsBackToMatches(t *testing.T) {
	s := &fakeSearcher{results: []core.RankedResult{{Text: "Rice is on shelf B.", Similarity: 0.91}}}
	b, sender := newTestBot(s, &fakeSummarizer{err: errors.New("rate limited")})

	b.handleUpdate(context.Background(), nil, update(100, 2, "/ask where is the rice?"))
	require.Len(t, sender.texts(), 1)
	assert.Contains(t, sender.texts()[0], "Top Match")
}

func TestBot_AskDisabled(t *testing.T) {
	s := &fakeSearcher{}
	b, sender := newTestBot(s, nil)

	b.handleUpdate(context.Background(), nil, update(100, 2, "/ask anything"))
	assert.Empty(t, s.queries)
	assert.Contains(t, sender.texts()[0], "not enabled")
}

func TestBot_HelpAndUnknown(t *testing.T) {
	b, sender := newTestBot(&fakeSearcher{}, nil)

	b.handleUpdate(context.Background(), nil, update(100, 3, "/help"))
	b.handleUpdate(context.Background(), nil, update(100, 3, "/dance"))

	texts := sender.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "/search <query>")
	assert.NotContains(t, texts[0], "/ask")
	assert.Contains(t, texts[1], "Unknown command")
}
