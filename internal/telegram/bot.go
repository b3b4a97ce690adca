package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/logger"
	"github.com/hunterwarburton/pantry/internal/pipeline"
)

// Searcher runs the document pipeline.
type Searcher interface {
	Run(ctx context.Context, documentID, query, requesterID string) []core.RankedResult
	Ingest(ctx context.Context, documentID string) (pipeline.IngestReport, error)
	Status(ctx context.Context) (pipeline.Status, error)
}

// Summarizer turns ranked matches into a short answer.
type Summarizer interface {
	Summarize(ctx context.Context, query string, results []core.RankedResult) (string, error)
}

// PolicyService defines the interface for checking user permissions.
type PolicyService interface {
	IsChatAllowed(chatID int64) bool
	IsCommandAllowed(userID int64, command string) bool
}

// messageSender is the part of the Telegram API the bot talks to.
type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// Options configures a Bot.
type Options struct {
	DocumentID string
	Limit      int
	Timeout    time.Duration
}

// Bot represents a Telegram bot.
type Bot struct {
	bot        *bot.Bot
	sender     messageSender
	searcher   Searcher
	summarizer Summarizer
	policy     PolicyService
	opts       Options
	log        logger.Sink
}

// NewBot creates a new bot instance. summarizer may be nil, which disables /ask.
func NewBot(token string, searcher Searcher, summarizer Summarizer, policy PolicyService, opts Options, log logger.Sink) (*Bot, error) {
	b := newBot(nil, searcher, summarizer, policy, opts, log)

	botAPI, err := bot.New(token, bot.WithDefaultHandler(b.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	b.bot = botAPI
	b.sender = botAPI
	return b, nil
}

func newBot(sender messageSender, searcher Searcher, summarizer Summarizer, policy PolicyService, opts Options, log logger.Sink) *Bot {
	if opts.Limit <= 0 {
		opts.Limit = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Bot{
		sender:     sender,
		searcher:   searcher,
		summarizer: summarizer,
		policy:     policy,
		opts:       opts,
		log:        log,
	}
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	b.bot.Start(ctx)
}

// handleUpdate handles a Telegram update.
func (b *Bot) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil {
		return
	}
	message := update.Message
	if !b.policy.IsChatAllowed(message.Chat.ID) {
		b.log.Debugf("Chat[%d]: ignored message from chat outside the allow-list", message.Chat.ID)
		return
	}

	command, args, ok := parseCommand(message.Text)
	if !ok {
		b.log.Debugf("Chat[%d] User[%d]: ignored non-command message", message.Chat.ID, message.From.ID)
		return
	}
	b.handleCommand(ctx, message, command, args)
}

// parseCommand accepts "/cmd args", "/cmd@botname args" and "!search args".
func parseCommand(text string) (command, args string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" || (text[0] != '/' && !strings.HasPrefix(text, "!search")) {
		return "", "", false
	}

	head, rest, _ := strings.Cut(text, " ")
	head = strings.TrimLeft(head, "/!")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(rest), head != ""
}

func (b *Bot) handleCommand(ctx context.Context, message *models.Message, command, args string) {
	chatID := message.Chat.ID
	userID := message.From.ID
	b.log.Infof("Chat[%d] User[%d]: Received command: /%s", chatID, userID, command)

	switch command {
	case "start", "help":
		b.reply(ctx, chatID, helpText(b.summarizer != nil))
		return
	case "search", "ask", "reindex", "status":
	default:
		b.reply(ctx, chatID, "Unknown command. Try /help to see available commands.")
		return
	}

	if !b.policy.IsCommandAllowed(userID, command) {
		b.log.Warnf("Chat[%d] User[%d]: /%s denied", chatID, userID, command)
		b.reply(ctx, chatID, "You are not allowed to use this command.")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	typingDone := make(chan struct{})
	go b.sendContinuousTypingAction(ctx, chatID, typingDone)
	defer close(typingDone)

	switch command {
	case "search":
		if args == "" {
			b.reply(ctx, chatID, "Usage: /search <query>")
			return
		}
		results := b.searcher.Run(ctx, b.opts.DocumentID, args, fmt.Sprint(userID))
		b.reply(ctx, chatID, FormatResults(results, b.opts.Limit))

	case "ask":
		if b.summarizer == nil {
			b.reply(ctx, chatID, "Summaries are not enabled on this bot. Use /search instead.")
			return
		}
		if args == "" {
			b.reply(ctx, chatID, "Usage: /ask <question>")
			return
		}
		results := b.searcher.Run(ctx, b.opts.DocumentID, args, fmt.Sprint(userID))
		answer, err := b.summarizer.Summarize(ctx, args, results)
		if err != nil {
			b.log.Warnf("Chat[%d]: summary unavailable, sending matches: %v", chatID, err)
			b.reply(ctx, chatID, FormatResults(results, b.opts.Limit))
			return
		}
		b.reply(ctx, chatID, truncate(answer, maxMessageLength))

	case "reindex":
		report, err := b.searcher.Ingest(ctx, b.opts.DocumentID)
		if err != nil {
			b.log.Errorf("Chat[%d]: reindex failed: %v", chatID, err)
			b.reply(ctx, chatID, "Reindex failed: "+pipeline.MsgDownloadFailed+".")
			return
		}
		b.reply(ctx, chatID, fmt.Sprintf("Reindexed document: %d chunks, %d embedded, %d skipped, %d stored.",
			report.Chunks, report.Embedded, report.Skipped, report.Stored))

	case "status":
		st, err := b.searcher.Status(ctx)
		if err != nil {
			b.log.Errorf("Chat[%d]: status failed: %v", chatID, err)
			b.reply(ctx, chatID, "Status is unavailable right now.")
			return
		}
		b.reply(ctx, chatID, fmt.Sprintf("Collection %s (index %s) holds %d chunks.", st.Collection, st.Index, st.Records))
	}
}

func helpText(withAsk bool) string {
	text := "Available commands:"
	text += "\n/search <query> - Find the passages of the document closest to your query"
	if withAsk {
		text += "\n/ask <question> - Get a short answer built from the closest passages"
	}
	text += "\n/status - Show how many chunks are stored"
	text += "\n/reindex - Rebuild the collection from the document (admins)"
	text += "\n/help - Show this help message"
	return text
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		b.log.Errorf("Chat[%d]: failed to send message: %v", chatID, err)
	}
}

// sendContinuousTypingAction sends the typing action periodically until the done channel is closed
func (b *Bot) sendContinuousTypingAction(ctx context.Context, chatID int64, done chan struct{}) {
	ticker := time.NewTicker(4 * time.Second) // Telegram typing status lasts ~5 seconds
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_, _ = b.sender.SendChatAction(ctx, &bot.SendChatActionParams{
				ChatID: chatID,
				Action: "typing",
			})
		case <-ctx.Done():
			return
		}
	}
}
