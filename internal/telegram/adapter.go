// Package telegram is the Telegram transport: long-polls for updates,
// forwards them as inbound events and sends deliveries back.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/scriptdesk/internal/types"
)

// Prefix is the channel ID namespace of this transport.
const Prefix = "telegram"

const (
	maxTelegramMessage = 4096
	maxDownloadBytes   = 20 << 20
)

// Adapter bridges Telegram to the inbound handler and implements
// types.Transport.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	handler types.InboundHandler
	client  *http.Client
	logger  *slog.Logger
}

// New creates a Telegram adapter.
func New(token string, handler types.InboundHandler, logger *slog.Logger) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		bot:     bot,
		handler: handler,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger.With("component", "telegram"),
	}, nil
}

// Start long-polls for updates until ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)
	a.logger.Info("telegram adapter started", "bot", a.bot.Self.UserName)

	for {
		select {
		case update := <-updates:
			msg := update.Message
			if msg == nil {
				msg = update.ChannelPost
			}
			if msg == nil {
				continue
			}
			a.handleMessage(ctx, msg)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return nil
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	event := eventFromMessage(msg, a.bot.Self.ID)
	if fileID, mime := audioAttachment(msg); fileID != "" {
		audio, err := a.download(ctx, fileID)
		if err != nil {
			a.logger.Warn("audio download failed", "chat", msg.Chat.ID, "error", err)
		} else {
			event.Audio = audio
			event.AudioMimeType = mime
		}
	}
	if !event.HasContent() {
		return
	}

	if err := a.handler.HandleInbound(ctx, event); err != nil {
		a.logger.Error("handle inbound error", "chat", msg.Chat.ID, "error", err)
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	ch := chatChannel(msg.Chat.ID)

	var reply string
	switch msg.Command() {
	case "start", "help":
		reply = helpText
	case "id":
		reply = "This chat is " + string(ch)
	default:
		reply = "Unknown command. Available: /start, /help, /id"
	}
	if err := a.SendText(ctx, ch, reply); err != nil {
		a.logger.Warn("command reply failed", "chat", msg.Chat.ID, "error", err)
	}
}

const helpText = `Send one of:
topic: <text>  - full editorial script
script: <text>  - script reply
visuals: <text>  - visuals brief
voice: <text> or voice <name>: <text>  - voice note
agenda  - today's headlines, then reply with a number`

// SendText sends body, split to Telegram's message limit. Markdown is
// tried first and dropped if Telegram rejects it.
func (a *Adapter) SendText(_ context.Context, ch types.ChannelID, body string) error {
	chatID, err := parseChat(ch)
	if err != nil {
		return err
	}
	for _, part := range splitMessage(body) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := a.bot.Send(msg); err != nil {
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
		}
	}
	return nil
}

// SendAudio sends audio as a voice note when PushToTalk is set, else as
// an audio file.
func (a *Adapter) SendAudio(_ context.Context, ch types.ChannelID, audio []byte, opts types.AudioOptions) error {
	chatID, err := parseChat(ch)
	if err != nil {
		return err
	}
	name := opts.FileName
	if name == "" {
		name = "audio.mp3"
	}
	file := tgbotapi.FileBytes{Name: name, Bytes: audio}

	var c tgbotapi.Chattable
	if opts.PushToTalk {
		c = tgbotapi.NewVoice(chatID, file)
	} else {
		c = tgbotapi.NewAudio(chatID, file)
	}
	if _, err := a.bot.Send(c); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

// SendReaction sets an emoji reaction on a message. The bot library
// predates setMessageReaction, so the method is called directly.
func (a *Adapter) SendReaction(_ context.Context, ch types.ChannelID, target types.MessageID, emoji string) error {
	params, err := reactionParams(ch, target, emoji)
	if err != nil {
		return err
	}
	if _, err := a.bot.MakeRequest("setMessageReaction", params); err != nil {
		return fmt.Errorf("set reaction: %w", err)
	}
	return nil
}

func (a *Adapter) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := a.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch file: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
}

func eventFromMessage(msg *tgbotapi.Message, selfID int64) *types.InboundEvent {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	ev := &types.InboundEvent{
		MessageID: types.MessageID(strconv.Itoa(msg.MessageID)),
		Source:    Prefix,
		ChannelID: chatChannel(msg.Chat.ID),
		Text:      text,
		Timestamp: msg.Time(),
	}
	if msg.From != nil {
		ev.SenderID = strconv.FormatInt(msg.From.ID, 10)
		ev.SenderIsSelf = msg.From.ID == selfID
	}
	return ev
}

func audioAttachment(msg *tgbotapi.Message) (fileID, mime string) {
	switch {
	case msg.Voice != nil:
		mime = msg.Voice.MimeType
		if mime == "" {
			mime = "audio/ogg"
		}
		return msg.Voice.FileID, mime
	case msg.Audio != nil:
		mime = msg.Audio.MimeType
		if mime == "" {
			mime = "audio/mpeg"
		}
		return msg.Audio.FileID, mime
	}
	return "", ""
}

func reactionParams(ch types.ChannelID, target types.MessageID, emoji string) (tgbotapi.Params, error) {
	chatID, err := parseChat(ch)
	if err != nil {
		return nil, err
	}
	msgID, err := strconv.Atoi(string(target))
	if err != nil {
		return nil, fmt.Errorf("invalid message id %q: %w", target, err)
	}
	reaction, err := json.Marshal([]map[string]string{{"type": "emoji", "emoji": emoji}})
	if err != nil {
		return nil, err
	}
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero("message_id", msgID)
	params["reaction"] = string(reaction)
	return params, nil
}

func chatChannel(chatID int64) types.ChannelID {
	return types.NewChannelID(Prefix, strconv.FormatInt(chatID, 10))
}

func parseChat(ch types.ChannelID) (int64, error) {
	if ch.Transport() != Prefix {
		return 0, fmt.Errorf("invalid telegram channel: %s", ch)
	}
	id, err := strconv.ParseInt(ch.Native(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram channel: %s", ch)
	}
	return id, nil
}

// SplitText implements types.TextSplitter.
func (a *Adapter) SplitText(body string) []string {
	return splitMessage(body)
}

// splitMessage cuts text into parts of at most maxTelegramMessage UTF-16
// code units, the unit Telegram measures message length in. Runes are
// never split.
func splitMessage(text string) []string {
	var parts []string
	start, units := 0, 0
	for i, r := range text {
		n := utf16.RuneLen(r)
		if n < 1 {
			n = 1
		}
		if units+n > maxTelegramMessage {
			parts = append(parts, text[start:i])
			start, units = i, 0
		}
		units += n
	}
	return append(parts, text[start:])
}
