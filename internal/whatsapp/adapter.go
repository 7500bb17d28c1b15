// Package whatsapp is the WhatsApp transport built on whatsmeow. It pairs
// as a linked device, forwards chat messages as inbound events and sends
// text, voice notes and reactions back.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3" // device store driver

	"github.com/user/scriptdesk/internal/types"
)

// Prefix is the channel ID namespace of this transport.
const Prefix = "whatsapp"

const groupPrefix = "group:"

// ErrNotConnected is returned by sends issued before Start.
var ErrNotConnected = errors.New("whatsapp not connected")

// Adapter bridges WhatsApp to the inbound handler and implements
// types.Transport.
type Adapter struct {
	dataDir string
	handler types.InboundHandler
	logger  *slog.Logger

	client *whatsmeow.Client
	ctx    context.Context

	senders *senderCache

	mu      sync.Mutex
	aliases map[string]types.ChannelID // lowercased group name -> alias channel
	byName  map[string]waTypes.JID
	byJID   map[string]types.ChannelID
}

// New creates a WhatsApp adapter. The device session is kept in
// <dataDir>/whatsapp.db.
func New(dataDir string, handler types.InboundHandler, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		dataDir: dataDir,
		handler: handler,
		logger:  logger.With("component", "whatsapp"),
		senders: newSenderCache(512),
		aliases: make(map[string]types.ChannelID),
		byName:  make(map[string]waTypes.JID),
		byJID:   make(map[string]types.ChannelID),
	}
}

// Alias registers a channel of the form "whatsapp:group:<name>". Once
// connected, the group is resolved to its JID; inbound messages from it
// carry the alias and outbound deliveries to the alias reach it.
func (a *Adapter) Alias(ch types.ChannelID) {
	name, ok := groupName(ch)
	if !ok {
		return
	}
	a.mu.Lock()
	a.aliases[strings.ToLower(name)] = ch
	a.mu.Unlock()
}

// Start connects, pairing by QR code when no session exists, and keeps
// the connection until ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) error {
	a.ctx = ctx

	dbPath := filepath.Join(a.dataDir, "whatsapp.db")
	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", dbPath), waLog.Noop)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}

	device, err := getDevice(ctx, container)
	if err != nil {
		return fmt.Errorf("get device: %w", err)
	}
	store.SetOSInfo("Scriptdesk", [3]uint32{1, 0, 0})

	a.client = whatsmeow.NewClient(device, waLog.Noop)
	a.client.AddEventHandler(a.handleEvent)
	a.client.EnableAutoReconnect = true

	if a.client.Store.ID == nil {
		if err := a.pair(ctx); err != nil {
			return err
		}
	} else if err := a.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	a.logger.Info("whatsapp adapter started")

	<-ctx.Done()
	a.client.Disconnect()
	return nil
}

func getDevice(ctx context.Context, container *sqlstore.Container) (*store.Device, error) {
	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return container.NewDevice(), nil
}

// pair runs the QR login. Each code is logged and written to
// <dataDir>/whatsapp-qr.txt for scanning from another terminal.
func (a *Adapter) pair(ctx context.Context) error {
	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get QR channel: %w", err)
	}
	if err := a.client.Connect(); err != nil {
		return fmt.Errorf("connect for QR: %w", err)
	}

	qrPath := filepath.Join(a.dataDir, "whatsapp-qr.txt")
	go func() {
		for evt := range qrChan {
			switch evt.Event {
			case "code":
				a.logger.Info("scan QR code to link device", "code", evt.Code, "file", qrPath)
				if err := os.WriteFile(qrPath, []byte(evt.Code+"\n"), 0600); err != nil {
					a.logger.Warn("write QR file failed", "error", err)
				}
			case "success":
				a.logger.Info("device linked")
				os.Remove(qrPath)
			default:
				a.logger.Warn("QR pairing ended", "event", evt.Event)
			}
		}
	}()
	return nil
}

func (a *Adapter) handleEvent(raw any) {
	switch evt := raw.(type) {
	case *events.Message:
		a.handleMessage(evt)
	case *events.Connected:
		a.logger.Info("connected")
		if err := a.refreshGroups(a.ctx); err != nil {
			a.logger.Warn("resolve groups failed", "error", err)
		}
	case *events.Disconnected:
		a.logger.Warn("disconnected")
	case *events.LoggedOut:
		a.logger.Error("logged out, pairing required on next start", "reason", evt.Reason)
	case *events.PairSuccess:
		a.logger.Info("paired", "jid", evt.ID.String())
	}
}

func (a *Adapter) handleMessage(evt *events.Message) {
	if evt.Info.Chat.Server == waTypes.BroadcastServer {
		return
	}
	a.senders.put(types.MessageID(evt.Info.ID), evt.Info.Sender)

	ev := eventFromMessage(evt, a.channelFor(evt.Info.Chat))
	if audio := evt.Message.GetAudioMessage(); audio != nil {
		data, err := a.client.Download(a.ctx, audio)
		if err != nil {
			a.logger.Warn("audio download failed", "chat", evt.Info.Chat.String(), "error", err)
		} else {
			ev.Audio = data
			ev.AudioMimeType = audio.GetMimetype()
		}
	}
	if !ev.HasContent() {
		return
	}
	if err := a.handler.HandleInbound(a.ctx, ev); err != nil {
		a.logger.Error("handle inbound error", "chat", evt.Info.Chat.String(), "error", err)
	}
}

// channelFor returns the alias of a resolved group, or whatsapp:<jid>.
func (a *Adapter) channelFor(chat waTypes.JID) types.ChannelID {
	a.mu.Lock()
	defer a.mu.Unlock()
	if alias, ok := a.byJID[chat.String()]; ok {
		return alias
	}
	return types.NewChannelID(Prefix, chat.String())
}

func (a *Adapter) refreshGroups(ctx context.Context) error {
	a.mu.Lock()
	empty := len(a.aliases) == 0
	a.mu.Unlock()
	if empty {
		return nil
	}

	groups, err := a.client.GetJoinedGroups(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, g := range groups {
		key := strings.ToLower(g.Name)
		alias, ok := a.aliases[key]
		if !ok {
			continue
		}
		a.byName[key] = g.JID
		a.byJID[g.JID.String()] = alias
		a.logger.Info("group resolved", "channel", alias, "jid", g.JID.String())
	}
	for key, alias := range a.aliases {
		if _, ok := a.byName[key]; !ok {
			a.logger.Warn("group not found", "channel", alias)
		}
	}
	return nil
}

// resolve maps a channel to the chat JID, looking group aliases up by
// name.
func (a *Adapter) resolve(ctx context.Context, ch types.ChannelID) (waTypes.JID, error) {
	if ch.Transport() != Prefix {
		return waTypes.JID{}, fmt.Errorf("invalid whatsapp channel: %s", ch)
	}
	if a.client == nil {
		return waTypes.JID{}, ErrNotConnected
	}
	name, ok := groupName(ch)
	if !ok {
		return parseJID(ch.Native())
	}

	key := strings.ToLower(name)
	a.mu.Lock()
	jid, found := a.byName[key]
	if _, known := a.aliases[key]; !known {
		a.aliases[key] = ch
	}
	a.mu.Unlock()
	if found {
		return jid, nil
	}

	if err := a.refreshGroups(ctx); err != nil {
		return waTypes.JID{}, err
	}
	a.mu.Lock()
	jid, found = a.byName[key]
	a.mu.Unlock()
	if !found {
		return waTypes.JID{}, fmt.Errorf("group not found: %s", name)
	}
	return jid, nil
}

// SendText sends body as a plain conversation message.
func (a *Adapter) SendText(ctx context.Context, ch types.ChannelID, body string) error {
	jid, err := a.resolve(ctx, ch)
	if err != nil {
		return err
	}
	msg := &waE2E.Message{Conversation: proto.String(body)}
	if _, err := a.client.SendMessage(ctx, jid, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendAudio uploads audio and sends it as an audio message, rendered as a
// voice note when PushToTalk is set.
func (a *Adapter) SendAudio(ctx context.Context, ch types.ChannelID, audio []byte, opts types.AudioOptions) error {
	jid, err := a.resolve(ctx, ch)
	if err != nil {
		return err
	}
	up, err := a.client.Upload(ctx, audio, whatsmeow.MediaAudio)
	if err != nil {
		return fmt.Errorf("upload audio: %w", err)
	}
	msg := &waE2E.Message{AudioMessage: audioMessage(up, opts)}
	if _, err := a.client.SendMessage(ctx, jid, msg); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

// SendReaction reacts to a message seen earlier on this connection.
func (a *Adapter) SendReaction(ctx context.Context, ch types.ChannelID, target types.MessageID, emoji string) error {
	jid, err := a.resolve(ctx, ch)
	if err != nil {
		return err
	}
	sender, _ := a.senders.get(target)
	msg := a.client.BuildReaction(jid, sender, waTypes.MessageID(target), emoji)
	if _, err := a.client.SendMessage(ctx, jid, msg); err != nil {
		return fmt.Errorf("send reaction: %w", err)
	}
	return nil
}

func eventFromMessage(evt *events.Message, ch types.ChannelID) *types.InboundEvent {
	return &types.InboundEvent{
		MessageID:    types.MessageID(evt.Info.ID),
		Source:       Prefix,
		ChannelID:    ch,
		SenderID:     evt.Info.Sender.String(),
		SenderIsSelf: evt.Info.IsFromMe,
		Text:         messageText(evt.Message),
		Timestamp:    evt.Info.Timestamp,
	}
}

func messageText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Conversation != nil {
		return msg.GetConversation()
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

func audioMessage(up whatsmeow.UploadResponse, opts types.AudioOptions) *waE2E.AudioMessage {
	mime := opts.MimeType
	if mime == "" {
		mime = "audio/mpeg"
	}
	return &waE2E.AudioMessage{
		URL:           proto.String(up.URL),
		DirectPath:    proto.String(up.DirectPath),
		MediaKey:      up.MediaKey,
		Mimetype:      proto.String(mime),
		FileEncSHA256: up.FileEncSHA256,
		FileSHA256:    up.FileSHA256,
		FileLength:    proto.Uint64(up.FileLength),
		PTT:           proto.Bool(opts.PushToTalk),
	}
}

func groupName(ch types.ChannelID) (string, bool) {
	if ch.Transport() != Prefix {
		return "", false
	}
	name, ok := strings.CutPrefix(ch.Native(), groupPrefix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// parseJID accepts a full JID or a bare phone number.
func parseJID(s string) (waTypes.JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return waTypes.JID{}, fmt.Errorf("empty JID")
	}
	if strings.Contains(s, "@") {
		return waTypes.ParseJID(s)
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) < 7 {
		return waTypes.JID{}, fmt.Errorf("invalid phone number: %s", s)
	}
	return waTypes.NewJID(digits, waTypes.DefaultUserServer), nil
}

// senderCache remembers the sender of recent messages so reactions can
// address them. Oldest entries are evicted first.
type senderCache struct {
	mu    sync.Mutex
	limit int
	order []types.MessageID
	jids  map[types.MessageID]waTypes.JID
}

func newSenderCache(limit int) *senderCache {
	return &senderCache{limit: limit, jids: make(map[types.MessageID]waTypes.JID)}
}

func (c *senderCache) put(id types.MessageID, sender waTypes.JID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.jids[id]; !ok {
		c.order = append(c.order, id)
	}
	c.jids[id] = sender
	for len(c.order) > c.limit {
		delete(c.jids, c.order[0])
		c.order = c.order[1:]
	}
}

func (c *senderCache) get(id types.MessageID) (waTypes.JID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	jid, ok := c.jids[id]
	return jid, ok
}
