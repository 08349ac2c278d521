package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/chatsentry/chatsentry/internal/bus"
)

const eventBufferSize = 64

// WhatsApp is the native WhatsApp session adapter. Automatic reconnects
// are disabled so the manager alone owns retry policy.
type WhatsApp struct {
	dbPath    string
	container *sqlstore.Container
	client    *whatsmeow.Client
	events    chan Event

	mu     sync.Mutex
	groups map[string]groupMeta
}

type groupMeta struct {
	name         string
	participants int
}

// NewWhatsApp creates an adapter backed by a device store at dbPath.
func NewWhatsApp(dbPath string) *WhatsApp {
	return &WhatsApp{
		dbPath: dbPath,
		events: make(chan Event, eventBufferSize),
		groups: make(map[string]groupMeta),
	}
}

func (w *WhatsApp) Events() <-chan Event { return w.events }

// Connect initializes the client on first use and opens the socket.
// When no device session exists yet, pairing codes are forwarded as
// credential challenges.
func (w *WhatsApp) Connect(ctx context.Context) error {
	if w.client == nil {
		if err := w.initClient(ctx); err != nil {
			return err
		}
	}

	if w.client.Store.ID == nil {
		qrChan, err := w.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("failed to open pairing channel: %w", err)
		}
		go w.forwardChallenges(qrChan)
	}

	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

func (w *WhatsApp) initClient(ctx context.Context) error {
	dbLog := waLog.Stdout("Database", "WARN", true)
	clientLog := waLog.Stdout("Client", "WARN", true)

	container, err := sqlstore.New(ctx, "sqlite", "file:"+w.dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbLog)
	if err != nil {
		return fmt.Errorf("failed to init device store: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}

	w.container = container
	w.client = whatsmeow.NewClient(deviceStore, clientLog)
	w.client.EnableAutoReconnect = false
	w.client.AddEventHandler(w.handleEvent)
	return nil
}

// Disconnect closes the socket without tearing down the device store,
// so a later Connect resumes the same session.
func (w *WhatsApp) Disconnect() {
	if w.client != nil {
		w.client.Disconnect()
	}
}

// Close releases the device store. The adapter is unusable afterwards.
func (w *WhatsApp) Close() error {
	w.Disconnect()
	if w.container != nil {
		return w.container.Close()
	}
	return nil
}

// SendText delivers a plain text message to a chat.
func (w *WhatsApp) SendText(ctx context.Context, chatID, text string) error {
	if w.client == nil {
		return fmt.Errorf("client not initialized")
	}
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("invalid JID: %w", err)
	}
	_, err = w.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	return err
}

func (w *WhatsApp) forwardChallenges(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		if item.Event != "code" {
			continue
		}
		w.emit(CredentialChallenge{Code: item.Code, Timeout: item.Timeout})
	}
}

func (w *WhatsApp) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		w.emit(SessionOpened{})
	case *events.Disconnected:
		w.emit(SessionClosed{Reason: ReasonDisconnected})
	case *events.StreamError:
		w.emit(SessionClosed{Reason: ReasonStreamError})
	case *events.ConnectFailure:
		w.emit(SessionClosed{Reason: ReasonConnectFailed})
	case *events.LoggedOut:
		w.emit(SessionClosed{Reason: ReasonLoggedOut})
	case *events.StreamReplaced:
		w.emit(SessionClosed{Reason: ReasonStreamReplaced})
	case *events.Message:
		w.handleMessage(v)
	}
}

func (w *WhatsApp) handleMessage(v *events.Message) {
	if v.Info.IsFromMe {
		return
	}
	content := extractText(v)
	if content == "" {
		return
	}

	msg := &bus.InboundEvent{
		ExternalID: v.Info.ID,
		ChatID:     v.Info.Chat.String(),
		ChatName:   v.Info.Chat.User,
		ChatKind:   bus.ChatKindDirect,
		SenderID:   v.Info.Sender.User,
		Content:    content,
		Timestamp:  v.Info.Timestamp,
	}
	if v.Info.IsGroup {
		msg.ChatKind = bus.ChatKindGroup
		meta := w.lookupGroup(v.Info.Chat)
		if meta.name != "" {
			msg.ChatName = meta.name
		}
		msg.ParticipantCount = meta.participants
	}
	w.emit(MessageReceived{Message: msg})
}

func extractText(v *events.Message) string {
	if t := v.Message.GetConversation(); t != "" {
		return t
	}
	return v.Message.GetExtendedTextMessage().GetText()
}

// lookupGroup resolves group name and size, cached per chat. Lookups are
// best effort and never block message delivery for long.
func (w *WhatsApp) lookupGroup(chat types.JID) groupMeta {
	w.mu.Lock()
	meta, ok := w.groups[chat.String()]
	w.mu.Unlock()
	if ok {
		return meta
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	info, err := w.client.GetGroupInfo(ctx, chat)
	if err != nil {
		slog.Debug("Group info lookup failed", "chat", chat.String(), "error", err)
		return groupMeta{}
	}
	meta = groupMeta{name: info.GroupName.Name, participants: len(info.Participants)}
	w.mu.Lock()
	w.groups[chat.String()] = meta
	w.mu.Unlock()
	return meta
}

func (w *WhatsApp) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
		slog.Warn("Connector event buffer full; dropping event", "event", fmt.Sprintf("%T", ev))
	}
}
