package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smart1986/go-sessionlink/storage"
)

type captureNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *captureNotifier) Push(x Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, x)
	n.mu.Unlock()
}

func (n *captureNotifier) snapshot() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notice, len(n.notices))
	copy(out, n.notices)
	return out
}

// flakyStore deletes but still reports errors for flagged keys.
type flakyStore struct {
	*storage.MemoryStore
	failing map[string]bool
}

func (f *flakyStore) Delete(key string) error {
	_ = f.MemoryStore.Delete(key)
	if f.failing[key] {
		return fmt.Errorf("simulated failure for %s", key)
	}
	return nil
}

func seedLogin(t *testing.T, store storage.Store) {
	t.Helper()
	pairs := map[string]string{
		storage.KeyToken:        "tok-1",
		storage.KeyUserInfo:     `{"id":1}`,
		storage.KeyIsLoggedIn:   "true",
		storage.KeyUserType:     "staff",
		storage.KeyUsername:     "alice",
		storage.KeyIsAdmin:      "false",
		storage.KeyUserRole:     "operator",
		storage.KeyRememberUser: "alice",
		storage.KeyRememberMode: "password",
	}
	for k, v := range pairs {
		if err := store.Set(k, v); err != nil {
			t.Fatal(err)
		}
	}
}

func fastIntegration(client *Client, store storage.Store, notifier Notifier, navigated chan string) *Integration {
	return NewIntegration(client, store, notifier, func(target string) {
		select {
		case navigated <- target:
		default:
		}
	}, IntegrationConfig{
		CountdownTicks: 5,
		CountdownTick:  30 * time.Millisecond,
		LogoutDelay:    15 * time.Millisecond,
		NavigateDelay:  10 * time.Millisecond,
	})
}

func TestKickedCountdownToLogout(t *testing.T) {
	store := storage.NewMemoryStore()
	seedLogin(t, store)
	notifier := &captureNotifier{}
	navigated := make(chan string, 4)
	client := NewClient(ClientConfig{Origin: "http://127.0.0.1:1"}, nil)
	fastIntegration(client, store, notifier, navigated)

	client.Bus().Emit(EventKickedOut, &Envelope{
		Type:     MsgKickedOut,
		Message:  "您已被踢出",
		Reason:   "多地登录",
		KickedBy: "admin",
	})

	select {
	case target := <-navigated:
		if target != "/#/login" {
			t.Fatalf("unexpected navigation target: %s", target)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("logout sequence never reached the navigation signal")
	}

	notices := notifier.snapshot()
	if len(notices) != 6 {
		t.Fatalf("expected 5 countdown renders + 1 final, got %d", len(notices))
	}
	for i := 0; i < 5; i++ {
		want := fmt.Sprintf("%d秒后自动退出", 5-i)
		if !strings.Contains(notices[i].Content, want) {
			t.Fatalf("render %d missing %q: %q", i, want, notices[i].Content)
		}
		if !strings.Contains(notices[i].Content, "您已被踢出") {
			t.Fatalf("render %d missing kick message: %q", i, notices[i].Content)
		}
		if notices[i].Key != "kick-out-notification" {
			t.Fatalf("render %d wrong key: %q", i, notices[i].Key)
		}
	}
	final := notices[5]
	if !strings.Contains(final.Content, "正在退出登录") {
		t.Fatalf("final render wrong: %q", final.Content)
	}
	if !strings.Contains(final.Description, "多地登录") || !strings.Contains(final.Description, "admin") {
		t.Fatalf("final description wrong: %q", final.Description)
	}

	for _, key := range storage.SessionKeys {
		if _, err := store.Get(key); err == nil {
			t.Fatalf("session key %s not cleared", key)
		}
	}
}

func TestForcedLogoutUsesOwnNoticeKey(t *testing.T) {
	store := storage.NewMemoryStore()
	seedLogin(t, store)
	notifier := &captureNotifier{}
	navigated := make(chan string, 4)
	client := NewClient(ClientConfig{Origin: "http://127.0.0.1:1"}, nil)
	fastIntegration(client, store, notifier, navigated)

	client.Bus().Emit(EventForcedLogout, &Envelope{
		Type:    MsgForceLogout,
		Message: "您已被强制退出系统",
		Reason:  "系统维护",
	})

	select {
	case <-navigated:
	case <-time.After(2 * time.Second):
		t.Fatal("forced logout never navigated")
	}

	notices := notifier.snapshot()
	if len(notices) == 0 {
		t.Fatal("no notices rendered")
	}
	for _, n := range notices {
		if n.Key != "force-logout-notification" {
			t.Fatalf("wrong notice key: %q", n.Key)
		}
		if n.Level != LevelWarn {
			t.Fatalf("forced logout should warn, got level %d", n.Level)
		}
	}
}

func TestEarlyDismissalLogsOutOnce(t *testing.T) {
	store := storage.NewMemoryStore()
	seedLogin(t, store)
	notifier := &captureNotifier{}
	navigated := make(chan string, 16)
	client := NewClient(ClientConfig{Origin: "http://127.0.0.1:1"}, nil)
	fastIntegration(client, store, notifier, navigated)

	client.Bus().Emit(EventKickedOut, &Envelope{
		Type:    MsgKickedOut,
		Message: "您已被踢出",
		Reason:  "多地登录",
	})

	// dismiss the first render before the countdown finishes
	notices := notifier.snapshot()
	if len(notices) == 0 {
		t.Fatal("initial render missing")
	}
	notices[0].OnClose()

	select {
	case <-navigated:
	case <-time.After(2 * time.Second):
		t.Fatal("dismissal did not trigger logout")
	}

	// let the whole countdown window pass; the superseded timer must stay dead
	time.Sleep(400 * time.Millisecond)
	if len(navigated) != 0 {
		t.Fatalf("logout ran more than once, %d extra navigations", len(navigated))
	}
	if _, err := store.Get(storage.KeyToken); err == nil {
		t.Fatal("token not cleared")
	}
}

func TestLogoutClearsKeysDespiteFailures(t *testing.T) {
	store := &flakyStore{
		MemoryStore: storage.NewMemoryStore(),
		failing: map[string]bool{
			storage.KeyUserInfo: true,
			storage.KeyUserRole: true,
		},
	}
	seedLogin(t, store)
	navigated := make(chan string, 4)
	client := NewClient(ClientConfig{Origin: "http://127.0.0.1:1"}, nil)
	i := fastIntegration(client, store, &captureNotifier{}, navigated)

	i.PerformLogout(LogoutKicked)

	select {
	case <-navigated:
	case <-time.After(2 * time.Second):
		t.Fatal("navigation must fire even when key removal fails")
	}
	for _, key := range storage.SessionKeys {
		if _, err := store.Get(key); err == nil {
			t.Fatalf("session key %s survived logout", key)
		}
	}
}

type panicNotifier struct{}

func (panicNotifier) Push(Notice) { panic("render exploded") }

func TestLogoutNavigatesDespitePanickingNotifier(t *testing.T) {
	store := storage.NewMemoryStore()
	seedLogin(t, store)
	navigated := make(chan string, 4)
	client := NewClient(ClientConfig{Origin: "http://127.0.0.1:1"}, nil)
	i := fastIntegration(client, store, panicNotifier{}, navigated)

	i.PerformLogout(LogoutNormal)

	select {
	case <-navigated:
	case <-time.After(2 * time.Second):
		t.Fatal("navigation must fire even when the notifier panics")
	}
}

func TestInitializeIdempotent(t *testing.T) {
	srv := newWSTestServer(t)
	store := storage.NewMemoryStore()
	seedLogin(t, store)

	bus := NewDispatcher()
	connected := signalOn(bus, EventConnected)
	client := NewClient(ClientConfig{Origin: srv.srv.URL}, bus)
	defer client.Disconnect()
	navigated := make(chan string, 4)
	i := fastIntegration(client, store, &captureNotifier{}, navigated)

	i.Initialize()
	waitFor(t, connected, "connected event")
	if srv.hitCount() != 1 {
		t.Fatalf("expected one handshake, got %d", srv.hitCount())
	}

	i.Initialize()
	time.Sleep(100 * time.Millisecond)
	if srv.hitCount() != 1 {
		t.Fatalf("second Initialize must not reconnect while connected, got %d", srv.hitCount())
	}

	client.Disconnect()
	i.Initialize()
	waitFor(t, connected, "reconnect after Initialize")
	if srv.hitCount() != 2 {
		t.Fatalf("expected exactly one repair reconnect, got %d", srv.hitCount())
	}
}

func TestInitializeSkipsWhenLoggedOut(t *testing.T) {
	store := storage.NewMemoryStore()
	client := NewClient(ClientConfig{Origin: "http://127.0.0.1:1"}, nil)
	i := fastIntegration(client, store, &captureNotifier{}, make(chan string, 1))

	i.Initialize()
	time.Sleep(50 * time.Millisecond)
	if client.Status() == StateConnecting || client.IsConnected() {
		t.Fatal("must not connect without persisted login state")
	}
}

func TestResetAllowsFreshSession(t *testing.T) {
	srv := newWSTestServer(t)
	store := storage.NewMemoryStore()
	seedLogin(t, store)

	bus := NewDispatcher()
	connected := signalOn(bus, EventConnected)
	client := NewClient(ClientConfig{Origin: srv.srv.URL}, bus)
	defer client.Disconnect()
	i := fastIntegration(client, store, &captureNotifier{}, make(chan string, 1))

	i.Initialize()
	waitFor(t, connected, "connected event")

	i.Reset()
	if client.IsConnected() {
		t.Fatal("Reset must disconnect")
	}

	i.Initialize()
	waitFor(t, connected, "connect after Reset")
}
