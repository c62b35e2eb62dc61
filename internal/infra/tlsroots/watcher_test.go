package tlsroots

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWatcher(t *testing.T, kp keyPair) *Watcher {
	t.Helper()
	w, err := NewWatcher(kp.certFile, kp.keyFile, WithLogger(quietLogger()), WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func leaf(t *testing.T, w *Watcher) []byte {
	t.Helper()
	cert, err := w.GetCertificate(nil)
	if err != nil || cert == nil {
		t.Fatalf("GetCertificate() = %v, %v", cert, err)
	}
	return cert.Certificate[0]
}

func TestNewWatcher(t *testing.T) {
	dir := t.TempDir()
	kp := writeKeyPair(t, dir, "master")

	w := newTestWatcher(t, kp)
	if !bytes.Equal(leaf(t, w), kp.cert.Raw) {
		t.Error("GetCertificate() does not serve the loaded certificate")
	}

	client, err := w.GetClientCertificate(nil)
	if err != nil || !bytes.Equal(client.Certificate[0], kp.cert.Raw) {
		t.Errorf("GetClientCertificate() = %v, %v", client, err)
	}
}

func TestNewWatcher_Errors(t *testing.T) {
	dir := t.TempDir()
	a := writeKeyPair(t, dir, "a")
	b := writeKeyPair(t, dir, "b")

	tests := []struct {
		name     string
		certFile string
		keyFile  string
	}{
		{"MissingCert", filepath.Join(dir, "none.crt"), a.keyFile},
		{"MissingKey", a.certFile, filepath.Join(dir, "none.key")},
		{"MismatchedKey", a.certFile, b.keyFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWatcher(tt.certFile, tt.keyFile, WithLogger(quietLogger())); err == nil {
				t.Error("NewWatcher() succeeded")
			}
		})
	}
}

func copyFile(t *testing.T, from, to string) {
	t.Helper()
	data, err := os.ReadFile(from)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if err := os.WriteFile(to, data, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func waitLeaf(t *testing.T, w *Watcher, want []byte) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if bytes.Equal(leaf(t, w), want) {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

func TestWatcher_ReloadsRotatedPair(t *testing.T) {
	dir := t.TempDir()
	kp := writeKeyPair(t, dir, "master")
	w, err := NewWatcher(kp.certFile, kp.keyFile, WithLogger(quietLogger()), WithDebounce(200*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(w.Stop)
	w.StartAsync()
	time.Sleep(100 * time.Millisecond)

	// The key lands first; the pair is mismatched until the certificate
	// follows, which must not leave the old pair stuck in place.
	rotated := writeKeyPair(t, t.TempDir(), "master")
	copyFile(t, rotated.keyFile, kp.keyFile)
	time.Sleep(50 * time.Millisecond)
	copyFile(t, rotated.certFile, kp.certFile)

	if !waitLeaf(t, w, rotated.cert.Raw) {
		t.Fatal("watcher did not pick up the rotated certificate")
	}
	if !w.NotAfter().Equal(rotated.cert.NotAfter) {
		t.Errorf("NotAfter() = %v, want %v", w.NotAfter(), rotated.cert.NotAfter)
	}
}

func TestWatcher_FailedReloadKeepsPair(t *testing.T) {
	dir := t.TempDir()
	kp := writeKeyPair(t, dir, "master")
	w := newTestWatcher(t, kp)
	w.StartAsync()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(kp.certFile, []byte("not a certificate"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if !bytes.Equal(leaf(t, w), kp.cert.Raw) {
		t.Error("a broken rotation replaced the served certificate")
	}
}

func TestWatcher_Relevant(t *testing.T) {
	w := &Watcher{certFile: "/etc/sm/tls.crt", keyFile: "/etc/sm/keys/tls.key"}

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"CertWrite", fsnotify.Event{Name: "/etc/sm/tls.crt", Op: fsnotify.Write}, true},
		{"KeyCreate", fsnotify.Event{Name: "/etc/sm/keys/tls.key", Op: fsnotify.Create}, true},
		{"CertRename", fsnotify.Event{Name: "/etc/sm/tls.crt", Op: fsnotify.Rename}, true},
		{"SecretSwap", fsnotify.Event{Name: "/etc/sm/..data", Op: fsnotify.Create}, true},
		{"Chmod", fsnotify.Event{Name: "/etc/sm/tls.crt", Op: fsnotify.Chmod}, false},
		{"OtherFile", fsnotify.Event{Name: "/etc/sm/ca.crt", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.relevant(tt.ev); got != tt.want {
				t.Errorf("relevant(%v) = %v, want %v", tt.ev, got, tt.want)
			}
		})
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	kp := writeKeyPair(t, t.TempDir(), "master")
	w := newTestWatcher(t, kp)

	errc := make(chan error, 1)
	go func() { errc <- w.Start() }()
	time.Sleep(50 * time.Millisecond)

	w.Stop()
	w.Stop()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}
