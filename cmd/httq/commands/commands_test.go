package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TheusHen/HTTQ/httq/config"
	"github.com/TheusHen/HTTQ/httq/identity"
	"github.com/TheusHen/HTTQ/httq/keys"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("httq %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestKeygenAndID(t *testing.T) {
	dir := t.TempDir()
	kf := filepath.Join(dir, "keyring.toml")
	run(t, "keygen", "--scheme", "dilithium3", "--box", "hybrid", "--out", kf)

	kr, err := keys.LoadKeyring(kf)
	if err != nil {
		t.Fatalf("LoadKeyring: %v", err)
	}
	if kr.Signing.Scheme() != keys.Dilithium3 || kr.Box.Name() != "hybrid" {
		t.Fatalf("unexpected keyring %s/%s", kr.Signing.Scheme(), kr.Box.Name())
	}

	out := strings.TrimSpace(run(t, "id", kf))
	id, err := identity.ParseURI(out)
	if err != nil {
		t.Fatalf("ParseURI(%q): %v", out, err)
	}
	if id != kr.Identity() {
		t.Fatalf("id %s, want %s", id, kr.Identity())
	}
}

func TestKeygenRefusesOverwrite(t *testing.T) {
	kf := filepath.Join(t.TempDir(), "keyring.toml")
	run(t, "keygen", "--out", kf)

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"keygen", "--out", kf})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected error overwriting keyring")
	}
	run(t, "keygen", "--out", kf, "--force")
}

func TestInitConfigWithPeerBlock(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "node.toml")
	peerKey := filepath.Join(dir, "peer.toml")
	run(t, "keygen", "--out", filepath.Join(dir, "keyring.toml"))
	run(t, "keygen", "--out", peerKey)
	run(t, "init-config", "--config", cfgPath, "--transport", "grpc", "--listen", "127.0.0.1:0")

	block := run(t, "id", peerKey, "--peer", "--address", "127.0.0.1:7000", "--latency-ms", "4")
	if !strings.Contains(block, "[[peer]]") || !strings.Contains(block, "127.0.0.1:7000") {
		t.Fatalf("unexpected peer block:\n%s", block)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Node.Transport != config.TransportGRPC || cfg.Node.Listen != "127.0.0.1:0" {
		t.Fatalf("unexpected node %+v", cfg.Node)
	}
}
