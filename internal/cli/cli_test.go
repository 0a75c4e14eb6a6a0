package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codahale/gubbins/assert"
	"gopkg.in/yaml.v3"

	"santa.share/config"
	"santa.share/internal/api"
	"santa.share/internal/links"
	"santa.share/internal/logging"
	"santa.share/internal/models"
	"santa.share/internal/notify"
	"santa.share/internal/store"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetGlobalState()
	t.Cleanup(resetGlobalState)

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	quiet := logging.Logger{Out: io.Discard, Err: io.Discard}
	cfg := config.Default()
	cfg.RateLimit.Enabled = false

	mem := store.NewMemoryStore(time.Hour)
	t.Cleanup(func() { mem.Close() })

	srv := httptest.NewServer(api.SetupRouter(links.NewStoreBackend(mem, time.Hour), notify.NewMailer(nil, quiet), cfg, quiet))
	t.Cleanup(srv.Close)
	return srv
}

func readShareFile(t *testing.T, path string) []shareEntry {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entries []shareEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		t.Fatal(err)
	}
	return entries
}

// revealAll opens every link once and returns giver name -> receiver.
func revealAll(t *testing.T, entries []shareEntry) map[string]string {
	t.Helper()

	got := make(map[string]string, len(entries))
	for _, e := range entries {
		out, err := run(t, "reveal", e.Link)
		if err != nil {
			t.Fatalf("reveal %s: %v", e.Name, err)
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) < 2 {
			t.Fatalf("unexpected reveal output %q", out)
		}
		receiver, _, _ := strings.Cut(strings.TrimSpace(lines[1]), " (")
		got[e.Name] = receiver
	}
	return got
}

func checkDerangement(t *testing.T, names []string, got map[string]string) {
	t.Helper()

	seen := make(map[string]bool, len(names))
	for _, giver := range names {
		receiver, ok := got[giver]
		if !ok {
			t.Fatalf("no match for %s", giver)
		}
		if receiver == giver {
			t.Errorf("%s drew themself", giver)
		}
		seen[receiver] = true
	}
	assert.Equal(t, "distinct receivers", len(names), len(seen))
}

func TestDrawStateless(t *testing.T) {
	out := filepath.Join(t.TempDir(), "links.yaml")

	stdout, err := run(t, "draw",
		"--mode", "stateless",
		"--server", "https://santa.example",
		"-p", "Alice <alice@example.com>",
		"-p", "Bob",
		"-p", "Carol",
		"-p", "  ",
		"--out", out,
	)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "blind", true, strings.Contains(stdout, "link hidden (blind mode)"))
	assert.Equal(t, "no links printed", false, strings.Contains(stdout, "https://santa.example"))

	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "mode", os.FileMode(0o600), info.Mode().Perm())

	entries := readShareFile(t, out)
	assert.Equal(t, "entries", 3, len(entries))
	assert.Equal(t, "email", "alice@example.com", entries[0].Email)
	for _, e := range entries {
		assert.Equal(t, "stateless link", true, strings.Contains(e.Link, "?data="))
	}

	checkDerangement(t, []string{"Alice", "Bob", "Carol"}, revealAll(t, entries))

	// Stateless links are not burned on read.
	if _, err := run(t, "reveal", entries[1].Link); err != nil {
		t.Errorf("second stateless reveal: %v", err)
	}
}

func TestDrawStoredSingleView(t *testing.T) {
	srv := newServer(t)
	out := filepath.Join(t.TempDir(), "links.yaml")

	stdout, err := run(t, "draw",
		"--mode", "stored",
		"--server", srv.URL,
		"--show-links",
		"-p", "Alice", "-p", "Bob", "-p", "Carol", "-p", "Dave",
		"--out", out,
	)
	if err != nil {
		t.Fatal(err)
	}

	entries := readShareFile(t, out)
	assert.Equal(t, "entries", 4, len(entries))
	for _, e := range entries {
		assert.Equal(t, "link printed", true, strings.Contains(stdout, e.Link))
		assert.Equal(t, "stored link", false, strings.Contains(e.Link, "?data="))
	}

	checkDerangement(t, []string{"Alice", "Bob", "Carol", "Dave"}, revealAll(t, entries))

	if _, err := run(t, "reveal", entries[0].Link); err == nil {
		t.Error("second stored reveal succeeded")
	}
}

func TestDrawFromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "people.yaml")
	err := os.WriteFile(file, []byte(`
- name: Alice
  email: alice@example.com
- name: Bob
- name: ""
`), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	participants, err := collectParticipants(&drawOptions{file: file, participants: []string{"Carol <carol@example.com>"}})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "participants", []models.Participant{
		{Name: "Alice", Email: "alice@example.com"},
		{Name: "Bob"},
		{Name: ""},
		{Name: "Carol", Email: "carol@example.com"},
	}, participants)
}

func TestDrawRejectsTooFew(t *testing.T) {
	_, err := run(t, "draw", "--mode", "stateless", "-p", "Alice", "-p", " ")
	if err == nil {
		t.Fatal("draw with one participant succeeded")
	}
}

func TestDrawRejectsDuplicates(t *testing.T) {
	_, err := run(t, "draw", "--mode", "stateless", "-p", "Alice", "-p", "Alice", "-p", "Bob")
	if err == nil {
		t.Fatal("draw with duplicate names succeeded")
	}
}

func TestDrawSendWithoutMail(t *testing.T) {
	srv := newServer(t)

	_, err := run(t, "draw", "--server", srv.URL, "--send",
		"-p", "Alice <alice@example.com>", "-p", "Bob <bob@example.com>")
	if err == nil {
		t.Fatal("send succeeded without a configured mailer")
	}
}

func TestRevealDenied(t *testing.T) {
	tests := []struct {
		name string
		link string
	}{
		{"missing key", "https://santa.example/reveal/abc"},
		{"not a url", "reveal/abc#key"},
		{"malformed data", "https://santa.example/reveal/abc?data=%7Bnope#AAAA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, "reveal", tt.link); err == nil {
				t.Errorf("reveal %q succeeded", tt.link)
			}
		})
	}
}

func TestRootBanner(t *testing.T) {
	out, err := run(t)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "usage", true, strings.Contains(out, "Usage:"))
	assert.Equal(t, "draw listed", true, strings.Contains(out, "draw"))
}

func TestRevealBase(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://santa.example/reveal/abc#key", "https://santa.example"},
		{"https://santa.example/santa/reveal/abc?data=x#key", "https://santa.example/santa"},
		{"http://127.0.0.1:8080/a/b/reveal/abc/#key", "http://127.0.0.1:8080/a/b"},
	}

	for _, tt := range tests {
		got, err := revealBase(tt.link)
		if err != nil {
			t.Fatalf("%s: %v", tt.link, err)
		}
		assert.Equal(t, "base", tt.want, got)
	}

	if _, err := revealBase("https://santa.example/other/abc#key"); err == nil {
		t.Error("non-reveal link accepted")
	}
}

func TestDrawStoredWithPathPrefix(t *testing.T) {
	srv := newServer(t)
	proxy := httptest.NewServer(http.StripPrefix("/santa", srv.Config.Handler))
	t.Cleanup(proxy.Close)

	out := filepath.Join(t.TempDir(), "links.yaml")
	_, err := run(t, "draw", "--mode", "stored", "--server", proxy.URL+"/santa",
		"-p", "Alice", "-p", "Bob", "-p", "Carol", "--out", out)
	if err != nil {
		t.Fatal(err)
	}

	entries := readShareFile(t, out)
	for _, e := range entries {
		assert.Equal(t, "prefixed link", true, strings.HasPrefix(e.Link, proxy.URL+"/santa/reveal/"))
	}

	checkDerangement(t, []string{"Alice", "Bob", "Carol"}, revealAll(t, entries))
}
