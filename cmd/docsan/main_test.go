package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/raaihank/doc-sanitizer/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dir      string
	config   string
	profiles string

	mu      sync.Mutex
	prompts []string
}

func (env *testEnv) recorded() []string {
	env.mu.Lock()
	defer env.mu.Unlock()
	return append([]string(nil), env.prompts...)
}

// newTestEnv writes a config pointing at temp storage and a stub model endpoint
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{dir: t.TempDir()}
	env.profiles = filepath.Join(env.dir, "profiles.json")

	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"models": []map[string]string{{"name": "phi4:14b"}},
			})
		case "/api/generate":
			var req struct {
				Prompt string `json:"prompt"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			env.mu.Lock()
			env.prompts = append(env.prompts, req.Prompt)
			env.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]interface{}{"response": "Dear [NAME], all clear.", "done": true})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ollama.Close)

	env.config = filepath.Join(env.dir, "config.yaml")
	cfg := fmt.Sprintf(`profiles:
  backend: file
  path: %s
files:
  dir: %s
upstream:
  ollama: %s
  rate_limit: 0
logging:
  level: info
  format: console
  file:
    enabled: false
`, env.profiles, filepath.Join(env.dir, "uploads"), ollama.URL)
	require.NoError(t, os.WriteFile(env.config, []byte(cfg), 0o600))
	return env
}

func (env *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", env.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestProfilesListBootstrapsDefault(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "profiles", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "default")
	assert.Contains(t, out, "person_name")
	assert.FileExists(t, env.profiles)
}

func TestProfilesLifecycle(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "profiles", "create", "work")
	require.NoError(t, err)
	assert.Contains(t, out, "Created profile 'work' (ID: 2) based on 'default'")

	out, err = env.run(t, "", "profiles", "edit", "work", "--set", "email=delete", "--set", "person_name=invent")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated profile 'work' (ID: 2)")
	assert.Contains(t, out, "email: keep_part -> delete")

	out, err = env.run(t, "", "profiles", "show", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile: work (ID: 2)")

	out, err = env.run(t, "", "profiles", "copy", "work", "work-copy")
	require.NoError(t, err)
	assert.Contains(t, out, "Copied 'work' to 'work-copy' (ID: 3)")

	out, err = env.run(t, "n\n", "profiles", "delete", "work-copy")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")

	out, err = env.run(t, "y\n", "profiles", "delete", "work-copy")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted profile 'work-copy' (ID: 3)")

	out, err = env.run(t, "", "profiles", "create", "next")
	require.NoError(t, err)
	assert.Contains(t, out, "(ID: 4)")
}

func TestProfilesEditWithoutChangesShowsProfile(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "profiles", "edit", "default")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile: default (ID: 1)")
	assert.Contains(t, out, "No changes given")
}

func TestProfilesEditRejectsIllegalAction(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "profiles", "edit", "default", "--set", "phone=invent", "--set", "email=invent")
	require.ErrorIs(t, err, profile.ErrIllegalAction)

	out, err := env.run(t, "", "profiles", "show", "default")
	require.NoError(t, err)
	assert.Contains(t, out, "Remove phone completely")
	assert.NotContains(t, out, "Replace with synthetic phone number")
}

func TestProfilesDeleteDefaultIsProtected(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "profiles", "delete", "default", "--force")
	assert.ErrorIs(t, err, profile.ErrProtectedProfile)
}

func TestProfilesUnknownProfile(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "profiles", "show", "missing")
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestProfilesResetRecoversCorruptStore(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.profiles, []byte("{not json"), 0o600))

	_, err := env.run(t, "", "profiles", "list")
	require.ErrorIs(t, err, profile.ErrCorruptStore)

	var hint bytes.Buffer
	printError(&hint, err)
	assert.Contains(t, hint.String(), "docsan profiles reset --force")

	_, err = env.run(t, "", "profiles", "reset")
	require.Error(t, err)

	out, err := env.run(t, "", "profiles", "reset", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Moved unreadable profiles to")
	assert.Contains(t, out, "default profile ID: 1")

	matches, err := filepath.Glob(env.profiles + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	out, err = env.run(t, "", "profiles", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "default")
}

func TestProfilesReadErrorHasNoResetHint(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.Mkdir(env.profiles, 0o700))

	_, err := env.run(t, "", "profiles", "list")
	require.Error(t, err)
	assert.NotErrorIs(t, err, profile.ErrCorruptStore)

	var msg bytes.Buffer
	printError(&msg, err)
	assert.NotContains(t, msg.String(), "reset --force")
}

func TestSanitizeWritesMarkdownNextToInput(t *testing.T) {
	env := newTestEnv(t)
	input := filepath.Join(env.dir, "letter.txt")
	require.NoError(t, os.WriteFile(input, []byte("Dear Alice Smith, call 555-0100."), 0o600))

	out, err := env.run(t, "", "sanitize", input)
	require.NoError(t, err)
	assert.Contains(t, out, "Sanitized with profile 'default'")

	target := filepath.Join(env.dir, "letter_sanitized.md")
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "---\n"))
	assert.Contains(t, string(data), "Dear [NAME], all clear.")

	prompts := env.recorded()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Dear Alice Smith, call 555-0100.")
}

func TestSanitizeToStdoutWithProfile(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "", "profiles", "create", "loose")
	require.NoError(t, err)

	input := filepath.Join(env.dir, "note.md")
	require.NoError(t, os.WriteFile(input, []byte("# Note\nsecret"), 0o600))

	out, err := env.run(t, "", "sanitize", input, "--profile", "loose", "--output", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Dear [NAME], all clear.")
	assert.NoFileExists(t, filepath.Join(env.dir, "note_sanitized.md"))
}

func TestSanitizeRejectsUnsupportedAndMissingFiles(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "sanitize", filepath.Join(env.dir, "absent.txt"))
	require.Error(t, err)

	input := filepath.Join(env.dir, "image.png")
	require.NoError(t, os.WriteFile(input, []byte{0x89, 'P', 'N', 'G'}, 0o600))
	_, err = env.run(t, "", "sanitize", input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
	assert.Empty(t, env.recorded())
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("docs", "report_sanitized.md"), defaultOutputPath(filepath.Join("docs", "report.docx")))
	assert.Equal(t, "notes_sanitized.md", defaultOutputPath("notes.txt"))
}

func TestStatusReportsServices(t *testing.T) {
	env := newTestEnv(t)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/info":
			json.NewEncoder(w).Encode(map[string]interface{}{"version": "9.9.9", "files_stored": 2})
		}
	}))
	defer api.Close()

	out, err := env.run(t, "", "status", "--url", api.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "version 9.9.9")
	assert.Contains(t, out, "model phi4:14b available")
}

func TestStatusFailsWhenAPIIsDown(t *testing.T) {
	env := newTestEnv(t)

	api := httptest.NewServer(http.NotFoundHandler())
	api.Close()

	out, err := env.run(t, "", "status", "--url", api.URL)
	require.Error(t, err)
	assert.Contains(t, out, "unavailable")
}

func TestToolsStdio(t *testing.T) {
	env := newTestEnv(t)

	stdin := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}
{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"list_profiles","arguments":{}}}
`
	out, err := env.run(t, stdin, "tools", "stdio")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "sanitize_document")
	assert.Contains(t, lines[1], "Available Sanitization Profiles")
}
