package tools

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raaihank/doc-sanitizer/internal/extract"
	"github.com/raaihank/doc-sanitizer/internal/filestore"
	"github.com/raaihank/doc-sanitizer/internal/llm"
	"github.com/raaihank/doc-sanitizer/internal/logger"
	"github.com/raaihank/doc-sanitizer/internal/profile"
	"github.com/raaihank/doc-sanitizer/internal/sanitize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Generate(ctx context.Context, model, prompt string, opts llm.Options) (string, error) {
	return g.reply, g.err
}

type callRecorder struct {
	calls map[string]int
}

func (r *callRecorder) ObserveToolCall(tool string, failed bool) {
	key := tool + ":ok"
	if failed {
		key = tool + ":error"
	}
	r.calls[key]++
}

type fixture struct {
	reg   *Registry
	gen   *stubGenerator
	files *filestore.Store
	rec   *callRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	log := logger.NewNop()

	backend, err := profile.NewFileBackend(filepath.Join(dir, "profiles.json"))
	require.NoError(t, err)
	mgr, err := profile.NewManager(backend, log)
	require.NoError(t, err)
	_, err = mgr.Create("strict", profile.Ref{})
	require.NoError(t, err)

	files, err := filestore.New(filestore.Config{Dir: filepath.Join(dir, "uploads")}, log)
	require.NoError(t, err)

	gen := &stubGenerator{reply: "sanitized body"}
	app, err := sanitize.New(sanitize.Deps{
		Profiles:   mgr,
		Files:      files,
		Extractors: extract.Default(0),
		Generator:  gen,
		Logger:     log,
		Model:      "phi4:14b",
	})
	require.NoError(t, err)

	rec := &callRecorder{calls: map[string]int{}}
	reg := New(app, Options{BaseURL: "http://uploads.local:8080/", Metrics: rec, Logger: log})
	return &fixture{reg: reg, gen: gen, files: files, rec: rec}
}

func (f *fixture) call(name, args string) Result {
	return f.reg.Call(context.Background(), name, json.RawMessage(args))
}

func TestList(t *testing.T) {
	f := newFixture(t)
	list := f.reg.List()
	require.Len(t, list, 3)

	names := []string{list[0].Name, list[1].Name, list[2].Name}
	assert.Equal(t, []string{GetProfile, ListProfiles, SanitizeDocument}, names)

	sanitizeTool := list[2]
	assert.Equal(t, []string{"file_id"}, sanitizeTool.InputSchema["required"])
	assert.Contains(t, sanitizeTool.Description, "http://uploads.local:8080/upload")
	assert.Contains(t, sanitizeTool.Description, "5 minutes")
}

func TestGetProfile(t *testing.T) {
	f := newFixture(t)

	res := f.call(GetProfile, "")
	assert.False(t, res.IsError)
	assert.Contains(t, res.Text(), "Profile: default (ID: 1)")
	assert.Contains(t, res.Text(), "## JSON Configuration")
	assert.Contains(t, res.Text(), `"person_name"`)

	res = f.call(GetProfile, `{"profile_id": 2}`)
	assert.Contains(t, res.Text(), "Profile: strict (ID: 2)")

	res = f.call(GetProfile, `{"profile": "STRICT"}`)
	assert.Contains(t, res.Text(), "Profile: strict (ID: 2)")

	// profile_id wins over profile
	res = f.call(GetProfile, `{"profile": "strict", "profile_id": 1}`)
	assert.Contains(t, res.Text(), "Profile: default (ID: 1)")

	res = f.call(GetProfile, `{"profile": "nope"}`)
	assert.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(res.Text(), "Error:"))

	res = f.call(GetProfile, `{"profile_id": "two"}`)
	assert.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(res.Text(), "Error: invalid arguments"))
}

func TestListProfiles(t *testing.T) {
	f := newFixture(t)
	res := f.call(ListProfiles, "{}")
	assert.False(t, res.IsError)
	assert.True(t, strings.HasPrefix(res.Text(), "## Available Sanitization Profiles"))
	assert.Contains(t, res.Text(), "strict")
	assert.Contains(t, res.Text(), "get_profile")
}

func TestSanitizeDocument(t *testing.T) {
	f := newFixture(t)
	stored, err := f.files.Save([]byte("Jane Doe, jane@example.com"), "contact.txt")
	require.NoError(t, err)

	res := f.call(SanitizeDocument, `{"file_id": "`+stored.ID+`", "profile": "strict"}`)
	require.False(t, res.IsError, res.Text())
	assert.True(t, strings.HasPrefix(res.Text(), "---\n"))
	assert.Contains(t, res.Text(), "profile_used: strict")
	assert.True(t, strings.HasSuffix(res.Text(), "sanitized body"))

	// the upload is consumed
	res = f.call(SanitizeDocument, `{"file_id": "`+stored.ID+`"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "Error: File not found: "+stored.ID+". Files are deleted after 5 minutes. Please upload again.", res.Text())

	assert.Equal(t, 1, f.rec.calls["sanitize_document:ok"])
	assert.Equal(t, 1, f.rec.calls["sanitize_document:error"])
}

func TestSanitizeDocumentErrors(t *testing.T) {
	f := newFixture(t)

	res := f.call(SanitizeDocument, `{}`)
	assert.True(t, strings.HasPrefix(res.Text(), "Error: file_id is required."))
	assert.Contains(t, res.Text(), "http://uploads.local:8080/upload")

	res = f.call(SanitizeDocument, `{"file_id": "../../etc/passwd"}`)
	assert.True(t, strings.HasPrefix(res.Text(), "Error: File not found"))

	stored, err := f.files.Save([]byte("x"), "a.txt")
	require.NoError(t, err)
	res = f.call(SanitizeDocument, `{"file_id": "`+stored.ID+`", "profile_id": 42}`)
	assert.True(t, strings.HasPrefix(res.Text(), "Error: profile not found"))

	f.gen.err = llm.ErrModel
	res = f.call(SanitizeDocument, `{"file_id": "`+stored.ID+`"}`)
	assert.True(t, strings.HasPrefix(res.Text(), "Error: model call failed"))

	unsupported, err := f.files.Save([]byte("MZ"), "tool.exe")
	require.NoError(t, err)
	res = f.call(SanitizeDocument, `{"file_id": "`+unsupported.ID+`"}`)
	assert.True(t, strings.HasPrefix(res.Text(), "Error: could not extract document"))
}

func TestUnknownTool(t *testing.T) {
	f := newFixture(t)
	res := f.call("format_disk", "{}")
	assert.True(t, res.IsError)
	assert.Equal(t, "Error: unknown tool: format_disk", res.Text())
}

func TestHTTPTransport(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.reg.HandleList(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Tools []Tool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed.Tools, 3)

	rec = httptest.NewRecorder()
	body := strings.NewReader(`{"name": "get_profile", "arguments": {"profile_id": 2}}`)
	f.reg.HandleCall(rec, httptest.NewRequest(http.MethodPost, "/tools/call", body))
	assert.Equal(t, http.StatusOK, rec.Code)
	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Contains(t, res.Text(), "strict")

	rec = httptest.NewRecorder()
	f.reg.HandleCall(rec, httptest.NewRequest(http.MethodPost, "/tools/call", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	f.reg.HandleCall(rec, httptest.NewRequest(http.MethodPost, "/tools/call", strings.NewReader(`{"arguments": {}}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStdioTransport(t *testing.T) {
	f := newFixture(t)

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
		``,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"list_profiles"}}`,
		`not json`,
		`{"jsonrpc":"2.0","id":"x","method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{}}`,
		`{"jsonrpc":"2.0","id":4,"method":"ping"}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, f.reg.ServeStdio(context.Background(), strings.NewReader(in), &out))

	var responses []map[string]interface{}
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		responses = append(responses, m)
	}
	require.Len(t, responses, 6)

	tools := responses[0]["result"].(map[string]interface{})["tools"].([]interface{})
	assert.Len(t, tools, 3)

	content := responses[1]["result"].(map[string]interface{})["content"].([]interface{})
	assert.Contains(t, content[0].(map[string]interface{})["text"], "Available Sanitization Profiles")

	assert.Nil(t, responses[2]["id"])
	assert.Equal(t, float64(codeParseError), responses[2]["error"].(map[string]interface{})["code"])

	assert.Equal(t, "x", responses[3]["id"])
	assert.Equal(t, float64(codeMethodNotFound), responses[3]["error"].(map[string]interface{})["code"])

	assert.Equal(t, float64(codeInvalidParams), responses[4]["error"].(map[string]interface{})["code"])

	assert.Equal(t, float64(4), responses[5]["id"])
	assert.NotNil(t, responses[5]["result"])
}
