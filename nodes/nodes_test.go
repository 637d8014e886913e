package nodes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/doubao"
	"github.com/skosovsky/doubao/manifest"
	"github.com/skosovsky/doubao/node/chatprompt"
	"github.com/skosovsky/doubao/node/interrogator"
	"github.com/skosovsky/doubao/node/promptgen"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewRegistry_Builtin(t *testing.T) {
	t.Parallel()
	reg, err := NewRegistry()
	require.NoError(t, err)
	assert.True(t, reg.Sealed())
	assert.ElementsMatch(t,
		[]string{promptgen.NodeName, chatprompt.NodeName, interrogator.NodeName},
		reg.Names())
	assert.Equal(t, map[string]string{
		"DoubaoPromptGenerator":   "豆包提示词生成器",
		"DouBaoPrompt":            "豆包提示词生成",
		"DouBaoImageInterrogator": "豆包图像反推提示词",
	}, reg.DisplayNameMappings())

	err = reg.Register(promptgen.New(nil, promptgen.Config{}), "")
	require.ErrorIs(t, err, doubao.ErrRegistrySealed)
}

func TestRegister_TypedNilNodes(t *testing.T) {
	t.Parallel()
	reg := doubao.NewRegistry()
	require.ErrorIs(t, reg.Register((*chatprompt.Node)(nil), ""), doubao.ErrValidation)
	require.ErrorIs(t, reg.Register((*promptgen.Node)(nil), ""), doubao.ErrValidation)
	require.ErrorIs(t, reg.Register((*interrogator.Node)(nil), ""), doubao.ErrValidation)
	assert.Zero(t, reg.Len())
}

func TestBuiltinManifestsMatchDefaults(t *testing.T) {
	t.Parallel()
	reg, err := NewRegistry()
	require.NoError(t, err)
	want := map[string]doubao.NodeSpec{
		promptgen.NodeName:    promptgen.DefaultSpec(),
		chatprompt.NodeName:   chatprompt.DefaultSpec(),
		interrogator.NodeName: interrogator.DefaultSpec(),
	}
	for name, def := range want {
		n, err := reg.Lookup(name)
		require.NoError(t, err)
		got := n.Spec()
		assert.Equal(t, def.DisplayName, got.DisplayName, name)
		assert.Equal(t, def.Category, got.Category, name)
		assert.Equal(t, def.Function, got.Function, name)
		assert.Equal(t, def.ReturnTypes, got.ReturnTypes, name)
		require.Len(t, got.Required, len(def.Required), name)
		require.Len(t, got.Optional, len(def.Optional), name)
		for i, f := range def.Required {
			assert.Equal(t, f.Name, got.Required[i].Name, name)
			assert.Equal(t, f.Type, got.Required[i].Type, name)
		}
		for i, f := range def.Optional {
			assert.Equal(t, f.Name, got.Optional[i].Name, name)
			assert.Equal(t, f.Type, got.Optional[i].Type, name)
			assert.Equal(t, f.Min, got.Optional[i].Min, name)
			assert.Equal(t, f.Max, got.Optional[i].Max, name)
		}
	}
}

func TestNewRegistry_InvokesAgainstBaseURL(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/completions":
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Prompt: a neon cat"}}]}`))
		case "/v1/chat/completions":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	reg, err := NewRegistry(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	gen, err := reg.Lookup(promptgen.NodeName)
	require.NoError(t, err)
	out, err := gen.Invoke(context.Background(), doubao.Inputs{"api_key": "k", "prompt_requirement": "a cat"})
	require.NoError(t, err)
	assert.Equal(t, doubao.Outputs{"a neon cat"}, out)

	chat, err := reg.Lookup(chatprompt.NodeName)
	require.NoError(t, err)
	out, err = chat.Invoke(context.Background(), doubao.Inputs{"api_key": "k", "user_input": "tea"})
	require.NoError(t, err)
	assert.Equal(t, doubao.Outputs{"Error: 502 - upstream down"}, out)
}

func TestWithManifests(t *testing.T) {
	t.Parallel()
	bodies := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/chat", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(data, &body))
		bodies <- body
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	fsys := fstest.MapFS{"custom/logo.yaml": {Data: []byte(`
name: LogoPrompt
display_name: Logo
kind: chat_prompt
inputs:
  required:
    - {name: api_key, type: STRING, default: ""}
    - {name: base_prompt, type: STRING, default: "Logo for:"}
    - {name: user_input, type: STRING}
returns:
  types: [STRING]
request:
  endpoint: /api/v3/chat
  model: doubao-1.5-pro
  extra_body:
    thinking.type: disabled
`)}}
	reg, err := NewRegistry(WithManifests(fsys, "custom"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	assert.Equal(t, []string{"LogoPrompt"}, reg.Names())

	n, err := reg.Lookup("LogoPrompt")
	require.NoError(t, err)
	out, err := n.Invoke(context.Background(), doubao.Inputs{"api_key": "k", "user_input": "tea house"})
	require.NoError(t, err)
	assert.Equal(t, doubao.Outputs{"ok"}, out)
	body := <-bodies
	assert.Equal(t, "doubao-1.5-pro", body["model"])
	assert.Equal(t, map[string]any{"type": "disabled"}, body["thinking"])
}

func TestNewRegistry_Errors(t *testing.T) {
	t.Parallel()
	_, err := NewRegistry(WithManifests(fstest.MapFS{"m/x.yaml": {Data: []byte("name: x")}}, "m"))
	require.ErrorIs(t, err, manifest.ErrInvalidManifest)

	dup := []byte("name: X\nkind: chat_prompt\nreturns: {types: [STRING]}")
	_, err = NewRegistry(WithManifests(fstest.MapFS{"m/a.yaml": {Data: dup}, "m/b.yaml": {Data: dup}}, "m"))
	require.ErrorIs(t, err, doubao.ErrDuplicateNode)

	_, err = NewRegistry(WithBaseURL("not a url"))
	require.Error(t, err)
}

func TestBuiltin(t *testing.T) {
	t.Parallel()
	fsys, root := Builtin()
	ms, err := manifest.WalkFS(fsys, root)
	require.NoError(t, err)
	assert.Len(t, ms, 3)
}
