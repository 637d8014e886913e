package doubao

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubNode struct {
	spec NodeSpec
}

func (s stubNode) Spec() NodeSpec { return s.spec }

func (s stubNode) Invoke(_ context.Context, in Inputs) (Outputs, error) {
	return Outputs{in.String("text")}, nil
}

func newStub(name, label string) stubNode {
	return stubNode{spec: NodeSpec{Name: name, DisplayName: label, ReturnTypes: []FieldType{TypeString}}}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStub("DouBaoPrompt", ""), "豆包提示词生成"))
	require.NoError(t, reg.Register(newStub("DouBaoImageInterrogator", "Interrogator"), ""))
	require.NoError(t, reg.Register(newStub("Bare", ""), ""))

	n, err := reg.Lookup("DouBaoPrompt")
	require.NoError(t, err)
	assert.Equal(t, "DouBaoPrompt", n.Spec().Name)

	assert.Equal(t, []string{"DouBaoPrompt", "DouBaoImageInterrogator", "Bare"}, reg.Names())
	assert.Equal(t, map[string]string{
		"DouBaoPrompt":            "豆包提示词生成",
		"DouBaoImageInterrogator": "Interrogator",
		"Bare":                    "Bare",
	}, reg.DisplayNameMappings())
	assert.Len(t, reg.ClassMappings(), 3)
	assert.Equal(t, 3, reg.Len())

	specs := reg.Specs()
	require.Len(t, specs, 3)
	assert.Equal(t, "DouBaoImageInterrogator", specs[1].Name)
}

func TestRegistry_LookupNotFound(t *testing.T) {
	t.Parallel()
	_, err := NewRegistry().Lookup("missing")
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestRegistry_Duplicate(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStub("A", ""), ""))
	err := reg.Register(newStub("A", ""), "")
	require.ErrorIs(t, err, ErrDuplicateNode)
}

func TestRegistry_InvalidNodes(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	require.ErrorIs(t, reg.Register(nil, "x"), ErrValidation)
	require.ErrorIs(t, reg.Register(newStub("", ""), "x"), ErrValidation)

	var typedNil *ptrNode
	err := reg.Register(typedNil, "x")
	require.ErrorIs(t, err, ErrValidation)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "node", ve.Field)
	assert.Zero(t, reg.Len())
}

type ptrNode struct {
	spec NodeSpec
}

func (p *ptrNode) Spec() NodeSpec { return p.spec }

func (p *ptrNode) Invoke(context.Context, Inputs) (Outputs, error) { return nil, nil }

func TestRegistry_Sealed(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStub("A", ""), ""))
	reg.Seal()
	reg.Seal()
	assert.True(t, reg.Sealed())
	err := reg.Register(newStub("B", ""), "")
	require.ErrorIs(t, err, ErrRegistrySealed)
	assert.Equal(t, []string{"A"}, reg.Names())
}

func TestRegistry_MappingsAreCopies(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStub("A", "a"), ""))
	labels := reg.DisplayNameMappings()
	labels["A"] = "mutated"
	delete(reg.ClassMappings(), "A")
	l, ok := reg.DisplayName("A")
	require.True(t, ok)
	assert.Equal(t, "a", l)
	_, err := reg.Lookup("A")
	require.NoError(t, err)
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStub("A", "a"), ""))
	reg.Seal()
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := reg.Lookup("A")
			assert.NoError(t, err)
			out, err := n.Invoke(context.Background(), Inputs{"text": "hi"})
			assert.NoError(t, err)
			assert.Equal(t, Outputs{"hi"}, out)
		}()
	}
	wg.Wait()
}
