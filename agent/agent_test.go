package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAgent(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write agent file: %v", err)
	}
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "front.yaml", `
name: front-desk
community: clinic
opener: true
greeting: Greet the caller warmly.
instructions: You answer the phone for the clinic.
handoffs:
  - agent_name: billing
    condition: the caller asks about an invoice or payment
`)
	writeAgent(t, dir, "billing.yml", `
name: billing
community: clinic
instructions: You resolve billing questions.
output_guardrails:
  - Never read out full card numbers.
`)
	writeAgent(t, dir, "notes.txt", "not an agent file")
	writeAgent(t, dir, "broken.yaml", "name: [unclosed")

	reg, err := LoadRegistry(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"billing", "front-desk"}, reg.Names())

	root := reg.Root()
	require.NotNil(t, root)
	assert.Equal(t, "front-desk", root.Name)
	assert.Equal(t, "Greet the caller warmly.", root.Greeting)

	billing, ok := reg.Lookup("billing")
	require.True(t, ok)
	assert.Contains(t, billing.FullInstructions(), "Never read out full card numbers.")

	_, ok = reg.Lookup("nope")
	assert.False(t, ok)
}

func TestLoadRegistryUnknownHandoffTarget(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "front.yaml", `
name: front-desk
instructions: Answer calls.
handoffs:
  - agent_name: ghost
`)
	_, err := LoadRegistry(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent")
}

func TestLoadRegistrySelfHandoff(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "loop.yaml", `
name: loop
instructions: Answer calls.
handoffs:
  - agent_name: loop
`)
	_, err := LoadRegistry(dir)
	assert.Error(t, err)
}

func TestLoadRegistryDuplicateOpener(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "a.yaml", "name: a\nopener: true\ninstructions: A.")
	writeAgent(t, dir, "b.yaml", "name: b\nopener: true\ninstructions: B.")
	_, err := LoadRegistry(dir)
	assert.Error(t, err)
}

func TestLoadRegistryMissingDirFallsBack(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)

	root := reg.Root()
	require.NotNil(t, root)
	assert.Equal(t, "phone-assistant", root.Name)
	assert.NotEmpty(t, root.Instructions)
	assert.NotEmpty(t, root.Greeting)
}

func TestLoadRegistryEmptyDirFallsBack(t *testing.T) {
	reg, err := LoadRegistry(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "phone-assistant", reg.Root().Name)
}

func TestSessionTools(t *testing.T) {
	cfg := &Config{
		Name:         "front-desk",
		Instructions: "Answer calls.",
		Handoffs: []HandoffConfig{
			{AgentName: "billing", Condition: "the caller asks about payments"},
			{AgentName: "scheduling"},
		},
	}

	tools := cfg.SessionTools()
	require.Len(t, tools, 2)
	assert.Equal(t, "function", tools[0].Type)
	assert.Equal(t, "transfer_to_billing", tools[0].Name)
	assert.Contains(t, tools[0].Description, "the caller asks about payments")
	assert.Equal(t, "transfer_to_scheduling", tools[1].Name)

	assert.Nil(t, (&Config{Name: "solo", Instructions: "x"}).SessionTools())
}

func TestFullInstructionsIncludesTransfers(t *testing.T) {
	cfg := &Config{
		Name:         "front-desk",
		Instructions: "Answer calls.",
		Handoffs: []HandoffConfig{
			{AgentName: "billing", Condition: "the caller asks about payments"},
		},
		OutputGuardrails: []string{"Stay polite."},
	}

	full := cfg.FullInstructions()
	assert.Contains(t, full, "Answer calls.")
	assert.Contains(t, full, "transfer_to_billing")
	assert.Contains(t, full, "Stay polite.")
}
