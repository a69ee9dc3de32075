package routing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moegate/moegate/internal/llm"
	"github.com/moegate/moegate/internal/routing"
)

func TestRegistryCatalog(t *testing.T) {
	reg := newTestRegistry(t)

	experts := reg.AllExperts()
	require.Len(t, experts, 9)
	require.Equal(t, "deepseek-v3.1:671b-cloud", experts[0], "catalog follows canonical role order")
	require.Equal(t, "gpt-oss:20b-cloud", reg.Fallback())
}

func TestRegistryBackupChains(t *testing.T) {
	reg := newTestRegistry(t)

	require.Equal(t, []string{"gpt-oss:120b-cloud", "gpt-oss:20b-cloud"}, reg.BackupsOf("deepseek-v3.1:671b-cloud"))
	require.Equal(t, []string{"minimax-m2:cloud", "gpt-oss:20b-cloud"}, reg.BackupsOf("qwen3-coder:480b-cloud"))
	require.Equal(t, []string{"qwen3-vl:235b-instruct-cloud", "gpt-oss:20b-cloud"}, reg.BackupsOf("qwen3-vl:235b-cloud"))
	require.Equal(t, []string{"gpt-oss:120b-cloud"}, reg.BackupsOf("gpt-oss:20b-cloud"))
}

func TestRegistryUnknownExpertHasNoBackups(t *testing.T) {
	reg := newTestRegistry(t)
	require.Empty(t, reg.BackupsOf("never-registered"))
}

func TestRegistryRejectsMissingBinding(t *testing.T) {
	_, err := routing.NewRegistry(map[routing.Role]string{
		routing.RoleFallback: "gpt-oss:20b-cloud",
	}, nil)
	require.Error(t, err)
}

func TestRegistryRejectsSelfReferencingOverride(t *testing.T) {
	bindings := map[routing.Role]string{}
	for role, model := range map[routing.Role]string{
		routing.RoleReasoning:      "a",
		routing.RoleFallback:       "b",
		routing.RoleEnterprise:     "c",
		routing.RoleMathTool:       "d",
		routing.RoleCode:           "e",
		routing.RoleCostCode:       "f",
		routing.RoleAggregator:     "g",
		routing.RoleVision:         "h",
		routing.RoleVisionThinking: "i",
	} {
		bindings[role] = model
	}

	_, err := routing.NewRegistry(bindings, map[routing.Role][]routing.Role{
		routing.RoleCode: {routing.RoleCode},
	})
	require.Error(t, err)
}

func TestStripImages(t *testing.T) {
	msgs := []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: "You are helpful."},
		{Role: llm.RoleUser, Parts: []llm.ContentPart{
			{Type: llm.PartText, Text: "Describe"},
			{Type: llm.PartImageURL, ImageURL: "https://example.com/a.png"},
			{Type: llm.PartText, Text: "this chart"},
		}},
	}

	stripped := routing.StripImages(msgs)
	require.Equal(t, "You are helpful.", stripped[0].Content)
	require.Equal(t, "Describe this chart", stripped[1].Content)
	require.Empty(t, stripped[1].Parts)

	// Original request is untouched.
	require.Len(t, msgs[1].Parts, 3)
}
