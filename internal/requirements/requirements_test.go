package requirements

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"prequal/internal/forms/schema"
	"prequal/internal/forms/variant"
	id "prequal/pkg/domain"
)

func TestEvaluatePositions(t *testing.T) {
	reqs := []Requirement{
		{Kind: schema.TemplatePositions, Name: "Project Manager", MinimumCount: 2},
		{Kind: schema.TemplatePositions, Name: "Safety Officer", MinimumCount: 1},
		{Kind: schema.TemplateCrafts, Name: "Welder", MinimumCount: 10},
	}
	records := []schema.Fields{
		{"position": schema.Choice(variant.Value{Name: "Project Manager"})},
		{"position": schema.Choice(variant.Value{Name: "project manager", Custom: true})},
		{"position": schema.Choice(variant.Value{Name: "Site Engineer"})},
	}

	out := Evaluate(id.FormManagementPersonnel, reqs, records)
	require.Len(t, out, 2, "craft requirement belongs to another form")

	require.Equal(t, "Project Manager", out[0].Name)
	require.Equal(t, 2, out[0].Current)
	require.True(t, out[0].Met)

	require.Equal(t, "Safety Officer", out[1].Name)
	require.Equal(t, 0, out[1].Current)
	require.False(t, out[1].Met)
}

func TestEvaluateSumsCountFields(t *testing.T) {
	reqs := []Requirement{
		{Kind: schema.TemplateCrafts, Name: "Welder", MinimumCount: 15},
	}
	records := []schema.Fields{
		{"craft": schema.Choice(variant.Value{Name: "Welder"}), "total_count": schema.Int(8)},
		{"craft": schema.Choice(variant.Value{Name: "Welder"}), "total_count": schema.Int(4)},
		{"craft": schema.Choice(variant.Value{Name: "Electrician"}), "total_count": schema.Int(20)},
		{"craft": schema.Choice(variant.Value{Name: "Welder"})}, // count not filled in yet
	}

	out := Evaluate(id.FormManpower, reqs, records)
	require.Len(t, out, 1)
	require.Equal(t, 12, out[0].Current)
	require.False(t, out[0].Met)
}

func TestEvaluateMatchesPlainText(t *testing.T) {
	reqs := []Requirement{
		{Kind: schema.TemplateEquipmentTypes, Name: "Tower Crane", MinimumCount: 1},
	}
	records := []schema.Fields{
		{"equipment_type": schema.Text("  tower crane "), "quantity": schema.Int(3)},
	}

	out := Evaluate(id.FormEquipmentTools, reqs, records)
	require.Len(t, out, 1)
	require.Equal(t, 3, out[0].Current)
	require.True(t, out[0].Met)
}

func TestInMemoryStoreIsolatesProjects(t *testing.T) {
	store := NewInMemory()
	a, b := id.NewProjectID(), id.NewProjectID()
	store.Seed(a, []Requirement{{Kind: schema.TemplatePositions, Name: "Project Manager", MinimumCount: 1}})

	got, err := store.ListByProject(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = store.ListByProject(context.Background(), b)
	require.NoError(t, err)
	require.Empty(t, got)
}
