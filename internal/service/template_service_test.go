package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveNoGroupUnchanged(t *testing.T) {
	tpl := "Oi {name}, sua pontuação chegou!"
	assert.Equal(t, tpl, Resolve(tpl))
}

func TestResolvePicksFromChoiceSet(t *testing.T) {
	tpl := "{Oi|Olá|E aí} {name}!"
	choices := map[string]bool{"Oi": true, "Olá": true, "E aí": true}

	for i := 0; i < 50; i++ {
		out := Resolve(tpl)
		assert.True(t, strings.HasSuffix(out, " {name}!"), "placeholder must survive: %q", out)
		prefix := strings.TrimSuffix(out, " {name}!")
		assert.True(t, choices[prefix], "resolved prefix %q not in choice set", prefix)
	}
}

func TestResolveMultipleGroups(t *testing.T) {
	tpl := "{A|B} meio {C|D} fim"
	for i := 0; i < 30; i++ {
		out := Resolve(tpl)
		assert.Contains(t, []string{
			"A meio C fim", "A meio D fim", "B meio C fim", "B meio D fim",
		}, out)
	}
}

func TestResolveUnclosedBrace(t *testing.T) {
	tpl := "texto {quebrado sem fechar"
	assert.Equal(t, tpl, Resolve(tpl))
}

func TestResolveSingleChoiceGroup(t *testing.T) {
	// a group needs a pipe; single-word braces are placeholders
	assert.Equal(t, "Oi {name}", Resolve("Oi {name}"))
	assert.Equal(t, "Oi X", Resolve("Oi {X|X}"))
}

func TestRenderTemplate(t *testing.T) {
	out := RenderTemplate("Parabéns {name}, você ganhou {prize}!", map[string]string{
		"name":  "Ana",
		"prize": "um combo",
	})
	assert.Equal(t, "Parabéns Ana, você ganhou um combo!", out)
}

func TestPreview(t *testing.T) {
	variants := Preview("{Oi|Olá} {name}", 3)
	assert.Len(t, variants, 3)
	for _, v := range variants {
		assert.Contains(t, []string{"Oi {name}", "Olá {name}"}, v)
	}

	assert.Len(t, Preview("x", 0), 3)
	assert.Len(t, Preview("x", 10), 4)
}
