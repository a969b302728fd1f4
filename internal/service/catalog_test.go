package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTableAcceptsAbbreviationAndName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"SP", "São Paulo"},
		{"sp", "São Paulo"},
		{"  sao   paulo ", "São Paulo"},
		{"SÃO PAULO", "São Paulo"},
		{"ceara", "Ceará"},
		{"Minas", "Minas Gerais"},
		{"df", "Distrito Federal"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			opt, ok := StateTable.Match(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.want, opt.Label)
		})
	}

	_, ok := StateTable.Match("Atlantis")
	assert.False(t, ok)
	assert.Len(t, StateTable.Accepted(), 27)
}

func TestMunicipalityTable(t *testing.T) {
	opt, ok := MunicipalityTable.Match("BH")
	require.True(t, ok)
	assert.Equal(t, "Belo Horizonte", opt.Label)

	opt, ok = MunicipalityTable.Match("florianópolis")
	require.True(t, ok)
	assert.Equal(t, "florianopolis", opt.Value)

	_, ok = MunicipalityTable.Match("Gotham")
	assert.False(t, ok)
}

func TestClosedTables(t *testing.T) {
	opt, ok := TrackTable.Match("nacional")
	require.True(t, ok)
	assert.Equal(t, "federal", opt.Value)

	opt, ok = LevelTable.Match("Avançado")
	require.True(t, ok)
	assert.Equal(t, "advanced", opt.Value)

	opt, ok = SlotTable.Match("manhã")
	require.True(t, ok)
	assert.Equal(t, "morning", opt.Value)

	opt, ok = TimeToExamTable.Match("1to3m")
	require.True(t, ok)
	assert.Equal(t, "1 a 3 meses", opt.Label)

	assert.Equal(t, []string{"Federal", "Estadual", "Municipal"}, TrackTable.Accepted())
}

func TestMatchName(t *testing.T) {
	name, ok := matchName(fallbackTopics, "lingua portuguesa")
	require.True(t, ok)
	assert.Equal(t, "Língua Portuguesa", name)

	_, ok = matchName(fallbackTopics, "")
	assert.False(t, ok)
}
