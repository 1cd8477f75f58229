package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "league.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNormalize(t *testing.T) {
	// The yo fold makes "Семён" and "Семен" the same key.
	assert.Equal(t, "семен", Normalize("  Семён "))
	assert.Equal(t, "семен", Normalize("Семен"))
	assert.Equal(t, "fernandez", Normalize("Fernandez"))
}

func TestLoadBuildsAliases(t *testing.T) {
	path := writeCSV(t, "Bruno Fernandes,Manchester United,Bruno\nAndre Onana,Manchester United\nMohamed Salah,Liverpool,Mo Salah\n")
	c, err := Load(map[string]string{"epl": path})
	require.NoError(t, err)

	assert.Equal(t, []string{"epl"}, c.Leagues())
	assert.Equal(t, []string{"Liverpool", "Manchester United"}, c.Categories("epl"))

	items := c.Items("epl", "Manchester United")
	require.Len(t, items, 2)

	bruno := items[0]
	assert.Equal(t, "Bruno Fernandes", bruno.DisplayName)
	assert.Equal(t, "Fernandes", bruno.PrimaryName)
	assert.True(t, bruno.HasAlias("fernandes"))
	assert.True(t, bruno.HasAlias("bruno fernandes"))
	assert.True(t, bruno.HasAlias("bruno"))
	assert.False(t, bruno.HasAlias("onana"))
}

func TestLoadRejectsShortRows(t *testing.T) {
	path := writeCSV(t, "Lonely Name\n")
	_, err := Load(map[string]string{"epl": path})
	require.Error(t, err)
}

func TestUnknownLeague(t *testing.T) {
	path := writeCSV(t, "A B,Club X\n")
	c, err := Load(map[string]string{"epl": path})
	require.NoError(t, err)

	_, ok := c.League("serie-a")
	assert.False(t, ok)
	assert.Nil(t, c.Categories("serie-a"))
	assert.Nil(t, c.Items("epl", "Club Y"))
}
