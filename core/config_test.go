package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	conf, err := NewConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "Darasa", conf.AppName)
	assert.NotEmpty(t, conf.SecretKey)
	assert.Equal(t, "localhost:8000", conf.Server.Address())
	assert.Equal(t, "localhost:5432", conf.Database.Address())
	assert.Equal(t, "postgres", conf.Database.Engine)
	assert.Empty(t, conf.AdminEmails)
}

func TestSplitEmails(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: nil},
		{name: "single", in: "boss@test.cd", want: []string{"boss@test.cd"}},
		{name: "multiple with noise", in: " Boss@Test.cd , ,second@test.cd,", want: []string{"boss@test.cd", "second@test.cd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitEmails(tt.in))
		})
	}
}

func TestIsAdminEmail(t *testing.T) {
	conf := &Config{AdminEmails: []string{"boss@test.cd"}}

	assert.True(t, conf.IsAdminEmail("boss@test.cd"))
	assert.True(t, conf.IsAdminEmail("  BOSS@test.cd "))
	assert.False(t, conf.IsAdminEmail("hero@test.cd"))
	assert.False(t, conf.IsAdminEmail(""))
}
