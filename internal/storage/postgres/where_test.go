package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhereClause(t *testing.T) {
	where, args := whereClause(map[string]string{"service": "", "fingerprint": ""})
	assert.Equal(t, "", where)
	assert.Empty(t, args)

	where, args = whereClause(map[string]string{"service": "billing-api", "fingerprint": "abc"})
	assert.Equal(t, " WHERE fingerprint = $1 AND service = $2", where)
	assert.Equal(t, []any{"abc", "billing-api"}, args)
}

func TestPgText(t *testing.T) {
	assert.Equal(t, "plain", pgText("plain"))
	assert.Equal(t, "a\uFFFDb", pgText("a\x00b"))
	assert.Equal(t, "a\uFFFDb", pgText("a\xffb"))

	_, args := whereClause(map[string]string{"service": "auth\x00"})
	assert.Equal(t, []any{"auth\uFFFD"}, args)
}
