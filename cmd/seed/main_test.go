package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoContactsAreValid(t *testing.T) {
	reqs := demoContacts(200, rand.New(rand.NewSource(1)))
	require.Len(t, reqs, 200)

	emails := map[string]bool{}
	for _, r := range reqs {
		assert.Nil(t, r.Validate(), "%+v", r)
		emails[r.Email] = true
	}
	assert.Len(t, emails, 200)
}
