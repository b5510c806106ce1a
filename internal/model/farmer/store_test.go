package farmer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreFindByID(t *testing.T) {
	store := NewMemoryStore(Seed())

	got, ok := store.FindByID("ravi-kumar")
	require.True(t, ok)
	assert.Equal(t, "Ravi Kumar", got.Name)

	_, ok = store.FindByID("missing")
	assert.False(t, ok)
}

func TestMemoryStoreSaveValidates(t *testing.T) {
	store := NewMemoryStore(nil)

	assert.ErrorIs(t, store.Save(Context{Name: "x"}), ErrProfileIDMissing)
	assert.ErrorIs(t, store.Save(Context{ID: "a"}), ErrNameRequired)
	assert.ErrorIs(t, store.Save(Context{ID: "a", Name: "A", Contacts: make([]Contact, 3)}), ErrTooManyContacts)

	require.NoError(t, store.Save(Context{ID: "a", Name: "A"}))
	require.NoError(t, store.Save(Context{ID: "a", Name: "B"}))
	assert.Len(t, store.List(), 1)
}

func TestFindByIDReturnsCopy(t *testing.T) {
	store := NewMemoryStore(Seed())
	got, _ := store.FindByID("ravi-kumar")
	got.Contacts[0].Phone = ""

	again, _ := store.FindByID("ravi-kumar")
	assert.NotEmpty(t, again.Contacts[0].Phone)
}

func TestUsableContactsSkipsBlankPhones(t *testing.T) {
	c := &Context{Contacts: []Contact{{Name: "a", Phone: " "}, {Name: "b", Phone: "+91"}}}
	assert.Equal(t, []Contact{{Name: "b", Phone: "+91"}}, c.UsableContacts())

	var nilCtx *Context
	assert.Empty(t, nilCtx.UsableContacts())
	assert.Equal(t, "friend", nilCtx.DisplayName())
}
