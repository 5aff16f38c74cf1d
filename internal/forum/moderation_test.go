package forum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumcore/internal/engine"
	"forumcore/internal/models"
)

func TestPromoteAndDemoteThroughService(t *testing.T) {
	e := newEnv(t, engine.Options{CountMetaPostsInProfile: false, VerifyInvariants: true})
	alice, bob := e.user("alice"), e.user("bob")
	forum := e.forum(e.section().ID, "general")
	topic, first := e.topic(forum.ID, alice.ID, "thread")
	meta := e.reply(topic.ID, alice.ID, true)
	last := e.reply(topic.ID, bob.ID, false)

	promoted, err := e.svc.PromoteToMeta(ctx, last.ID)
	require.NoError(t, err)
	assert.True(t, promoted.Meta)
	assert.Equal(t, 2, promoted.NumInTopic)

	got := e.reloadTopic(topic.ID)
	assert.Equal(t, 1, got.PostCount)
	assert.Equal(t, 2, got.MetapostCount)
	assert.True(t, got.LastPostAt.Equal(first.PostedAt))
	assert.True(t, e.reloadForum(forum.ID).LastPostAt.Equal(first.PostedAt))
	assert.Equal(t, 0, e.profileCount(bob.ID))
	assert.Equal(t, map[int64]int{meta.ID: 1, last.ID: 2}, e.positions(topic.ID, models.MetaChannel))

	_, err = e.svc.PromoteToMeta(ctx, last.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	demoted, err := e.svc.DemoteToRegular(ctx, last.ID)
	require.NoError(t, err)
	assert.False(t, demoted.Meta)
	assert.Equal(t, 2, demoted.NumInTopic)

	got = e.reloadTopic(topic.ID)
	assert.Equal(t, 2, got.PostCount)
	assert.Equal(t, 1, got.MetapostCount)
	assert.True(t, got.LastPostAt.Equal(last.PostedAt))
	assert.Equal(t, bob.Username, got.LastUsername)
	assert.Equal(t, 1, e.profileCount(bob.ID))
}

func TestEditPost(t *testing.T) {
	e := newEnv(t, engine.Options{CountMetaPostsInProfile: true, VerifyInvariants: true})
	u := e.user("author")
	forum := e.forum(e.section().ID, "general")
	topic, _ := e.topic(forum.ID, u.ID, "thread")
	reply := e.reply(topic.ID, u.ID, false)

	body, smilies, meta := "edited :)", true, true
	got, err := e.svc.EditPost(ctx, reply.ID, PostEdit{Body: &body, Emoticons: &smilies, Meta: &meta})
	require.NoError(t, err)
	assert.Equal(t, "edited :)", got.Body)
	assert.Contains(t, got.BodyHTML, `<img src="/media/forum/img/emoticons/smile.gif"`)
	require.NotNil(t, got.EditedAt)
	assert.True(t, got.Meta)
	assert.Equal(t, 1, got.NumInTopic)

	topicNow := e.reloadTopic(topic.ID)
	assert.Equal(t, 1, topicNow.PostCount)
	assert.Equal(t, 1, topicNow.MetapostCount)

	// An edit that changes nothing about the channel leaves positions alone.
	plain := "plain"
	got, err = e.svc.EditPost(ctx, reply.ID, PostEdit{Body: &plain})
	require.NoError(t, err)
	assert.True(t, got.Meta)
	assert.Equal(t, 1, got.NumInTopic)

	_, err = e.svc.EditPost(ctx, -1, PostEdit{Body: &plain})
	assert.ErrorIs(t, err, ErrNotFound)
}
