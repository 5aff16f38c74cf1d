package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumcore/internal/database/dbtest"
	"forumcore/internal/models"
)

func TestTransitionIntoSameChannelIsInvalid(t *testing.T) {
	db, _ := newMock(t)
	eng := New(Options{})
	forum := &models.Forum{ID: 1}
	topic := &models.Topic{ID: 2, ForumID: 1}

	err := eng.PromoteToMeta(ctx, db, &models.Post{ID: 3, TopicID: 2, Meta: true}, topic, forum)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = eng.DemoteToRegular(ctx, db, &models.Post{ID: 3, TopicID: 2}, topic, forum)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionRejectsUnrelatedEntities(t *testing.T) {
	db, _ := newMock(t)
	err := New(Options{}).PromoteToMeta(ctx, db,
		&models.Post{ID: 3, TopicID: 2},
		&models.Topic{ID: 9, ForumID: 1},
		&models.Forum{ID: 1})
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestArrivalAction(t *testing.T) {
	at := minutes(10)
	tests := []struct {
		name string
		last *time.Time
		want pointerAction
	}{
		{"no reference", nil, writePointer},
		{"older reference", ptr(at.Add(-time.Minute)), writePointer},
		{"same time", ptr(at), lookupPointer},
		{"newer reference", ptr(at.Add(time.Minute)), keepPointer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, arrivalAction(tt.last, at))
		})
	}
}

// moderationFixture builds a topic with regular posts at minutes 1, 3 and
// 5 and metaposts at minutes 2 and 6, with every aggregate settled.
type moderationFixture struct {
	fx      *dbtest.Fixture
	forum   *models.Forum
	topic   *models.Topic
	regular []*models.Post
	meta    []*models.Post
}

func newModerationFixture(t *testing.T, eng *Engine) *moderationFixture {
	t.Helper()
	tx, fx := integration(t)
	u := fx.User("mod")
	forum := fx.Forum(fx.Section("moderation").ID, "f")
	topic := fx.Topic(forum.ID, u.ID, "t", false)

	m := &moderationFixture{fx: fx}
	m.regular = append(m.regular, fx.Post(topic.ID, u.ID, false, minutes(1)))
	m.meta = append(m.meta, fx.Post(topic.ID, u.ID, true, minutes(2)))
	m.regular = append(m.regular, fx.Post(topic.ID, u.ID, false, minutes(3)))
	m.regular = append(m.regular, fx.Post(topic.ID, u.ID, false, minutes(5)))
	m.meta = append(m.meta, fx.Post(topic.ID, u.ID, true, minutes(6)))

	require.NoError(t, eng.SetTopicLastPost(ctx, tx, topic, nil))
	_, err := eng.RecomputePostCount(ctx, tx, topic, models.MetaChannel)
	require.NoError(t, err)
	require.NoError(t, eng.SetForumLastPost(ctx, tx, forum, nil))
	_, err = eng.RecomputeProfilePostCount(ctx, tx, u.ID)
	require.NoError(t, err)

	m.forum = fx.ReloadForum(forum.ID)
	m.topic = fx.ReloadTopic(topic.ID)
	return m
}

func (m *moderationFixture) reload() (*models.Topic, *models.Forum) {
	return m.fx.ReloadTopic(m.topic.ID), m.fx.ReloadForum(m.forum.ID)
}

func TestPromoteLastRegularPost(t *testing.T) {
	eng := New(Options{CountMetaPostsInProfile: true, VerifyInvariants: true})
	m := newModerationFixture(t, eng)
	tx := m.fx.Q
	last := m.fx.ReloadPost(m.regular[2].ID)
	require.Equal(t, 3, last.NumInTopic)
	require.True(t, HoldsTopicLastPost(m.topic, last))
	require.True(t, HoldsForumLastPost(m.forum, last))

	require.NoError(t, eng.PromoteToMeta(ctx, tx, last, m.topic, m.forum))

	assert.Equal(t, []int{1, 2}, m.fx.Positions(m.topic.ID, false))
	assert.Equal(t, []int{1, 2, 3}, m.fx.Positions(m.topic.ID, true))
	assert.Equal(t, 2, m.fx.ReloadPost(last.ID).NumInTopic)
	assert.Equal(t, 1, m.fx.ReloadPost(m.meta[0].ID).NumInTopic)
	assert.Equal(t, 3, m.fx.ReloadPost(m.meta[1].ID).NumInTopic)

	topic, forum := m.reload()
	assert.Equal(t, 2, topic.PostCount)
	assert.Equal(t, 3, topic.MetapostCount)
	previous := m.fx.ReloadPost(m.regular[1].ID)
	assert.True(t, HoldsTopicLastPost(topic, previous))
	assert.True(t, HoldsForumLastPost(forum, previous))
}

func TestPromoteThenDemoteRestoresPositions(t *testing.T) {
	eng := New(Options{CountMetaPostsInProfile: true, VerifyInvariants: true})
	m := newModerationFixture(t, eng)
	tx := m.fx.Q

	before := make(map[int64]int)
	for _, p := range append(append([]*models.Post{}, m.regular...), m.meta...) {
		before[p.ID] = m.fx.ReloadPost(p.ID).NumInTopic
	}

	middle := m.fx.ReloadPost(m.regular[1].ID)
	require.NoError(t, eng.PromoteToMeta(ctx, tx, middle, m.topic, m.forum))

	topic, forum := m.reload()
	middle = m.fx.ReloadPost(middle.ID)
	require.True(t, middle.Meta)
	require.NoError(t, eng.DemoteToRegular(ctx, tx, middle, topic, forum))

	for id, num := range before {
		p := m.fx.ReloadPost(id)
		assert.Equal(t, num, p.NumInTopic, "post %d", id)
	}
	assert.False(t, m.fx.ReloadPost(middle.ID).Meta)

	topic, forum = m.reload()
	assert.Equal(t, 3, topic.PostCount)
	assert.Equal(t, 2, topic.MetapostCount)
	newest := m.fx.ReloadPost(m.regular[2].ID)
	assert.True(t, HoldsTopicLastPost(topic, newest))
	assert.True(t, HoldsForumLastPost(forum, newest))
}

func TestDemoteNewestMetapostBecomesLastPost(t *testing.T) {
	eng := New(Options{CountMetaPostsInProfile: false})
	m := newModerationFixture(t, eng)
	tx := m.fx.Q
	newest := m.fx.ReloadPost(m.meta[1].ID)
	author := newest.UserID
	require.Equal(t, 3, m.fx.ProfilePostCount(author))

	require.NoError(t, eng.DemoteToRegular(ctx, tx, newest, m.topic, m.forum))

	assert.Equal(t, []int{1, 2, 3, 4}, m.fx.Positions(m.topic.ID, false))
	assert.Equal(t, []int{1}, m.fx.Positions(m.topic.ID, true))
	assert.Equal(t, 4, m.fx.ReloadPost(newest.ID).NumInTopic)

	topic, forum := m.reload()
	assert.True(t, HoldsTopicLastPost(topic, newest))
	assert.True(t, HoldsForumLastPost(forum, newest))
	assert.Equal(t, 4, topic.PostCount)
	assert.Equal(t, 1, topic.MetapostCount)
	assert.Equal(t, 4, m.fx.ProfilePostCount(author))
}
