package engine

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumcore/internal/models"
)

func TestUpdatePositionsSingleStatement(t *testing.T) {
	tests := []struct {
		name      string
		increment bool
		ch        models.Channel
		sign      string
	}{
		{"decrement regular", false, models.RegularChannel, "-"},
		{"increment meta", true, models.MetaChannel, "+"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(sqlPattern("UPDATE posts SET num_in_topic = num_in_topic "+tt.sign+" 1",
				"WHERE topic_id = $1 AND meta = $2 AND num_in_topic > $3")).
				WithArgs(8, tt.ch.IsMeta(), 2).
				WillReturnResult(sqlmock.NewResult(0, 5))

			n, err := New(Options{}).UpdatePositions(ctx, db, 8, 2, tt.increment, tt.ch)
			require.NoError(t, err)
			assert.Equal(t, int64(5), n)
		})
	}
}

func TestNextPositionCountsChannel(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(sqlPattern("SELECT COUNT(*) + 1 FROM posts WHERE topic_id = $1 AND meta = $2")).
		WithArgs(8, true).
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))

	next, err := New(Options{}).NextPosition(ctx, db, 8, models.MetaChannel)
	require.NoError(t, err)
	assert.Equal(t, 3, next)
}

func TestDeleteMiddlePostRenumbers(t *testing.T) {
	tx, fx := integration(t)
	eng := New(Options{})
	u := fx.User("u")
	topic := fx.Topic(fx.Forum(fx.Section("renumber").ID, "f").ID, u.ID, "t", false)
	fx.Post(topic.ID, u.ID, false, minutes(1))
	middle := fx.Post(topic.ID, u.ID, false, minutes(2))
	last := fx.Post(topic.ID, u.ID, false, minutes(3))
	meta := fx.Post(topic.ID, u.ID, true, minutes(4))

	_, err := tx.Exec(`DELETE FROM posts WHERE id = $1`, middle.ID)
	require.NoError(t, err)
	n, err := eng.UpdatePositions(ctx, tx, topic.ID, middle.NumInTopic, false, models.RegularChannel)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, []int{1, 2}, fx.Positions(topic.ID, false))
	assert.Equal(t, 2, fx.ReloadPost(last.ID).NumInTopic)
	assert.Equal(t, []int{1}, fx.Positions(topic.ID, true))
	assert.Equal(t, 1, fx.ReloadPost(meta.ID).NumInTopic)
	assert.NoError(t, eng.VerifyPositions(ctx, tx, topic.ID, models.RegularChannel))
}

func TestNextPositionAndInsertionPoint(t *testing.T) {
	tx, fx := integration(t)
	eng := New(Options{})
	u := fx.User("u")
	topic := fx.Topic(fx.Forum(fx.Section("insertion").ID, "f").ID, u.ID, "t", false)
	fx.Post(topic.ID, u.ID, true, minutes(1))
	fx.Post(topic.ID, u.ID, true, minutes(5))
	regular := fx.Post(topic.ID, u.ID, false, minutes(3))

	next, err := eng.NextPosition(ctx, tx, topic.ID, models.MetaChannel)
	require.NoError(t, err)
	assert.Equal(t, 3, next)

	at, err := eng.InsertionPoint(ctx, tx, regular, models.MetaChannel)
	require.NoError(t, err)
	assert.Equal(t, 1, at)

	early := fx.Post(topic.ID, u.ID, false, minutes(0))
	at, err = eng.InsertionPoint(ctx, tx, early, models.MetaChannel)
	require.NoError(t, err)
	assert.Equal(t, 0, at)
}

func TestRenumberTopicRepairsAndIsIdempotent(t *testing.T) {
	tx, fx := integration(t)
	eng := New(Options{})
	u := fx.User("u")
	topic := fx.Topic(fx.Forum(fx.Section("repair").ID, "f").ID, u.ID, "t", false)
	for i := 1; i <= 4; i++ {
		fx.Post(topic.ID, u.ID, false, minutes(i))
	}

	_, err := tx.Exec(`UPDATE posts SET num_in_topic = num_in_topic * 3 WHERE topic_id = $1`, topic.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, eng.VerifyPositions(ctx, tx, topic.ID, models.RegularChannel), ErrInvariantViolation)

	for i := 0; i < 2; i++ {
		require.NoError(t, eng.RenumberTopic(ctx, tx, topic.ID, models.RegularChannel))
		assert.Equal(t, []int{1, 2, 3, 4}, fx.Positions(topic.ID, false))
	}
	assert.NoError(t, eng.VerifyPositions(ctx, tx, topic.ID, models.RegularChannel))
}

func TestDecrementBelowOneIsInvariantViolation(t *testing.T) {
	tx, fx := integration(t)
	eng := New(Options{})
	u := fx.User("u")
	topic := fx.Topic(fx.Forum(fx.Section("negative").ID, "f").ID, u.ID, "t", false)
	fx.Post(topic.ID, u.ID, false, minutes(1))

	_, err := eng.UpdatePositions(ctx, tx, topic.ID, 0, false, models.RegularChannel)
	assert.ErrorIs(t, err, ErrInvariantViolation)
}
