package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDedupeKey(t *testing.T) {
	key1 := ComputeDedupeKey(QuestionCategoryColumn, "orders", "status")
	key2 := ComputeDedupeKey(QuestionCategoryColumn, "orders", "status")
	key3 := ComputeDedupeKey(QuestionCategoryTable, "orders", "status")

	assert.Equal(t, key1, key2)
	assert.NotEqual(t, key1, key3)
	assert.Len(t, key1, 16)
}

func TestAnswer(t *testing.T) {
	q := &SmeQuestion{Category: QuestionCategoryColumn, Question: "Is status an enum?"}

	require.NoError(t, q.Answer("yes, three values"))
	assert.True(t, q.IsAnswered)
	assert.Equal(t, "yes, three values", q.Response)
	assert.NotNil(t, q.AnsweredAt)
}

func TestAnswer_RejectsEmptyResponse(t *testing.T) {
	q := &SmeQuestion{}
	require.Error(t, q.Answer("   "))
	assert.False(t, q.IsAnswered)
}

func TestAnswer_RejectsDoubleAnswer(t *testing.T) {
	q := &SmeQuestion{}
	require.NoError(t, q.Answer("first"))
	require.Error(t, q.Answer("second"))
	assert.Equal(t, "first", q.Response)
}

func TestIsValidQuestionCategory(t *testing.T) {
	assert.True(t, IsValidQuestionCategory(QuestionCategoryRelationship))
	assert.False(t, IsValidQuestionCategory(QuestionCategory("bogus")))
}
