package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStagePolicyResolvesNames(t *testing.T) {
	assert.IsType(t, TurnStagePolicy{}, NewStagePolicy("turn"))
	assert.IsType(t, ReplyStagePolicy{}, NewStagePolicy(" Reply "))
	assert.IsType(t, TurnStagePolicy{}, NewStagePolicy(""))
	assert.IsType(t, TurnStagePolicy{}, NewStagePolicy("whatever"))
}

func TestTurnPolicyAdvancesAfterFirstTurn(t *testing.T) {
	store := NewStore(DefaultHistoryLimit, 0)
	sess := store.GetOrCreate("42")
	policy := TurnStagePolicy{}

	initial := policy.Directive(sess)
	policy.Advance(sess, "Меня зовут ассистент, расскажите о себе.")

	assert.Equal(t, StageActive, sess.Stage())
	assert.NotEqual(t, initial, policy.Directive(sess))
}

func TestReplyPolicyAdvancesOnlyOnGreeting(t *testing.T) {
	store := NewStore(DefaultHistoryLimit, 0)
	sess := store.GetOrCreate("42")
	policy := ReplyStagePolicy{}

	policy.Advance(sess, "Расскажите, что вас беспокоит.")
	assert.Equal(t, StageInitial, sess.Stage())

	policy.Advance(sess, "Здравствуйте! Чем могу помочь?")
	assert.Equal(t, StageActive, sess.Stage())
}

func TestStageTransitionIsMonotonic(t *testing.T) {
	store := NewStore(DefaultHistoryLimit, 0)
	sess := store.GetOrCreate("42")
	policy := TurnStagePolicy{}

	policy.Advance(sess, "первый")
	policy.Advance(sess, "второй")
	policy.Advance(sess, "третий")

	assert.Equal(t, StageActive, sess.Stage())
}

func TestDirectiveDependsOnStage(t *testing.T) {
	store := NewStore(DefaultHistoryLimit, 0)
	sess := store.GetOrCreate("42")
	policy := TurnStagePolicy{}

	assert.Equal(t, directiveInitial, policy.Directive(sess))
	sess.advanceStage()
	assert.Equal(t, directiveActive, policy.Directive(sess))
}

func TestDirectiveAppendsPaidInstruction(t *testing.T) {
	store := NewStore(DefaultHistoryLimit, 0)
	sess := store.GetOrCreate("42")
	sess.advanceStage()
	sess.MarkPaid()

	directive := TurnStagePolicy{}.Directive(sess)
	assert.True(t, strings.HasPrefix(directive, directiveActive))
	assert.Contains(t, directive, directivePaid)
}

func TestContainsPaymentCue(t *testing.T) {
	assert.True(t, containsPaymentCue("Я оплатил курс"))
	assert.True(t, containsPaymentCue("Оплатила только что"))
	assert.True(t, containsPaymentCue("всё оплачено"))
	assert.True(t, containsPaymentCue("Перевёл на карту"))
	assert.True(t, containsPaymentCue("перевела деньги"))
	assert.False(t, containsPaymentCue("Сколько стоит консультация?"))
	assert.False(t, containsPaymentCue("хочу оплатить позже"))
}

func TestContainsGreetingIsCaseInsensitive(t *testing.T) {
	assert.True(t, containsGreeting("ЗДРАВСТВУЙТЕ, Анна"))
	assert.True(t, containsGreeting("ну привет"))
	assert.True(t, containsGreeting("Добрый день!"))
	assert.False(t, containsGreeting("Расскажите подробнее."))
}
