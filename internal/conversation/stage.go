package conversation

import "strings"

// StagePolicy decides the conditioning directive for the current turn and
// when the session moves from initial to active. Two transition shapes exist
// and the choice is configuration, not inference:
//
//   - "turn": the session becomes active after its first completed turn,
//     regardless of what the model produced.
//   - "reply": the session becomes active only once a generated reply
//     actually contains a greeting lexeme. A model that never greets keeps
//     the greeting permitted.
type StagePolicy interface {
	// Directive returns the stage-conditioning instruction for the turn,
	// computed from the session state before the reply is produced.
	Directive(sess *Session) string
	// Advance transitions the stage forward after a reply was produced.
	// Idempotent once the session is active.
	Advance(sess *Session, reply string)
}

const (
	StagePolicyTurn  = "turn"
	StagePolicyReply = "reply"
)

// NewStagePolicy resolves a policy name from configuration. Unknown names
// fall back to the turn policy.
func NewStagePolicy(name string) StagePolicy {
	if strings.EqualFold(strings.TrimSpace(name), StagePolicyReply) {
		return ReplyStagePolicy{}
	}
	return TurnStagePolicy{}
}

// TurnStagePolicy advances unconditionally after the first turn.
type TurnStagePolicy struct{}

func (TurnStagePolicy) Directive(sess *Session) string {
	return stageDirective(sess)
}

func (TurnStagePolicy) Advance(sess *Session, _ string) {
	sess.advanceStage()
}

// ReplyStagePolicy advances only when the generated reply greeted the client.
type ReplyStagePolicy struct{}

func (ReplyStagePolicy) Directive(sess *Session) string {
	return stageDirective(sess)
}

func (ReplyStagePolicy) Advance(sess *Session, reply string) {
	if containsGreeting(reply) {
		sess.advanceStage()
	}
}

func stageDirective(sess *Session) string {
	directive := directiveActive
	if sess.Stage() == StageInitial {
		directive = directiveInitial
	}
	if sess.Paid() {
		directive += "\n" + directivePaid
	}
	return directive
}

// greetingLexemes are the surface forms that count as a greeting in a
// generated reply. Matching is case-insensitive.
var greetingLexemes = []string{
	"здравствуйте",
	"здравствуй",
	"привет",
	"добрый день",
	"добрый вечер",
	"доброе утро",
}

func containsGreeting(reply string) bool {
	lowered := strings.ToLower(reply)
	for _, lexeme := range greetingLexemes {
		if strings.Contains(lowered, lexeme) {
			return true
		}
	}
	return false
}

// paymentLexemes are the surface forms a client uses to say they have paid.
// The flag only conditions the model's instruction text; nothing validates
// the payment itself.
var paymentLexemes = []string{
	"оплатил",
	"оплачено",
	"перевёл",
	"перевел",
}

func containsPaymentCue(text string) bool {
	lowered := strings.ToLower(text)
	for _, lexeme := range paymentLexemes {
		if strings.Contains(lowered, lexeme) {
			return true
		}
	}
	return false
}
