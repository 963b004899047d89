package conversation

// baseInstructions defines the assistant's role and hard rules. It is sent as
// the system entry on every turn, followed by the stage directive.
const baseInstructions = `Ты — AI-ассистент психолога Дмитрия Макаровского. Твоя задача — мягко сопровождать клиента от первого сообщения до записи на консультацию или курс.

Запрещено:
- Повторять приветствие после первого сообщения.
- Использовать фразу «Цель клиента: ...» в сообщениях.
- Повторять то, что уже обсуждалось.
- Писать шаблонно и механически.

Общайся спокойно, мягко, с учётом контекста и стадии диалога.`

const (
	// directiveInitial permits a single greeting on the first turn.
	directiveInitial = "Это первое сообщение — если уместно, можешь поприветствовать клиента один раз."
	// directiveActive forbids greetings once the conversation is underway.
	directiveActive = "Не используй приветствие. Продолжай, как будто разговор уже идёт."

	// directivePaid is appended once a payment confirmation was recorded.
	// It only conditions the model; nothing validates the payment itself.
	directivePaid = "Клиент подтвердил оплату. Предложи 1–2 ближайших слота по времени: будние дни, 10:00, 12:00 или 14:00."
)

// fallbackReply substitutes an empty or failed generation so the turn still
// completes with a well-formed assistant message.
const fallbackReply = "Что-то пошло не так..."

// apologyReply is sent by the transport when turn processing itself fails.
const apologyReply = "Произошла ошибка при обработке сообщения."
