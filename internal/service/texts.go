package service

const (
	textWelcome     = "👋 Olá, %s!\n<b>Sou seu treinador de concursos.</b> Vou fazer %d perguntas rápidas para montar seu plano de estudos."
	textWelcomeBack = "👋 Bem-vindo de volta, %s! Toque em <b>📚 Estudar</b> ou use /study para uma micro-aula."
	textHelp        = "ℹ️ <b>Como funciona</b>\n" +
		"• /study — começar uma micro-aula com quiz\n" +
		"• /stop — encerrar a sessão e ver o resumo\n" +
		"• /balance — ver seus créditos e aulas grátis\n" +
		"• /reminders — ligar os lembretes diários (/reminders off para desligar)\n" +
		"• /help — esta ajuda"
	textUnknownInput  = "Não entendi. Use /study para estudar ou /help para ver os comandos."
	textTryLater      = "😕 Algo deu errado do nosso lado. Tente novamente em alguns minutos."
	textNoContent     = "😕 Não há conteúdo disponível no momento. Tente novamente mais tarde."
	textNoSession     = "Você não tem uma sessão ativa. Use /study para começar."
	textDeniedReason  = "Suas aulas gratuitas acabaram e você não tem créditos."
	textDenied        = "🔒 <b>Sem acesso a novas aulas.</b>\n%s\nCompre créditos ou assine um plano para continuar."
	textBuyCredits    = "💳 Comprar créditos"
	textValidation    = "Não reconheci «%s».\nOpções aceitas: %s."
	textStaleChoice   = "Essa opção não vale para a pergunta atual."
	textProfileDone   = "✅ <b>Perfil pronto!</b> Vamos à sua primeira micro-aula."
	textQuizQuestion  = "Qual alternativa descreve corretamente «%s»?"
	textQuizGone      = "Essa questão não está mais disponível. Use /study para uma nova aula."
	textNext          = "▶️ Próxima"
	textStop          = "⏹ Encerrar"
	textKeepStudying  = "📚 Continuar estudando"
	textReminderIntro = "⏰ <b>Hora da sua micro-aula!</b>"
	textSummary       = "🏁 <b>Sessão encerrada</b>\n• Aulas: %d\n• Acertos: %d\n• Erros: %d\n• Aproveitamento: %d%%"
	textCorrectAnswer = "Resposta certa: <b>%s</b>"
	textRemindersOn   = "🔔 Lembretes ligados. Você receberá uma micro-aula por dia às %02dh."
	textRemindersOff  = "🔕 Lembretes desligados. Use /reminders para ligar de novo."
	textBye           = "Até a próxima! 👋"

	textBalanceFirstDay     = "🎁 Você está no período de boas-vindas: ainda restam %d aula(s) grátis hoje."
	textBalanceSubscription = "⭐ Sua assinatura está ativa: aulas ilimitadas."
	textBalanceDailyFree    = "🎁 Você ainda tem %d aula(s) grátis hoje."
	textBalanceCredit       = "💰 Você tem %d crédito(s)."
)

var positiveFeedback = []string{
	"✅ Mandou bem!",
	"✅ Isso aí, resposta certa!",
	"✅ Perfeito!",
	"✅ Acertou em cheio!",
}

var encouragingFeedback = []string{
	"❌ Não foi dessa vez, mas você está evoluindo.",
	"❌ Quase! Revise o conceito abaixo.",
	"❌ Errar faz parte do treino.",
}

// Onboarding prompts, indexed by step.
var onboardingPrompts = map[int]string{
	stepTrack:      "📝 <b>Passo 1/8</b> · Qual tipo de concurso você está mirando?",
	stepRole:       "💼 <b>Passo 3/8</b> · Qual cargo você pretende?",
	stepLevel:      "📈 <b>Passo 4/8</b> · Como você avalia seu nível hoje?",
	stepStrong:     "💪 <b>Passo 5/8</b> · Em quais matérias você vai bem? Toque em quantas quiser e depois em «Concluir».",
	stepWeak:       "🎯 <b>Passo 6/8</b> · Quais matérias você quer reforçar? Toque em quantas quiser e depois em «Concluir».",
	stepTimeToExam: "🗓 <b>Passo 7/8</b> · Quanto tempo falta para a prova?",
	stepSlot:       "⏰ <b>Passo 8/8</b> · Qual o melhor horário para receber sua micro-aula diária?",
}

const (
	textRegionState     = "📍 <b>Passo 2/8</b> · Digite o estado (sigla ou nome, ex.: SP ou São Paulo)."
	textRegionMunicipal = "📍 <b>Passo 2/8</b> · Digite o município (ex.: Belo Horizonte ou BH)."
	textSelected        = "\n\nSelecionadas: %s"
)
