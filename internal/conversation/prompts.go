package conversation

import (
	"fmt"
	"strings"

	"github.com/espacoamar/amanda-backend/internal/engine"
)

const amandaPersona = `Você é a Amanda, recepcionista virtual do Espaço Amar, clínica de terapias infantis em São Paulo.
Fale em português brasileiro, com calor humano e sem jargão clínico.
Nunca invente preços, horários ou nomes de profissionais que não estejam no contexto abaixo.
Responda como uma mensagem de WhatsApp, sem saudações repetidas se a conversa já começou.`

// promptContext is everything the reply generator may reference.
type promptContext struct {
	Decision engine.Decision
	Analysis engine.Analysis
	Lead     engine.LeadState
	Booking  engine.BookingContext
	Clinical engine.ClinicalVerdict
	Shift    engine.TopicShift
	Mode     engine.Mode
	Profile  engine.ModeProfile
	Memory   []engine.Fact
}

// buildReplyPrompt assembles the system blocks for the reply LLM call. The
// handler chosen by the decision engine selects the instruction block; the
// mode profile constrains length and tone.
func buildReplyPrompt(pc promptContext) []string {
	blocks := []string{amandaPersona}

	if instr := handlerInstructions(pc); instr != "" {
		blocks = append(blocks, instr)
	}
	if mem := memoryBlock(pc.Memory); mem != "" {
		blocks = append(blocks, mem)
	}
	if shift := shiftBlock(pc.Shift); shift != "" {
		blocks = append(blocks, shift)
	}
	blocks = append(blocks, profileBlock(pc.Mode, pc.Profile))

	return blocks
}

func handlerInstructions(pc promptContext) string {
	switch pc.Decision.Handler {
	case engine.HandlerTherapyGate:
		return "INSTRUÇÃO: O atendimento não pode seguir pelo fluxo padrão. Explique com delicadeza: " + pc.Clinical.Message +
			" Ofereça encaminhar o caso para a coordenação avaliar."

	case engine.HandlerLeadQualification:
		return qualificationInstruction(pc)

	case engine.HandlerScheduling:
		return schedulingInstruction(pc)

	case engine.HandlerProduct:
		return "INSTRUÇÃO: A família perguntou sobre valores. Informe que a avaliação inicial custa R$ 180 e as sessões variam por especialidade, e em seguida retome a pergunta que estava pendente, se houver."

	case engine.HandlerTherapyInfo:
		return "INSTRUÇÃO: Explique em poucas frases como funciona a terapia perguntada, com foco em crianças, e em seguida retome a pergunta pendente, se houver."

	case engine.HandlerJob:
		return "INSTRUÇÃO: A pessoa procura vaga de trabalho. Agradeça o interesse e direcione o currículo para rh@espacoamar.com.br. Não inicie qualificação."

	case engine.HandlerFallback:
		return "INSTRUÇÃO: O assunto foge do atendimento a famílias. Agradeça e informe que a coordenação responde por email em contato@espacoamar.com.br."

	default:
		return "INSTRUÇÃO: Acolha a família, entenda o que ela procura e conduza para descobrir qual terapia a criança precisa."
	}
}

func qualificationInstruction(pc promptContext) string {
	switch pc.Decision.Action {
	case engine.ActionAskTherapy:
		return "INSTRUÇÃO: Pergunte qual acompanhamento a família procura (fonoaudiologia, psicologia, terapia ocupacional, fisioterapia ou psicopedagogia). Uma pergunta só."
	case engine.ActionAskComplaint:
		return "INSTRUÇÃO: Pergunte o que a família tem observado na criança que motivou a busca. Demonstre acolhimento antes de perguntar."
	case engine.ActionAskAge:
		return "INSTRUÇÃO: Pergunte a idade da criança. Pergunta curta e única."
	default:
		return "INSTRUÇÃO: Continue a qualificação de forma natural, sem repetir perguntas já respondidas."
	}
}

func schedulingInstruction(pc promptContext) string {
	switch pc.Decision.Action {
	case engine.ActionAskPeriod:
		return "INSTRUÇÃO: Pergunte se a família prefere atendimento de manhã, à tarde ou no fim do dia."

	case engine.ActionSearchSlots:
		if pc.Booking.Slots != nil {
			return "INSTRUÇÃO: Reapresente as opções de horário abaixo, identificadas por letra, e peça para a família escolher uma:\n" + formatSlots(pc.Booking.Slots)
		}
		return "INSTRUÇÃO: Diga que vai verificar os horários disponíveis e já retorna."

	case engine.ActionAskPatientName:
		return "INSTRUÇÃO: Peça o nome completo da criança para concluir a reserva do horário."

	case engine.ActionConfirmBooking:
		slot := ""
		if pc.Booking.ChosenSlot != nil {
			slot = pc.Booking.ChosenSlot.Label
		}
		return fmt.Sprintf("INSTRUÇÃO: Confirme a reserva de %s para %s e explique que a clínica envia um lembrete um dia antes.", slot, pc.Lead.PatientName)

	default:
		return "INSTRUÇÃO: Conduza o agendamento a partir do ponto em que parou."
	}
}

func formatSlots(set *engine.SlotSet) string {
	if set == nil {
		return ""
	}
	var b strings.Builder
	letter := 'A'
	if set.Primary != nil {
		fmt.Fprintf(&b, "%c) %s\n", letter, set.Primary.Label)
		letter++
	}
	for _, alt := range set.Alternatives {
		fmt.Fprintf(&b, "%c) %s\n", letter, alt.Label)
		letter++
	}
	return strings.TrimRight(b.String(), "\n")
}

func memoryBlock(facts []engine.Fact) string {
	if len(facts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("CONTEXTO JÁ CONHECIDO (não pergunte de novo):\n")
	for _, f := range facts {
		fmt.Fprintf(&b, "- %s: %s\n", f.Type, f.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}

func shiftBlock(shift engine.TopicShift) string {
	if !shift.IsInterruption {
		return ""
	}
	if shift.InterruptedField == engine.AwaitUnknown {
		return "CONTEXTO: A família desviou do agendamento em andamento. Responda a dúvida e traga a conversa de volta ao agendamento."
	}
	return fmt.Sprintf("CONTEXTO: A família desviou do fluxo enquanto respondia sobre %q. Responda a dúvida e retome exatamente essa pergunta.", string(shift.InterruptedField))
}

func profileBlock(mode engine.Mode, p engine.ModeProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ESTILO (%s): no máximo %d caracteres e %d pergunta(s) por mensagem.", mode, p.MaxMessageChars, p.MaxQuestions)
	if len(p.Forbidden) > 0 {
		fmt.Fprintf(&b, " Evite: %s.", strings.Join(p.Forbidden, ", "))
	}
	return b.String()
}
