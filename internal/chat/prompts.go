package chat

import (
	"fmt"
	"strings"

	"github.com/pep299/news-chat/internal/model"
)

const summarizerInstruction = "당신은 뉴스 요약가입니다. 한국어로 답하세요. 과장하지 말고, 사실/추정/의견을 구분하세요. " +
	"아래 기사 묶음을 기반으로, 충분히 상세하게 요약하세요. 핵심만 빠뜨리지 말고, 배경·전개·의견·전망 등을 포함하세요."

const chatInstruction = "당신은 '수집된 뉴스'만을 근거로 대화하는 챗봇입니다. 뉴스에 없는 사실은 단정하지 말고, " +
	"필요하면 '기사에 근거가 부족함'이라고 말하세요. 한국어로 답하세요. " +
	"질문에 맞게 배경·전개·의견·전망을 포함해 충분히 상세하게 답하세요. 필요하면 bullet·번호 목록을 활용하세요."

func summaryPrompt(keyword, context string) string {
	return "키워드: " + keyword + "\n\n" +
		"요청:\n" +
		"- 전체 요약: 12~25줄 정도로 상세히. 배경, 주요 내용, 쟁점, 각 진영/관점, 전망·의견까지 포함.\n" +
		"- 공통 쟁점·이슈: 4~6개, 각각 1~2문장으로 설명.\n" +
		"- 기사별 요약: 기사당 2~4줄로 요지·입장·근거를 포함(없는 기사는 있는 만큼).\n\n" +
		"자료(기사들):\n" +
		context
}

func chatPrompt(keyword string, articles []model.Article, history []model.ChatTurn, question string) string {
	return fmt.Sprintf("키워드: %s\n\n수집 뉴스(요약용 메타):\n%s\n\n대화 기록:\n%s\n\n사용자 질문:\n%s\n\n"+
		"위 뉴스만 근거로, 질문에 대해 상세히 답하세요(2~4문단 또는 bullet 정리).",
		keyword, articleMeta(articles), historyLines(history), question)
}

// articleMeta lists article metadata only; chat does not re-extract pages.
func articleMeta(articles []model.Article) string {
	lines := make([]string, len(articles))
	for i, a := range articles {
		lines[i] = fmt.Sprintf("#%d %s (%s %s)\n%s\nURL:%s\n",
			i+1,
			model.SafeText(a.Title),
			model.SafeText(a.SourceName),
			model.SafeText(a.PublishedAt),
			model.SafeText(a.Description),
			model.SafeText(a.URL))
	}
	return strings.Join(lines, "\n")
}

func historyLines(history []model.ChatTurn) string {
	lines := make([]string, len(history))
	for i, turn := range history {
		speaker := "ASSISTANT"
		if turn.Role == model.RoleUser {
			speaker = "USER"
		}
		lines[i] = speaker + ": " + model.SafeText(turn.Text)
	}
	return strings.Join(lines, "\n")
}
