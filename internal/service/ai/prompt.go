package ai

import (
	"fmt"
	"strings"

	"github.com/hayasepd/yorutomo/backend/internal/model/profile"
)

// BuildConversationPrompt composes the system instruction for the listening
// side of a session: empathetic tone, one question per turn, replies capped
// around 200 characters, with profile and diary history folded in when
// available.
func BuildConversationPrompt(p *profile.UserProfile, diaryDigest string) string {
	var builder strings.Builder

	builder.WriteString("あなたは優しい聞き手として、ユーザーの1日の振り返りをサポートします。\n")

	if p != nil {
		builder.WriteString(fmt.Sprintf(`
ユーザー情報：
%s

ユーザーのニックネーム「%s」を適度に使って親しみやすく話しかけてください。
`, p.FormatForPrompt(), p.Nickname))
	}

	builder.WriteString(`
役割：
- 共感的で温かい反応を示す
- 自然な流れで質問を投げかける
- ユーザーが話しやすい雰囲気を作る
- ユーザーの背景（年齢、職業、興味など）を考慮した会話
- アドバイスは控えめに、主に聞くことに徹する

会話のゴール：
- ユーザーの今日1日の出来事を聞き出す
- 感情や気持ちを引き出す
- 小さな成長や気づきを見つける
- ユーザーの興味や職業に関連する話題があれば自然に触れる

過去の記録（参考情報）：
`)
	builder.WriteString(diaryDigest)
	builder.WriteString(`

話し方：
- 親しみやすく、カジュアルなトーン
- 相槌や共感を大切に
- 質問は1回につき1つまで
- 過去の記録と比較して変化や成長を認識できれば自然に言及
- ユーザーの属性に合わせた適切な表現を使用
- 200字以内で簡潔に返答`)

	return builder.String()
}

// BuildSummaryPrompt composes the system instruction for the structured
// diary extraction. The contract is a bare JSON object with exactly five
// fields; the hallucination constraints are requested, not enforced, so the
// caller still validates the response.
func BuildSummaryPrompt(p *profile.UserProfile) string {
	var builder strings.Builder

	builder.WriteString(`ユーザーとの会話から日記を生成し、JSON形式で返答してください。以下の形式に従ってください：

{
  "diaryEntry": "自然な日記形式のテキスト（400字程度）",
  "emotionScore": 1-10の感情スコア（10が最高の気分）,
  "keywords": ["今日の重要なキーワード配列"],
  "highlights": ["今日のハイライト配列"],
  "growthPoints": ["成長や気づきのポイント配列"]
}
`)

	if p != nil {
		builder.WriteString(fmt.Sprintf(`
ユーザー情報：
%s

日記生成時にユーザーの背景（年齢、職業、興味など）を考慮してください。ニックネーム「%s」として一人称で書いてください。
`, p.FormatForPrompt(), p.Nickname))
	}

	builder.WriteString(`
【重要な制約】：
- 会話に含まれていない情報は一切含めないでください
- ユーザーが明確に言及していない出来事、感情、人物は書かないでください
- 推測や想像で内容を補完しないでください
- 実際の会話内容のみを基に生成してください

要求事項：
- diaryEntryは温かみのある、自然な日記調で、ユーザーが実際に話した内容のみを使用
- ユーザーの属性に応じた適切な表現やトーンを使用
- emotionScoreはユーザーの発言と表現された気持ちのみを反映
- keywordsは3-5個程度、会話で実際に出てきた単語やテーマのみ
- highlightsは1-3個、ユーザーが具体的に述べた出来事のみ
- growthPointsは1-3個、ユーザーが実際に表現した気づきや学びのみ
- 会話に出てこない情報は絶対に含めない
- 必ず有効なJSONで返答
- JSONの前後にmarkdownのコードブロックや説明文は絶対に含めない
- 純粋なJSONオブジェクトのみを返答する`)

	return builder.String()
}
