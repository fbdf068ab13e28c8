package profile

import "strings"

// PreferNotToSay marks a field the user explicitly withheld. Withheld fields
// never appear in prompt text.
const PreferNotToSay = "prefer_not_to_say"

// UserProfile is the single onboarding record for the local installation.
type UserProfile struct {
	ID                   string   `json:"id"`
	Nickname             string   `json:"nickname"`
	Gender               string   `json:"gender"`
	Age                  string   `json:"age"`
	Occupation           string   `json:"occupation"`
	Interests            []string `json:"interests"`
	CreatedAt            string   `json:"createdAt"`
	IsOnboardingComplete bool     `json:"isOnboardingComplete"`
}

// AuthState mirrors the profile into the mocked authentication flag; both are
// written together.
type AuthState struct {
	IsAuthenticated bool         `json:"isAuthenticated"`
	User            *UserProfile `json:"user"`
}

// Update is a partial profile merge. Nil fields are left untouched.
type Update struct {
	Nickname   *string   `json:"nickname,omitempty"`
	Gender     *string   `json:"gender,omitempty"`
	Age        *string   `json:"age,omitempty"`
	Occupation *string   `json:"occupation,omitempty"`
	Interests  *[]string `json:"interests,omitempty"`
}

// Apply merges the update into a copy of p.
func (u Update) Apply(p UserProfile) UserProfile {
	if u.Nickname != nil {
		p.Nickname = *u.Nickname
	}
	if u.Gender != nil {
		p.Gender = *u.Gender
	}
	if u.Age != nil {
		p.Age = *u.Age
	}
	if u.Occupation != nil {
		p.Occupation = *u.Occupation
	}
	if u.Interests != nil {
		p.Interests = append([]string(nil), (*u.Interests)...)
	}
	return p
}

// 内部コードから表示用ラベルへの対応表。
var genderLabels = map[string]string{
	"male":   "男性",
	"female": "女性",
	"other":  "その他",
}

var ageLabels = map[string]string{
	"teens":        "10代",
	"twenties":     "20代",
	"thirties":     "30代",
	"forties":      "40代",
	"fifties":      "50代",
	"sixties_plus": "60代以上",
}

var occupationLabels = map[string]string{
	"student":        "学生",
	"office_worker":  "会社員",
	"freelancer":     "フリーランス",
	"entrepreneur":   "経営者・起業家",
	"public_servant": "公務員",
	"teacher":        "教育関係",
	"healthcare":     "医療・介護",
	"engineer":       "エンジニア",
	"designer":       "デザイナー",
	"sales":          "営業",
	"service":        "サービス業",
	"homemaker":      "主婦・主夫",
	"retired":        "退職・年金生活",
	"other":          "その他",
}

var interestLabels = map[string]string{
	"reading":     "読書",
	"movies":      "映画・ドラマ",
	"music":       "音楽",
	"sports":      "スポーツ",
	"cooking":     "料理",
	"travel":      "旅行",
	"gaming":      "ゲーム",
	"art":         "アート",
	"photography": "写真",
	"fashion":     "ファッション",
	"technology":  "テクノロジー",
	"nature":      "自然・アウトドア",
	"fitness":     "フィットネス",
	"pets":        "ペット",
	"family":      "家族との時間",
}

// FormatForPrompt renders the profile as the multi-line block embedded in
// system prompts. Absent or withheld fields are omitted; unknown codes fall
// back to the raw value.
func (p UserProfile) FormatForPrompt() string {
	parts := make([]string, 0, 5)

	if p.Nickname != "" {
		parts = append(parts, "ニックネーム: "+p.Nickname)
	}
	if p.Gender != "" && p.Gender != PreferNotToSay {
		parts = append(parts, "性別: "+labelOr(genderLabels, p.Gender))
	}
	if p.Age != "" && p.Age != PreferNotToSay {
		parts = append(parts, "年齢: "+labelOr(ageLabels, p.Age))
	}
	if p.Occupation != "" && p.Occupation != PreferNotToSay {
		parts = append(parts, "職業: "+labelOr(occupationLabels, p.Occupation))
	}
	if len(p.Interests) > 0 {
		interests := make([]string, 0, len(p.Interests))
		for _, id := range p.Interests {
			interests = append(interests, labelOr(interestLabels, id))
		}
		parts = append(parts, "興味・関心: "+strings.Join(interests, "、"))
	}

	return strings.Join(parts, "\n")
}

func labelOr(labels map[string]string, code string) string {
	if label, ok := labels[code]; ok {
		return label
	}
	return code
}
