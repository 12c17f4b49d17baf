package handlers

import "fortune/internal/fate"

type messageKey int

const (
	msgInvalidBody messageKey = iota
	msgGenerationFailed
	msgGenerationTimeout
	msgServerError
	msgAuthRequired
	msgNotFound
	msgForbidden
	msgImageURLRequired
	msgTokenRequired
	msgPasswordsRequired
	msgPasswordTooShort
	msgPasswordNeedsUpper
	msgPasswordNeedsLower
	msgPasswordNeedsDigit
	msgWrongPassword
	msgPasswordRejected
	msgPasswordInvalid
	msgPasswordChangeFailed
	msgPasswordChanged
)

var messages = map[fate.Language]map[messageKey]string{
	fate.LangKorean: {
		msgInvalidBody:          "요청 형식이 올바르지 않습니다.",
		msgGenerationFailed:     "운세를 생성하는 중 오류가 발생했습니다. 잠시 후 다시 시도해 주세요.",
		msgGenerationTimeout:    "운세 생성 시간이 초과되었습니다. 잠시 후 다시 시도해 주세요.",
		msgServerError:          "서버 오류가 발생했습니다.",
		msgAuthRequired:         "사용자 인증이 필요합니다.",
		msgNotFound:             "기록을 찾을 수 없습니다.",
		msgForbidden:            "접근 권한이 없습니다.",
		msgImageURLRequired:     "이미지 URL이 필요합니다.",
		msgTokenRequired:        "인증 토큰이 필요합니다.",
		msgPasswordsRequired:    "현재 비밀번호와 새 비밀번호는 필수입니다.",
		msgPasswordTooShort:     "비밀번호는 최소 8자 이상이어야 합니다.",
		msgPasswordNeedsUpper:   "비밀번호에 대문자가 포함되어야 합니다.",
		msgPasswordNeedsLower:   "비밀번호에 소문자가 포함되어야 합니다.",
		msgPasswordNeedsDigit:   "비밀번호에 숫자가 포함되어야 합니다.",
		msgWrongPassword:        "현재 비밀번호가 올바르지 않습니다.",
		msgPasswordRejected:     "새 비밀번호가 정책을 만족하지 않습니다.",
		msgPasswordInvalid:      "비밀번호가 너무 짧거나 정책을 만족하지 않습니다.",
		msgPasswordChangeFailed: "비밀번호 변경에 실패했습니다.",
		msgPasswordChanged:      "비밀번호가 성공적으로 변경되었습니다.",
	},
	fate.LangEnglish: {
		msgInvalidBody:          "The request body is not valid JSON.",
		msgGenerationFailed:     "Something went wrong while reading your fortune. Please try again shortly.",
		msgGenerationTimeout:    "Reading your fortune took too long. Please try again shortly.",
		msgServerError:          "A server error occurred.",
		msgAuthRequired:         "Sign-in is required.",
		msgNotFound:             "Record not found.",
		msgForbidden:            "You do not have access to this record.",
		msgImageURLRequired:     "imageUrl is required.",
		msgTokenRequired:        "An access token is required.",
		msgPasswordsRequired:    "Both the current and the new password are required.",
		msgPasswordTooShort:     "The password must be at least 8 characters long.",
		msgPasswordNeedsUpper:   "The password must contain an uppercase letter.",
		msgPasswordNeedsLower:   "The password must contain a lowercase letter.",
		msgPasswordNeedsDigit:   "The password must contain a digit.",
		msgWrongPassword:        "The current password is incorrect.",
		msgPasswordRejected:     "The new password does not meet the password policy.",
		msgPasswordInvalid:      "The password is too short or does not meet the policy.",
		msgPasswordChangeFailed: "The password could not be changed.",
		msgPasswordChanged:      "Your password has been changed.",
	},
	fate.LangJapanese: {
		msgInvalidBody:          "リクエストの形式が正しくありません。",
		msgGenerationFailed:     "占いの生成中にエラーが発生しました。しばらくしてからもう一度お試しください。",
		msgGenerationTimeout:    "占いの生成がタイムアウトしました。しばらくしてからもう一度お試しください。",
		msgServerError:          "サーバーエラーが発生しました。",
		msgAuthRequired:         "ログインが必要です。",
		msgNotFound:             "記録が見つかりません。",
		msgForbidden:            "この記録へのアクセス権がありません。",
		msgImageURLRequired:     "画像URLが必要です。",
		msgTokenRequired:        "認証トークンが必要です。",
		msgPasswordsRequired:    "現在のパスワードと新しいパスワードは必須です。",
		msgPasswordTooShort:     "パスワードは8文字以上である必要があります。",
		msgPasswordNeedsUpper:   "パスワードには大文字を含める必要があります。",
		msgPasswordNeedsLower:   "パスワードには小文字を含める必要があります。",
		msgPasswordNeedsDigit:   "パスワードには数字を含める必要があります。",
		msgWrongPassword:        "現在のパスワードが正しくありません。",
		msgPasswordRejected:     "新しいパスワードがポリシーを満たしていません。",
		msgPasswordInvalid:      "パスワードが短すぎるか、ポリシーを満たしていません。",
		msgPasswordChangeFailed: "パスワードの変更に失敗しました。",
		msgPasswordChanged:      "パスワードが変更されました。",
	},
}

func message(lang fate.Language, key messageKey) string {
	return messages[fate.ParseLanguage(string(lang))][key]
}

// requestLanguage reads ?lang= or Accept-Language for endpoints without a body language.
func requestLanguage(query map[string]string, acceptLanguage string) fate.Language {
	if l := query["lang"]; l != "" {
		return fate.ParseLanguage(l)
	}
	if len(acceptLanguage) >= 2 {
		return fate.ParseLanguage(acceptLanguage[:2])
	}
	return fate.LangKorean
}
