package model

import (
	"context"
	"errors"
	"slices"
	"time"
)

// Role represents a user's access level.
type Role string

const (
	// RoleStudent is a student taking assessments.
	RoleStudent Role = "student"
	// RoleEducator is an educator authoring assessments and reading scores.
	RoleEducator Role = "educator"
)

// Support is one accessibility accommodation a user can enable.
type Support string

const (
	SupportVisual    Support = "visual"
	SupportMotor     Support = "motor"
	SupportCognitive Support = "cognitive"
	SupportHearing   Support = "hearing"
	SupportDyslexia  Support = "dyslexia"
	SupportADHD      Support = "adhd"
	SupportAutism    Support = "autism"
)

// MaxSupports is the number of supports a user may enable at once.
const MaxSupports = 3

var knownSupports = []Support{
	SupportVisual, SupportMotor, SupportCognitive, SupportHearing,
	SupportDyslexia, SupportADHD, SupportAutism,
}

// Support validation errors.
var (
	ErrUnknownSupport   = errors.New("unknown support")
	ErrTooManySupports  = errors.New("too many supports")
	ErrConflictSupports = errors.New("visual and motor supports cannot be combined")
)

// ValidateSupports checks a support list against the accommodation rules.
func ValidateSupports(supports []Support) error {
	if len(supports) > MaxSupports {
		return ErrTooManySupports
	}
	for _, s := range supports {
		if !slices.Contains(knownSupports, s) {
			return ErrUnknownSupport
		}
	}
	if slices.Contains(supports, SupportVisual) && slices.Contains(supports, SupportMotor) {
		return ErrConflictSupports
	}
	return nil
}

// MotorPreference is the input device chosen by a user with motor supports.
type MotorPreference string

const (
	MotorBraille MotorPreference = "braille"
	MotorSip     MotorPreference = "sip"
	MotorEye     MotorPreference = "eye"
)

// Valid reports whether p names a known device.
func (p MotorPreference) Valid() bool {
	switch p {
	case MotorBraille, MotorSip, MotorEye:
		return true
	}
	return false
}

// Language is the language a student takes assessments in.
type Language string

const (
	LanguageEnglish Language = "english"
	LanguageHindi   Language = "hindi"
	LanguageKannada Language = "kannada"
)

// DefaultLanguage is the language content is authored in.
const DefaultLanguage = LanguageEnglish

// Tag returns the BCP 47 tag for the language.
func (l Language) Tag() string {
	switch l {
	case LanguageHindi:
		return "hi"
	case LanguageKannada:
		return "kn"
	}
	return "en"
}

// SpeechLocale returns the locale used for speech recognition and synthesis.
func (l Language) SpeechLocale() string {
	switch l {
	case LanguageHindi:
		return "hi-IN"
	case LanguageKannada:
		return "kn-IN"
	}
	return "en-US"
}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	switch l {
	case LanguageEnglish, LanguageHindi, LanguageKannada:
		return true
	}
	return false
}

// ParseLanguage returns the language for a name or BCP 47 tag, falling back to the default.
func ParseLanguage(s string) Language {
	switch s {
	case "hindi", "hi", "hi-IN":
		return LanguageHindi
	case "kannada", "kn", "kn-IN":
		return LanguageKannada
	}
	return DefaultLanguage
}

// User represents a system user. ID is assigned by the external identity provider.
type User struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Role            Role            `json:"role"`
	Supports        []Support       `json:"supports"`
	MotorPreference MotorPreference `json:"motorPreference,omitempty"`
	Language        Language        `json:"language"`
	Onboarded       bool            `json:"onboarded"`
	PasswordHash    string          `json:"-"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// HasSupport reports whether the user enabled s.
func (u *User) HasSupport(s Support) bool {
	return slices.Contains(u.Supports, s)
}

// QuestionKind distinguishes answer formats.
type QuestionKind string

const (
	// KindMultipleChoice is a question answered by picking one option.
	KindMultipleChoice QuestionKind = "mcq"
	// KindShortAnswer is a question answered with free text.
	KindShortAnswer QuestionKind = "short"
)

// Question is one item of an assessment. CorrectAnswer holds the text of the
// correct option for multiple-choice questions.
type Question struct {
	Position      int          `json:"position"`
	Kind          QuestionKind `json:"type" validate:"required,oneof=mcq short"`
	Text          string       `json:"question" validate:"required"`
	Options       []string     `json:"options,omitempty" validate:"required_if=Kind mcq,omitempty,min=2,max=6,dive,required"`
	CorrectAnswer string       `json:"correctAnswer" validate:"required"`
	ImageURL      string       `json:"image,omitempty" validate:"omitempty,url"`
}

// Assessment is an ordered set of questions with an optional time limit.
type Assessment struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title" validate:"required"`
	CreatedBy    string     `json:"createdBy"`
	CreatorName  string     `json:"creatorName"`
	TimerMinutes int        `json:"timer" validate:"gte=0"` // 0 = untimed
	Questions    []Question `json:"questions" validate:"required,min=1,dive"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Score is a recorded assessment result.
type Score struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"userId" validate:"required"`
	Name         string    `json:"name" validate:"required"`
	Supports     []Support `json:"supports"`
	AssessmentID int64     `json:"assessmentId"`
	Score        int       `json:"score" validate:"gte=0,ltefield=Total"`
	Total        int       `json:"total" validate:"gt=0"`
	StartedAt    time.Time `json:"startedAt"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

// Attempt tracks one live assessment session from start to submission.
type Attempt struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	AssessmentID int64      `json:"assessmentId"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	ScoreID      *int64     `json:"scoreId,omitempty"`
}

// Mode is the single accommodation class driving a session.
type Mode string

const (
	ModeNone         Mode = "none"
	ModeVisual       Mode = "visual"
	ModeMotorSip     Mode = "motor-sip"
	ModeMotorEye     Mode = "motor-eye"
	ModeMotorBraille Mode = "motor-braille"
	ModeHearing      Mode = "hearing"
	ModeCognitive    Mode = "cognitive"
	ModeDyslexiaADHD Mode = "dyslexia-adhd"
	ModeAutism       Mode = "autism"
)

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}
