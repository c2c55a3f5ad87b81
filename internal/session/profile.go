package session

import (
	"github.com/pavelanni/able/internal/input"
	"github.com/pavelanni/able/internal/model"
)

// Profile is the accommodation set derived from a user's supports.
type Profile struct {
	Mode            model.Mode `json:"mode"`
	Adapter         input.Name `json:"adapter"`
	CommitOnAdvance bool       `json:"commitOnAdvance"`
	Timed           bool       `json:"timed"`
	AllowBack       bool       `json:"allowBack"`
	Braille         bool       `json:"braille"`
	Hints           bool       `json:"hints"`
	Captions        bool       `json:"captions"`
	Sign            bool       `json:"sign"`
}

// ResolveMode picks the one mode that drives a session. Motor wins over
// visual, then autism, cognitive, dyslexia or ADHD, and hearing.
func ResolveMode(u *model.User) (model.Mode, error) {
	switch {
	case u.HasSupport(model.SupportMotor):
		switch u.MotorPreference {
		case model.MotorSip:
			return model.ModeMotorSip, nil
		case model.MotorEye:
			return model.ModeMotorEye, nil
		case model.MotorBraille:
			return model.ModeMotorBraille, nil
		}
		return "", ErrPreferenceRequired
	case u.HasSupport(model.SupportVisual):
		return model.ModeVisual, nil
	case u.HasSupport(model.SupportAutism):
		return model.ModeAutism, nil
	case u.HasSupport(model.SupportCognitive):
		return model.ModeCognitive, nil
	case u.HasSupport(model.SupportDyslexia), u.HasSupport(model.SupportADHD):
		return model.ModeDyslexiaADHD, nil
	case u.HasSupport(model.SupportHearing):
		return model.ModeHearing, nil
	}
	return model.ModeNone, nil
}

// ResolveProfile derives the session profile for u. visualInput selects the
// adapter for visual mode; anything but speech means scanning.
func ResolveProfile(u *model.User, visualInput input.Name) (Profile, error) {
	mode, err := ResolveMode(u)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{
		Mode:     mode,
		Adapter:  input.NameScan,
		Timed:    !u.HasSupport(model.SupportAutism),
		Hints:    u.HasSupport(model.SupportCognitive),
		Captions: true,
		Sign:     u.HasSupport(model.SupportHearing),
	}
	switch mode {
	case model.ModeVisual:
		if visualInput == input.NameSpeech {
			p.Adapter = input.NameSpeech
		}
		p.Braille = true
	case model.ModeMotorSip:
		p.Adapter = input.NameSwitch
		p.CommitOnAdvance = true
	case model.ModeMotorEye:
		p.Adapter = input.NameGaze
		p.CommitOnAdvance = true
	case model.ModeMotorBraille:
		p.Braille = true
	}
	p.AllowBack = !p.CommitOnAdvance
	return p, nil
}
