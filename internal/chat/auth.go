package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/AnshRaj112/globalchat/pkg/utils"
)

// ErrChallengeExpired is returned by Challenge.Verify when the solved token
// timed out before it was checked.
var ErrChallengeExpired = errors.New("challenge expired")

// AuthFlows drives sign-up, sign-in and sign-out. Successful sign-ins update
// the screen through the identity-change notification, not directly.
type AuthFlows struct {
	auth      Auth
	challenge Challenge
	view      View
	log       zerolog.Logger

	mu       sync.Mutex
	rendered bool
}

// NewAuthFlows builds the auth flows; challenge may be nil to disable the
// human-verification step.
func NewAuthFlows(auth Auth, challenge Challenge, view View, logger zerolog.Logger) *AuthFlows {
	return &AuthFlows{auth: auth, challenge: challenge, view: view, log: logger}
}

// ShowLoginForm switches the auth UI to the login form.
func (a *AuthFlows) ShowLoginForm() {
	a.view.ShowForm(FormLogin)
}

// ShowSignUpForm switches to the sign-up form and renders the challenge the
// first time.
func (a *AuthFlows) ShowSignUpForm(ctx context.Context) {
	a.view.ShowForm(FormSignUp)
	if err := a.renderChallenge(ctx); err != nil {
		a.log.Error().Err(err).Msg("render challenge failed")
	}
}

func (a *AuthFlows) renderChallenge(ctx context.Context) error {
	if a.challenge == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rendered {
		return nil
	}
	if err := a.challenge.Render(ctx); err != nil {
		return err
	}
	a.rendered = true
	return nil
}

// SignUp validates the form, passes the challenge if one is configured and
// creates the account.
func (a *AuthFlows) SignUp(ctx context.Context, email, password string) error {
	if err := utils.ValidateSignUp(email, password); err != nil {
		a.view.SetAuthMessage(MsgSignUpInvalid)
		return err
	}

	if a.challenge != nil {
		a.view.SetAuthMessage(MsgVerifying)
		err := a.renderChallenge(ctx)
		if err == nil {
			err = a.challenge.Verify(ctx)
		}
		if err != nil {
			a.challenge.Reset()
			if errors.Is(err, ErrChallengeExpired) {
				a.view.SetAuthMessage(MsgChallengeExpired)
			} else {
				a.view.SetAuthMessage(PrefixSignUpError + err.Error())
			}
			a.log.Error().Err(err).Msg("sign-up challenge failed")
			return err
		}
	}

	if _, err := a.auth.Register(ctx, email, password); err != nil {
		if a.challenge != nil {
			a.challenge.Reset()
		}
		a.view.SetAuthMessage(PrefixSignUpError + err.Error())
		a.log.Error().Err(err).Msg("sign-up failed")
		return err
	}
	a.view.SetAuthMessage(MsgSignedUp)
	return nil
}

// SignIn passes the credentials through unchanged.
func (a *AuthFlows) SignIn(ctx context.Context, email, password string) error {
	if _, err := a.auth.Authenticate(ctx, email, password); err != nil {
		a.view.SetAuthMessage(PrefixSignInError + err.Error())
		return err
	}
	a.view.SetAuthMessage(MsgSignedIn)
	return nil
}

// SignInWithProvider runs a federated sign-in.
func (a *AuthFlows) SignInWithProvider(ctx context.Context, provider Provider) error {
	id, err := a.auth.SignInWithProvider(ctx, provider)
	if err != nil {
		a.view.SetAuthMessage(fmt.Sprintf("%s sign-in error: %s", provider.Name(), err))
		a.log.Error().Err(err).Str("provider", provider.Name()).Msg("federated sign-in failed")
		return err
	}
	a.log.Info().Str("provider", provider.Name()).Str("email", id.Email).Msg("federated sign-in succeeded")
	a.view.SetAuthMessage(fmt.Sprintf("Signed in with %s.", provider.Name()))
	return nil
}

// SignOut asks the backend to end the session. A failure is only logged.
func (a *AuthFlows) SignOut(ctx context.Context) {
	if err := a.auth.SignOut(ctx); err != nil {
		a.log.Error().Err(err).Msg("sign-out failed")
	}
}
