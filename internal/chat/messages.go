package chat

// User-facing strings shown in the status line, alerts and labels.
const (
	PromptSignIn          = "Log in or sign up to start chatting."
	MsgSignUpInvalid      = "Enter a valid email address and a password of at least 6 characters."
	MsgVerifying          = "Verifying challenge..."
	MsgChallengeExpired   = "The verification challenge expired. Please try again."
	MsgSignedUp           = "Signed up and signed in."
	MsgSignedIn           = "Signed in."
	PrefixSignUpError     = "Sign-up error: "
	PrefixSignInError     = "Sign-in error: "
	NoticeUploadFailed    = "Failed to upload the file."
	NoticeRetractFailed   = "Failed to delete the message. It may not be yours."
	PromptRetract         = "Retract this message and delete it permanently?"
	LabelAnonymous        = "Anonymous user"
	LabelSelf             = "Me"
	otherUserLabelPattern = "User (%s...)"
)
