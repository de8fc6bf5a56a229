package util

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRegistered    = errors.New("email already registered")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrRoadmapNotFound    = errors.New("no current roadmap for user")
	ErrSessionNotFound    = errors.New("conversation session not found")
	ErrScenarioNotFound   = errors.New("scenario not found")
	ErrDeckNotFound       = errors.New("deck not found")
	ErrDeckTooSmall       = errors.New("deck must contain at least 4 words to build a quiz")
	ErrSuggestionNotFound = errors.New("word suggestion not found")
	ErrQuizNotFound       = errors.New("quiz session not found")
	ErrQuizNotReady       = errors.New("quiz session is not ready")
	ErrAlreadySummarized  = errors.New("session already summarized")
	ErrVersionConflict    = errors.New("roadmap was modified concurrently")
	ErrPhaseNotFound      = errors.New("phase label does not match any roadmap phase")
)
