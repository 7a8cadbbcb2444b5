package domain

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrNoActiveQuestion = errors.New("no active question")
	ErrVoteNotFound     = errors.New("vote not found")
	ErrAlreadyVoted     = errors.New("already voted on this question")
	ErrInvalidOption    = errors.New("option is not offered by this question")
	ErrAdminRequired    = errors.New("admin access required")
)
