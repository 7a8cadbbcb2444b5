// Package database provides PostgreSQL connectivity and repositories.
//
// Uses pgx for connection pooling and tern for migrations. Repositories
// implement the domain interfaces: MessageRepository, UserRepository,
// QuestionRepository, VoteRepository, PaperRepository, FeedbackRepository.
package database
