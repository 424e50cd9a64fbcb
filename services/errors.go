package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки жизненного цикла матча
	ErrInvalidTransition = errors.New("invalid match status transition")
	ErrStateConflict     = errors.New("match state changed concurrently")

	// Ошибки прогнозов
	ErrMatchLocked           = errors.New("match is no longer open for predictions")
	ErrInvalidTeam           = errors.New("team is not one of the match's two sides")
	ErrInvalidPredictionType = errors.New("invalid prediction type")
	ErrEmptyPrediction       = errors.New("at least one predicted field is required")

	// Ошибки лидерборда
	ErrInvalidTimeframe = errors.New("invalid leaderboard timeframe")
	ErrInvalidPage      = errors.New("invalid page or page size")

	// Ошибки аутентификации
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Ошибки, специфичные для сущностей (дублируют ErrNotFound, но дают больше контекста)
	ErrMatchNotFound      = errors.New("match not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrPredictionNotFound = errors.New("prediction not found")

	// Транзиентные ошибки хранилища после исчерпания повторов
	ErrUnavailable = errors.New("storage temporarily unavailable")
)
