package models

import "time"

// Tournament создаётся внешней админкой; движку прогнозов от него нужны
// только идентификатор и флаг контеста.
type Tournament struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	IsContest bool      `json:"is_contest" db:"is_contest"`
	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
