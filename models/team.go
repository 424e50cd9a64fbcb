package models

type Team struct {
	ID        int     `json:"id" db:"id"`
	Name      string  `json:"name" db:"name"`
	ShortName *string `json:"short_name,omitempty" db:"short_name"`
	LogoKey   *string `json:"-" db:"logo_key"`
	LogoURL   *string `json:"logo_url,omitempty" db:"-"`
}
