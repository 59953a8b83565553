// Package repository define los tipos de dominio y las interfaces de acceso
// a datos que consume el agregador de attached clients.
package repository

import "time"

// Device representa un dispositivo emparejado a la cuenta.
// SessionTokenID y RefreshTokenID son nullable: un device puede estar
// conectado vía sesión de browser, vía OAuth, o ambas.
type Device struct {
	ID             string
	UID            string
	SessionTokenID *string
	RefreshTokenID *string
	Name           *string
	Type           *string // desktop | mobile | tablet
	CreatedAt      time.Time
}

// Location contiene la geolocalización aproximada registrada en una sesión.
type Location struct {
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	StateCode   string `json:"stateCode,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
}
