package restserver

import (
	"time"

	"github.com/chrissnell/moonshade/internal/content"
	"github.com/chrissnell/moonshade/internal/store"
	"github.com/chrissnell/moonshade/pkg/solar"
)

// PhaseResponse is returned by /phase
type PhaseResponse struct {
	Date         string               `json:"date"`
	Time         time.Time            `json:"time"`
	Age          float64              `json:"age"`
	Name         string               `json:"name"`
	Illumination float64              `json:"illumination"`
	Elongation   float64              `json:"elongation"`
	IsWaxing     bool                 `json:"is_waxing"`
	Favorite     bool                 `json:"favorite"`
	Orientation  *OrientationResponse `json:"orientation,omitempty"`
	Sun          *SunResponse         `json:"sun,omitempty"`
}

// OrientationResponse describes the lit limb for an observer, in degrees
type OrientationResponse struct {
	BrightLimbAngle  float64 `json:"bright_limb_angle"`
	ParallacticAngle float64 `json:"parallactic_angle"`
	LocalTerminator  float64 `json:"local_terminator"`
	Rotation         float64 `json:"rotation"`
}

// SunResponse carries the day's solar events. Rises is false on polar days
// and nights, when Sunrise and Sunset are absent.
type SunResponse struct {
	solar.Sun
	Rises bool `json:"rises"`
}

// ContentResponse is returned by /content
type ContentResponse struct {
	Date string `json:"date"`
	content.Content
}

type HistoryResponse struct {
	History []store.HistoryEntry `json:"history"`
}

type FavoritesResponse struct {
	Favorites []string `json:"favorites"`
}

// DateRequest is the body of POST /history and POST /favorites
type DateRequest struct {
	Date string `json:"date"`
}

// APIKeyRequest is the body of PUT /settings/api-key
type APIKeyRequest struct {
	APIKey string `json:"api_key"`
}

type SettingsResponse struct {
	UsesModel bool `json:"uses_model"`
}
