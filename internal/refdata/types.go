// Package refdata loads and indexes the immutable master data collections
// (songs, users, locations) that generated events reference by id.
package refdata

// Song describes one track in the master data set.
type Song struct {
	ID          string `json:"song_id"`
	Title       string `json:"title"`
	Artist      string `json:"artist_name"`
	Album       string `json:"album_name"`
	Genre       string `json:"genre"`
	DurationMS  int    `json:"duration_ms"`
	ReleaseDate string `json:"release_date"`
}

// User describes one listener in the master data set.
type User struct {
	ID               string `json:"user_id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	RegistrationDate string `json:"registration_date"`
	Country          string `json:"country"`
}

// Location describes one play origin in the master data set.
type Location struct {
	ID          string  `json:"location_id"`
	City        string  `json:"city"`
	CountryCode string  `json:"country_code"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}
