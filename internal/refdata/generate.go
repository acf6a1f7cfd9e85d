package refdata

import (
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

var genres = []string{"pop", "rock", "jazz", "hiphop", "classical", "country", "electronic", "metal"}

const (
	minSongDurationMS = 90000
	maxSongDurationMS = 420000
)

// GenerateSongs produces n synthetic songs with unique ids.
func GenerateSongs(n int, faker *gofakeit.Faker) []Song {
	songs := make([]Song, 0, n)
	for i := 0; i < n; i++ {
		songs = append(songs, Song{
			ID:          uuid.NewString(),
			Title:       title(faker, 3),
			Artist:      faker.Name(),
			Album:       title(faker, 2),
			Genre:       faker.RandomString(genres),
			DurationMS:  faker.Number(minSongDurationMS, maxSongDurationMS),
			ReleaseDate: dateThisCentury(faker),
		})
	}
	return songs
}

// GenerateUsers produces n synthetic users with unique ids.
func GenerateUsers(n int, faker *gofakeit.Faker) []User {
	users := make([]User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, User{
			ID:               uuid.NewString(),
			Username:         faker.Username(),
			Email:            faker.Email(),
			RegistrationDate: dateThisDecade(faker),
			Country:          faker.Country(),
		})
	}
	return users
}

// GenerateLocations produces n synthetic locations with unique ids.
func GenerateLocations(n int, faker *gofakeit.Faker) []Location {
	locations := make([]Location, 0, n)
	for i := 0; i < n; i++ {
		locations = append(locations, Location{
			ID:          uuid.NewString(),
			City:        faker.City(),
			CountryCode: faker.CountryAbr(),
			Latitude:    faker.Latitude(),
			Longitude:   faker.Longitude(),
		})
	}
	return locations
}

func title(faker *gofakeit.Faker, words int) string {
	s := faker.Sentence(words)
	return strings.TrimSuffix(s, ".")
}

func dateThisCentury(faker *gofakeit.Faker) string {
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	return faker.DateRange(start, time.Now().UTC()).Format("2006-01-02")
}

func dateThisDecade(faker *gofakeit.Faker) string {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return faker.DateRange(start, time.Now().UTC()).Format("2006-01-02")
}
