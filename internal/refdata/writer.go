package refdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/topsongs/playsim/config"
)

// WriteAll writes the three master data collections into dir in the given
// format, using the file names the loader expects.
func WriteAll(dir string, format config.Format, songs []Song, users []User, locations []Location) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}

	switch format {
	case config.FormatCSV:
		if err := writeSongsCSV(filepath.Join(dir, "songs.csv"), songs); err != nil {
			return err
		}
		if err := writeUsersCSV(filepath.Join(dir, "users.csv"), users); err != nil {
			return err
		}
		return writeLocationsCSV(filepath.Join(dir, "locations.csv"), locations)
	case config.FormatJSON:
		if err := writeJSON(filepath.Join(dir, "songs.json"), songs); err != nil {
			return err
		}
		if err := writeJSON(filepath.Join(dir, "users.json"), users); err != nil {
			return err
		}
		return writeJSON(filepath.Join(dir, "locations.json"), locations)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func writeSongsCSV(path string, songs []Song) error {
	rows := make([][]string, 0, len(songs)+1)
	rows = append(rows, []string{"song_id", "title", "artist_name", "album_name", "genre", "duration_ms", "release_date"})
	for _, s := range songs {
		rows = append(rows, []string{s.ID, s.Title, s.Artist, s.Album, s.Genre, strconv.Itoa(s.DurationMS), s.ReleaseDate})
	}
	return writeCSV(path, rows)
}

func writeUsersCSV(path string, users []User) error {
	rows := make([][]string, 0, len(users)+1)
	rows = append(rows, []string{"user_id", "username", "email", "registration_date", "country"})
	for _, u := range users {
		rows = append(rows, []string{u.ID, u.Username, u.Email, u.RegistrationDate, u.Country})
	}
	return writeCSV(path, rows)
}

func writeLocationsCSV(path string, locations []Location) error {
	rows := make([][]string, 0, len(locations)+1)
	rows = append(rows, []string{"location_id", "city", "country_code", "latitude", "longitude"})
	for _, l := range locations {
		rows = append(rows, []string{
			l.ID, l.City, l.CountryCode,
			strconv.FormatFloat(l.Latitude, 'f', -1, 64),
			strconv.FormatFloat(l.Longitude, 'f', -1, 64),
		})
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	writer := csv.NewWriter(f)
	if err := writer.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeJSON(path string, records any) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
