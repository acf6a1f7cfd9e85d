package refdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/topsongs/playsim/config"
	"github.com/topsongs/playsim/errs"
)

func loadSongs(path string, format config.Format) ([]Song, error) {
	if format == config.FormatJSON {
		var songs []Song
		if err := readJSON(path, &songs); err != nil {
			return nil, err
		}
		return songs, nil
	}

	rows, idx, err := readCSV(path, []string{"song_id", "title", "artist_name", "album_name", "genre", "duration_ms", "release_date"})
	if err != nil {
		return nil, err
	}
	songs := make([]Song, 0, len(rows))
	for i, row := range rows {
		duration, err := strconv.Atoi(row[idx["duration_ms"]])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: parse duration_ms: %w", path, i+2, err)
		}
		songs = append(songs, Song{
			ID:          row[idx["song_id"]],
			Title:       row[idx["title"]],
			Artist:      row[idx["artist_name"]],
			Album:       row[idx["album_name"]],
			Genre:       row[idx["genre"]],
			DurationMS:  duration,
			ReleaseDate: row[idx["release_date"]],
		})
	}
	return songs, nil
}

func loadUsers(path string, format config.Format) ([]User, error) {
	if format == config.FormatJSON {
		var users []User
		if err := readJSON(path, &users); err != nil {
			return nil, err
		}
		return users, nil
	}

	rows, idx, err := readCSV(path, []string{"user_id", "username", "email", "registration_date", "country"})
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(rows))
	for _, row := range rows {
		users = append(users, User{
			ID:               row[idx["user_id"]],
			Username:         row[idx["username"]],
			Email:            row[idx["email"]],
			RegistrationDate: row[idx["registration_date"]],
			Country:          row[idx["country"]],
		})
	}
	return users, nil
}

func loadLocations(path string, format config.Format) ([]Location, error) {
	if format == config.FormatJSON {
		var locations []Location
		if err := readJSON(path, &locations); err != nil {
			return nil, err
		}
		return locations, nil
	}

	rows, idx, err := readCSV(path, []string{"location_id", "city", "country_code", "latitude", "longitude"})
	if err != nil {
		return nil, err
	}
	locations := make([]Location, 0, len(rows))
	for i, row := range rows {
		lat, err := strconv.ParseFloat(row[idx["latitude"]], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: parse latitude: %w", path, i+2, err)
		}
		lon, err := strconv.ParseFloat(row[idx["longitude"]], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: parse longitude: %w", path, i+2, err)
		}
		locations = append(locations, Location{
			ID:          row[idx["location_id"]],
			City:        row[idx["city"]],
			CountryCode: row[idx["country_code"]],
			Latitude:    lat,
			Longitude:   lon,
		})
	}
	return locations, nil
}

// readCSV reads all data rows from path and returns them with a header index
// for the required columns.
func readCSV(path string, required []string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errs.MissingData("refdata", fmt.Sprintf("collection file %s does not exist", path))
		}
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, errs.MissingData("refdata", fmt.Sprintf("collection file %s is empty", path))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s header: %w", path, err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, nil, fmt.Errorf("%s: missing column %q", path, name)
		}
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, idx, nil
}

func readJSON(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errs.MissingData("refdata", fmt.Sprintf("collection file %s does not exist", path))
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return errs.MissingData("refdata", fmt.Sprintf("collection file %s is empty", path))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
