package refdata

import (
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/topsongs/playsim/config"
	"github.com/topsongs/playsim/errs"
)

// Context holds the loaded master data collections. It is immutable after
// Load returns, so concurrent reads from any number of workers are safe
// without synchronization.
type Context struct {
	songs     []Song
	users     []User
	locations []Location

	songIDs     map[string]struct{}
	userIDs     map[string]struct{}
	locationIDs map[string]struct{}
}

// Load reads the songs, users, and locations collections from dir in the
// given format. Absence or emptiness of any collection is a missing_data
// error; the check happens here, before any generation begins.
func Load(dir string, format config.Format) (*Context, error) {
	songs, err := loadSongs(filepath.Join(dir, "songs."+string(format)), format)
	if err != nil {
		return nil, err
	}
	users, err := loadUsers(filepath.Join(dir, "users."+string(format)), format)
	if err != nil {
		return nil, err
	}
	locations, err := loadLocations(filepath.Join(dir, "locations."+string(format)), format)
	if err != nil {
		return nil, err
	}

	if len(songs) == 0 {
		return nil, errs.MissingData("refdata", fmt.Sprintf("songs collection in %s is empty", dir))
	}
	if len(users) == 0 {
		return nil, errs.MissingData("refdata", fmt.Sprintf("users collection in %s is empty", dir))
	}
	if len(locations) == 0 {
		return nil, errs.MissingData("refdata", fmt.Sprintf("locations collection in %s is empty", dir))
	}

	ctx := &Context{
		songs:       songs,
		users:       users,
		locations:   locations,
		songIDs:     make(map[string]struct{}, len(songs)),
		userIDs:     make(map[string]struct{}, len(users)),
		locationIDs: make(map[string]struct{}, len(locations)),
	}
	for _, s := range songs {
		ctx.songIDs[s.ID] = struct{}{}
	}
	for _, u := range users {
		ctx.userIDs[u.ID] = struct{}{}
	}
	for _, l := range locations {
		ctx.locationIDs[l.ID] = struct{}{}
	}
	return ctx, nil
}

// SampleSong returns a uniformly sampled song using the caller's random source.
func (c *Context) SampleSong(rng *rand.Rand) Song {
	return c.songs[rng.Intn(len(c.songs))]
}

// SampleUser returns a uniformly sampled user using the caller's random source.
func (c *Context) SampleUser(rng *rand.Rand) User {
	return c.users[rng.Intn(len(c.users))]
}

// SampleLocation returns a uniformly sampled location using the caller's random source.
func (c *Context) SampleLocation(rng *rand.Rand) Location {
	return c.locations[rng.Intn(len(c.locations))]
}

// Counts reports the size of each loaded collection.
func (c *Context) Counts() (songs, users, locations int) {
	return len(c.songs), len(c.users), len(c.locations)
}

// SongDuration returns the duration of the identified song in milliseconds.
func (c *Context) SongDuration(id string) (int, bool) {
	for _, s := range c.songs {
		if s.ID == id {
			return s.DurationMS, true
		}
	}
	return 0, false
}

// ContainsSong reports whether the song id exists in the loaded set.
func (c *Context) ContainsSong(id string) bool {
	_, ok := c.songIDs[id]
	return ok
}

// ContainsUser reports whether the user id exists in the loaded set.
func (c *Context) ContainsUser(id string) bool {
	_, ok := c.userIDs[id]
	return ok
}

// ContainsLocation reports whether the location id exists in the loaded set.
func (c *Context) ContainsLocation(id string) bool {
	_, ok := c.locationIDs[id]
	return ok
}
