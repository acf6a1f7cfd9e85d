// Command mastergen generates synthetic master data collections (songs,
// users, locations) for the simulator to sample from.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/topsongs/playsim/config"
	"github.com/topsongs/playsim/internal/refdata"
)

func main() {
	var (
		outDir    = flag.String("out", "data/master", "Output directory for the generated collections")
		format    = flag.String("format", string(config.FormatCSV), "Output format: csv or json")
		songs     = flag.Int("songs", 1000, "Number of songs to generate")
		users     = flag.Int("users", 5000, "Number of users to generate")
		locations = flag.Int("locations", 200, "Number of locations to generate")
		seed      = flag.Uint64("seed", 0, "Random seed (0 = nondeterministic)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "mastergen ", log.LstdFlags)

	f := config.Format(*format)
	if f != config.FormatCSV && f != config.FormatJSON {
		logger.Fatalf("unsupported format %q", *format)
	}
	if *songs <= 0 || *users <= 0 || *locations <= 0 {
		logger.Fatalf("collection sizes must be >0")
	}

	faker := gofakeit.New(*seed)
	err := refdata.WriteAll(*outDir, f,
		refdata.GenerateSongs(*songs, faker),
		refdata.GenerateUsers(*users, faker),
		refdata.GenerateLocations(*locations, faker))
	if err != nil {
		logger.Fatalf("write master data: %v", err)
	}
	logger.Printf("wrote %d songs, %d users, %d locations to %s (%s)", *songs, *users, *locations, *outDir, f)
}
