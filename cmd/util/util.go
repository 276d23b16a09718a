// Package util provides shared helpers for the shelfpod commands.
package util

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/shelfpod/lib/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString greedily wraps flag help text at Wrap characters. A single
// word longer than the width overflows its line rather than being split.
func WrapString(text string) string {
	var b strings.Builder
	width := 0

	for i, word := range strings.Fields(text) {
		switch {
		case i == 0:
			// first word starts the first line
		case width+1+len(word) > Wrap:
			b.WriteByte('\n')
			width = 0
		default:
			b.WriteByte(' ')
			width++
		}
		b.WriteString(word)
		width += len(word)
	}

	return b.String()
}

// InitConfig loads env files and initializes viper's environment handling.
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("shelfpod")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// ParseShelves parses the shelf layout flag. The format is a comma-separated
// list of TEMP=CAPACITY:DECAYFACTOR entries, e.g.
// "hot=15:1,cold=15:1,frozen=15:1,overflow=20:2".
func ParseShelves(spec string) ([]common.ShelfConfig, error) {
	var shelves []common.ShelfConfig
	for _, entry := range strings.Split(spec, ",") {
		parts := strings.Split(strings.TrimSpace(entry), "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid shelf entry: %s (expected TEMP=CAPACITY:DECAYFACTOR)", entry)
		}

		values := strings.Split(parts[1], ":")
		if len(values) != 2 {
			return nil, fmt.Errorf("invalid shelf entry: %s (expected TEMP=CAPACITY:DECAYFACTOR)", entry)
		}

		capacity, err := strconv.Atoi(values[0])
		if err != nil {
			return nil, fmt.Errorf("invalid capacity in shelf entry %s: %v", entry, err)
		}

		factor, err := strconv.ParseFloat(values[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid decay factor in shelf entry %s: %v", entry, err)
		}

		shelves = append(shelves, common.ShelfConfig{
			Temperature:     strings.TrimSpace(parts[0]),
			Capacity:        capacity,
			DecayRateFactor: factor,
		})
	}
	return shelves, nil
}
