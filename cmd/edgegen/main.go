// Command edgegen writes a synthetic staircase observation log for replay
// with edgetrack.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/banshee-data/edgetrack/internal/elevation"
)

func main() {
	output := flag.String("o", "staircase.jsonl", "output path")
	frames := flag.Int("n", 20, "number of frames")
	stride := flag.Float64("stride", 0.1, "distance walked between frames (m)")
	resolution := flag.Float64("resolution", 0.05, "map resolution (m/cell)")
	size := flag.Int("size", 80, "map side length (cells)")
	steps := flag.Int("steps", 5, "number of steps")
	rise := flag.Float64("rise", 0.17, "riser height (m)")
	tread := flag.Float64("tread", 0.5, "tread depth (m)")
	flag.Parse()

	scene := elevation.DefaultStaircaseScene()
	scene.Steps = *steps
	scene.Rise = *rise
	scene.Tread = *tread

	obs, err := scene.Observations(*frames, *stride, *resolution, *size)
	if err != nil {
		log.Fatalf("generate: %v", err)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("create %s: %v", *output, err)
	}
	defer f.Close()

	if err := elevation.EncodeObservations(f, obs); err != nil {
		log.Fatalf("encode: %v", err)
	}
	log.Printf("wrote %d frames to %s", len(obs), *output)
}
