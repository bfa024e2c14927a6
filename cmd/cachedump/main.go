// Cache dump tool - lists and summarizes a disk point cache.
//
// Usage: go run ./cmd/cachedump -dir cache [-system rain] [-frame 24] [-csv]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/pointcache"
	"github.com/pthm-cable/psys/telemetry"
)

func main() {
	dir := flag.String("dir", "", "Disk cache root directory")
	system := flag.String("system", "", "Only this system (empty = all)")
	frame := flag.Int("frame", 0, "Dump the particle table of this frame (0 = summary only)")
	asCSV := flag.Bool("csv", false, "Write the frame dump as CSV to stdout")
	flag.Parse()

	if *dir == "" {
		log.Fatal("--dir is required")
	}

	storage, err := pointcache.NewDiskStorage(*dir)
	if err != nil {
		log.Fatalf("opening cache: %v", err)
	}

	names := []string{*system}
	if *system == "" {
		if names, err = storage.Systems(); err != nil {
			log.Fatalf("listing systems: %v", err)
		}
	}

	if *frame != 0 {
		for _, name := range names {
			if err := dumpFrame(storage, name, *frame, *asCSV); err != nil {
				log.Fatalf("%s: %v", name, err)
			}
		}
		return
	}

	for _, name := range names {
		if err := summarize(storage, name); err != nil {
			log.Fatalf("%s: %v", name, err)
		}
	}
}

// summarize prints one line per cached frame of a system.
func summarize(storage *pointcache.DiskStorage, system string) error {
	frames, err := storage.Frames(system)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d frames\n", system, len(frames))
	if len(frames) == 0 {
		return nil
	}
	fmt.Printf("  %6s %8s %8s %8s %8s %7s %9s\n", "frame", "records", "alive", "dead", "unborn", "events", "speed_p50")
	for _, f := range frames {
		data, err := storage.ReadFrame(system, f)
		if err != nil {
			return err
		}
		decoded, err := pointcache.Decode(data)
		if err != nil {
			return fmt.Errorf("frame %d: %w", f, err)
		}

		var alive, dead, unborn int
		var speeds []float64
		for _, r := range decoded.Records {
			switch components.Lifecycle(r.Alive) {
			case components.Alive:
				alive++
				speeds = append(speeds, r3.Norm(r3.Vec{X: r.VX, Y: r.VY, Z: r.VZ}))
			case components.Unborn:
				unborn++
			default:
				dead++
			}
		}
		_, _, p50, _ := telemetry.ComputeDistribution(speeds)
		fmt.Printf("  %6d %8d %8d %8d %8d %7d %9.3f\n", f, len(decoded.Records), alive, dead, unborn, len(decoded.Events), p50)
	}
	return nil
}

// dumpFrame prints the particle table and events of one cached frame.
func dumpFrame(storage *pointcache.DiskStorage, system string, frame int, asCSV bool) error {
	data, err := storage.ReadFrame(system, frame)
	if err != nil {
		return err
	}
	decoded, err := pointcache.Decode(data)
	if err != nil {
		return err
	}

	if asCSV {
		return gocsv.Marshal(decoded.Records, os.Stdout)
	}

	fmt.Printf("%s frame %d: %d records, %d events\n", system, frame, len(decoded.Records), len(decoded.Events))
	for _, r := range decoded.Records {
		fmt.Printf("  #%-5d %-7s co=(%.3f, %.3f, %.3f) vel=(%.3f, %.3f, %.3f) size=%.3f born=%.1f life=%.1f\n",
			r.Index, components.Lifecycle(r.Alive), r.X, r.Y, r.Z, r.VX, r.VY, r.VZ, r.Size, r.Birth, r.Lifetime)
	}
	for _, e := range decoded.Events {
		fmt.Printf("  event %-9s particle=%d source=%d t=%.2f co=(%.3f, %.3f, %.3f)\n",
			components.ReactionKind(e.Kind), e.Particle, e.Source, e.Time, e.X, e.Y, e.Z)
	}
	return nil
}
